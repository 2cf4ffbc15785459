package main

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// painter colours labels only when writing to a terminal.
type painter struct {
	enabled bool
}

func newPainter(w io.Writer) painter {
	return painter{enabled: isTerminal(w) && !color.NoColor}
}

func (p painter) paint(value string, attrs ...color.Attribute) string {
	if !p.enabled {
		return value
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(value)
}

// state colours run, job, and workflow states.
func (p painter) state(value string) string {
	switch value {
	case "succeeded", "reviewing", "OK":
		return p.paint(value, color.FgGreen)
	case "failed", "FAIL":
		return p.paint(value, color.FgRed, color.Bold)
	case "running", "pending", "detecting":
		return p.paint(value, color.FgYellow)
	case "abandoned":
		return p.paint(value, color.FgHiBlack)
	default:
		return p.paint(value, color.FgCyan)
	}
}

func (p painter) heading(value string) string {
	return p.paint(value, color.FgCyan, color.Bold)
}
