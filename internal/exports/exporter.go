package exports

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"

	"camtrap/internal/criteria"
	"camtrap/internal/detection"
	"camtrap/internal/logging"
	"camtrap/internal/services"
)

// Dataset is the detection output an export works from.
type Dataset struct {
	Root    string
	Records []detection.ImageRecord
}

// Result summarises a finished export.
type Result struct {
	Path string
	// Images counts records written for record formats and image files
	// written for image-set formats.
	Images int
}

// Exporter writes datasets to disk.
type Exporter struct {
	logger      *slog.Logger
	workers     int
	jpegQuality int
	webpQuality float32
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithLogger sets the exporter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) { e.logger = logger }
}

// WithWorkers bounds the number of images processed at once. Zero or
// negative uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Exporter) { e.workers = n }
}

// WithJPEGQuality sets the JPEG encoder quality (1-100).
func WithJPEGQuality(q int) Option {
	return func(e *Exporter) { e.jpegQuality = q }
}

// WithWebPQuality sets the lossy WebP encoder quality (1-100).
func WithWebPQuality(q int) Option {
	return func(e *Exporter) { e.webpQuality = float32(q) }
}

// NewExporter builds an exporter.
func NewExporter(opts ...Option) *Exporter {
	e := &Exporter{jpegQuality: 90, webpQuality: 90}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers <= 0 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	e.logger = logging.NewComponentLogger(e.logger, "exports")
	return e
}

// Export dispatches to the writer for format. Filter and render only apply to
// image-set formats.
func (e *Exporter) Export(ctx context.Context, format Format, ds Dataset, outputPath string, filter criteria.Filter, render criteria.Draw) (Result, error) {
	switch format.Writer {
	case WriterRecords:
		return e.ExportRecords(ctx, format.ID, ds, outputPath)
	case WriterImageSet:
		return e.ExportImageSet(ctx, ds, outputPath, filter, render)
	default:
		return Result{}, services.Wrap(services.ErrInvalidOutputTarget, format.ID, "export",
			fmt.Sprintf("format has no writer (%q)", format.Writer), nil)
	}
}

// relativePath expresses file relative to root with forward slashes. Files
// outside root keep their base name.
func relativePath(root, file string) string {
	rel, err := filepath.Rel(root, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(file)
	}
	return filepath.ToSlash(rel)
}

// absolutePath resolves a record path against root.
func absolutePath(root, file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(root, filepath.FromSlash(file))
}
