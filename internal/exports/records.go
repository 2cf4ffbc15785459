package exports

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"camtrap/internal/detection"
	"camtrap/internal/fileutil"
	"camtrap/internal/logging"
	"camtrap/internal/services"
)

var csvHeader = []string{"file", "error", "image_width", "image_height", "x", "y", "width", "height", "category", "confidence"}

type jsonDetection struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Category   int     `json:"category"`
	Confidence float64 `json:"confidence"`
}

type jsonImage struct {
	File        string          `json:"file"`
	Error       string          `json:"error,omitempty"`
	ImageWidth  int             `json:"image_width,omitempty"`
	ImageHeight int             `json:"image_height,omitempty"`
	Detections  []jsonDetection `json:"detections"`
}

type jsonDocument struct {
	Images     []jsonImage               `json:"images"`
	Categories []detection.CategoryEntry `json:"categories"`
}

// ExportRecords writes every record of ds to outputPath in the csv or json
// format. The file is replaced atomically.
func (e *Exporter) ExportRecords(ctx context.Context, formatID string, ds Dataset, outputPath string) (Result, error) {
	var fill func(io.Writer) error
	switch formatID {
	case FormatCSV:
		fill = func(w io.Writer) error { return writeCSV(w, ds) }
	case FormatJSON:
		fill = func(w io.Writer) error { return writeJSON(w, ds) }
	default:
		return Result{}, services.Wrap(ErrUnknownFormat, formatID, "export records", "not a record format", nil)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, services.Wrap(services.ErrBackendFailure, formatID, "export records", "cancelled", err)
	}

	if err := fileutil.WriteFileAtomic(outputPath, fill); err != nil {
		return Result{}, services.Wrap(services.ErrBackendFailure, formatID, "export records",
			fmt.Sprintf("write %s", outputPath), err)
	}
	e.logger.Info("records exported",
		logging.String(logging.FieldFormat, formatID),
		logging.String("output", outputPath),
		logging.Int("records", len(ds.Records)),
	)
	return Result{Path: outputPath, Images: len(ds.Records)}, nil
}

func writeCSV(w io.Writer, ds Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range ds.Records {
		for _, row := range csvRows(ds.Root, rec) {
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// csvRows yields one error row, one "Empty" row, or one row per detection.
// Coordinates are in pixels when the image size is known and normalised
// otherwise.
func csvRows(root string, rec detection.ImageRecord) [][]string {
	file := relativePath(root, rec.File)
	width, height := sizeField(rec.ImageWidth), sizeField(rec.ImageHeight)
	if rec.Failed() {
		return [][]string{{file, rec.Error, width, height, "", "", "", "", "", ""}}
	}
	if len(rec.Detections) == 0 {
		return [][]string{{file, "", width, height, "", "", "", "", "Empty", ""}}
	}

	scaleX, scaleY := 1.0, 1.0
	if rec.ImageWidth > 0 && rec.ImageHeight > 0 {
		scaleX, scaleY = float64(rec.ImageWidth), float64(rec.ImageHeight)
	}
	rows := make([][]string, 0, len(rec.Detections))
	for _, d := range rec.Detections {
		rows = append(rows, []string{
			file, "", width, height,
			formatCoord(d.X * scaleX),
			formatCoord(d.Y * scaleY),
			formatCoord(d.Width * scaleX),
			formatCoord(d.Height * scaleY),
			d.Category.Label(),
			strconv.FormatFloat(d.Confidence, 'f', 3, 64),
		})
	}
	return rows
}

func sizeField(v int) string {
	if v <= 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(w io.Writer, ds Dataset) error {
	doc := jsonDocument{
		Images:     make([]jsonImage, 0, len(ds.Records)),
		Categories: detection.CategoryTable,
	}
	for _, rec := range ds.Records {
		img := jsonImage{
			File:        relativePath(ds.Root, rec.File),
			Error:       rec.Error,
			ImageWidth:  rec.ImageWidth,
			ImageHeight: rec.ImageHeight,
			Detections:  make([]jsonDetection, 0, len(rec.Detections)),
		}
		for _, d := range rec.Detections {
			img.Detections = append(img.Detections, jsonDetection{
				X:          d.X,
				Y:          d.Y,
				Width:      d.Width,
				Height:     d.Height,
				Category:   d.Category.WireID(),
				Confidence: d.Confidence,
			})
		}
		doc.Images = append(doc.Images, img)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
