package exports

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"camtrap/internal/criteria"
	"camtrap/internal/detection"
	"camtrap/internal/fileutil"
	"camtrap/internal/logging"
	"camtrap/internal/services"
)

var boxColors = map[detection.Category]color.NRGBA{
	detection.Animal:  {R: 255, G: 255, B: 255, A: 255},
	detection.Human:   {R: 255, A: 255},
	detection.Vehicle: {B: 255, A: 255},
}

// ExportImageSet writes the images of ds selected by filter into outputDir,
// mirroring their paths relative to the dataset root. Boxes are drawn for
// detections whose category is enabled in render; an image with nothing to
// draw is copied byte for byte.
func (e *Exporter) ExportImageSet(ctx context.Context, ds Dataset, outputDir string, filter criteria.Filter, render criteria.Draw) (Result, error) {
	const op = "export image set"
	if err := filter.Validate(); err != nil {
		return Result{}, services.Wrap(services.ErrInvalidSelection, FormatImageDir, op, "filter criteria", err)
	}
	if fileutil.SamePath(outputDir, ds.Root) {
		return Result{}, services.Wrap(services.ErrInvalidOutputTarget, FormatImageDir, op,
			"output directory must differ from the dataset root", nil)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrInvalidOutputTarget, FormatImageDir, op,
			fmt.Sprintf("create %s", outputDir), err)
	}

	selected := make([]detection.ImageRecord, 0, len(ds.Records))
	for _, rec := range ds.Records {
		if filter.Select(rec.Presence()) {
			selected = append(selected, rec)
		}
	}

	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, rec := range selected {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src := absolutePath(ds.Root, rec.File)
			dst := filepath.Join(outputDir, filepath.FromSlash(relativePath(ds.Root, src)))
			if err := e.writeImage(src, dst, rec, render); err != nil {
				return fmt.Errorf("%s: %w", src, err)
			}
			written.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, services.Wrap(services.ErrBackendFailure, FormatImageDir, op, "write image", err)
	}

	e.logger.Info("image set exported",
		logging.String(logging.FieldFormat, FormatImageDir),
		logging.String("output", outputDir),
		logging.String("filter", filter.String()),
		logging.Int("selected", len(selected)),
		logging.Int("records", len(ds.Records)),
	)
	return Result{Path: outputDir, Images: int(written.Load())}, nil
}

func (e *Exporter) writeImage(src, dst string, rec detection.ImageRecord, render criteria.Draw) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	boxes := drawable(rec.Detections, render)
	if len(boxes) == 0 {
		return fileutil.CopyFile(src, dst)
	}

	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	canvas := imaging.Clone(img)
	drawBoxes(canvas, boxes)
	return e.encode(canvas, dst)
}

func drawable(detections []detection.Detection, render criteria.Draw) []detection.Detection {
	var out []detection.Detection
	for _, d := range detections {
		if render.Enabled(d.Category.Criteria()) {
			out = append(out, d)
		}
	}
	return out
}

// strokeWidth scales the outline with the shorter image side, roughly 2px
// on a 1080p frame.
func strokeWidth(bounds image.Rectangle) int {
	short := min(bounds.Dx(), bounds.Dy())
	return max(1, short/540)
}

func drawBoxes(img *image.NRGBA, boxes []detection.Detection) {
	bounds := img.Bounds()
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	stroke := strokeWidth(bounds)
	for _, d := range boxes {
		box := image.Rect(
			bounds.Min.X+int(d.X*w),
			bounds.Min.Y+int(d.Y*h),
			bounds.Min.X+int((d.X+d.Width)*w),
			bounds.Min.Y+int((d.Y+d.Height)*h),
		).Intersect(bounds)
		if box.Empty() {
			continue
		}
		fill := &image.Uniform{C: boxColors[d.Category]}
		edges := []image.Rectangle{
			image.Rect(box.Min.X, box.Min.Y, box.Max.X, box.Min.Y+stroke),
			image.Rect(box.Min.X, box.Max.Y-stroke, box.Max.X, box.Max.Y),
			image.Rect(box.Min.X, box.Min.Y, box.Min.X+stroke, box.Max.Y),
			image.Rect(box.Max.X-stroke, box.Min.Y, box.Max.X, box.Max.Y),
		}
		for _, edge := range edges {
			draw.Draw(img, edge.Intersect(box), fill, image.Point{}, draw.Src)
		}
	}
}

// encode writes img in the format implied by the extension of dst.
func (e *Exporter) encode(img image.Image, dst string) error {
	if strings.EqualFold(filepath.Ext(dst), ".webp") {
		f, err := os.Create(dst)
		if err != nil {
			return err
		}
		if err := webp.Encode(f, img, &webp.Options{Quality: e.webpQuality}); err != nil {
			_ = f.Close()
			return fmt.Errorf("encode webp: %w", err)
		}
		return f.Close()
	}
	err := imaging.Save(img, dst, imaging.JPEGQuality(e.jpegQuality))
	if errors.Is(err, imaging.ErrUnsupportedFormat) {
		return fmt.Errorf("unsupported output format %q", filepath.Ext(dst))
	}
	return err
}
