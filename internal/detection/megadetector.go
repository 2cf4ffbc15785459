package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MegaDetector serves detections recorded in a MegaDetector batch output
// file. Entries are keyed by their path relative to the dataset root.
type MegaDetector struct {
	root    string
	entries map[string]batchImage
}

type batchFile struct {
	Images     []batchImage      `json:"images"`
	Categories map[string]string `json:"detection_categories"`
}

type batchImage struct {
	File       string           `json:"file"`
	Detections []batchDetection `json:"detections"`
	Failure    string           `json:"failure"`
	Error      string           `json:"error"`
	categories map[string]string
}

type batchDetection struct {
	Category string     `json:"category"`
	Conf     float64    `json:"conf"`
	BBox     [4]float64 `json:"bbox"`
}

var defaultBatchCategories = map[string]string{
	"1": "animal",
	"2": "person",
	"3": "vehicle",
}

// LoadMegaDetector parses the batch file at path. A relative path is
// resolved against root.
func LoadMegaDetector(root, path string) (*MegaDetector, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read megadetector output: %w", err)
	}
	var batch batchFile
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("parse megadetector output %s: %w", filepath.Base(path), err)
	}
	categories := batch.Categories
	if len(categories) == 0 {
		categories = defaultBatchCategories
	}

	md := &MegaDetector{root: root, entries: make(map[string]batchImage, len(batch.Images))}
	for _, img := range batch.Images {
		img.categories = categories
		md.entries[md.key(img.File)] = img
	}
	return md, nil
}

// MegaDetectorFactory loads the batch file named by file for each request.
func MegaDetectorFactory(file string) DetectorFactory {
	return func(_ context.Context, req Request) (Detector, error) {
		return LoadMegaDetector(req.Root, file)
	}
}

func (m *MegaDetector) Name() string { return "megadetector" }

// Len returns the number of images in the batch file.
func (m *MegaDetector) Len() int { return len(m.entries) }

func (m *MegaDetector) Detect(_ context.Context, path string) (Result, error) {
	entry, ok := m.entries[m.key(path)]
	if !ok {
		return Result{}, fmt.Errorf("no entry in megadetector output for %s", filepath.Base(path))
	}
	if msg := firstNonEmpty(entry.Failure, entry.Error); msg != "" {
		return Result{}, fmt.Errorf("megadetector: %s", msg)
	}
	detections := make([]Detection, 0, len(entry.Detections))
	for _, d := range entry.Detections {
		name, ok := entry.categories[d.Category]
		if !ok {
			return Result{}, fmt.Errorf("unknown megadetector category %q", d.Category)
		}
		category, err := ParseCategory(name)
		if err != nil {
			return Result{}, err
		}
		detections = append(detections, Detection{
			X:          d.BBox[0],
			Y:          d.BBox[1],
			Width:      d.BBox[2],
			Height:     d.BBox[3],
			Category:   category,
			Confidence: d.Conf,
		})
	}
	return Result{Detections: detections}, nil
}

// key normalises absolute and relative spellings of the same file.
func (m *MegaDetector) key(path string) string {
	if filepath.IsAbs(path) {
		if rel, err := filepath.Rel(m.root, path); err == nil && !strings.HasPrefix(rel, "..") {
			path = rel
		}
	}
	return filepath.ToSlash(filepath.Clean(strings.ReplaceAll(path, "\\", "/")))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
