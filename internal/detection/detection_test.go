package detection_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"camtrap/internal/detection"
	"camtrap/internal/progress"
	"camtrap/internal/services"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	img.Set(0, 0, color.Black)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func TestListImagesHonoursRecursionAndExtensions(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "b.PNG"), 2, 2)
	writePNG(t, filepath.Join(root, "a.png"), 2, 2)
	writePNG(t, filepath.Join(root, "site2", "c.png"), 2, 2)
	writePNG(t, filepath.Join(root, ".cache", "d.png"), 2, 2)
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	flat, err := detection.ListImages(root, false)
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(flat) != 2 || filepath.Base(flat[0]) != "a.png" || filepath.Base(flat[1]) != "b.PNG" {
		t.Fatalf("unexpected flat listing %v", flat)
	}

	deep, err := detection.ListImages(root, true)
	if err != nil {
		t.Fatalf("ListImages recursive: %v", err)
	}
	if len(deep) != 3 {
		t.Fatalf("expected 3 images (hidden dirs skipped), got %v", deep)
	}

	if _, err := detection.ListImages(filepath.Join(root, "a.png"), false); err == nil {
		t.Fatal("expected error for non-directory root")
	}
}

func TestCategoryMapping(t *testing.T) {
	if detection.Animal.WireID() != 1 || detection.Vehicle.WireID() != 3 {
		t.Fatal("wire ids must be class index + 1")
	}
	if detection.Human.Label() != "Human" {
		t.Fatalf("unexpected label %q", detection.Human.Label())
	}
	if c, err := detection.ParseCategory("Person"); err != nil || c != detection.Human {
		t.Fatalf("person should map to human, got %v %v", c, err)
	}
	if _, err := detection.ParseCategory("tree"); err == nil {
		t.Fatal("expected error for unknown category")
	}

	record := detection.ImageRecord{Detections: []detection.Detection{{Category: detection.Animal}, {Category: detection.Vehicle}}}
	p := record.Presence()
	if !p.Animals || !p.Vehicles || p.Humans || p.Empty {
		t.Fatalf("unexpected presence %+v", p)
	}
	failed := detection.ImageRecord{Error: "corrupt"}
	if !failed.Presence().Empty {
		t.Fatal("failed record should count as empty")
	}
}

const batchJSON = `{
  "images": [
    {"file": "a.png", "detections": [
      {"category": "1", "conf": 0.92, "bbox": [0.1, 0.2, 0.3, 0.4]},
      {"category": "2", "conf": 0.15, "bbox": [0.5, 0.5, 0.1, 0.1]}
    ]},
    {"file": "sub/b.png", "detections": []},
    {"file": "c.png", "failure": "image corrupt"}
  ],
  "detection_categories": {"1": "animal", "2": "person", "3": "vehicle"}
}`

func TestMegaDetectorLookup(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "megadetector.json"), []byte(batchJSON), 0o644); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	md, err := detection.LoadMegaDetector(root, "megadetector.json")
	if err != nil {
		t.Fatalf("LoadMegaDetector: %v", err)
	}
	if md.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", md.Len())
	}

	result, err := md.Detect(context.Background(), filepath.Join(root, "a.png"))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(result.Detections) != 2 || result.Detections[0].Category != detection.Animal || result.Detections[1].Category != detection.Human {
		t.Fatalf("unexpected detections %+v", result.Detections)
	}
	if got := result.Detections[0]; got.X != 0.1 || got.Height != 0.4 || got.Confidence != 0.92 {
		t.Fatalf("unexpected box %+v", got)
	}

	if _, err := md.Detect(context.Background(), filepath.Join(root, "sub", "b.png")); err != nil {
		t.Fatalf("nested lookup failed: %v", err)
	}
	if _, err := md.Detect(context.Background(), filepath.Join(root, "c.png")); err == nil || !strings.Contains(err.Error(), "image corrupt") {
		t.Fatalf("expected failure entry error, got %v", err)
	}
	if _, err := md.Detect(context.Background(), filepath.Join(root, "missing.png")); err == nil {
		t.Fatal("expected error for unknown file")
	}
}

type scriptedDetector struct {
	results map[string]detection.Result
	delay   time.Duration
}

func (s *scriptedDetector) Name() string { return "scripted" }

func (s *scriptedDetector) Detect(ctx context.Context, path string) (detection.Result, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return detection.Result{}, ctx.Err()
		}
	}
	result, ok := s.results[filepath.Base(path)]
	if !ok {
		return detection.Result{}, errors.New("unreadable image")
	}
	return result, nil
}

func waitRun(t *testing.T, run *detection.Run) {
	t.Helper()
	select {
	case <-run.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish")
	}
}

func TestLocalBackendProducesRecordsAndProgress(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"01.png", "02.png", "03.png", "04.png"} {
		writePNG(t, filepath.Join(root, name), 8, 6)
	}
	detector := &scriptedDetector{results: map[string]detection.Result{
		"01.png": {Width: 8, Height: 6, Detections: []detection.Detection{{Category: detection.Animal, Confidence: 0.9}}},
		"02.png": {Detections: []detection.Detection{{Category: detection.Human, Confidence: 0.1}}},
		"03.png": {},
	}}
	backend := detection.NewLocalBackend(func(context.Context, detection.Request) (detection.Detector, error) {
		return detector, nil
	})

	run, err := backend.StartDetection(context.Background(), detection.Request{Root: root, ConfidenceThreshold: 0.2})
	if err != nil {
		t.Fatalf("StartDetection: %v", err)
	}
	sub := run.Progress().Subscribe()
	var reports []progress.Report
	for r := range sub.C() {
		reports = append(reports, r)
	}
	waitRun(t, run)

	if run.Err() != nil {
		t.Fatalf("unexpected run error: %v", run.Err())
	}
	last := reports[len(reports)-1]
	if last.Current != 4 || last.Total != 4 || last.Percent != 100 || last.Message != detection.MessageComplete {
		t.Fatalf("unexpected final report %+v", last)
	}
	for i := 1; i < len(reports); i++ {
		if reports[i].Current < reports[i-1].Current {
			t.Fatalf("reports out of order: %+v", reports)
		}
	}

	records := run.Records()
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	if len(records[0].Detections) != 1 || records[0].ImageWidth != 8 {
		t.Fatalf("unexpected first record %+v", records[0])
	}
	if len(records[1].Detections) != 0 {
		t.Fatalf("low-confidence detection should be dropped, got %+v", records[1].Detections)
	}
	if records[1].ImageWidth != 8 || records[1].ImageHeight != 6 {
		t.Fatalf("size should be read from header, got %dx%d", records[1].ImageWidth, records[1].ImageHeight)
	}
	if records[3].Error == "" {
		t.Fatalf("expected per-image error for 04.png, got %+v", records[3])
	}
	if records[0].File != filepath.Join(root, "01.png") {
		t.Fatalf("records should carry absolute paths, got %q", records[0].File)
	}
}

func TestLocalBackendEmptyDataset(t *testing.T) {
	backend := detection.NewLocalBackend(func(context.Context, detection.Request) (detection.Detector, error) {
		t.Fatal("factory should not be called for empty datasets")
		return nil, nil
	})
	run, err := backend.StartDetection(context.Background(), detection.Request{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("StartDetection: %v", err)
	}
	waitRun(t, run)
	latest, ok := run.Progress().Latest()
	if !ok || !latest.Final() || latest.Percent != 100 {
		t.Fatalf("expected single completion report, got %+v", latest)
	}
}

func TestLocalBackendStartFailures(t *testing.T) {
	backend := detection.NewLocalBackend(func(context.Context, detection.Request) (detection.Detector, error) {
		return nil, errors.New("model missing")
	})
	_, err := backend.StartDetection(context.Background(), detection.Request{Root: filepath.Join(t.TempDir(), "missing")})
	if !errors.Is(err, services.ErrBackendFailure) {
		t.Fatalf("expected backend failure for missing root, got %v", err)
	}

	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"), 2, 2)
	run, err := backend.StartDetection(context.Background(), detection.Request{Root: root})
	if err != nil {
		t.Fatalf("StartDetection should ack before loading: %v", err)
	}
	waitRun(t, run)
	if !errors.Is(run.Err(), services.ErrBackendFailure) || !strings.Contains(run.Err().Error(), "model missing") {
		t.Fatalf("expected load failure, got %v", run.Err())
	}
	if run.Progress().Completed() {
		t.Fatal("failed run must not complete its progress stream")
	}
	latest, _ := run.Progress().Latest()
	if latest.Message != detection.MessageLoading || latest.Current != 0 {
		t.Fatalf("expected loading report, got %+v", latest)
	}
}

func TestRunCancelFailsRun(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		writePNG(t, filepath.Join(root, name), 2, 2)
	}
	detector := &scriptedDetector{delay: time.Second, results: map[string]detection.Result{}}
	backend := detection.NewLocalBackend(func(context.Context, detection.Request) (detection.Detector, error) {
		return detector, nil
	})
	run, err := backend.StartDetection(context.Background(), detection.Request{Root: root})
	if err != nil {
		t.Fatalf("StartDetection: %v", err)
	}
	run.Cancel()
	waitRun(t, run)
	if run.Err() == nil {
		t.Fatal("cancelled run should fail")
	}
}
