package testsupport

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path and its parents with the given content.
func WriteFile(t testing.TB, path string, content []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WritePNG writes a solid grey PNG of the given size.
func WritePNG(t testing.TB, path string, w, h int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x42
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// Dataset creates a dataset directory under the test's temp dir holding a
// small PNG for each relative name and returns its root.
func Dataset(t testing.TB, names ...string) string {
	t.Helper()

	root := filepath.Join(t.TempDir(), "cams")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir dataset: %v", err)
	}
	for _, name := range names {
		WritePNG(t, filepath.Join(root, filepath.FromSlash(name)), 64, 48)
	}
	return root
}
