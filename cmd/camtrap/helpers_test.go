package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"camtrap/internal/config"
	"camtrap/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("CAMTRAP_API_TOKEN", "")

	configPath := filepath.Join(base, "camtrap-test.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nlog_dir = %q\ndata_dir = %q\napi_bind = %q\n\n[detection]\nbackend = %q\nmegadetector_file = %q\n\n[logging]\nlevel = \"warn\"\n",
		cfg.Paths.LogDir,
		cfg.Paths.DataDir,
		cfg.Paths.APIBind,
		cfg.Detection.Backend,
		cfg.Detection.MegaDetectorFile,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

// writeBatchFile stores a MegaDetector batch output next to the dataset
// images: deer.png holds one animal box, empty.png nothing.
func writeBatchFile(t *testing.T, root string) {
	t.Helper()
	const batch = `{
  "images": [
    {"file": "deer.png", "detections": [{"category": "1", "conf": 0.8, "bbox": [0.25, 0.25, 0.5, 0.5]}]},
    {"file": "empty.png", "detections": []}
  ],
  "detection_categories": {"1": "animal", "2": "person", "3": "vehicle"}
}`
	testsupport.WriteFile(t, filepath.Join(root, "megadetector.json"), []byte(batch))
}
