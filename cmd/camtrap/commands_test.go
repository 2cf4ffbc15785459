package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camtrap/internal/daemon"
	"camtrap/internal/detection"
	"camtrap/internal/exports"
	"camtrap/internal/testsupport"
	"camtrap/internal/workflow"
)

func TestRunDetectsAndExportsCSV(t *testing.T) {
	env := setupCLITestEnv(t)
	root := testsupport.Dataset(t, "deer.png", "empty.png")
	writeBatchFile(t, root)

	out, _, err := runCLI(t, env.configPath, "run", root, "--format", "csv")
	require.NoError(t, err, out)
	requireContains(t, out, "Detection summary")
	requireContains(t, out, "succeeded")

	data, err := os.ReadFile(filepath.Join(filepath.Dir(root), "cams.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "file,error,image_width,image_height,x,y,width,height,category,confidence", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "deer.png,,64,48,16,12,32,24,Animal,0.800"), lines[1])

	out, _, err = runCLI(t, env.configPath, "history")
	require.NoError(t, err)
	requireContains(t, out, "succeeded")
	requireContains(t, out, root)
}

func TestRunWritesImageDirWithFilter(t *testing.T) {
	env := setupCLITestEnv(t)
	root := testsupport.Dataset(t, "deer.png", "empty.png")
	writeBatchFile(t, root)
	target := filepath.Join(t.TempDir(), "animals")

	out, _, err := runCLI(t, env.configPath, "run", root,
		"--format", "image-dir", "--output", target, "--filter", "empty=exclude", "--draw", "none")
	require.NoError(t, err, out)

	entries, err := os.ReadDir(target)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "deer.png", entries[0].Name())
}

func TestRunRejectsBadArguments(t *testing.T) {
	env := setupCLITestEnv(t)
	root := testsupport.Dataset(t, "deer.png")

	_, _, err := runCLI(t, env.configPath, "run", root, "--format", "csv", "--format", "json", "--output", "/tmp/x")
	require.Error(t, err)
	requireContains(t, err.Error(), "--output")

	_, _, err = runCLI(t, env.configPath, "run", root, "--format", "xml")
	require.Error(t, err)

	_, _, err = runCLI(t, env.configPath, "run", filepath.Join(root, "missing"))
	require.Error(t, err)
	requireContains(t, err.Error(), "dataset")
}

func TestRunFailsWithoutBatchFile(t *testing.T) {
	env := setupCLITestEnv(t)
	root := testsupport.Dataset(t, "deer.png")

	_, _, err := runCLI(t, env.configPath, "run", root)
	require.Error(t, err)
	requireContains(t, err.Error(), "detection failed")
}

func TestFormatsListsRegistry(t *testing.T) {
	out, _, err := runCLI(t, "", "formats")
	require.NoError(t, err)
	for _, id := range []string{exports.FormatCSV, exports.FormatJSON, exports.FormatImageDir} {
		requireContains(t, out, id)
	}

	out, _, err = runCLI(t, "", "formats", "--json")
	require.NoError(t, err)
	var formats []exports.Format
	require.NoError(t, json.Unmarshal([]byte(out), &formats))
	assert.Len(t, formats, 3)
}

func TestConfigInitShowAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "config", "validate")
	require.NoError(t, err)
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, env.configPath, "config", "show")
	require.NoError(t, err)
	requireContains(t, out, env.cfg.Paths.DataDir)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, env.configPath, "config", "init", "--path", target)
	require.NoError(t, err)
	requireContains(t, out, "Wrote sample configuration")
	_, err = os.Stat(target)
	require.NoError(t, err)

	_, _, err = runCLI(t, env.configPath, "config", "init", "--path", target)
	require.Error(t, err, "init must not overwrite without --overwrite")
	_, _, err = runCLI(t, env.configPath, "config", "init", "--path", target, "--overwrite")
	require.NoError(t, err)
}

func TestStatusWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "status", "--api", "127.0.0.1:1")
	require.NoError(t, err)
	requireContains(t, out, "Log directory")
	requireContains(t, out, "not running")
}

type idleBackend struct{}

func (idleBackend) StartDetection(context.Context, detection.Request) (*detection.Run, error) {
	return nil, errors.New("not used")
}

func TestDaemonCommandsTalkToAPI(t *testing.T) {
	env := setupCLITestEnv(t)

	dcfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, dcfg)
	wf := workflow.New(idleBackend{}, exports.NewExporter(), workflow.WithLedger(st))
	d, err := daemon.New(dcfg, st, nil, wf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, d.Start(context.Background()))

	out, _, err := runCLI(t, env.configPath, "daemon", "status", "--api", d.Address())
	require.NoError(t, err)
	requireContains(t, out, string(workflow.StateSelecting))

	out, _, err = runCLI(t, env.configPath, "daemon", "runs", "--api", d.Address())
	require.NoError(t, err)
	requireContains(t, out, "No runs recorded")

	out, _, err = runCLI(t, env.configPath, "daemon", "reset", "--api", d.Address())
	require.NoError(t, err)
	requireContains(t, out, "Workflow reset")
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "test-notify")
	require.NoError(t, err)
	requireContains(t, out, "not sent")
}
