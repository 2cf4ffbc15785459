package preflight

import (
	"context"
	"path/filepath"

	"camtrap/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes the checks that apply to the configured backend.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
	}

	switch cfg.Detection.Backend {
	case config.BackendOllama:
		results = append(results, CheckOllama(ctx, cfg.Ollama))
	case config.BackendMegaDetector:
		// Relative batch files live inside each dataset and can only be
		// checked once a dataset is chosen.
		if filepath.IsAbs(cfg.Detection.MegaDetectorFile) {
			results = append(results, CheckFileReadable("MegaDetector batch file", cfg.Detection.MegaDetectorFile))
		}
	}

	return results
}

// Failed returns the subset of results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
