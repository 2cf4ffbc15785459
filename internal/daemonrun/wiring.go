package daemonrun

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"camtrap/internal/config"
	"camtrap/internal/detection"
	"camtrap/internal/exports"
	"camtrap/internal/notifications"
	"camtrap/internal/services"
	"camtrap/internal/workflow"
)

// NewBackend builds the detection backend selected by detection.backend.
func NewBackend(cfg *config.Config, logger *slog.Logger) (detection.Backend, error) {
	var factory detection.DetectorFactory
	switch strings.TrimSpace(cfg.Detection.Backend) {
	case config.BackendMegaDetector:
		factory = detection.MegaDetectorFactory(cfg.Detection.MegaDetectorFile)
	case config.BackendOllama:
		timeout := time.Duration(cfg.Ollama.TimeoutSeconds) * time.Second
		factory = detection.OllamaFactory(cfg.Ollama.URL, cfg.Ollama.Model, timeout)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "daemonrun", "select backend",
			fmt.Sprintf("unknown detection backend %q", cfg.Detection.Backend), nil)
	}
	return detection.NewLocalBackend(factory,
		detection.WithLogger(logger),
		detection.WithProgressRate(cfg.Detection.ProgressRate),
	), nil
}

// NewExporter builds the export writer from the [export] section.
func NewExporter(cfg *config.Config, logger *slog.Logger) *exports.Exporter {
	return exports.NewExporter(
		exports.WithLogger(logger),
		exports.WithWorkers(cfg.Export.Workers),
		exports.WithJPEGQuality(cfg.Export.JPEGQuality),
		exports.WithWebPQuality(cfg.Export.WebPQuality),
	)
}

// NewController wires a workflow controller for cfg. ledger may be nil.
func NewController(cfg *config.Config, logger *slog.Logger, ledger workflow.Ledger, opts ...workflow.Option) (*workflow.Controller, error) {
	backend, err := NewBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	base := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithNotifier(notifications.NewService(cfg)),
		workflow.WithDefaults(workflow.Config{ConfidenceThreshold: cfg.Detection.ConfidenceThreshold}),
		workflow.WithBackendName(cfg.Detection.Backend),
	}
	if ledger != nil {
		base = append(base, workflow.WithLedger(ledger))
	}
	return workflow.New(backend, NewExporter(cfg, logger), append(base, opts...)...), nil
}
