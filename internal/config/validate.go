package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateOllama(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDetection() error {
	switch c.Detection.Backend {
	case BackendMegaDetector, BackendOllama:
	default:
		return fmt.Errorf("detection.backend must be %q or %q, got %q", BackendMegaDetector, BackendOllama, c.Detection.Backend)
	}
	if c.Detection.ConfidenceThreshold < 0 || c.Detection.ConfidenceThreshold > 1 {
		return errors.New("detection.confidence_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateOllama() error {
	if c.Detection.Backend != BackendOllama {
		return nil
	}
	parsed, err := url.Parse(c.Ollama.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("ollama.url must be an absolute URL, got %q", c.Ollama.URL)
	}
	return nil
}

func (c *Config) validateExport() error {
	if c.Export.JPEGQuality < 1 || c.Export.JPEGQuality > 100 {
		return errors.New("export.jpeg_quality must be between 1 and 100")
	}
	if c.Export.WebPQuality < 1 || c.Export.WebPQuality > 100 {
		return errors.New("export.webp_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
