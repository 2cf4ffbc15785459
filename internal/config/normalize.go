package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDetection()
	c.normalizeOllama()
	c.normalizeExport()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("CAMTRAP_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeDetection() {
	c.Detection.Backend = strings.ToLower(strings.TrimSpace(c.Detection.Backend))
	if c.Detection.Backend == "" {
		c.Detection.Backend = defaultBackend
	}
	c.Detection.MegaDetectorFile = strings.TrimSpace(c.Detection.MegaDetectorFile)
	if c.Detection.MegaDetectorFile == "" {
		c.Detection.MegaDetectorFile = defaultMegaDetectorFile
	}
	// Only tilde paths are expanded here; relative paths stay relative to
	// the dataset root.
	if strings.HasPrefix(c.Detection.MegaDetectorFile, "~") {
		if expanded, err := expandPath(c.Detection.MegaDetectorFile); err == nil {
			c.Detection.MegaDetectorFile = expanded
		}
	}
	if c.Detection.ProgressRate <= 0 {
		c.Detection.ProgressRate = defaultProgressRate
	}
}

func (c *Config) normalizeOllama() {
	c.Ollama.URL = strings.TrimRight(strings.TrimSpace(c.Ollama.URL), "/")
	if c.Ollama.URL == "" {
		if value, ok := os.LookupEnv("OLLAMA_HOST"); ok && strings.TrimSpace(value) != "" {
			c.Ollama.URL = strings.TrimSpace(value)
		} else {
			c.Ollama.URL = defaultOllamaURL
		}
	}
	c.Ollama.Model = strings.TrimSpace(c.Ollama.Model)
	if c.Ollama.Model == "" {
		c.Ollama.Model = defaultOllamaModel
	}
	if c.Ollama.TimeoutSeconds <= 0 {
		c.Ollama.TimeoutSeconds = defaultOllamaTimeout
	}
}

func (c *Config) normalizeExport() {
	if c.Export.Workers <= 0 {
		c.Export.Workers = defaultExportWorkers
	}
	if c.Export.JPEGQuality == 0 {
		c.Export.JPEGQuality = defaultJPEGQuality
	}
	if c.Export.WebPQuality == 0 {
		c.Export.WebPQuality = defaultWebPQuality
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
