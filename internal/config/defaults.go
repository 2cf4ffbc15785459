package config

const (
	defaultConfigPath          = "~/.config/camtrap/config.toml"
	projectConfigName          = "camtrap.toml"
	defaultLogDir              = "~/.local/share/camtrap/logs"
	defaultDataDir             = "~/.local/share/camtrap"
	defaultAPIBind             = "127.0.0.1:7491"
	defaultBackend             = BackendMegaDetector
	defaultConfidenceThreshold = 0.2
	defaultProgressRate        = 10
	defaultMegaDetectorFile    = "megadetector.json"
	defaultOllamaURL           = "http://localhost:11434"
	defaultOllamaModel         = "qwen2.5vl:7b"
	defaultOllamaTimeout       = 120
	defaultExportWorkers       = 4
	defaultJPEGQuality         = 90
	defaultWebPQuality         = 90
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Detector backends accepted by detection.backend.
const (
	BackendMegaDetector = "megadetector"
	BackendOllama       = "ollama"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:  defaultLogDir,
			DataDir: defaultDataDir,
			APIBind: defaultAPIBind,
		},
		Detection: Detection{
			Backend:             defaultBackend,
			ConfidenceThreshold: defaultConfidenceThreshold,
			ProgressRate:        defaultProgressRate,
			MegaDetectorFile:    defaultMegaDetectorFile,
		},
		Ollama: Ollama{
			URL:            defaultOllamaURL,
			Model:          defaultOllamaModel,
			TimeoutSeconds: defaultOllamaTimeout,
		},
		Export: Export{
			Workers:     defaultExportWorkers,
			JPEGQuality: defaultJPEGQuality,
			WebPQuality: defaultWebPQuality,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Detection:      true,
			Exports:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
