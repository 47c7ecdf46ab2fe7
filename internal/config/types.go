package config

// Config represents the complete scriptbridge worker configuration.
type Config struct {
	Worker   WorkerConfig   `yaml:"worker"`
	Protocol ProtocolConfig `yaml:"protocol"`
	Script   ScriptConfig   `yaml:"script"`
	Journal  JournalConfig  `yaml:"journal,omitempty"`
	Metrics  MetricsConfig  `yaml:"metrics,omitempty"`
}

// WorkerConfig defines process-level settings.
type WorkerConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ProtocolConfig selects the wire profile.
type ProtocolConfig struct {
	Profile string `yaml:"profile"` // framed | plain
}

// ScriptConfig defines how loaded scripts run.
type ScriptConfig struct {
	Print      string   `yaml:"print"`                 // discard | log
	ModulePath []string `yaml:"module_path,omitempty"` // initial load() search path
}

// JournalConfig defines the optional SQLite request journal.
type JournalConfig struct {
	Path string `yaml:"path"` // empty disables the journal
}

// MetricsConfig defines the optional ops HTTP listener.
type MetricsConfig struct {
	Listen    string  `yaml:"listen"`               // empty disables the listener
	Token     string  `yaml:"token,omitempty"`      // bearer token for /metrics and /requests
	RateLimit float64 `yaml:"rate_limit,omitempty"` // requests per second per client; 0 disables
	RateBurst int     `yaml:"rate_burst,omitempty"`
}

// Defaults returns the configuration a worker runs with when no file is given.
func Defaults() *Config {
	return &Config{
		Worker: WorkerConfig{
			Name:      "scriptbridge",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Protocol: ProtocolConfig{
			Profile: "framed",
		},
		Script: ScriptConfig{
			Print: "discard",
		},
	}
}
