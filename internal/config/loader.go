package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/mattjoyce/scriptbridge/internal/protocol"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a YAML file, applies defaults
// and validates the result. An empty path yields Defaults().
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return Defaults(), nil
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path passed with --config", absPath)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return cfg, nil
}

// Parse decodes YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	// Apply environment variable interpolation
	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyConfigDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func applyConfigDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Worker.Name == "" {
		cfg.Worker.Name = defaults.Worker.Name
	}
	if cfg.Worker.LogLevel == "" {
		cfg.Worker.LogLevel = defaults.Worker.LogLevel
	}
	if cfg.Worker.LogFormat == "" {
		cfg.Worker.LogFormat = defaults.Worker.LogFormat
	}
	if cfg.Protocol.Profile == "" {
		cfg.Protocol.Profile = defaults.Protocol.Profile
	}
	if cfg.Script.Print == "" {
		cfg.Script.Print = defaults.Script.Print
	}
	if cfg.Metrics.RateLimit > 0 && cfg.Metrics.RateBurst == 0 {
		cfg.Metrics.RateBurst = max(1, int(cfg.Metrics.RateLimit*2))
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Left in place so validate can report it.
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Worker.LogLevel] {
		return fmt.Errorf("worker.log_level must be one of: debug, info, warn, error (got %q)", cfg.Worker.LogLevel)
	}

	if cfg.Worker.LogFormat != "json" && cfg.Worker.LogFormat != "text" {
		return fmt.Errorf("worker.log_format must be json or text (got %q)", cfg.Worker.LogFormat)
	}

	if _, err := protocol.ParseProfile(cfg.Protocol.Profile); err != nil {
		return fmt.Errorf("protocol.profile: %w", err)
	}

	if cfg.Script.Print != "discard" && cfg.Script.Print != "log" {
		return fmt.Errorf("script.print must be discard or log (got %q)", cfg.Script.Print)
	}

	if cfg.Metrics.RateLimit < 0 || cfg.Metrics.RateBurst < 0 {
		return fmt.Errorf("metrics.rate_limit and metrics.rate_burst must not be negative")
	}

	fields := map[string]string{
		"journal.path":   cfg.Journal.Path,
		"metrics.listen": cfg.Metrics.Listen,
		"metrics.token":  cfg.Metrics.Token,
	}
	for i, p := range cfg.Script.ModulePath {
		if p == "" {
			return fmt.Errorf("script.module_path[%d] is empty", i)
		}
		fields[fmt.Sprintf("script.module_path[%d]", i)] = p
	}
	for field, v := range fields {
		if m := envVarPattern.FindStringSubmatch(v); m != nil {
			return fmt.Errorf("%s references undefined environment variable %s", field, m[1])
		}
	}

	return nil
}
