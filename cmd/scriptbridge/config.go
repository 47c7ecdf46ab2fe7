package main

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/scriptbridge/internal/config"
)

func runConfigNoun(args []string) int {
	if len(args) == 0 || isHelpToken(args[0]) {
		fmt.Fprintln(os.Stderr, "Usage: scriptbridge config <check|show> --config file")
		if len(args) == 0 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "check":
		return runConfigCheck(args[1:])
	case "show":
		return runConfigShow(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", args[0])
		return 1
	}
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("config check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: scriptbridge config check --config file")
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
		return 1
	}

	fmt.Printf("Configuration valid: %s\n", *configPath)
	fmt.Printf("  worker:   %s (log %s/%s)\n", cfg.Worker.Name, cfg.Worker.LogLevel, cfg.Worker.LogFormat)
	fmt.Printf("  profile:  %s\n", cfg.Protocol.Profile)
	fmt.Printf("  journal:  %s\n", orDisabled(cfg.Journal.Path))
	fmt.Printf("  metrics:  %s\n", orDisabled(cfg.Metrics.Listen))
	return 0
}

// runConfigShow prints the effective configuration, defaults included.
func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file (empty shows defaults)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if cfg.Metrics.Token != "" {
		cfg.Metrics.Token = "<redacted>"
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render config: %v\n", err)
		return 1
	}
	fmt.Print(string(data))
	return 0
}

func orDisabled(s string) string {
	if s == "" {
		return "disabled"
	}
	return s
}
