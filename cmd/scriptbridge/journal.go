package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/mattjoyce/scriptbridge/internal/config"
	"github.com/mattjoyce/scriptbridge/internal/journal"
	"github.com/mattjoyce/scriptbridge/internal/tui"
)

func runJournalNoun(args []string) int {
	if len(args) == 0 || isHelpToken(args[0]) {
		fmt.Fprintln(os.Stderr, "Usage: scriptbridge journal list [--config file | --path db] [--limit n] [--json]")
		if len(args) == 0 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "list":
		return runJournalList(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown journal action: %s\n", args[0])
		return 1
	}
}

func runJournalList(args []string) int {
	fs := flag.NewFlagSet("journal list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Read journal.path from this configuration file")
	dbPath := fs.String("path", "", "Journal database path")
	limit := fs.Int("limit", 20, "Maximum entries to show")
	jsonOut := fs.Bool("json", false, "Output entries as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	path := *dbPath
	if path == "" && *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 1
		}
		path = cfg.Journal.Path
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "No journal path: pass --path or a --config with journal.path set")
		return 1
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "Journal not found: %v\n", err)
		return 1
	}

	ctx := context.Background()
	j, err := journal.Open(ctx, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open journal: %v\n", err)
		return 1
	}
	defer j.Close()

	entries, err := j.Recent(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read journal: %v\n", err)
		return 1
	}

	if *jsonOut {
		if entries == nil {
			entries = []journal.Entry{}
		}
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Println(tui.RenderEntries(tui.NewDefaultTheme(), entries))
	return 0
}
