package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mattjoyce/scriptbridge/internal/tui"
)

func runMonitor(args []string) int {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	url := fs.String("url", "http://127.0.0.1:9464", "Ops server base URL")
	token := fs.String("token", os.Getenv("SCRIPTBRIDGE_OPS_TOKEN"), "Bearer token for the ops server")
	interval := fs.Duration("interval", 2*time.Second, "Poll interval")
	limit := fs.Int("limit", 50, "Requests to show")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if err := tui.RunMonitor(tui.NewClient(*url, *token, *limit), *interval); err != nil {
		fmt.Fprintf(os.Stderr, "Monitor error: %v\n", err)
		return 1
	}
	return 0
}
