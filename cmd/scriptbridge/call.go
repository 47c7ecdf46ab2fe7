package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattjoyce/scriptbridge/internal/host"
	"github.com/mattjoyce/scriptbridge/internal/log"
	"github.com/mattjoyce/scriptbridge/internal/protocol"
	"github.com/mattjoyce/scriptbridge/internal/value"
)

func runCall(args []string) int {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	workerPath := fs.String("worker", "", "Worker executable (default: this binary)")
	profileName := fs.String("profile", string(protocol.ProfileFramed), "Protocol profile (framed|plain)")
	scriptPath := fs.String("script", "", "Starlark script to load")
	names := fs.String("names", "", "Comma-separated names to export")
	var modulePath stringList
	fs.Var(&modulePath, "module-path", "Directory for load() lookups (repeatable)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *scriptPath == "" || fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: scriptbridge call --script file --names a,b [--module-path dir]... <func> [json-arg]...")
		return 1
	}
	profile, err := protocol.ParseProfile(*profileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid profile: %v\n", err)
		return 1
	}

	src, err := os.ReadFile(*scriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read script: %v\n", err)
		return 1
	}

	funcName := fs.Arg(0)
	callArgs, err := parseJSONArgs(fs.Args()[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid argument: %v\n", err)
		return 1
	}

	exportNames := splitNames(*names)
	if len(exportNames) == 0 {
		exportNames = []string{funcName}
	}

	if *workerPath == "" {
		self, err := os.Executable()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to locate worker binary: %v\n", err)
			return 1
		}
		*workerPath = self
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proc, err := host.Spawn(ctx, host.Options{
		Path:    *workerPath,
		Args:    []string{"serve", "--profile", string(profile)},
		Profile: profile,
		Env:     []string{"SCRIPTBRIDGE_CALLER=cli"},
		Logger:  log.WithComponent("host"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start worker: %v\n", err)
		return 1
	}
	defer proc.Close()

	if err := proc.Init(ctx, src, exportNames, modulePath...); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load script: %v\n", err)
		return 1
	}

	anyArgs := make([]any, len(callArgs))
	for i, a := range callArgs {
		anyArgs[i] = a
	}
	result, err := proc.Call(ctx, funcName, anyArgs...)
	if err != nil {
		var remote *host.RemoteError
		if errors.As(err, &remote) {
			fmt.Fprintf(os.Stderr, "%s failed: %s\n", funcName, remote.Message)
		} else {
			fmt.Fprintf(os.Stderr, "Call failed: %v\n", err)
		}
		return 1
	}

	fmt.Println(result.String())
	return 0
}

// parseJSONArgs parses each positional argument as a JSON value.
func parseJSONArgs(raw []string) ([]value.Value, error) {
	out := make([]value.Value, len(raw))
	for i, r := range raw {
		v, err := value.Parse([]byte(r))
		if err != nil {
			return nil, fmt.Errorf("argument %d (%q): %w", i+1, r, err)
		}
		out[i] = v
	}
	return out, nil
}

func splitNames(in string) []string {
	var out []string
	for _, part := range strings.Split(in, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
