package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattjoyce/scriptbridge/internal/api"
	"github.com/mattjoyce/scriptbridge/internal/config"
	"github.com/mattjoyce/scriptbridge/internal/journal"
	"github.com/mattjoyce/scriptbridge/internal/log"
	"github.com/mattjoyce/scriptbridge/internal/metrics"
	"github.com/mattjoyce/scriptbridge/internal/protocol"
	"github.com/mattjoyce/scriptbridge/internal/script"
	"github.com/mattjoyce/scriptbridge/internal/worker"
)

// shutdownGrace bounds how long a signalled worker waits for the request in
// flight.
const shutdownGrace = 2 * time.Second

func runServe(args []string, stdin io.Reader, stdout io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	profileFlag := fs.String("profile", "", "Override protocol.profile (framed|plain)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *profileFlag != "" {
		cfg.Protocol.Profile = *profileFlag
	}
	profile, err := protocol.ParseProfile(cfg.Protocol.Profile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid profile: %v\n", err)
		return 1
	}

	// stdout carries protocol bytes only.
	log.Setup(cfg.Worker.LogLevel, cfg.Worker.LogFormat, os.Stderr)
	logger := log.WithComponent("main")
	logger.Info("scriptbridge starting", "version", version, "worker", cfg.Worker.Name, "profile", profile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := script.NewLoader(
		script.WithLogger(log.WithComponent("script")),
		script.WithPrintMode(script.PrintMode(cfg.Script.Print)),
		script.WithSearchPath(cfg.Script.ModulePath...),
	)
	m := metrics.New()
	opts := []worker.Option{
		worker.WithLogger(log.WithComponent("worker")),
		worker.WithMetrics(m),
	}

	var requests api.RequestLister
	if cfg.Journal.Path != "" {
		j, err := journal.Open(ctx, cfg.Journal.Path)
		if err != nil {
			logger.Error("failed to open journal", "path", cfg.Journal.Path, "error", err)
			return 1
		}
		defer j.Close()
		logger.Info("journal opened", "path", cfg.Journal.Path)
		opts = append(opts, worker.WithRecorder(j))
		requests = j
	}

	errCh := make(chan error, 1)
	if cfg.Metrics.Listen != "" {
		srv := api.New(api.Config{
			Listen:    cfg.Metrics.Listen,
			Token:     cfg.Metrics.Token,
			Worker:    cfg.Worker.Name,
			Profile:   string(profile),
			RateLimit: cfg.Metrics.RateLimit,
			RateBurst: cfg.Metrics.RateBurst,
		}, m, m.Handler(), requests, log.WithComponent("api"))
		go func() {
			if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("ops server: %w", err)
			}
		}()
	}

	w := worker.New(profile, loader, opts...)
	out := bufio.NewWriter(stdout)

	done := make(chan error, 1)
	go func() { done <- w.Serve(ctx, stdin, out) }()

	select {
	case err := <-done:
		return serveExit(logger, err)
	case err := <-errCh:
		logger.Error("worker stopping", "error", err)
		return 1
	case <-ctx.Done():
		logger.Info("signal received, shutting down")
		select {
		case err := <-done:
			return serveExit(logger, err)
		case <-time.After(shutdownGrace):
			logger.Warn("request still running after shutdown grace period")
			return 0
		}
	}
}

func serveExit(logger *slog.Logger, err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	logger.Error("worker stopped", "error", err)
	return 1
}
