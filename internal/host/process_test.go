package host

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/scriptbridge/internal/protocol"
	"github.com/mattjoyce/scriptbridge/internal/script"
	"github.com/mattjoyce/scriptbridge/internal/worker"
)

// TestHelperProcess is not a real test. It runs a worker on stdin/stdout
// when re-executed by spawnHelper.
func TestHelperProcess(t *testing.T) {
	profile := os.Getenv("SCRIPTBRIDGE_HELPER_PROFILE")
	if profile == "" {
		return
	}
	if os.Getenv("SCRIPTBRIDGE_HELPER_HANG") == "1" {
		// Read requests, never answer, and ignore SIGTERM.
		signal.Ignore(syscall.SIGTERM)
		_, _ = io.Copy(io.Discard, os.Stdin)
		time.Sleep(time.Hour)
		os.Exit(0)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := worker.New(protocol.Profile(profile), script.NewLoader(), worker.WithLogger(logger))
	if err := w.Serve(context.Background(), os.Stdin, os.Stdout); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

func spawnHelper(t *testing.T, p protocol.Profile, env ...string) *Process {
	t.Helper()
	proc, err := Spawn(context.Background(), Options{
		Path:        os.Args[0],
		Args:        []string{"-test.run=^TestHelperProcess$"},
		Env:         append([]string{"SCRIPTBRIDGE_HELPER_PROFILE=" + string(p)}, env...),
		Profile:     p,
		Stderr:      io.Discard,
		GracePeriod: 2 * time.Second,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return proc
}

func TestSpawnRoundTrip(t *testing.T) {
	proc := spawnHelper(t, protocol.ProfileFramed)
	ctx := context.Background()

	require.NoError(t, proc.Init(ctx, []byte("def add(a, b):\n    return a + b\n"), []string{"add"}))
	got, err := proc.Call(ctx, "add", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.AsInt())

	require.NoError(t, proc.Close())
	select {
	case <-proc.Done():
	default:
		t.Fatal("process still running after Close")
	}
}

func TestSpawnMissingBinary(t *testing.T) {
	_, err := Spawn(context.Background(), Options{Path: "/nonexistent/scriptbridge-worker"})
	assert.Error(t, err)
}

func TestSpawnEmptyPath(t *testing.T) {
	_, err := Spawn(context.Background(), Options{})
	assert.Error(t, err)
}

func TestCloseKillsHungWorker(t *testing.T) {
	proc := spawnHelper(t, protocol.ProfileFramed, "SCRIPTBRIDGE_HELPER_HANG=1")

	callErr := make(chan error, 1)
	go func() {
		_, err := proc.Call(context.Background(), "spin")
		callErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- proc.Close() }()
	select {
	case err := <-closed:
		assert.Error(t, err, "a killed worker reports its exit status")
	case <-time.After(10 * time.Second):
		t.Fatal("Close did not stop a hung worker")
	}

	select {
	case <-proc.Done():
	default:
		t.Fatal("process still running after Close")
	}
	assert.ErrorIs(t, <-callErr, ErrClosed)
}
