package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/mattjoyce/scriptbridge/internal/protocol"
)

// defaultGracePeriod is how long Close waits at each shutdown step.
const defaultGracePeriod = 5 * time.Second

// Options describe how to start a worker process.
type Options struct {
	// Path is the worker executable.
	Path string
	Args []string
	Dir  string
	// Env is appended to the current environment.
	Env     []string
	Profile protocol.Profile
	// Stderr receives the worker's log output. Defaults to os.Stderr.
	Stderr io.Writer
	// GracePeriod bounds each shutdown step. Defaults to 5s.
	GracePeriod time.Duration
	Logger      *slog.Logger
}

// Process is a running worker with a Client attached to its stdio.
type Process struct {
	*Client

	cmd     *exec.Cmd
	stdout  *os.File
	grace   time.Duration
	logger  *slog.Logger
	exited  chan struct{}
	exitErr error
}

// Spawn starts a worker and connects a client to it. The process is not
// tied to ctx; call Close to stop it.
func Spawn(ctx context.Context, opts Options) (*Process, error) {
	if opts.Path == "" {
		return nil, errors.New("worker path is empty")
	}
	if opts.Profile == "" {
		opts.Profile = protocol.ProfileFramed
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = defaultGracePeriod
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Not CommandContext: termination is managed by Close.
	cmd := exec.Command(opts.Path, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Stderr = opts.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	// A plain os.Pipe rather than StdoutPipe: Wait must not close the read
	// end while responses are still buffered in it.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stdout = stdoutW

	err = cmd.Start()
	_ = stdoutW.Close()
	if err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, fmt.Errorf("start worker: %w", err)
	}
	opts.Logger.Debug("worker started", "path", opts.Path, "pid", cmd.Process.Pid, "profile", opts.Profile)

	p := &Process{
		Client: NewClient(stdout, stdin, opts.Profile),
		cmd:    cmd,
		stdout: stdout,
		grace:  opts.GracePeriod,
		logger: opts.Logger,
		exited: make(chan struct{}),
	}
	go func() {
		p.exitErr = cmd.Wait()
		close(p.exited)
	}()
	return p, nil
}

// Pid returns the worker's process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Close stops the worker: it closes stdin and waits, then sends SIGTERM and
// waits, then kills it.
func (p *Process) Close() error {
	if err := p.Client.Close(); err != nil {
		p.logger.Debug("failed to close worker stdin", "error", err)
	}

	if p.waitExit() {
		return p.result()
	}

	p.logger.Warn("worker did not exit after end of input, sending SIGTERM", "pid", p.Pid())
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		p.logger.Error("failed to send SIGTERM", "error", err)
	}
	if p.waitExit() {
		return p.result()
	}

	p.logger.Warn("worker did not exit after SIGTERM, sending SIGKILL", "pid", p.Pid())
	if err := p.cmd.Process.Kill(); err != nil {
		p.logger.Error("failed to send SIGKILL", "error", err)
	}
	<-p.exited
	return p.result()
}

func (p *Process) result() error {
	_ = p.stdout.Close()
	if p.exitErr == nil {
		return nil
	}
	return fmt.Errorf("worker exited: %w", p.exitErr)
}

// Done is closed once the worker process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.exited
}

func (p *Process) waitExit() bool {
	timer := time.NewTimer(p.grace)
	defer timer.Stop()
	select {
	case <-p.exited:
		return true
	case <-timer.C:
		return false
	}
}
