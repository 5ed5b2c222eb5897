package tracer

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session is a running "record" pipeline: the external tracer process
// writing into a temporary named pipe, and a reader the caller drains line
// by line. Both ends are scoped to Session's lifetime; Close removes the
// pipe whether the run finished normally or exceptionally.
type Session struct {
	PipePath string
	cmd      *exec.Cmd
	reader   io.ReadCloser
	logger   *zap.Logger
	closer   func() error
}

// Start creates the temporary named pipe, spawns the tracer against cmd,
// and returns a Session whose Reader yields the tracer's output lines. The
// tracer process is joined in Wait; Close closes the pipe reader and removes
// the pipe, and does not wait for the tracer.
func Start(ctx context.Context, logger *zap.Logger, cfg Config, seccompFilter bool, cmd []string) (*Session, error) {
	if len(cmd) == 0 {
		return nil, fmt.Errorf("record: no command given to trace")
	}

	pipePath := pipePathFor(fmt.Sprintf("strace-%s.pipe", uuid.NewString()))

	listener, err := createPipe(pipePath)
	if err != nil {
		return nil, fmt.Errorf("could not create named pipe %q: %w", pipePath, err)
	}

	args := cfg.Args(pipePath, seccompFilter, cmd)
	tracerCmd := exec.CommandContext(ctx, cfg.Binary, args...)
	tracerCmd.Stdin = os.Stdin
	tracerCmd.Stdout = os.Stdout
	tracerCmd.Stderr = os.Stderr

	logger.Info("starting tracer",
		zap.String("binary", cfg.Binary),
		zap.String("pipe", pipePath))

	if err := tracerCmd.Start(); err != nil {
		listener.Close()
		os.Remove(pipePath)
		return nil, fmt.Errorf("failed to start tracer %q: %w", cfg.Binary, err)
	}

	reader, err := listener.Accept()
	if err != nil {
		tracerCmd.Process.Kill()
		listener.Close()
		os.Remove(pipePath)
		return nil, fmt.Errorf("failed to accept connection on %q: %w", pipePath, err)
	}

	return &Session{
		PipePath: pipePath,
		cmd:      tracerCmd,
		reader:   reader,
		logger:   logger,
		closer:   listener.Close,
	}, nil
}

// Reader returns the stream of tracer output lines.
func (s *Session) Reader() io.Reader {
	return s.reader
}

// Wait blocks until the traced command exits and returns its exit code, so
// record mode can mirror the traced command's own exit status.
func (s *Session) Wait() (int, error) {
	err := s.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Close tears down the pipe reader, the listener, and removes the
// filesystem entry. Safe to call after Wait.
func (s *Session) Close() error {
	s.reader.Close()
	err := s.closer()
	if rmErr := os.Remove(s.PipePath); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

// pipeListener abstracts the platform-specific named-pipe transport so
// Start doesn't need build tags of its own.
type pipeListener interface {
	Accept() (io.ReadCloser, error)
	Close() error
}
