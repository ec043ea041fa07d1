package recording

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Capture starts an audio capture process writing to a destination file.
type Capture interface {
	Start(ctx context.Context, destPath string) (CaptureProc, error)
	Available(ctx context.Context) error
}

// CaptureProc is a running capture that must be stopped to finalize output.
type CaptureProc interface {
	// Stop asks the capture to flush and exit cleanly.
	Stop(ctx context.Context) error
}

// ExecCapture shells out to the configured capture command (ffmpeg by
// default) and relies on SIGINT for a clean container flush.
type ExecCapture struct {
	command string
}

// NewExecCapture builds a capture around the external binary.
func NewExecCapture(command string) *ExecCapture {
	return &ExecCapture{command: command}
}

// Available checks the capture binary is on PATH.
func (c *ExecCapture) Available(context.Context) error {
	if strings.TrimSpace(c.command) == "" {
		return errors.New("capture command not configured")
	}
	if _, err := exec.LookPath(c.command); err != nil {
		return fmt.Errorf("capture command %q not found: %w", c.command, err)
	}
	return nil
}

// Start launches the capture process writing mono 16 kHz WAV to destPath.
func (c *ExecCapture) Start(ctx context.Context, destPath string) (CaptureProc, error) {
	cmd := exec.Command(c.command, //nolint:gosec
		"-f", "pulse",
		"-i", "default",
		"-ac", "1",
		"-ar", "16000",
		"-y",
		destPath,
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start capture: %w", err)
	}

	proc := &execCaptureProc{cmd: cmd, done: make(chan error, 1)}
	go func() {
		proc.done <- cmd.Wait()
	}()
	return proc, nil
}

type execCaptureProc struct {
	cmd  *exec.Cmd
	done chan error
}

// Stop signals SIGINT so the encoder finalizes the file, escalating to kill
// after a grace period.
func (p *execCaptureProc) Stop(ctx context.Context) error {
	_ = p.cmd.Process.Signal(syscall.SIGINT)

	grace := time.NewTimer(10 * time.Second)
	defer grace.Stop()
	select {
	case <-p.done:
		return nil
	case <-grace.C:
	case <-ctx.Done():
	}
	_ = p.cmd.Process.Kill()
	<-p.done
	return nil
}
