package meeting

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Handle represents a live, joined meeting. It is only valid while the bot
// process runs and must be released with Leave.
type Handle interface {
	// Ended reports whether the meeting has finished (bot process exited).
	Ended() bool
	// Wait blocks until the meeting ends or the context is cancelled.
	Wait(ctx context.Context) error
}

// Driver launches and supervises the platform bot.
type Driver interface {
	// Join starts the bot and blocks until it is admitted to the call, the
	// context expires, or the bot reports a join failure.
	Join(ctx context.Context, ref Ref, botName string) (Handle, error)
	// Leave asks the bot to exit the call and waits for it to terminate.
	Leave(ctx context.Context, handle Handle) error
	// Available verifies the bot binary can be launched.
	Available(ctx context.Context) error
}

// Bot stdout markers. The bot process prints one status token per line while
// attempting to join.
const (
	markerJoined       = "joined"
	markerWaitingRoom  = "waiting_room"
	markerAuthRequired = "auth_required"
	markerMeetingEnded = "meeting_ended"
)

// Join failure sentinels surfaced by the exec driver. The joining stage maps
// them onto error classifications.
var (
	ErrAuthRequired = errors.New("meeting requires authentication")
	ErrMeetingEnded = errors.New("meeting already ended")
)

// ExecDriver runs the configured bot command as a child process and reads
// join status tokens from its stdout.
type ExecDriver struct {
	command string
}

// NewExecDriver builds a driver around the bot binary.
func NewExecDriver(command string) *ExecDriver {
	return &ExecDriver{command: command}
}

// Available checks the bot binary is on PATH.
func (d *ExecDriver) Available(context.Context) error {
	if strings.TrimSpace(d.command) == "" {
		return errors.New("bot command not configured")
	}
	if _, err := exec.LookPath(d.command); err != nil {
		return fmt.Errorf("bot command %q not found: %w", d.command, err)
	}
	return nil
}

// Join launches the bot and waits for an admission marker on stdout.
func (d *ExecDriver) Join(ctx context.Context, ref Ref, botName string) (Handle, error) {
	cmd := exec.Command(d.command, //nolint:gosec
		"--url", ref.URL,
		"--platform", string(ref.Platform),
		"--name", botName,
	)
	if ref.Passcode != "" {
		cmd.Args = append(cmd.Args, "--passcode", ref.Passcode)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("bot stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start bot: %w", err)
	}

	handle := newProcessHandle(cmd)

	joined := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			switch strings.TrimSpace(scanner.Text()) {
			case markerJoined:
				joined <- nil
				return
			case markerAuthRequired:
				joined <- ErrAuthRequired
				return
			case markerMeetingEnded:
				joined <- ErrMeetingEnded
				return
			case markerWaitingRoom:
				// Still pending admission; keep reading.
			}
		}
		joined <- fmt.Errorf("bot exited before joining: %w", ErrMeetingEnded)
	}()

	select {
	case err := <-joined:
		if err != nil {
			_ = handle.terminate(ctx)
			return nil, err
		}
		return handle, nil
	case <-ctx.Done():
		_ = handle.terminate(context.Background())
		return nil, ctx.Err()
	}
}

// Leave terminates the bot process for the handle.
func (d *ExecDriver) Leave(ctx context.Context, handle Handle) error {
	proc, ok := handle.(*processHandle)
	if !ok {
		return errors.New("unexpected handle type")
	}
	return proc.terminate(ctx)
}

type processHandle struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	waitErr error
}

func newProcessHandle(cmd *exec.Cmd) *processHandle {
	h := &processHandle{cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		h.mu.Lock()
		h.waitErr = err
		h.mu.Unlock()
		close(h.done)
	}()
	return h
}

func (h *processHandle) Ended() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *processHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// terminate asks the bot to exit and escalates to SIGKILL if it lingers.
func (h *processHandle) terminate(ctx context.Context) error {
	if h.Ended() {
		return nil
	}
	_ = h.cmd.Process.Signal(syscall.SIGTERM)

	grace := time.NewTimer(5 * time.Second)
	defer grace.Stop()
	select {
	case <-h.done:
		return nil
	case <-grace.C:
	case <-ctx.Done():
	}
	_ = h.cmd.Process.Kill()
	<-h.done
	return nil
}
