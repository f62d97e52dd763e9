package device

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/dkalashnik/kiosk-survey/pkg/log"
)

const commandTimeout = 5 * time.Second

// CommandFullscreen runs configured commands, for example
// ["wmctrl", "-r", ":ACTIVE:", "-b", "add,fullscreen"]. A zero exit status
// of the check command means fullscreen is active.
type CommandFullscreen struct {
	Request []string
	Check   []string
}

func (c CommandFullscreen) IsFullscreen(ctx context.Context) bool {
	if len(c.Check) == 0 {
		return false
	}
	return run(ctx, c.Check) == nil
}

func (c CommandFullscreen) RequestFullscreen(ctx context.Context) error {
	if len(c.Request) == 0 {
		return errors.New("no fullscreen command configured")
	}
	return run(ctx, c.Request)
}

func run(ctx context.Context, argv []string) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", argv[0], err, out)
	}
	return nil
}

// CommandWakeLock holds the lock by keeping an inhibitor process alive,
// for example ["systemd-inhibit", "--what=idle", "sleep", "infinity"].
// When the process exits for any reason the lock counts as lost.
type CommandWakeLock struct {
	Argv   []string
	Logger log.Printer

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

func (w *CommandWakeLock) Held() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done == nil {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

func (w *CommandWakeLock) Acquire(context.Context) error {
	if len(w.Argv) == 0 {
		return errors.New("no wake lock command configured")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		select {
		case <-w.done:
		default:
			return nil
		}
	}

	// The inhibitor outlives the request, so it is not bound to ctx.
	cmd := exec.Command(w.Argv[0], w.Argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", w.Argv[0], err)
	}
	done := make(chan struct{})
	w.cmd, w.done = cmd, done
	logger := log.OrDefault(w.Logger)
	go func() {
		err := cmd.Wait()
		close(done)
		log.Warnf(logger, "[device] wake lock released: %v", err)
	}()
	return nil
}

func (w *CommandWakeLock) Release() error {
	w.mu.Lock()
	cmd, done := w.cmd, w.done
	w.cmd, w.done = nil, nil
	w.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	default:
	}
	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("stop wake lock: %w", err)
	}
	<-done
	return nil
}
