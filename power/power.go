// Package power puts the device to sleep between wake cycles.
package power

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// ErrHalt tells the caller to exit instead of starting another cycle. An
// external scheduler is then responsible for the next wake.
var ErrHalt = errors.New("power: halt")

// Sleeper suspends until the next wake cycle is due.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Timer waits in process. RAM and the marker region are kept as they are.
type Timer struct{}

func (Timer) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// OneShot never sleeps; it halts so a systemd timer or cron can start the
// next cycle.
type OneShot struct{}

func (OneShot) Sleep(ctx context.Context, d time.Duration) error {
	return ErrHalt
}

// RTCWake suspends the machine with rtcwake(8) and an RTC alarm. The call
// returns after resume.
type RTCWake struct {
	// Mode passed to -m, "mem" (suspend to RAM) by default. Deeper modes
	// lose tmpfs, and with it the marker.
	Mode string

	run func(ctx context.Context, name string, args ...string) error
}

func (r RTCWake) Sleep(ctx context.Context, d time.Duration) error {
	mode := r.Mode
	if mode == "" {
		mode = "mem"
	}
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	run := r.run
	if run == nil {
		run = runCommand
	}
	if err := run(ctx, "rtcwake", "-m", mode, "-s", strconv.Itoa(secs)); err != nil {
		return fmt.Errorf("power: rtcwake: %w", err)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil && len(out) > 0 {
		return fmt.Errorf("%w: %s", err, out)
	}
	return err
}

// New returns the sleeper for a configured mode.
func New(mode string) (Sleeper, error) {
	switch mode {
	case "", "timer":
		return Timer{}, nil
	case "oneshot":
		return OneShot{}, nil
	case "rtcwake":
		return RTCWake{}, nil
	}
	return nil, fmt.Errorf("power: unknown sleep mode %q", mode)
}
