// Package network waits for the uplink to come up after a wake.
package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-ping/ping"
)

var ErrUnreachable = errors.New("network: not connected")

// Connector blocks until the network is usable or gives up.
type Connector interface {
	Connect(ctx context.Context) error
}

// Probe reports whether a single reachability check passed.
type Probe func(ctx context.Context) (bool, error)

// Waiter polls a probe a bounded number of times, pausing between tries.
type Waiter struct {
	Probe    Probe
	Attempts int
	Interval time.Duration
	Logger   *slog.Logger
}

func (w *Waiter) Connect(ctx context.Context) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attempts := w.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		ok, err := w.Probe(ctx)
		if ok {
			logger.Info("network: connected", "attempt", i)
			return nil
		}
		lastErr = err
		logger.Debug("network: not connected yet", "attempt", i, "error", err)
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.Interval):
		}
	}
	if lastErr != nil {
		return fmt.Errorf("%w after %d attempts: %v", ErrUnreachable, attempts, lastErr)
	}
	return fmt.Errorf("%w after %d attempts", ErrUnreachable, attempts)
}

// PingProbe sends one ICMP echo to host and succeeds on any reply.
// Unprivileged mode uses UDP ping sockets, which Linux must allow through
// net.ipv4.ping_group_range.
func PingProbe(host string, timeout time.Duration, privileged bool) Probe {
	return func(ctx context.Context) (bool, error) {
		pinger, err := ping.NewPinger(host)
		if err != nil {
			return false, err
		}
		pinger.Count = 1
		pinger.Timeout = timeout
		pinger.SetPrivileged(privileged)

		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				pinger.Stop()
			case <-done:
			}
		}()
		err = pinger.Run()
		close(done)
		if err != nil {
			return false, err
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return pinger.Statistics().PacketsRecv > 0, nil
	}
}
