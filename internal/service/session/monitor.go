package session

import (
	"context"
	"time"
)

// Monitor polls provider status for one active session. It is owned by the
// session, created fresh for every activation and never restarted.
type Monitor struct {
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

type pollFunc func(ctx context.Context) error

func startMonitor(interval time.Duration, poll pollFunc, onFailure func(*Monitor, error)) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	mon := &Monitor{
		interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go mon.run(ctx, poll, onFailure)
	return mon
}

func (m *Monitor) run(ctx context.Context, poll pollFunc, onFailure func(*Monitor, error)) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := poll(ctx)
			if ctx.Err() != nil {
				// stopped while the poll was in flight, result is discarded
				return
			}
			if err != nil {
				onFailure(m, err)
				return
			}
		}
	}
}

// Stop cancels the monitor and waits for its goroutine to exit.
// Safe to call more than once.
func (m *Monitor) Stop() {
	m.cancel()
	<-m.done
}

// Done is closed once the polling goroutine has exited.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}
