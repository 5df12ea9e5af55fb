package suggest

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Pacer blocks until the next external call may go out.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Gate is a fixed-interval pacer: the first call passes immediately and every
// later call waits the full interval. A Gate is single-use per run and is not
// safe for concurrent callers.
type Gate struct {
	clock    clock.Clock
	interval time.Duration
	calls    int
}

func NewGate(c clock.Clock, interval time.Duration) *Gate {
	if c == nil {
		c = clock.New()
	}
	return &Gate{clock: c, interval: interval}
}

// Delay reports how long the next Wait will block.
func (g *Gate) Delay() time.Duration {
	if g.calls == 0 || g.interval <= 0 {
		return 0
	}
	return g.interval
}

func (g *Gate) Wait(ctx context.Context) error {
	d := g.Delay()
	g.calls++
	if d == 0 {
		return ctx.Err()
	}
	timer := g.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
