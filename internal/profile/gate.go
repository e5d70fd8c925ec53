package profile

import (
	"context"
	"time"
)

// gate admits one call at a time and holds the next one back until interval
// has passed since the previous call finished.
type gate struct {
	slot     chan struct{}
	interval time.Duration
	last     time.Time // guarded by slot
	now      func() time.Time
}

func newGate(interval time.Duration) *gate {
	return &gate{
		slot:     make(chan struct{}, 1),
		interval: interval,
		now:      time.Now,
	}
}

// acquire blocks until the caller may start its call. The returned release
// must be called once the call has completed.
func (g *gate) acquire(ctx context.Context) (func(), error) {
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if !g.last.IsZero() {
		if wait := g.interval - g.now().Sub(g.last); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				<-g.slot
				return nil, ctx.Err()
			}
		}
	}

	return func() {
		g.last = g.now()
		<-g.slot
	}, nil
}
