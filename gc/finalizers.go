package gc

import (
	"context"
	"runtime"
	"time"

	"github.com/wippyai/scripthost/errors"
)

const drainPoll = 10 * time.Millisecond

// sentinel is large enough to stay out of the tiny allocator, whose blocks
// may never be finalized.
type sentinel struct {
	_ [32]byte
}

// DrainFinalizers returns once every finalizer that was pending at the call
// has run. It gives up with the context.
//
// The finalizer goroutine takes the whole queue at once and does not run it
// in order, so one sentinel only proves its own batch was picked up. A second
// sentinel queued after the first has run lands in a later batch, which
// starts only after the earlier one is finished.
func (c *Collector) DrainFinalizers(ctx context.Context) error {
	if err := c.bridge.Check("DrainFinalizers"); err != nil {
		return err
	}
	for round := 0; round < 2; round++ {
		if err := c.awaitSentinel(ctx); err != nil {
			return err
		}
	}
	c.bridge.Logger().Named("gc").Debug("finalizers drained")
	return nil
}

func (c *Collector) awaitSentinel(ctx context.Context) error {
	done := make(chan struct{})
	queueSentinel(done)

	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return errors.Wrap(errors.PhaseGC, errors.KindUnknown, ctx.Err(), "drain finalizers")
		case <-ticker.C:
			c.collect()
		}
	}
}

//go:noinline
func queueSentinel(done chan struct{}) {
	s := new(sentinel)
	runtime.SetFinalizer(s, func(*sentinel) { close(done) })
}
