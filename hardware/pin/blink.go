package pin

import (
	"context"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/lightlink/log2"
)

// Output is single binary output line.
type Output interface {
	Set(on bool) error
}

// Blinker implements Actuator over Output.
// Concurrent Drive calls are serialized, one physical line can't blink two patterns at once.
type Blinker struct {
	Out Output
	Log *log2.Log

	mu sync.Mutex
}

var _ Actuator = &Blinker{}

func (b *Blinker) Drive(ctx context.Context, halfPeriod time.Duration, count int) error {
	if count <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Log.Debugf("blink half=%v count=%d", halfPeriod, count)

	for i := 0; i < count; i++ {
		if err := b.Out.Set(true); err != nil {
			return errors.Annotatef(err, "blink on i=%d", i)
		}
		if err := sleepCtx(ctx, halfPeriod); err != nil {
			_ = b.Out.Set(false)
			return errors.Trace(err)
		}
		if err := b.Out.Set(false); err != nil {
			return errors.Annotatef(err, "blink off i=%d", i)
		}
		if err := sleepCtx(ctx, halfPeriod); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
