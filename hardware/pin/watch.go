package pin

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/lightlink/log2"
)

const (
	DefaultPoll     = 100 * time.Millisecond
	DefaultCooldown = 2 * time.Second
)

type WatchOptions struct {
	Poll     time.Duration
	Cooldown time.Duration
	Log      *log2.Log
}

// Watch polls src and calls onEvent for each activation, then waits Cooldown before re-arming.
// Source errors are logged and polling continues. onEvent error stops Watch.
// Returns ctx error on cancel.
func Watch(ctx context.Context, src EventSource, opt WatchOptions, onEvent func(context.Context) error) error {
	if opt.Poll <= 0 {
		opt.Poll = DefaultPoll
	}
	if opt.Cooldown < 0 {
		opt.Cooldown = 0
	}
	tick := time.NewTicker(opt.Poll)
	defer tick.Stop()

	for {
		active, err := src.Active()
		switch {
		case err != nil:
			opt.Log.Errorf("event source: %v", err)
		case active:
			if err := onEvent(ctx); err != nil {
				return errors.Annotate(err, "watch event")
			}
			if err := sleepCtx(ctx, opt.Cooldown); err != nil {
				return err
			}
		}
		select {
		case <-tick.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
