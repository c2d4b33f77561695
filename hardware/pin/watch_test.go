package pin

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/lightlink/log2"
)

func TestWatch(t *testing.T) {
	t.Parallel()

	src := NewMockSource(false, true, true, false, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := 0
	err := Watch(ctx, src, WatchOptions{Poll: time.Millisecond, Cooldown: time.Millisecond, Log: log2.NewTest(t, log2.LDebug)},
		func(context.Context) error {
			events++
			if events == 3 {
				cancel()
			}
			return nil
		})
	assert.Equal(t, context.Canceled, errors.Cause(err))
	assert.Equal(t, 3, events)
}

func TestWatchCooldown(t *testing.T) {
	t.Parallel()

	src := NewMockSource()
	src.Idle = true
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	events := 0
	err := Watch(ctx, src, WatchOptions{Poll: time.Millisecond, Cooldown: time.Hour},
		func(context.Context) error { events++; return nil })
	assert.Equal(t, context.DeadlineExceeded, errors.Cause(err))
	assert.Equal(t, 1, events, "constant activity must trigger once per cooldown")
}

func TestWatchEventError(t *testing.T) {
	t.Parallel()

	stop := fmt.Errorf("send failed")
	err := Watch(context.Background(), NewMockSource(true), WatchOptions{Poll: time.Millisecond},
		func(context.Context) error { return stop })
	require.Error(t, err)
	assert.Equal(t, stop, errors.Cause(err))
}

func TestWatchSourceErrorContinues(t *testing.T) {
	t.Parallel()

	src := NewMockSource()
	src.Err = fmt.Errorf("read failed")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	errCount := 0
	log := log2.NewTest(t, log2.LDebug)
	log.SetErrorFunc(func(error) { errCount++ })
	err := Watch(ctx, src, WatchOptions{Poll: time.Millisecond, Log: log},
		func(context.Context) error { return nil })
	assert.Equal(t, context.DeadlineExceeded, errors.Cause(err))
	assert.True(t, errCount > 1)
}
