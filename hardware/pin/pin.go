// Package pin provides physical capabilities used by the link:
// EventSource (motion sensor) and Actuator (LED).
// Hardware is acquired with Open and must be released with Hardware.Close.
package pin

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/lightlink/helpers"
	"github.com/temoto/lightlink/log2"
)

// EventSource reports whether physical event is active right now.
type EventSource interface {
	Active() (bool, error)
}

// Actuator toggles output count times, each half-cycle held for halfPeriod.
// Blocks for the whole cycle or until ctx is done.
type Actuator interface {
	Drive(ctx context.Context, halfPeriod time.Duration, count int) error
}

type Role uint8

const (
	RoleActuator Role = 1 << iota
	RoleSensor
)

type Hardware struct {
	Actuator Actuator
	Source   EventSource

	closers   []io.Closer
	closeOnce sync.Once
	closeErr  error
}

func Open(c *Config, log *log2.Log, roles Role) (*Hardware, error) {
	c.applyDefaults()
	h := &Hardware{}
	var err error
	switch c.Driver {
	case DriverMock:
		h.openMock(c, log, roles)
	case DriverCdev:
		err = h.openCdev(c, log, roles)
	case DriverPeriph:
		err = h.openPeriph(c, log, roles)
	default:
		err = errors.NotValidf("hardware driver=%s", c.Driver)
	}
	if err == nil && roles&RoleSensor != 0 && c.InputEvent.Device != "" {
		var src *InputEventSource
		src, err = NewInputEventSource(c.InputEvent.Device, uint16(c.InputEvent.Key), log)
		if err == nil {
			h.Source = src
			h.closers = append(h.closers, src)
		}
	}
	if err != nil {
		_ = h.Close()
		return nil, errors.Annotatef(err, "hardware open driver=%s", c.Driver)
	}
	log.Debugf("hardware open driver=%s actuator=%t sensor=%t", c.Driver, h.Actuator != nil, h.Source != nil)
	return h, nil
}

// Close releases resources in reverse acquisition order, output lines are switched off first.
// Safe to call multiple times.
func (h *Hardware) Close() error {
	if h == nil {
		return nil
	}
	h.closeOnce.Do(func() {
		errs := make([]error, 0, len(h.closers))
		for i := len(h.closers) - 1; i >= 0; i-- {
			errs = append(errs, h.closers[i].Close())
		}
		h.closeErr = helpers.FoldErrors(errs)
	})
	return h.closeErr
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
