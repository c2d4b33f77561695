package pin

import (
	"context"
	"sync"
	"time"

	"github.com/temoto/atomic_clock"
	"github.com/temoto/lightlink/log2"
)

// MockActuator records Drive calls. Err, when set, is returned from every Drive.
type MockActuator struct {
	mu    sync.Mutex
	calls []MockDrive
	Err   error
}

type MockDrive struct {
	HalfPeriod time.Duration
	Count      int
}

var _ Actuator = &MockActuator{}

func (m *MockActuator) Drive(ctx context.Context, halfPeriod time.Duration, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockDrive{HalfPeriod: halfPeriod, Count: count})
	return m.Err
}

func (m *MockActuator) Calls() []MockDrive {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockDrive(nil), m.calls...)
}

// MockSource replays queued states, then reports Idle forever.
type MockSource struct {
	mu    sync.Mutex
	queue []bool
	Idle  bool
	Err   error
}

var _ EventSource = &MockSource{}

func NewMockSource(states ...bool) *MockSource { return &MockSource{queue: states} }

func (m *MockSource) Push(states ...bool) {
	m.mu.Lock()
	m.queue = append(m.queue, states...)
	m.mu.Unlock()
}

func (m *MockSource) Active() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	if len(m.queue) == 0 {
		return m.Idle, nil
	}
	v := m.queue[0]
	m.queue = m.queue[1:]
	return v, nil
}

// logOutput is LED replacement for machines without GPIO.
type logOutput struct {
	log *log2.Log
	on  bool
}

func (o *logOutput) Set(on bool) error {
	if on != o.on {
		o.log.Debugf("mock led on=%t", on)
	}
	o.on = on
	return nil
}

// triggerSource becomes active once per period, period=0 never triggers.
type triggerSource struct {
	period time.Duration
	last   atomic_clock.Clock
}

func (t *triggerSource) Active() (bool, error) {
	if t.period <= 0 {
		return false, nil
	}
	t.last.SetNowIfZero()
	if atomic_clock.Since(&t.last) < t.period {
		return false, nil
	}
	t.last.SetNow()
	return true, nil
}

func (h *Hardware) openMock(c *Config, log *log2.Log, roles Role) {
	if roles&RoleActuator != 0 {
		h.Actuator = &Blinker{Out: &logOutput{log: log}, Log: log}
	}
	if roles&RoleSensor != 0 {
		h.Source = &triggerSource{period: time.Duration(c.Mock.TriggerEveryMs) * time.Millisecond}
	}
}
