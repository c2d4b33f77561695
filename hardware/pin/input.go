package pin

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/inputevent-go"
	"github.com/temoto/lightlink/log2"
)

// linux/input-event-codes.h
const evKey uint16 = 0x01

// InputEventSource turns key presses on evdev device into sensor activity.
// Short press between two polls is latched and reported once.
type InputEventSource struct {
	r    io.ReadCloser
	key  uint16
	log  *log2.Log
	down uint32
	hit  uint32
	done chan struct{}
	err  atomic.Value
}

var _ EventSource = &InputEventSource{}

func NewInputEventSource(device string, key uint16, log *log2.Log) (*InputEventSource, error) {
	f, err := os.Open(device)
	if err != nil {
		return nil, errors.Annotatef(err, "input event open device=%s", device)
	}
	return newInputEventSource(f, key, log), nil
}

func newInputEventSource(r io.ReadCloser, key uint16, log *log2.Log) *InputEventSource {
	s := &InputEventSource{
		r:    r,
		key:  key,
		log:  log,
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *InputEventSource) run() {
	defer close(s.done)
	for {
		ev, err := inputevent.ReadOne(s.r)
		if err != nil {
			s.log.Debugf("input event read: %v", err)
			s.err.Store(errors.Annotate(err, "input event read"))
			return
		}
		if ev.Type != evKey || (s.key != 0 && ev.Code != s.key) {
			continue
		}
		switch inputevent.KeyEventState(ev.Value) {
		case inputevent.KeyStateDown, inputevent.KeyStateHold:
			atomic.StoreUint32(&s.down, 1)
			atomic.StoreUint32(&s.hit, 1)
		case inputevent.KeyStateUp:
			atomic.StoreUint32(&s.down, 0)
		}
	}
}

func (s *InputEventSource) Active() (bool, error) {
	hit := atomic.SwapUint32(&s.hit, 0) != 0
	if hit || atomic.LoadUint32(&s.down) != 0 {
		return true, nil
	}
	select {
	case <-s.done:
		if err, _ := s.err.Load().(error); err != nil && errors.Cause(err) != io.EOF {
			return false, err
		}
	default:
	}
	return false, nil
}

func (s *InputEventSource) Close() error {
	err := s.r.Close()
	<-s.done
	return errors.Annotate(err, "input event close")
}
