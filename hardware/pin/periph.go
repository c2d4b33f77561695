package pin

import (
	"strings"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/lightlink/log2"
	pgpio "periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

var periphInit struct {
	sync.Once
	err error
}

func periphHostInit() error {
	periphInit.Do(func() {
		_, periphInit.err = host.Init()
	})
	return periphInit.err
}

type periphOutput struct {
	p         pgpio.PinIO
	activeLow bool
}

func (o *periphOutput) Set(on bool) error {
	level := pgpio.Level(on != o.activeLow)
	return errors.Annotatef(o.p.Out(level), "periph out pin=%s", o.p.Name())
}

type periphInput struct {
	p         pgpio.PinIO
	activeLow bool
}

func (i *periphInput) Active() (bool, error) {
	return (i.p.Read() == pgpio.High) != i.activeLow, nil
}

// periph pin names look like GPIO17, bare numbers are accepted for config compatibility with cdev.
func periphPinName(s string) string {
	if s == "" || strings.Trim(s, "0123456789") != "" {
		return s
	}
	return "GPIO" + s
}

func (h *Hardware) openPeriph(c *Config, log *log2.Log, roles Role) error {
	if err := periphHostInit(); err != nil {
		return errors.Annotate(err, "periph/init")
	}

	if roles&RoleActuator != 0 {
		name := periphPinName(c.LED.Pin)
		p := gpioreg.ByName(name)
		if p == nil {
			return errors.NotFoundf("periph led pin=%s", name)
		}
		out := &periphOutput{p: p, activeLow: c.LED.ActiveLow}
		if err := out.Set(false); err != nil {
			return err
		}
		h.closers = append(h.closers, closerFunc(func() error { return out.Set(false) }))
		h.Actuator = &Blinker{Out: out, Log: log}
	}

	if roles&RoleSensor != 0 {
		name := periphPinName(c.PIR.Pin)
		p := gpioreg.ByName(name)
		if p == nil {
			return errors.NotFoundf("periph pir pin=%s", name)
		}
		if err := p.In(pgpio.PullDown, pgpio.NoEdge); err != nil {
			return errors.Annotatef(err, "periph in pin=%s", name)
		}
		h.Source = &periphInput{p: p, activeLow: c.PIR.ActiveLow}
	}
	return nil
}
