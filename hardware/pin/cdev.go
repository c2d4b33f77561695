package pin

import (
	"strconv"

	"github.com/juju/errors"
	gpio "github.com/temoto/gpio-cdev-go"
	"github.com/temoto/lightlink/log2"
)

const cdevConsumer = "lightlink"

type cdevOutput struct {
	lines gpio.Lineser
	set   gpio.LineSetFunc
	line  uint32
}

func (o *cdevOutput) Set(on bool) error {
	v := byte(0)
	if on {
		v = 1
	}
	o.set(v)
	return errors.Annotatef(o.lines.Flush(), "gpio flush line=%d", o.line)
}

type cdevInput struct {
	lines gpio.Lineser
	line  uint32
}

func (i *cdevInput) Active() (bool, error) {
	data, err := i.lines.Read()
	if err != nil {
		return false, errors.Annotatef(err, "gpio read line=%d", i.line)
	}
	return data.Values[0] != 0, nil
}

func (h *Hardware) openCdev(c *Config, log *log2.Log, roles Role) error {
	chip := c.testChip
	if chip == nil {
		var err error
		if chip, err = gpio.Open(c.Chip, cdevConsumer); err != nil {
			return errors.Annotatef(err, "gpio open chip=%s", c.Chip)
		}
	}
	h.closers = append(h.closers, chip)

	if roles&RoleActuator != 0 {
		line, err := parseLine(c.LED.Pin)
		if err != nil {
			return errors.Annotate(err, "led")
		}
		flag := gpio.GPIOHANDLE_REQUEST_OUTPUT
		if c.LED.ActiveLow {
			flag |= gpio.GPIOHANDLE_REQUEST_ACTIVE_LOW
		}
		lines, err := chip.OpenLines(flag, cdevConsumer+"-led", line)
		if err != nil {
			return errors.Annotatef(err, "gpio led line=%d", line)
		}
		out := &cdevOutput{lines: lines, set: lines.SetFunc(line), line: line}
		h.closers = append(h.closers, closerFunc(func() error {
			offErr := out.Set(false)
			if err := lines.Close(); err != nil {
				return err
			}
			return offErr
		}))
		h.Actuator = &Blinker{Out: out, Log: log}
	}

	if roles&RoleSensor != 0 {
		line, err := parseLine(c.PIR.Pin)
		if err != nil {
			return errors.Annotate(err, "pir")
		}
		flag := gpio.GPIOHANDLE_REQUEST_INPUT
		if c.PIR.ActiveLow {
			flag |= gpio.GPIOHANDLE_REQUEST_ACTIVE_LOW
		}
		lines, err := chip.OpenLines(flag, cdevConsumer+"-pir", line)
		if err != nil {
			return errors.Annotatef(err, "gpio pir line=%d", line)
		}
		h.closers = append(h.closers, lines)
		h.Source = &cdevInput{lines: lines, line: line}
	}
	return nil
}

func parseLine(s string) (uint32, error) {
	x, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, errors.Annotatef(err, "pin=%s must be line number", s)
	}
	return uint32(x), nil
}
