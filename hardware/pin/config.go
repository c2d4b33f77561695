package pin

import (
	gpio "github.com/temoto/gpio-cdev-go"
)

const (
	DriverMock   = "mock"
	DriverCdev   = "cdev"
	DriverPeriph = "periph"

	DefaultChip   = "/dev/gpiochip0"
	DefaultLEDPin = "18"
	DefaultPIRPin = "17"
)

type Config struct {
	Driver string `hcl:"driver"`
	// cdev only
	Chip string `hcl:"chip"`

	LED struct {
		Pin       string `hcl:"pin"`
		ActiveLow bool   `hcl:"active_low"`
	} `hcl:"led"`
	PIR struct {
		Pin       string `hcl:"pin"`
		ActiveLow bool   `hcl:"active_low"`
	} `hcl:"pir"`
	// optional sensor replacement, e.g. push button on keyboard device
	InputEvent struct {
		Device string `hcl:"device"`
		Key    int    `hcl:"key"`
	} `hcl:"input_event"`
	Mock struct {
		TriggerEveryMs int `hcl:"trigger_every_ms"`
	} `hcl:"mock"`

	testChip gpio.Chiper
}

func (c *Config) applyDefaults() {
	if c.Driver == "" {
		c.Driver = DriverMock
	}
	if c.Chip == "" {
		c.Chip = DefaultChip
	}
	if c.LED.Pin == "" {
		c.LED.Pin = DefaultLEDPin
	}
	if c.PIR.Pin == "" {
		c.PIR.Pin = DefaultPIRPin
	}
}
