package hw

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
)

func level(high bool) gpio.Level {
	if high {
		return gpio.High
	}
	return gpio.Low
}

func pinByName(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio %q not found", name)
	}
	return p, nil
}

// PinLine drives BLANK through a periph GPIO pin.
type PinLine struct {
	pin gpio.PinOut
}

func NewPinLine(p gpio.PinOut) *PinLine { return &PinLine{pin: p} }

// OpenPinLine looks the pin up in gpioreg; host.Init must have run.
func OpenPinLine(name string) (*PinLine, error) {
	p, err := pinByName(name)
	if err != nil {
		return nil, err
	}
	return NewPinLine(p), nil
}

func (l *PinLine) ConfigureOutput(initial bool) error {
	if err := l.pin.Out(level(initial)); err != nil {
		return fmt.Errorf("gpio %s: %w", l.pin, err)
	}
	return nil
}

func (l *PinLine) Set(high bool) error {
	return l.pin.Out(level(high))
}

// PinClock generates GSCLK with the PWM function of a periph pin.
type PinClock struct {
	pin  gpio.PinOut
	duty gpio.Duty
	freq physic.Frequency
}

func NewPinClock(p gpio.PinOut) *PinClock { return &PinClock{pin: p} }

func OpenPinClock(name string) (*PinClock, error) {
	p, err := pinByName(name)
	if err != nil {
		return nil, err
	}
	return NewPinClock(p), nil
}

// Configure converts a duty/period pair in nanoseconds to periph units.
// Nothing reaches the pin until Enable.
func (c *PinClock) Configure(dutyNs, periodNs int64) error {
	if periodNs <= 0 || dutyNs < 0 || dutyNs > periodNs {
		return fmt.Errorf("pwm: bad duty %dns / period %dns", dutyNs, periodNs)
	}
	c.freq = physic.PeriodToFrequency(time.Duration(periodNs))
	c.duty = gpio.Duty(int64(gpio.DutyMax) * dutyNs / periodNs)
	return nil
}

func (c *PinClock) Enable() error {
	if c.freq == 0 {
		return fmt.Errorf("pwm %s: not configured", c.pin)
	}
	if err := c.pin.PWM(c.duty, c.freq); err != nil {
		return fmt.Errorf("pwm %s: %w", c.pin, err)
	}
	return nil
}

func (c *PinClock) Disable() error {
	return c.pin.Out(gpio.Low)
}
