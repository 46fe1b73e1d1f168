package tlc5940

import (
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

const (
	// GSCycle is the number of GSCLK pulses in one grayscale PWM cycle.
	GSCycle = 1 << GSBits

	// DefaultGSCLK is the grayscale clock the kernel driver ran at.
	DefaultGSCLK = 2500 * physic.KiloHertz
	// MaxGSCLK is the datasheet limit for GSCLK and SCLK.
	MaxGSCLK = 30 * physic.MegaHertz
	// DefaultSPISpeed matches the kernel driver's max_speed_hz.
	DefaultSPISpeed = 1 * physic.MegaHertz
)

// Timing holds the grayscale clock frequency; the periods are derived.
type Timing struct {
	GSCLK physic.Frequency
}

// Validate checks the clock against the chip's datasheet limits.
func (t Timing) Validate() error {
	if t.GSCLK <= 0 {
		return errors.Errorf("tlc5940: gsclk must be > 0, got %s", t.GSCLK)
	}
	if t.GSCLK > MaxGSCLK {
		return errors.Errorf("tlc5940: gsclk %s exceeds datasheet max %s", t.GSCLK, MaxGSCLK)
	}
	if t.GSCLKPeriod() <= 0 {
		return errors.Errorf("tlc5940: gsclk %s has a sub-nanosecond period", t.GSCLK)
	}
	return nil
}

// GSCLKPeriod is one grayscale clock period, rounded to whole
// nanoseconds (400ns at 2.5MHz).
func (t Timing) GSCLKPeriod() time.Duration {
	if t.GSCLK <= 0 {
		return 0
	}
	return t.GSCLK.Period()
}

// BlankPeriod is the full 4096-count GS cycle, the interval between BLANK
// pulses.
func (t Timing) BlankPeriod() time.Duration {
	return GSCycle * t.GSCLKPeriod()
}

// ClockConfig returns the duty and period, in nanoseconds, for the GSCLK
// source: a 50% square wave.
func (t Timing) ClockConfig() (dutyNs, periodNs int64) {
	p := t.GSCLKPeriod().Nanoseconds()
	return p / 2, p
}
