package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coreman2200/tlc5940/internal/tlc5940"
)

// Validate checks configuration correctness without mutating it.
func Validate(cfg *Config) error {
	switch cfg.Driver {
	case "hw", "sim":
	default:
		return fmt.Errorf("driver %q: want hw or sim", cfg.Driver)
	}

	// ------------------------------------------------------------
	// DEVICE
	// ------------------------------------------------------------

	d := cfg.Device
	n := d.Channels
	if n < 0 {
		return fmt.Errorf("device: channel count %d must be > 0", n)
	}
	if len(d.Names) > 0 {
		if n != 0 && n != len(d.Names) {
			return fmt.Errorf("device: %d names for %d channels", len(d.Names), n)
		}
		n = len(d.Names)
		seen := make(map[string]bool, n)
		for _, name := range d.Names {
			if name == "" {
				return fmt.Errorf("device: empty channel name")
			}
			if seen[name] {
				return fmt.Errorf("device: duplicate channel name %q", name)
			}
			seen[name] = true
		}
	} else {
		if d.NamePrefix == "" {
			return fmt.Errorf("device: name_prefix or names required")
		}
		if n == 0 {
			n = tlc5940.DefaultChannels
		}
	}
	if n <= 0 || n%2 != 0 {
		return fmt.Errorf("device: channel count %d must be even and > 0", n)
	}
	if d.StartDelayMs < 0 {
		return fmt.Errorf("device: start_delay_ms must be >= 0")
	}
	if d.InputBits < 0 || d.InputBits > 16 {
		return fmt.Errorf("device: input_bits %d out of range [0,16], 0 means 12", d.InputBits)
	}
	f, err := ParseFrequency(d.GSCLK)
	if err != nil {
		return fmt.Errorf("device: gsclk: %w", err)
	}
	if err := (tlc5940.Timing{GSCLK: f}).Validate(); err != nil {
		return fmt.Errorf("device: %w", err)
	}

	// ------------------------------------------------------------
	// BUS AND LINES
	// ------------------------------------------------------------

	speed, err := ParseFrequency(cfg.SPI.Speed)
	if err != nil {
		return fmt.Errorf("spi: speed: %w", err)
	}
	if speed <= 0 || speed > tlc5940.MaxGSCLK {
		return fmt.Errorf("spi: speed %s not in (0,%s]", speed, tlc5940.MaxGSCLK)
	}

	if cfg.Driver == "hw" {
		switch cfg.Blank.Driver {
		case "periph":
			if cfg.Blank.Pin == "" {
				return fmt.Errorf("blank: periph driver needs pin")
			}
		case "gpiod":
			if cfg.Blank.Chip == "" || cfg.Blank.Line < 0 {
				return fmt.Errorf("blank: gpiod driver needs chip and line")
			}
		case "sim":
		default:
			return fmt.Errorf("blank: driver %q: want periph, gpiod or sim", cfg.Blank.Driver)
		}

		switch cfg.GSCLK.Driver {
		case "periph":
			if cfg.GSCLK.Pin == "" {
				return fmt.Errorf("gsclk: periph driver needs pin")
			}
		case "sysfs":
			if cfg.GSCLK.Chip == "" || cfg.GSCLK.Channel < 0 {
				return fmt.Errorf("gsclk: sysfs driver needs chip and channel")
			}
		case "sim", "none":
		default:
			return fmt.Errorf("gsclk: driver %q: want periph, sysfs, sim or none", cfg.GSCLK.Driver)
		}
	}

	// ------------------------------------------------------------
	// SURFACES
	// ------------------------------------------------------------

	if cfg.Mirror.Enabled() {
		if cfg.Mirror.IntervalMs <= 0 {
			return fmt.Errorf("mirror: interval_ms must be > 0")
		}
		if cfg.Mirror.TimeoutMs <= 0 {
			return fmt.Errorf("mirror: timeout_ms must be > 0")
		}
	}
	if cfg.Patterns.StepMs <= 0 {
		return fmt.Errorf("patterns: step_ms must be > 0")
	}
	if cfg.Log.Level != "" {
		if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}
	return nil
}
