// Package hw provides the bus, line and clock backends a TLC5940 device
// runs on: periph SPI and GPIO, the gpiod character device, sysfs PWM and
// an in-memory simulator.
package hw

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"periph.io/x/host/v3"

	"github.com/coreman2200/tlc5940/internal/config"
	"github.com/coreman2200/tlc5940/internal/tlc5940"
)

// Open builds the hardware described by cfg, which must be validated and
// normalized. The returned Hardware.Close releases everything opened. sim
// is non-nil when any part is simulated.
func Open(cfg *config.Config, log zerolog.Logger) (hw tlc5940.Hardware, sim *Sim, err error) {
	n := cfg.Device.Channels
	if cfg.Driver == "sim" {
		sim = NewSim(n, log, cfg.Preview)
		return sim.Hardware(), sim, nil
	}

	if _, err := host.Init(); err != nil {
		return tlc5940.Hardware{}, nil, fmt.Errorf("periph host init: %w", err)
	}

	var closers []io.Closer
	closeAll := func() error {
		var err error
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
		return err
	}
	defer func() {
		if err != nil {
			_ = closeAll()
		}
	}()
	simPart := func() *Sim {
		if sim == nil {
			sim = NewSim(n, log, false)
		}
		return sim
	}

	speed, err := cfg.SPISpeed()
	if err != nil {
		return tlc5940.Hardware{}, nil, err
	}
	bus, err := OpenSPI(cfg.SPI.Dev, speed)
	if err != nil {
		return tlc5940.Hardware{}, nil, err
	}
	closers = append(closers, bus)
	hw.Transport = bus
	log.Info().Str("dev", cfg.SPI.Dev).Str("speed", speed.String()).Msg("spi open")

	switch cfg.Blank.Driver {
	case "periph":
		l, err := OpenPinLine(cfg.Blank.Pin)
		if err != nil {
			return tlc5940.Hardware{}, nil, fmt.Errorf("blank: %w", err)
		}
		hw.Blank = l
	case "gpiod":
		l, err := OpenGpiodLine(cfg.Blank.Chip, cfg.Blank.Line)
		if err != nil {
			return tlc5940.Hardware{}, nil, fmt.Errorf("blank: %w", err)
		}
		closers = append(closers, l)
		hw.Blank = l
	case "sim":
		hw.Blank = simPart()
	default:
		return tlc5940.Hardware{}, nil, fmt.Errorf("blank: unknown driver %q", cfg.Blank.Driver)
	}

	switch cfg.GSCLK.Driver {
	case "periph":
		c, err := OpenPinClock(cfg.GSCLK.Pin)
		if err != nil {
			return tlc5940.Hardware{}, nil, fmt.Errorf("gsclk: %w", err)
		}
		hw.Clock = c
	case "sysfs":
		c := NewSysfsClock(cfg.GSCLK.Chip, cfg.GSCLK.Channel)
		closers = append(closers, c)
		hw.Clock = c
	case "sim":
		hw.Clock = simPart()
	case "none":
	default:
		return tlc5940.Hardware{}, nil, fmt.Errorf("gsclk: unknown driver %q", cfg.GSCLK.Driver)
	}

	hw.Close = closeAll
	return hw, sim, nil
}
