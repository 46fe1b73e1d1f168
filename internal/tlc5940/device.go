package tlc5940

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/coreman2200/tlc5940/internal/ledclass"
)

// DefaultStartDelay is how long after bring-up the first tick fires, the
// same one second the kernel driver waited.
const DefaultStartDelay = time.Second

// Config describes one chip.
type Config struct {
	// Names gives every channel its display name; its length is the
	// channel count.
	Names      []string
	Timing     Timing
	StartDelay time.Duration
	// InputBits is the width of brightness values the host hands in.
	// 0 means 12.
	InputBits int
}

// Device owns the registry, the scheduler and the hardware handles of a
// single chip. Host LEDs only carry a channel index into the registry.
type Device struct {
	cfg  Config
	hw   Hardware
	host ledclass.Host
	reg  *Registry
	sch  *Scheduler

	registered []string

	closeOnce sync.Once
	closeErr  error
}

// New brings the chip up: BLANK is claimed high so outputs stay dark, the
// grayscale clock is started, every channel is registered with host and
// the blank timer begins. On failure everything done so far is undone and
// an error matching ErrConfiguration is returned; hw.Close is left to the
// caller. host may be nil when nothing needs LED registration.
func New(ctx context.Context, cfg Config, hw Hardware, host ledclass.Host, opts ...Option) (*Device, error) {
	n := len(cfg.Names)
	if n == 0 || n%2 != 0 {
		return nil, withKind(ErrConfiguration, nil, "channel count %d must be even and > 0", n)
	}
	if err := cfg.Timing.Validate(); err != nil {
		return nil, withKind(ErrConfiguration, err, "timing")
	}
	if hw.Transport == nil || hw.Blank == nil {
		return nil, withKind(ErrConfiguration, nil, "transport and blank line are required")
	}
	if cfg.StartDelay < 0 {
		cfg.StartDelay = 0
	}

	if err := hw.Blank.ConfigureOutput(true); err != nil {
		return nil, withKind(ErrConfiguration, err, "claim blank line")
	}
	if hw.Clock != nil {
		duty, period := cfg.Timing.ClockConfig()
		if err := hw.Clock.Configure(duty, period); err != nil {
			return nil, withKind(ErrConfiguration, err, "configure gsclk")
		}
		if err := hw.Clock.Enable(); err != nil {
			return nil, withKind(ErrConfiguration, err, "enable gsclk")
		}
	}

	reg := NewRegistry(cfg.Names, cfg.InputBits)
	sch, err := NewScheduler(SchedulerConfig{
		Period:     cfg.Timing.BlankPeriod(),
		StartDelay: cfg.StartDelay,
	}, reg, hw.Transport, hw.Blank, opts...)
	if err != nil {
		disableClock(hw)
		return nil, withKind(ErrConfiguration, err, "scheduler")
	}

	d := &Device{cfg: cfg, hw: hw, host: host, reg: reg, sch: sch}
	if host != nil {
		for id, name := range cfg.Names {
			if err := host.Register(name, MaxBrightness, channelSetter(reg, id)); err != nil {
				rbErr := d.unregisterAll()
				disableClock(hw)
				return nil, multierr.Append(withKind(ErrConfiguration, err, "register %s", name), rbErr)
			}
			d.registered = append(d.registered, name)
		}
	}

	sch.Start(ctx)
	return d, nil
}

// channelSetter binds a host LED to a registry index.
func channelSetter(reg *Registry, id int) ledclass.SetFunc {
	return func(value int) (int, error) {
		if err := reg.SetBrightness(id, value); err != nil {
			return 0, err
		}
		v, err := reg.Brightness(id)
		return int(v), err
	}
}

func disableClock(hw Hardware) {
	if hw.Clock != nil {
		_ = hw.Clock.Disable()
	}
}

func (d *Device) unregisterAll() error {
	var err error
	for i := len(d.registered) - 1; i >= 0; i-- {
		err = multierr.Append(err, d.host.Unregister(d.registered[i]))
	}
	d.registered = nil
	return err
}

// SetBrightness sets one channel; see Registry.SetBrightness.
func (d *Device) SetBrightness(id, value int) error { return d.reg.SetBrightness(id, value) }

// SetAll sets every channel.
func (d *Device) SetAll(value int) { d.reg.SetAll(value) }

// SetSnapshot replaces every channel value at once.
func (d *Device) SetSnapshot(s Snapshot) error { return d.reg.SetSnapshot(s) }

// Snapshot returns the current brightness of every channel.
func (d *Device) Snapshot() Snapshot { return d.reg.Snapshot() }

// Channels returns a copy of all channels.
func (d *Device) Channels() []Channel { return d.reg.Channels() }

// Len is the channel count.
func (d *Device) Len() int { return d.reg.Len() }

// Timing returns the configured clock timing.
func (d *Device) Timing() Timing { return d.cfg.Timing }

// Stats returns the scheduler counters.
func (d *Device) Stats() Stats { return d.sch.Stats() }

// Done is closed when the blank timer stops.
func (d *Device) Done() <-chan struct{} { return d.sch.Done() }

// Err reports the hardware link failure that stopped the device, if any.
func (d *Device) Err() error { return d.sch.Err() }

// Close stops the blank timer, waiting for an in-flight transmit, then
// unregisters channels, stops GSCLK, blanks the outputs and releases the
// hardware.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		d.sch.Stop()
		err := d.unregisterAll()
		if d.hw.Clock != nil {
			err = multierr.Append(err, d.hw.Clock.Disable())
		}
		err = multierr.Append(err, d.hw.Blank.Set(true))
		if d.hw.Close != nil {
			err = multierr.Append(err, d.hw.Close())
		}
		d.closeErr = err
	})
	return d.closeErr
}
