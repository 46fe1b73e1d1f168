package hw

import (
	"image"
	"image/color"
	"sync"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/display"
	"periph.io/x/extra/devices/screen"

	"github.com/coreman2200/tlc5940/internal/tlc5940"
)

// Sim stands in for the SPI bus, the BLANK line and the GSCLK source. It
// decodes every frame it receives and can preview it on the console.
type Sim struct {
	log      zerolog.Logger
	channels int
	drawer   display.Drawer

	mu       sync.Mutex
	last     tlc5940.Snapshot
	frames   uint64
	pulses   uint64
	blank    bool
	clockOn  bool
	duty     int64
	period   int64
	txErr    error
	blankErr error
}

// NewSim builds a simulator for n channels. With preview set each frame is
// drawn on stdout, one cell per channel.
func NewSim(n int, log zerolog.Logger, preview bool) *Sim {
	s := &Sim{log: log, channels: n, last: make(tlc5940.Snapshot, n)}
	if preview {
		s.drawer = screen.New(n)
	}
	return s
}

// Hardware exposes the simulator as a device's collaborators.
func (s *Sim) Hardware() tlc5940.Hardware {
	return tlc5940.Hardware{Transport: s, Blank: s, Clock: s, Close: s.Close}
}

// FailTransmit makes every following Transmit return err; nil heals it.
func (s *Sim) FailTransmit(err error) {
	s.mu.Lock()
	s.txErr = err
	s.mu.Unlock()
}

// FailBlank makes every following BLANK write return err.
func (s *Sim) FailBlank(err error) {
	s.mu.Lock()
	s.blankErr = err
	s.mu.Unlock()
}

func (s *Sim) Transmit(frame []byte) error {
	snap, err := tlc5940.Decode(frame, s.channels)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.txErr != nil {
		err := s.txErr
		s.mu.Unlock()
		return err
	}
	s.last = snap
	s.frames++
	n := s.frames
	s.mu.Unlock()

	s.log.Debug().Uint64("frame", n).Int("bytes", len(frame)).Msg("sim transmit")
	if s.drawer != nil {
		return s.drawer.Draw(s.drawer.Bounds(), snapshotImage(snap), image.Point{})
	}
	return nil
}

func (s *Sim) ConfigureOutput(initial bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blankErr != nil {
		return s.blankErr
	}
	s.blank = initial
	return nil
}

func (s *Sim) Set(high bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blankErr != nil {
		return s.blankErr
	}
	if high && !s.blank {
		s.pulses++
	}
	s.blank = high
	return nil
}

func (s *Sim) Configure(dutyNs, periodNs int64) error {
	s.mu.Lock()
	s.duty, s.period = dutyNs, periodNs
	s.mu.Unlock()
	s.log.Debug().Int64("duty_ns", dutyNs).Int64("period_ns", periodNs).Msg("sim gsclk configured")
	return nil
}

func (s *Sim) Enable() error {
	s.mu.Lock()
	s.clockOn = true
	s.mu.Unlock()
	return nil
}

func (s *Sim) Disable() error {
	s.mu.Lock()
	s.clockOn = false
	s.mu.Unlock()
	return nil
}

func (s *Sim) Close() error {
	if s.drawer != nil {
		return s.drawer.Halt()
	}
	return nil
}

// SimState is a point-in-time view of the simulated chip.
type SimState struct {
	Last     tlc5940.Snapshot
	Frames   uint64
	Pulses   uint64
	Blank    bool
	ClockOn  bool
	DutyNs   int64
	PeriodNs int64
}

func (s *Sim) State() SimState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SimState{
		Last:     append(tlc5940.Snapshot(nil), s.last...),
		Frames:   s.frames,
		Pulses:   s.pulses,
		Blank:    s.blank,
		ClockOn:  s.clockOn,
		DutyNs:   s.duty,
		PeriodNs: s.period,
	}
}

// snapshotImage renders channels as one row of gray pixels.
func snapshotImage(snap tlc5940.Snapshot) *image.NRGBA {
	im := image.NewNRGBA(image.Rect(0, 0, len(snap), 1))
	for x, v := range snap {
		g := uint8(v >> 4)
		im.SetNRGBA(x, 0, color.NRGBA{R: g, G: g, B: g, A: 255})
	}
	return im
}
