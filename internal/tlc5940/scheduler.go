package tlc5940

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// State is the scheduler's position in its tick cycle.
type State int32

const (
	Idle State = iota
	Refreshing
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Refreshing:
		return "refreshing"
	default:
		return "stopped"
	}
}

// TickResult describes one tick.
type TickResult struct {
	At          time.Time
	Transmitted bool
	// Overruns counts whole periods that elapsed unserved before this tick.
	Overruns int
	Err      error
}

// Stats are cumulative scheduler counters.
type Stats struct {
	State             State
	Dirty             bool
	Ticks             uint64
	Transmits         uint64
	TransportFailures uint64
	Overruns          uint64
	LastTick          time.Time
	LastErr           error
}

// SchedulerConfig sets the tick cadence.
type SchedulerConfig struct {
	Period     time.Duration // normally Timing.BlankPeriod()
	StartDelay time.Duration // delay before the first tick
}

// Scheduler pulses BLANK on a fixed period and pushes a fresh frame over
// the transport whenever the registry is dirty. Brightness writers never
// trigger bus traffic themselves; the tick is the only writer to the wire.
type Scheduler struct {
	cfg   SchedulerConfig
	reg   *Registry
	tx    Transport
	blank BlankLine

	clock   clock.Clock
	log     zerolog.Logger
	onTick  func(TickResult)
	onFatal func(error)

	// tickMu serializes ticks; fb and snap belong to whoever holds it.
	tickMu sync.Mutex
	fb     []byte
	snap   Snapshot

	state atomic.Int32

	statsMu sync.Mutex
	stats   Stats
	failing bool

	runMu   sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// NewScheduler builds a scheduler over reg. The registry starts dirty, so
// the first tick always transmits.
func NewScheduler(cfg SchedulerConfig, reg *Registry, tx Transport, blank BlankLine, opts ...Option) (*Scheduler, error) {
	if cfg.Period <= 0 {
		return nil, errors.New("tlc5940: scheduler period must be > 0")
	}
	if cfg.StartDelay < 0 {
		return nil, errors.New("tlc5940: start delay must be >= 0")
	}
	if reg == nil || tx == nil || blank == nil {
		return nil, errors.New("tlc5940: scheduler needs a registry, transport and blank line")
	}
	if reg.Len() == 0 || reg.Len()%2 != 0 {
		return nil, errors.New("tlc5940: channel count must be even and > 0")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &Scheduler{
		cfg:     cfg,
		reg:     reg,
		tx:      tx,
		blank:   blank,
		clock:   o.clock,
		log:     o.log,
		onTick:  o.onTick,
		onFatal: o.onFatal,
		fb:      make([]byte, FrameSize(reg.Len())),
		snap:    make(Snapshot, reg.Len()),
		done:    make(chan struct{}),
	}
	return s, nil
}

// Start launches the timer. Calling it more than once has no effect.
func (s *Scheduler) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.started {
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	// Armed here rather than in run so the first deadline is relative to
	// the Start call.
	deadline := s.clock.Now().Add(s.cfg.StartDelay)
	timer := s.clock.Timer(s.cfg.StartDelay)
	go s.run(ctx, timer, deadline)
}

// Stop halts the timer and waits for an in-flight tick, including its
// transmit, to finish.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	started, cancel := s.started, s.cancel
	s.runMu.Unlock()
	if !started {
		return
	}
	cancel()
	<-s.done
}

// Done is closed once the timer loop has exited, either through Stop or a
// hardware link failure.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// Err returns the hardware link error that stopped the scheduler, if any.
func (s *Scheduler) Err() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.err
}

// State returns the current cycle state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Stats returns a copy of the counters.
func (s *Scheduler) Stats() Stats {
	s.statsMu.Lock()
	st := s.stats
	s.statsMu.Unlock()
	st.State = s.State()
	st.Dirty = s.reg.Dirty()
	return st
}

// Tick runs one blank/refresh step immediately, without touching the
// timer.
func (s *Scheduler) Tick() TickResult {
	return s.tick(s.clock.Now(), nil)
}

func (s *Scheduler) run(ctx context.Context, timer *clock.Timer, deadline time.Time) {
	defer close(s.done)
	defer s.state.Store(int32(Stopped))
	defer timer.Stop()

	s.log.Debug().
		Dur("period", s.cfg.Period).
		Dur("start_delay", s.cfg.StartDelay).
		Msg("blank timer armed")

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		now := s.clock.Now()
		res := s.tick(now, func() int {
			var overruns int
			deadline, overruns = forwardNow(deadline, now, s.cfg.Period)
			timer.Reset(deadline.Sub(now))
			return overruns
		})

		if errors.Is(res.Err, ErrHardwareLink) {
			s.runMu.Lock()
			s.err = res.Err
			s.runMu.Unlock()
			s.log.Error().Err(res.Err).Msg("blank line lost, expiring timer")
			if s.onFatal != nil {
				s.onFatal(res.Err)
			}
			return
		}
	}
}

// tick pulses BLANK, re-arms through rearm (when driven by the timer) and
// transmits if dirty.
func (s *Scheduler) tick(now time.Time, rearm func() int) TickResult {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.state.Store(int32(Refreshing))
	defer s.state.Store(int32(Idle))

	res := TickResult{At: now}
	if err := s.pulse(); err != nil {
		res.Err = withKind(ErrHardwareLink, err, "pulse blank")
		s.record(res)
		return res
	}
	if rearm != nil {
		res.Overruns = rearm()
	}
	res.Transmitted, res.Err = s.refresh()
	s.record(res)
	if s.onTick != nil {
		s.onTick(res)
	}
	return res
}

// pulse latches the last shifted frame and restarts the chip's GS counter.
func (s *Scheduler) pulse() error {
	if err := s.blank.Set(true); err != nil {
		return err
	}
	return s.blank.Set(false)
}

func (s *Scheduler) refresh() (bool, error) {
	gen, ok := s.reg.snapshotIfDirty(s.snap)
	if !ok {
		return false, nil
	}
	if err := Encode(s.fb, s.snap); err != nil {
		return false, err
	}
	if err := s.tx.Transmit(s.fb); err != nil {
		return false, withKind(ErrTransport, err, "transmit %d bytes", len(s.fb))
	}
	s.reg.markClean(gen)
	return true, nil
}

func (s *Scheduler) record(res TickResult) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	s.stats.Ticks++
	s.stats.LastTick = res.At
	s.stats.Overruns += uint64(res.Overruns)
	if res.Transmitted {
		s.stats.Transmits++
	}
	if res.Err != nil {
		s.stats.LastErr = res.Err
	}
	if !errors.Is(res.Err, ErrTransport) {
		if s.failing && res.Transmitted {
			s.failing = false
			s.log.Info().Uint64("failures", s.stats.TransportFailures).Msg("transmit recovered")
		}
		return
	}
	s.stats.TransportFailures++
	if !s.failing {
		s.failing = true
		s.log.Warn().Err(res.Err).Msg("transmit failed, retrying on next tick")
	} else {
		s.log.Debug().Err(res.Err).Uint64("failures", s.stats.TransportFailures).Msg("transmit still failing")
	}
}

// forwardNow moves deadline forward by the smallest whole number of
// periods that puts it after now, so the tick phase never drifts. It
// returns the new deadline and how many periods were skipped.
func forwardNow(deadline, now time.Time, period time.Duration) (time.Time, int) {
	delta := now.Sub(deadline)
	if delta < 0 {
		return deadline, 0
	}
	n := int64(delta/period) + 1
	return deadline.Add(time.Duration(n) * period), int(n - 1)
}
