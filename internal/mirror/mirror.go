// Package mirror publishes channel values and refresh counters to a Modbus
// TCP endpoint as holding registers.
//
// Register layout from the base address, N = channel count:
//
//	0 .. N-1   brightness, 0..4095
//	N, N+1     ticks (hi, lo)
//	N+2, N+3   transmits (hi, lo)
//	N+4, N+5   transport failures (hi, lo)
//	N+6, N+7   overruns (hi, lo)
//	N+8        flags: bit0 dirty, bit1 stopped, bit2 blank line lost
package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/tlc5940/internal/tlc5940"
)

// maxRegs is the Modbus limit for one write multiple registers request.
const maxRegs = 123

const (
	FlagDirty = 1 << iota
	FlagStopped
	FlagBlankLost
)

// Source is what the mirror reads each interval.
type Source interface {
	Snapshot() tlc5940.Snapshot
	Stats() tlc5940.Stats
	Err() error
}

type Config struct {
	UnitID   uint8
	Address  uint16
	Interval time.Duration
}

type Mirror struct {
	cfg     Config
	client  Client
	src     Source
	log     zerolog.Logger
	failing bool
}

func New(cfg Config, client Client, src Source, log zerolog.Logger) (*Mirror, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("mirror: interval must be > 0")
	}
	if client == nil || src == nil {
		return nil, fmt.Errorf("mirror: client and source required")
	}
	return &Mirror{cfg: cfg, client: client, src: src, log: log}, nil
}

// Registers lays out one status block.
func Registers(snap tlc5940.Snapshot, st tlc5940.Stats, fatal bool) []uint16 {
	regs := make([]uint16, 0, len(snap)+9)
	regs = append(regs, snap...)
	for _, v := range []uint64{st.Ticks, st.Transmits, st.TransportFailures, st.Overruns} {
		regs = append(regs, uint16(v>>16), uint16(v))
	}
	var flags uint16
	if st.Dirty {
		flags |= FlagDirty
	}
	if st.State == tlc5940.Stopped {
		flags |= FlagStopped
	}
	if fatal {
		flags |= FlagBlankLost
	}
	return append(regs, flags)
}

// WriteOnce pushes the current block, split into protocol-sized requests.
func (m *Mirror) WriteOnce() error {
	regs := Registers(m.src.Snapshot(), m.src.Stats(), m.src.Err() != nil)
	for off := 0; off < len(regs); off += maxRegs {
		end := off + maxRegs
		if end > len(regs) {
			end = len(regs)
		}
		if err := m.client.WriteRegisters(m.cfg.UnitID, m.cfg.Address+uint16(off), regs[off:end]); err != nil {
			return fmt.Errorf("mirror: write %d registers at %d: %w", end-off, int(m.cfg.Address)+off, err)
		}
	}
	return nil
}

// Run writes every interval until ctx ends, then closes the client.
// Write failures are logged and retried on the next interval.
func (m *Mirror) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	defer m.client.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.step()
		}
	}
}

func (m *Mirror) step() {
	err := m.WriteOnce()
	switch {
	case err != nil && !m.failing:
		m.failing = true
		m.log.Warn().Err(err).Msg("status mirror write failed")
	case err != nil:
		m.log.Debug().Err(err).Msg("status mirror still failing")
	case m.failing:
		m.failing = false
		m.log.Info().Msg("status mirror recovered")
	}
}
