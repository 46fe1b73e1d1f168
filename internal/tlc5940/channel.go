package tlc5940

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

const (
	// GSBits is the width of one grayscale value on the wire.
	GSBits = 12
	// MaxBrightness is the largest grayscale value the chip accepts.
	MaxBrightness = 1<<GSBits - 1
	// DefaultChannels is the channel count of a single TLC5940.
	DefaultChannels = 16
)

// Channel is one addressable output of the chip.
type Channel struct {
	ID         int
	Name       string
	Brightness uint16
}

// Snapshot holds the brightness of every channel at a single instant,
// indexed by channel id.
type Snapshot []uint16

// Scale shifts value from a fromBits-wide range into the 12-bit grayscale
// range and then clamps it. Negative input is 0 before any shift, and
// values that would overflow the shift clamp to MaxBrightness.
func Scale(value, fromBits int) uint16 {
	if value < 0 {
		return 0
	}
	switch {
	case fromBits <= 0 || fromBits == GSBits:
	case fromBits < GSBits:
		shift := uint(GSBits - fromBits)
		if value > MaxBrightness>>shift {
			return MaxBrightness
		}
		value <<= shift
	default:
		value >>= uint(fromBits - GSBits)
	}
	if value > MaxBrightness {
		return MaxBrightness
	}
	return uint16(value)
}

// Registry holds per-channel brightness and the dirty flag that tells the
// scheduler a new frame must go out. One mutex guards all of it, so a
// snapshot always reflects every channel at the same instant.
type Registry struct {
	inputBits int

	mu    sync.Mutex
	chans []Channel
	dirty bool
	gen   uint64 // bumped on every write
}

// NewRegistry creates one channel per name, with ids in slice order.
// inputBits is the width of values passed to SetBrightness; 0 means the
// chip's native 12 bits.
func NewRegistry(names []string, inputBits int) *Registry {
	r := &Registry{
		inputBits: inputBits,
		chans:     make([]Channel, len(names)),
		dirty:     true,
	}
	for i, n := range names {
		r.chans[i] = Channel{ID: i, Name: n}
	}
	return r
}

// ChannelNames returns prefix-0 .. prefix-(n-1), the naming the kernel
// driver used.
func ChannelNames(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%d", prefix, i)
	}
	return out
}

// Len returns the number of channels.
func (r *Registry) Len() int { return len(r.chans) }

// SetBrightness scales and clamps value, stores it and marks the registry
// dirty. It never blocks on the scheduler.
func (r *Registry) SetBrightness(id int, value int) error {
	if id < 0 || id >= len(r.chans) {
		return invalidChannel(id, len(r.chans))
	}
	v := Scale(value, r.inputBits)

	r.mu.Lock()
	r.chans[id].Brightness = v
	r.dirty = true
	r.gen++
	r.mu.Unlock()
	return nil
}

// SetAll sets every channel in one step.
func (r *Registry) SetAll(value int) {
	v := Scale(value, r.inputBits)

	r.mu.Lock()
	for i := range r.chans {
		r.chans[i].Brightness = v
	}
	r.dirty = true
	r.gen++
	r.mu.Unlock()
}

// SetSnapshot replaces all values at once. Values are already 12-bit and
// are only clamped.
func (r *Registry) SetSnapshot(s Snapshot) error {
	if len(s) != len(r.chans) {
		return errors.Errorf("tlc5940: snapshot has %d values, want %d", len(s), len(r.chans))
	}
	r.mu.Lock()
	for i, v := range s {
		r.chans[i].Brightness = Scale(int(v), GSBits)
	}
	r.dirty = true
	r.gen++
	r.mu.Unlock()
	return nil
}

// Brightness returns the stored 12-bit value of a channel.
func (r *Registry) Brightness(id int) (uint16, error) {
	if id < 0 || id >= len(r.chans) {
		return 0, invalidChannel(id, len(r.chans))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chans[id].Brightness, nil
}

// Channel returns a copy of one channel.
func (r *Registry) Channel(id int) (Channel, error) {
	if id < 0 || id >= len(r.chans) {
		return Channel{}, invalidChannel(id, len(r.chans))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chans[id], nil
}

// Channels returns a copy of all channels in id order.
func (r *Registry) Channels() []Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Channel, len(r.chans))
	copy(out, r.chans)
	return out
}

// Snapshot returns a consistent copy of all brightness values.
func (r *Registry) Snapshot() Snapshot {
	s := make(Snapshot, len(r.chans))
	r.mu.Lock()
	r.fill(s)
	r.mu.Unlock()
	return s
}

// Dirty reports whether a write has happened since the last clean mark.
func (r *Registry) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

func (r *Registry) fill(s Snapshot) {
	for i := range r.chans {
		s[i] = r.chans[i].Brightness
	}
}

// snapshotIfDirty fills s and returns the write generation it reflects.
// ok is false, and s untouched, when nothing changed.
func (r *Registry) snapshotIfDirty(s Snapshot) (gen uint64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dirty {
		return 0, false
	}
	r.fill(s)
	return r.gen, true
}

// markClean clears the dirty flag unless a write landed after gen was
// taken; that write still has to go out on a later tick.
func (r *Registry) markClean(gen uint64) {
	r.mu.Lock()
	if r.gen == gen {
		r.dirty = false
	}
	r.mu.Unlock()
}
