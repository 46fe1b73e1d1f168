package tlc5940

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScale(t *testing.T) {
	cases := []struct {
		name     string
		value    int
		fromBits int
		want     uint16
	}{
		{"native zero", 0, 12, 0},
		{"native max", 4095, 12, 4095},
		{"native over", 4096, 12, 4095},
		{"native huge", 1 << 40, 12, 4095},
		{"negative", -1, 12, 0},
		{"default width", 100, 0, 100},
		{"8 bit max", 255, 8, 4080},
		{"8 bit over", 256, 8, 4095},
		{"8 bit huge", 1 << 50, 8, 4095},
		{"8 bit negative", -5, 8, 0},
		{"8 bit overflowing negative", -(1 << 59) - 1, 8, 0},
		{"4 bit overflowing negative", -(1 << 62), 4, 0},
		{"16 bit negative", -70000, 16, 0},
		{"16 bit max", 65535, 16, 4095},
		{"16 bit mid", 0x8000, 16, 0x800},
		{"16 bit over", 1 << 20, 16, 4095},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Scale(tc.value, tc.fromBits))
		})
	}
}

func TestRegistryClampsAndMarksDirty(t *testing.T) {
	r := NewRegistry(ChannelNames("tlc5940", 16), 0)
	assert.True(t, r.Dirty(), "a new registry must transmit once")

	r.markClean(0)
	assert.False(t, r.Dirty())

	require.NoError(t, r.SetBrightness(3, 5000))
	v, err := r.Brightness(3)
	require.NoError(t, err)
	assert.Equal(t, uint16(MaxBrightness), v)
	assert.True(t, r.Dirty())

	require.NoError(t, r.SetBrightness(4, -12))
	v, _ = r.Brightness(4)
	assert.Equal(t, uint16(0), v)

	narrow := NewRegistry(ChannelNames("tlc5940", 2), 8)
	require.NoError(t, narrow.SetBrightness(0, -(1<<59)-1))
	v, _ = narrow.Brightness(0)
	assert.Equal(t, uint16(0), v)
}

func TestRegistryInvalidChannel(t *testing.T) {
	r := NewRegistry(ChannelNames("tlc5940", 16), 0)
	for _, id := range []int{-1, 16, 100} {
		assert.True(t, errors.Is(r.SetBrightness(id, 1), ErrInvalidChannel), "id %d", id)
		_, err := r.Brightness(id)
		assert.True(t, errors.Is(err, ErrInvalidChannel), "id %d", id)
		_, err = r.Channel(id)
		assert.True(t, errors.Is(err, ErrInvalidChannel), "id %d", id)
	}
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry(ChannelNames("tlc5940", 4), 0)
	ch, err := r.Channel(2)
	require.NoError(t, err)
	assert.Equal(t, Channel{ID: 2, Name: "tlc5940-2"}, ch)
	assert.Len(t, r.Channels(), 4)
}

func TestRegistrySetAllAndSnapshot(t *testing.T) {
	r := NewRegistry(ChannelNames("c", 4), 8)
	r.SetAll(255)
	assert.Equal(t, Snapshot{4080, 4080, 4080, 4080}, r.Snapshot())

	require.NoError(t, r.SetSnapshot(Snapshot{1, 2, 3, 5000}))
	assert.Equal(t, Snapshot{1, 2, 3, 4095}, r.Snapshot())

	assert.Error(t, r.SetSnapshot(Snapshot{1}))
}

func TestMarkCleanKeepsLaterWrite(t *testing.T) {
	r := NewRegistry(ChannelNames("c", 2), 0)
	s := make(Snapshot, 2)
	gen, ok := r.snapshotIfDirty(s)
	require.True(t, ok)

	require.NoError(t, r.SetBrightness(0, 7))
	r.markClean(gen)
	assert.True(t, r.Dirty(), "write after snapshot must survive the clean mark")

	gen, ok = r.snapshotIfDirty(s)
	require.True(t, ok)
	assert.Equal(t, Snapshot{7, 0}, s)
	r.markClean(gen)
	assert.False(t, r.Dirty())

	_, ok = r.snapshotIfDirty(s)
	assert.False(t, ok)
}

func TestRegistryConcurrentWriters(t *testing.T) {
	r := NewRegistry(ChannelNames("c", 16), 0)
	var wg sync.WaitGroup
	for id := 0; id < 16; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for v := 0; v <= 100; v++ {
				_ = r.SetBrightness(id, v)
			}
		}(id)
	}
	wg.Wait()
	for _, v := range r.Snapshot() {
		assert.Equal(t, uint16(100), v)
	}
}

func TestTickNeverSendsTornFrame(t *testing.T) {
	reg := NewRegistry(ChannelNames("c", 16), 0)
	tx, line := &fakeTx{}, &fakeLine{}
	s := newTestScheduler(t, reg, tx, line)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for v := w; ; v += 4 {
				select {
				case <-stop:
					return
				default:
				}
				reg.SetAll(v % (MaxBrightness + 1))
			}
		}(w)
	}
	for i := 0; i < 2000; i++ {
		require.NoError(t, s.Tick().Err)
	}
	close(stop)
	wg.Wait()

	frames := tx.sent()
	require.NotEmpty(t, frames)
	for i, f := range frames {
		snap, err := Decode(f, 16)
		require.NoError(t, err)
		for id, v := range snap {
			require.Equal(t, snap[0], v, "frame %d channel %d differs from channel 0", i, id)
		}
	}
}
