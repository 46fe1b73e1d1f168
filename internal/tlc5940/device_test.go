package tlc5940

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rig struct {
	events []string
	tx     *fakeTx
	line   *fakeLine
	clk    *fakeClock
	host   *fakeHost
	closed bool
}

func newRig() *rig {
	r := &rig{tx: &fakeTx{}, line: &fakeLine{}}
	r.clk = &fakeClock{events: &r.events}
	r.host = &fakeHost{events: &r.events}
	return r
}

func (r *rig) hardware() Hardware {
	return Hardware{
		Transport: r.tx,
		Blank:     r.line,
		Clock:     r.clk,
		Close: func() error {
			r.closed = true
			return nil
		},
	}
}

func testConfig(n int) Config {
	return Config{
		Names:      ChannelNames("tlc5940", n),
		Timing:     Timing{GSCLK: DefaultGSCLK},
		StartDelay: DefaultStartDelay,
	}
}

func TestNewBringsUpInOrder(t *testing.T) {
	r := newRig()
	mock := clock.NewMock()
	d, err := New(context.Background(), testConfig(4), r.hardware(), r.host,
		WithClock(mock), WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	assert.Equal(t, []string{"blank:configure"}, r.line.log())
	assert.True(t, r.line.level, "blank must start high")
	assert.Equal(t, []string{
		"clock:configure", "clock:enable",
		"register:tlc5940-0", "register:tlc5940-1", "register:tlc5940-2", "register:tlc5940-3",
	}, r.events)
	assert.Equal(t, int64(200), r.clk.duty)
	assert.Equal(t, int64(400), r.clk.period)
	assert.Equal(t, 4, d.Len())
	assert.Equal(t, 1638400*time.Nanosecond, d.Timing().BlankPeriod())

	require.NoError(t, d.Close())
	assert.Equal(t, []string{
		"unregister:tlc5940-3", "unregister:tlc5940-2", "unregister:tlc5940-1", "unregister:tlc5940-0",
		"clock:disable",
	}, r.events[6:])
	assert.True(t, r.closed)
	assert.True(t, r.line.level, "outputs blanked after close")
	require.NoError(t, d.Close())
}

func TestNewRollsBackOnRegisterFailure(t *testing.T) {
	r := newRig()
	r.host.failOn = "tlc5940-2"
	_, err := New(context.Background(), testConfig(4), r.hardware(), r.host, WithLogger(zerolog.Nop()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Equal(t, []string{
		"clock:configure", "clock:enable",
		"register:tlc5940-0", "register:tlc5940-1",
		"unregister:tlc5940-1", "unregister:tlc5940-0",
		"clock:disable",
	}, r.events)
	assert.Empty(t, r.host.setters)
}

func TestNewConfigurationErrors(t *testing.T) {
	cases := []struct {
		name  string
		cfg   func() Config
		setup func(r *rig)
	}{
		{"odd channels", func() Config { return testConfig(3) }, nil},
		{"no channels", func() Config { return testConfig(0) }, nil},
		{"bad timing", func() Config {
			c := testConfig(16)
			c.Timing.GSCLK = 0
			return c
		}, nil},
		{"blank line", func() Config { return testConfig(16) }, func(r *rig) { r.line.confErr = errors.New("busy") }},
		{"gsclk enable", func() Config { return testConfig(16) }, func(r *rig) { r.clk.enableErr = errors.New("no pwm") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig()
			if tc.setup != nil {
				tc.setup(r)
			}
			_, err := New(context.Background(), tc.cfg(), r.hardware(), r.host, WithLogger(zerolog.Nop()))
			assert.True(t, errors.Is(err, ErrConfiguration), "got %v", err)
			assert.Empty(t, r.host.setters)
		})
	}
}

func TestHostSetterReachesRegistry(t *testing.T) {
	r := newRig()
	mock := clock.NewMock()
	ticks := make(chan TickResult, 4)
	d, err := New(context.Background(), testConfig(16), r.hardware(), r.host,
		WithClock(mock), WithLogger(zerolog.Nop()),
		WithTickHook(func(tr TickResult) { ticks <- tr }))
	require.NoError(t, err)
	defer d.Close()

	stored, err := r.host.setters["tlc5940-7"](9000)
	require.NoError(t, err)
	assert.Equal(t, MaxBrightness, stored)

	mock.Add(DefaultStartDelay)
	tr := waitTick(t, ticks)
	require.True(t, tr.Transmitted)

	frames := r.tx.sent()
	require.Len(t, frames, 1)
	got, err := Decode(frames[0], 16)
	require.NoError(t, err)
	assert.Equal(t, uint16(MaxBrightness), got[7])
	assert.Equal(t, uint64(1), d.Stats().Transmits)
}

func TestNewWithoutHostOrClock(t *testing.T) {
	tx, line := &fakeTx{}, &fakeLine{}
	d, err := New(context.Background(), testConfig(2), Hardware{Transport: tx, Blank: line}, nil,
		WithClock(clock.NewMock()), WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	require.NoError(t, d.SetBrightness(1, 10))
	assert.True(t, errors.Is(d.SetBrightness(2, 10), ErrInvalidChannel))
	assert.Equal(t, Snapshot{0, 10}, d.Snapshot())
	require.NoError(t, d.Close())
}
