package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, kind Kind, n int) [][]int {
	t.Helper()
	r, err := NewRunner(Plan{Kind: kind})
	require.NoError(t, err)
	var frames [][]int
	for i := 0; i < 1000; i++ {
		v := make([]int, n)
		if !r.Step(v) {
			assert.Equal(t, make([]int, n), v, "final step clears")
			return frames
		}
		frames = append(frames, v)
	}
	t.Fatalf("%s never finished", kind)
	return nil
}

func TestUnknownKind(t *testing.T) {
	_, err := NewRunner(Plan{Kind: "plane_z"})
	assert.Error(t, err)
}

func TestIndexSweep(t *testing.T) {
	frames := run(t, IndexSweep, 4)
	require.Len(t, frames, 4)
	assert.Equal(t, []int{0, 0, 4095, 0}, frames[2])
}

func TestAllOn(t *testing.T) {
	frames := run(t, AllOn, 2)
	require.Len(t, frames, allOnSteps)
	for _, f := range frames {
		assert.Equal(t, []int{4095, 4095}, f)
	}
}

func TestRampRisesAndFalls(t *testing.T) {
	frames := run(t, Ramp, 2)
	require.Len(t, frames, rampSteps)
	assert.Equal(t, 0, frames[0][0])
	assert.Equal(t, 4095, frames[rampSteps/2][0])
	assert.Equal(t, 0, frames[rampSteps-1][0])
	for i := 1; i <= rampSteps/2; i++ {
		assert.GreaterOrEqual(t, frames[i][0], frames[i-1][0])
	}
	for _, f := range frames {
		assert.Equal(t, f[0], f[1])
	}
}

func TestWalkTail(t *testing.T) {
	frames := run(t, Walk, 6)
	require.Len(t, frames, 6+walkTail)
	assert.Equal(t, []int{4095, 0, 0, 0, 0, 0}, frames[0])
	assert.Equal(t, []int{63, 255, 1023, 4095, 0, 0}, frames[3])
	assert.Equal(t, []int{0, 0, 0, 0, 0, 63}, frames[8])
}

func TestRampLevel(t *testing.T) {
	assert.Equal(t, 0, rampLevel(0))
	assert.Equal(t, 2048, rampLevel(rampSteps/4))
	assert.Equal(t, full, rampLevel(rampSteps/2))
	assert.Equal(t, 0, rampLevel(rampSteps-1))
	for i := rampSteps / 2; i < rampSteps-1; i++ {
		assert.GreaterOrEqual(t, rampLevel(i), rampLevel(i+1), "step %d", i)
	}
}
