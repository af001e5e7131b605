package bomb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	elapsed []int
	states  []State
}

func (r *recorder) Elapsed(remaining int)    { r.elapsed = append(r.elapsed, remaining) }
func (r *recorder) StateChanged(state State) { r.states = append(r.states, state) }

func mustBomb(t *testing.T, trigger, time int) *Bomb {
	t.Helper()
	b, err := New(trigger, time)
	require.NoError(t, err)
	return b
}

func TestNewRejectsNegativeSettings(t *testing.T) {
	_, err := New(-1, 5)
	assert.ErrorIs(t, err, ErrInvalidSetting)
	_, err = New(4, -1)
	assert.ErrorIs(t, err, ErrInvalidSetting)
}

func TestArmingPreconditions(t *testing.T) {
	for _, trigger := range []int{0, 1, 4, 9} {
		assert.ErrorIs(t, mustBomb(t, trigger, 0).Arm(), ErrNoTime, "trigger %d", trigger)
	}
	for _, limit := range []int{1, 4, 30} {
		assert.ErrorIs(t, mustBomb(t, 0, limit).Arm(), ErrNoDiffuser, "time %d", limit)
	}

	b := mustBomb(t, 4, 1)
	require.NoError(t, b.Arm())
	assert.True(t, b.IsArmed())
	assert.ErrorIs(t, b.Arm(), ErrInvalidState, "arming twice")
}

func TestDisarmingPreconditions(t *testing.T) {
	for _, pressure := range []int{3, 5, 0, -4} {
		b := mustBomb(t, 4, 30)
		require.NoError(t, b.Arm())
		assert.ErrorIs(t, b.Disarm(pressure), ErrWrongPressure)
		assert.Equal(t, StateExploded, b.State())
		assert.Equal(t, CauseWrongPressure, b.Cause())
	}

	b := mustBomb(t, 4, 30)
	require.NoError(t, b.Arm())
	require.NoError(t, b.Disarm(4))
	assert.Equal(t, StateDefused, b.State())
	assert.Equal(t, CauseDefused, b.Cause())
}

func TestDisarmRequiresArmed(t *testing.T) {
	b := mustBomb(t, 4, 30)
	assert.ErrorIs(t, b.Disarm(4), ErrInvalidState)
	assert.Equal(t, StateIdle, b.State())
}

func TestSingleTickExplodes(t *testing.T) {
	b := mustBomb(t, 4, 1)
	rec := &recorder{}
	b.SetObserver(rec)
	require.NoError(t, b.Arm())

	require.NoError(t, b.Tick())
	assert.Equal(t, StateExploded, b.State())
	assert.Equal(t, CauseTimeout, b.Cause())
	assert.ErrorIs(t, b.Tick(), ErrInvalidState, "no tick after explosion")

	assert.Equal(t, []int{0}, rec.elapsed)
	assert.Equal(t, []State{StateArmed, StateExploded}, rec.states)
}

func TestCountdownStrictlyDecreasing(t *testing.T) {
	b := mustBomb(t, 4, 5)
	rec := &recorder{}
	b.SetObserver(rec)
	require.NoError(t, b.Arm())

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Tick())
	}
	require.NoError(t, b.Disarm(4))
	assert.ErrorIs(t, b.Tick(), ErrInvalidState)

	assert.Equal(t, []int{4, 3, 2}, rec.elapsed)
	assert.Equal(t, 2, b.TimeLimit())
}

func TestExplode(t *testing.T) {
	b := mustBomb(t, 4, 5)
	require.NoError(t, b.Explode())
	assert.Equal(t, CauseManual, b.Cause())
	assert.ErrorIs(t, b.Explode(), ErrInvalidState)
}
