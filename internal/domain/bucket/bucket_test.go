package bucket

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	updates []int
}

func (r *recorder) ContentChanged(content int) {
	r.updates = append(r.updates, content)
}

func TestNewRejectsNegativeCapacity(t *testing.T) {
	_, err := New(-1)
	require.ErrorIs(t, err, ErrInvalidCapacity)

	b, err := New(0)
	require.NoError(t, err)
	assert.True(t, b.IsEmpty())
	assert.True(t, b.IsFull())
}

func TestBucketIntake(t *testing.T) {
	b, err := New(3)
	require.NoError(t, err)

	assert.ErrorIs(t, b.Load(0), ErrNoOp)
	assert.ErrorIs(t, b.Load(-5), ErrNegativeAmount)
	assert.ErrorIs(t, b.Load(10), ErrOverflow)
	assert.Equal(t, 0, b.Content(), "rejected loads must not mutate the bucket")

	require.NoError(t, b.Load(2))
	assert.Equal(t, 2, b.Content())
	assert.Equal(t, 1, b.Room())
}

func TestLoadZeroAlwaysNoOp(t *testing.T) {
	b, _ := New(4)
	for _, amount := range []int{0, 2, 2, -4} {
		if amount != 0 {
			require.NoError(t, b.Load(amount))
		}
		assert.ErrorIs(t, b.Load(0), ErrNoOp, "content=%d", b.Content())
	}
}

func TestLoadErrorCarriesState(t *testing.T) {
	b, _ := New(5)
	require.NoError(t, b.Load(4))

	err := b.Load(2)
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, 2, loadErr.Amount)
	assert.Equal(t, 4, loadErr.Content)
	assert.Equal(t, 5, loadErr.Capacity)
	assert.Contains(t, err.Error(), "capacity exceeded")
}

func TestContentStaysInRange(t *testing.T) {
	b, _ := New(7)
	for _, amount := range []int{3, 5, -4, 6, -10, 8, 0, -2, 4, -9, 7} {
		_ = b.Load(amount)
		if b.Content() < 0 || b.Content() > b.Capacity() {
			t.Fatalf("content %d escaped [0,%d] after load %d", b.Content(), b.Capacity(), amount)
		}
	}
}

func TestLoadRoundTrip(t *testing.T) {
	b, _ := New(5)
	require.NoError(t, b.Load(1))
	for _, x := range []int{1, 2, 4, -1} {
		before := b.Content()
		require.NoError(t, b.Load(x))
		require.NoError(t, b.Load(-x))
		assert.Equal(t, before, b.Content())
	}
}

func TestFillAndDump(t *testing.T) {
	b, _ := New(3)
	rec := &recorder{}
	b.SetObserver(rec)

	assert.ErrorIs(t, b.Dump(), ErrNoOp, "dumping an empty bucket")
	require.NoError(t, b.Fill())
	assert.True(t, b.IsFull())
	assert.ErrorIs(t, b.Fill(), ErrNoOp, "filling a full bucket")
	require.NoError(t, b.Dump())
	assert.True(t, b.IsEmpty())

	assert.Equal(t, []int{3, 0}, rec.updates)
}

func TestObserverOnlyOnSuccess(t *testing.T) {
	b, _ := New(2)
	rec := &recorder{}
	b.SetObserver(rec)

	_ = b.Load(3)
	_ = b.Load(-1)
	require.NoError(t, b.Load(1))

	assert.Equal(t, []int{1}, rec.updates)
}

func TestLoadExtremeAmounts(t *testing.T) {
	b, _ := New(3)
	require.NoError(t, b.Load(1))

	assert.ErrorIs(t, b.Load(math.MaxInt), ErrOverflow)
	assert.ErrorIs(t, b.Load(math.MinInt), ErrNegativeAmount)
	assert.Equal(t, 1, b.Content())
}
