package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditRingKeepsArrivalOrder(t *testing.T) {
	t.Parallel()
	r := NewEditRing(4)

	for i := 1; i <= 3; i++ {
		r.Push(EditEvent{Length: i, At: time.Now()})
	}

	events := r.Events()
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, i+1, e.Length)
	}
}

func TestEditRingOverwritesOldestWhenFull(t *testing.T) {
	t.Parallel()
	r := NewEditRing(4)

	for i := 1; i <= 10; i++ {
		r.Push(EditEvent{Length: i})
	}

	events := r.Events()
	require.Len(t, events, 4)
	assert.Equal(t, []int{7, 8, 9, 10}, []int{
		events[0].Length, events[1].Length, events[2].Length, events[3].Length,
	})
	assert.Equal(t, 4, r.Len())
}

func TestEditRingReset(t *testing.T) {
	t.Parallel()
	r := NewEditRing(4)
	r.Push(EditEvent{Length: 1})
	r.Push(EditEvent{Length: 2})

	r.Reset()
	assert.Zero(t, r.Len())
	assert.Empty(t, r.Events())

	r.Push(EditEvent{Length: 3})
	events := r.Events()
	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].Length)
}

func TestEditRingDefaultCapacity(t *testing.T) {
	t.Parallel()
	r := NewEditRing(0)
	for i := 0; i < 100; i++ {
		r.Push(EditEvent{Length: i})
	}
	assert.Equal(t, 32, r.Len())
}
