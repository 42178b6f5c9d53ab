package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollvault/rollvault/internal/domain"
)

func TestBroadcasterFanout(t *testing.T) {
	b := NewBroadcaster(4)

	first := b.Subscribe()
	second := b.Subscribe()

	b.Record(domain.Event{ID: "1", Kind: domain.EventDeposit})

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, "1", (<-first).ID)
	assert.Equal(t, "1", (<-second).ID)
}

func TestBroadcasterDropsSlowConsumer(t *testing.T) {
	b := NewBroadcaster(1)
	ch := b.Subscribe()

	b.Record(domain.Event{ID: "1"})
	b.Record(domain.Event{ID: "2"}) // buffer full, dropped

	require.Len(t, ch, 1)
	assert.Equal(t, "1", (<-ch).ID)
}

func TestBroadcasterUnsubscribeCloses(t *testing.T) {
	b := NewBroadcaster(1)
	ch := b.Subscribe()
	b.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open, "unsubscribed channel must be closed")

	// double unsubscribe is a no-op
	b.Unsubscribe(ch)
	b.Record(domain.Event{ID: "3"})
}

func TestFanoutForwardsToAllSinks(t *testing.T) {
	b1 := NewBroadcaster(1)
	b2 := NewBroadcaster(1)
	ch1 := b1.Subscribe()
	ch2 := b2.Subscribe()

	sink := Fanout{b1, b2}
	sink.Record(domain.Event{ID: "x"})

	require.Len(t, ch1, 1)
	require.Len(t, ch2, 1)
}
