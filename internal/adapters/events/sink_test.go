package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armourmail/armourmail/internal/core"
)

func TestChannelSinkDelivers(t *testing.T) {
	sink := NewChannelSink(2)
	ev := core.Event{Name: core.EventEmailQuarantined, EntityID: uuid.New(), At: time.Now()}

	sink.Emit(context.Background(), ev)

	select {
	case got := <-sink.Events:
		assert.Equal(t, ev.Name, got.Name)
		assert.Equal(t, ev.EntityID, got.EntityID)
	default:
		t.Fatal("event was not delivered")
	}
}

func TestChannelSinkDropsWhenFull(t *testing.T) {
	sink := NewChannelSink(1)
	first := core.Event{Name: core.EventEmailClean, EntityID: uuid.New()}
	second := core.Event{Name: core.EventEmailQuarantined, EntityID: uuid.New()}

	sink.Emit(context.Background(), first)
	// Buffer is full; this must not block.
	done := make(chan struct{})
	go func() {
		sink.Emit(context.Background(), second)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full buffer")
	}

	got := <-sink.Events
	require.Equal(t, first.Name, got.Name)
	select {
	case <-sink.Events:
		t.Fatal("overflow event should have been dropped")
	default:
	}
}
