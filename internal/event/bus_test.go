package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToEverySubscriber(t *testing.T) {
	bus := NewBus()
	first, unsubFirst := bus.Subscribe()
	defer unsubFirst()
	second, unsubSecond := bus.Subscribe()
	defer unsubSecond()

	bus.Publish(New(TypeTrashCaptured, map[string]string{"id": "t1"}, "u1"))

	for _, ch := range []<-chan Event{first, second} {
		got := <-ch
		assert.Equal(t, TypeTrashCaptured, got.Type)
		assert.Equal(t, "u1", got.ActorID)
		assert.NotEmpty(t, got.ID)
	}
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus()
	bus.bufferSize = 1
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Publish(New(TypeTrashPurged, nil, ""))
	bus.Publish(New(TypeTrashExpired, nil, ""))

	got := <-ch
	assert.Equal(t, TypeTrashPurged, got.Type)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected event %s", extra.Type)
	default:
	}
}

func TestUnsubscribeClosesChannelOnce(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()

	unsubscribe()
	unsubscribe()

	_, open := <-ch
	require.False(t, open)
	bus.Publish(New(TypeTrashRestored, nil, ""))
}
