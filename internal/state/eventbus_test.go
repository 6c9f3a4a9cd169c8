package state

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusFanOut(t *testing.T) {
	bus := NewEventBus()

	const subscribers = 200
	ready := make(chan struct{}, subscribers)
	var wg sync.WaitGroup
	var count atomic.Uint64
	for i := 0; i < subscribers; i++ {
		ch := make(chan interface{}, 1)
		bus.Subscribe(TxMined, ch)
		wg.Add(1)
		go func() {
			defer wg.Done()
			ready <- struct{}{}
			ev := (<-ch).(TxEvent)
			if ev.Action == "airdrop-0/claim" {
				count.Add(1)
			}
		}()
	}
	for i := 0; i < subscribers; i++ {
		<-ready
	}
	bus.Publish(TxMined, TxEvent{Type: TxMined, Action: "airdrop-0/claim"})
	wg.Wait()

	assert.Equal(t, uint64(subscribers), count.Load())
	assert.Equal(t, subscribers, bus.SubscriberCount(TxMined))
}

func TestEventBusDropsFullSubscriber(t *testing.T) {
	bus := NewEventBus()
	slow := make(chan interface{})
	fast := make(chan interface{}, 4)
	bus.Subscribe(TxSubmitted, slow)
	bus.Subscribe(TxSubmitted, fast)

	bus.Publish(TxSubmitted, TxEvent{Type: TxSubmitted})

	require.Len(t, fast, 1)
	assert.Equal(t, 1, bus.SubscriberCount(TxSubmitted))
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	a := make(chan interface{}, 1)
	b := make(chan interface{}, 1)
	bus.Subscribe(TxReverted, a)
	bus.Subscribe(TxReverted, b)

	bus.Unsubscribe(TxReverted, a)
	bus.Publish(TxReverted, "x")
	assert.Len(t, a, 0)
	assert.Len(t, b, 1)

	bus.Unsubscribe(TxReverted, b)
	assert.Equal(t, 0, bus.SubscriberCount(TxReverted))
	// publishing with no subscribers is a no-op
	bus.Publish(TxReverted, "y")
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "TxMined", TxMined.String())
	assert.Equal(t, "EventUnknown", EventType(99).String())
}
