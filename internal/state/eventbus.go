package state

import (
	"sync"
)

type EventType int

const (
	EventUnknown EventType = iota
	TxSimulating
	TxSimulationOk
	TxSimulationFailed
	TxSimulationRetry
	TxSubmitted
	TxSubmitFailed
	TxMined
	TxReverted
	TxUnconfirmed
	TxDropped
)

func (e EventType) String() string {
	names := [...]string{"EventUnknown", "TxSimulating", "TxSimulationOk", "TxSimulationFailed", "TxSimulationRetry", "TxSubmitted", "TxSubmitFailed", "TxMined", "TxReverted", "TxUnconfirmed", "TxDropped"}
	if int(e) < 0 || int(e) >= len(names) {
		return "EventUnknown"
	}
	return names[e]
}

// TxEventTypes lists every transaction lifecycle event, for subscribers that want all of them.
var TxEventTypes = []EventType{
	TxSimulating, TxSimulationOk, TxSimulationFailed, TxSimulationRetry,
	TxSubmitted, TxSubmitFailed, TxMined, TxReverted, TxUnconfirmed, TxDropped,
}

// TxEvent is the payload published for every transaction lifecycle event.
type TxEvent struct {
	Type        EventType
	Action      string
	Contract    string
	Method      string
	Value       string
	Fingerprint string
	TxHash      string
	Reason      string
}

// EventBus fans events out to subscriber channels. A subscriber whose channel is full is
// dropped, so subscribers must drain promptly or use a buffered channel.
type EventBus struct {
	subscribers map[EventType][]chan interface{}
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]chan interface{}),
	}
}

func (eb *EventBus) Subscribe(eventType EventType, ch chan interface{}) {
	if ch == nil {
		panic("channel == nil")
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
}

func (eb *EventBus) Publish(eventType EventType, data interface{}) {
	eb.mu.RLock()
	subscribers, ok := eb.subscribers[eventType]
	if !ok {
		eb.mu.RUnlock()
		return
	}
	originLen := len(subscribers)
	removeIndexes := make(map[int]bool)
	for i := 0; i < originLen; i++ {
		select {
		case subscribers[i] <- data:
		default:
			removeIndexes[i] = true
		}
	}
	eb.mu.RUnlock()

	if len(removeIndexes) > 0 {
		eb.mu.Lock()
		// a concurrent (un)subscribe shifted the indexes, keep everyone this round
		if originLen == len(eb.subscribers[eventType]) {
			var kept []chan interface{}
			for index, ch := range eb.subscribers[eventType] {
				if !removeIndexes[index] {
					kept = append(kept, ch)
				}
			}
			eb.subscribers[eventType] = kept
		}
		eb.mu.Unlock()
	}
}

func (eb *EventBus) Unsubscribe(eventType EventType, ch chan interface{}) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subscribers, ok := eb.subscribers[eventType]
	if !ok {
		return
	}
	for i, subscriber := range subscribers {
		if subscriber == ch {
			eb.subscribers[eventType] = append(subscribers[:i:i], subscribers[i+1:]...)
			break
		}
	}
	if len(eb.subscribers[eventType]) == 0 {
		delete(eb.subscribers, eventType)
	}
}

func (eb *EventBus) SubscriberCount(eventType EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers[eventType])
}
