package engine

import (
	"sync"
	"time"
)

type EventType int

type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

type Handler func(Event)

// EventBus delivers events on the emitting goroutine, usually inside a tick.
// Handlers registered for a type run before catch-all handlers, each group in
// registration order. Handlers must not call back into the engine's locked API.
type EventBus struct {
	mu     sync.RWMutex
	byType map[EventType][]Handler
	all    []Handler
	now    func() time.Time
}

// NewEventBus stamps events with now when they carry no timestamp.
func NewEventBus(now func() time.Time) *EventBus {
	if now == nil {
		now = time.Now
	}
	return &EventBus{byType: make(map[EventType][]Handler), now: now}
}

// Subscribe registers fn for types, or for every event when types is empty.
// Subscriptions last as long as the bus.
func (eb *EventBus) Subscribe(fn Handler, types ...EventType) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if len(types) == 0 {
		eb.all = append(eb.all, fn)
		return
	}
	for _, t := range types {
		eb.byType[t] = append(eb.byType[t], fn)
	}
}

func (eb *EventBus) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = eb.now()
	}
	eb.mu.RLock()
	typed, all := eb.byType[evt.Type], eb.all
	eb.mu.RUnlock()

	for _, fn := range typed {
		fn(evt)
	}
	for _, fn := range all {
		fn(evt)
	}
}
