package www

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"fleetnav/engine"
)

const sseKeepalive = 30 * time.Second

type streamEvent struct {
	name    string
	robotID string
	data    []byte
}

// streamClient is one /events connection. Empty filters match everything.
type streamClient struct {
	ch      chan streamEvent
	types   map[string]bool
	robotID string
}

func (c *streamClient) wants(evt streamEvent) bool {
	if len(c.types) > 0 && !c.types[evt.name] {
		return false
	}
	if c.robotID != "" && evt.robotID != c.robotID {
		return false
	}
	return true
}

// EventHub streams engine events to SSE clients. A client may narrow its
// stream with ?types=robot_moved,robot_arrived and ?robot=R1.
type EventHub struct {
	mu       sync.RWMutex
	clients  map[*streamClient]struct{}
	events   chan streamEvent
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:  make(map[*streamClient]struct{}),
		events:   make(chan streamEvent, 256),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (h *EventHub) Start() {
	go h.run()
}

func (h *EventHub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
	<-h.done
}

func (h *EventHub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.events:
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(evt) {
					continue
				}
				select {
				case c.ch <- evt:
				default:
					// slow client, drop
				}
			}
			h.mu.RUnlock()
		}
	}
}

// publish queues an engine event. It never blocks; the engine calls it from
// inside a tick.
func (h *EventHub) publish(evt engine.Event) {
	data, err := json.Marshal(evt.Payload)
	if err != nil {
		log.Printf("sse: encode %s: %v", evt.Type, err)
		return
	}
	select {
	case h.events <- streamEvent{name: evt.Type.String(), robotID: evt.RobotID(), data: data}:
	default:
	}
}

// SetupEngineListeners forwards every engine event to the hub.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) {
	eng.Events.Subscribe(h.publish)
}

// subscribe registers a client using the request's filters. Unknown event
// type names are rejected.
func (h *EventHub) subscribe(r *http.Request) (*streamClient, error) {
	c := &streamClient{ch: make(chan streamEvent, 64), robotID: r.URL.Query().Get("robot")}
	if raw := r.URL.Query().Get("types"); raw != "" {
		c.types = make(map[string]bool)
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if _, ok := engine.ParseEventType(name); !ok {
				return nil, fmt.Errorf("unknown event type %q", name)
			}
			c.types[name] = true
		}
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c, nil
}

func (h *EventHub) unsubscribe(c *streamClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SSEHandler serves GET /events.
func (h *EventHub) SSEHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	c, err := h.subscribe(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer h.unsubscribe(c)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepalive)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case evt := <-c.ch:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.name, evt.data); err != nil {
				log.Printf("sse: write error: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}
