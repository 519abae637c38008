package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/camera-control/ccc/internal/config"
)

// Event is one telemetry event with SSE formatting.
type Event struct {
	ID   int64                  `json:"id,omitempty"`
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// client is one SSE subscriber connection.
type client struct {
	id     string
	events chan Event
	cancel context.CancelFunc
}

// Hub distributes telemetry events over SSE.
//
// A single mutex guards the client set and the replay buffer; event
// delivery happens over per-client channels so a slow consumer never
// blocks Publish.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	buffer  []Event
	nextID  int64

	capacity  int
	heartbeat time.Duration

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHub creates a telemetry hub sized from the timing configuration.
func NewHub(timing *config.TimingConfig) *Hub {
	h := &Hub{
		clients:   make(map[string]*client),
		buffer:    make([]Event, 0, timing.EventBufferSize),
		nextID:    1,
		capacity:  timing.EventBufferSize,
		heartbeat: timing.HeartbeatInterval,
		done:      make(chan struct{}),
	}

	h.wg.Add(1)
	go h.heartbeatLoop()

	return h
}

// Publish assigns the event a monotonic ID, buffers it for replay and
// fans it out to every connected client. Events to clients that have
// fallen behind are dropped rather than blocking the publisher.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	event.ID = h.nextID
	h.nextID++

	h.buffer = append(h.buffer, event)
	if len(h.buffer) > h.capacity {
		h.buffer = h.buffer[1:]
	}

	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		select {
		case c.events <- event:
		default:
		}
	}
}

// Subscribe serves one SSE connection. It blocks until the request
// context is cancelled or the hub stops. When the request carries a
// Last-Event-ID header, buffered events after that ID are replayed
// before live delivery begins.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	lastID := int64(0)
	if raw := r.Header.Get("Last-Event-ID"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			lastID = id
		}
	}

	clientCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := &client{
		id:     fmt.Sprintf("client_%d", time.Now().UnixNano()),
		events: make(chan Event, 2*h.capacity),
		cancel: cancel,
	}

	// Register before replay so no event published during replay is lost;
	// duplicates are impossible because replayed IDs precede live ones.
	h.mu.Lock()
	replay := h.eventsAfterLocked(lastID)
	h.clients[c.id] = c
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		h.mu.Unlock()
	}()

	for _, event := range replay {
		if err := writeEvent(w, flusher, event); err != nil {
			return err
		}
		lastID = event.ID
	}

	for {
		select {
		case <-clientCtx.Done():
			return nil
		case <-h.done:
			return nil
		case event := <-c.events:
			if event.ID <= lastID {
				continue
			}
			if err := writeEvent(w, flusher, event); err != nil {
				return err
			}
			lastID = event.ID
		}
	}
}

// Stop shuts the hub down and disconnects all clients.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		for _, c := range h.clients {
			c.cancel()
		}
		h.mu.Unlock()

		h.wg.Wait()
	})
}

// eventsAfterLocked returns buffered events with ID > lastID. Caller
// holds h.mu.
func (h *Hub) eventsAfterLocked(lastID int64) []Event {
	if lastID == 0 {
		return nil
	}
	var out []Event
	for _, event := range h.buffer {
		if event.ID > lastID {
			out = append(out, event)
		}
	}
	return out
}

// heartbeatLoop emits periodic heartbeat events so proxies keep idle
// streams open and clients can detect a dead connection.
func (h *Hub) heartbeatLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.Publish(Event{
				Type: "heartbeat",
				Data: map[string]interface{}{
					"ts": time.Now().UTC().Format(time.RFC3339),
				},
			})
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", event.ID, event.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	flusher.Flush()
	return nil
}
