package stream

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventState        = "state"
	EventTick         = "tick"
	EventPhaseExpired = "phaseExpired"
	EventTimeUp       = "timeUp"
	EventNotification = "notification"
	EventFocusWindow  = "focusWindow"
	EventNotice       = "notice"
)

// Event is one message for UI subscribers.
type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data"`
	At   time.Time `json:"at"`
}

// Hub fans events out to UI subscribers. Slow subscribers lose events
// instead of stalling the publisher.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]chan Event
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]chan Event)}
}

func (h *Hub) Subscribe(buffer int) (string, <-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	id := uuid.NewString()
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return id, ch, cancel
}

func (h *Hub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			log.Printf("stream: subscriber %s is behind, dropped %s", id, event.Type)
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
