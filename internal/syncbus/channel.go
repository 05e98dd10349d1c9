package syncbus

import (
	"log"
	"sync"
	"sync/atomic"
)

const DefaultBuffer = 32

// Channel connects one background context with any number of foreground
// contexts. Delivery is at-most-once: sends never block and overflow is
// dropped.
type Channel struct {
	background chan SyncMessage

	mu      sync.Mutex
	clients map[int]chan ClientMessage
	nextID  int

	dropped atomic.Uint64
}

func New(buffer int) *Channel {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Channel{
		background: make(chan SyncMessage, buffer),
		clients:    make(map[int]chan ClientMessage),
	}
}

// Send posts msg to the background context.
func (c *Channel) Send(msg SyncMessage) bool {
	select {
	case c.background <- msg:
		return true
	default:
		c.dropped.Add(1)
		log.Printf("syncbus: dropped %s message for generation %d", msg.Kind, msg.Payload.Generation)
		return false
	}
}

// Background is the background context's inbox.
func (c *Channel) Background() <-chan SyncMessage {
	return c.background
}

// Connect registers a foreground context and returns its inbox.
func (c *Channel) Connect(buffer int) (<-chan ClientMessage, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan ClientMessage, buffer)
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.clients[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.clients, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// Broadcast posts msg to every connected foreground and reports how many
// accepted it.
func (c *Channel) Broadcast(msg ClientMessage) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	delivered := 0
	for _, ch := range c.clients {
		select {
		case ch <- msg:
			delivered++
		default:
			c.dropped.Add(1)
			log.Printf("syncbus: dropped %s message for a slow client", msg.Kind)
		}
	}
	return delivered
}

func (c *Channel) Clients() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

func (c *Channel) Dropped() uint64 {
	return c.dropped.Load()
}
