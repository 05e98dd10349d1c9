package notify

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrPermissionDenied = errors.New("notification permission denied")

// Platform displays notifications. Show under an existing tag replaces it.
type Platform interface {
	Show(n Notification) error
	Close(tag string) error
}

// Error wraps a platform failure. It is logged, never returned to the tick loop.
type Error struct {
	Op  string
	Tag string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("notification %s %s: %v", e.Op, e.Tag, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Change is published whenever a tag is shown or closed. A nil Notification
// means the tag was closed.
type Change struct {
	Tag          string        `json:"tag"`
	Notification *Notification `json:"notification"`
}

// Center is the in-process notification platform. Browsers mirror it over
// the event stream and render entries with the Web Notification API.
type Center struct {
	mu      sync.Mutex
	visible map[string]Notification
	denied  bool
	subs    map[int]chan Change
	nextSub int
}

func NewCenter() *Center {
	return &Center{
		visible: make(map[string]Notification),
		subs:    make(map[int]chan Change),
	}
}

func (c *Center) Show(n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.denied {
		return ErrPermissionDenied
	}
	c.visible[n.Tag] = n
	shown := n
	c.publishLocked(Change{Tag: n.Tag, Notification: &shown})
	return nil
}

func (c *Center) Close(tag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.visible[tag]; !ok {
		return nil
	}
	delete(c.visible, tag)
	c.publishLocked(Change{Tag: tag})
	return nil
}

// SetPermission mirrors the browser permission. Revoking it hides everything.
func (c *Center) SetPermission(granted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.denied = !granted
	if c.denied {
		for tag := range c.visible {
			delete(c.visible, tag)
			c.publishLocked(Change{Tag: tag})
		}
	}
}

func (c *Center) Get(tag string) (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.visible[tag]
	return n, ok
}

func (c *Center) Visible() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]Notification, 0, len(c.visible))
	for _, n := range c.visible {
		items = append(items, n)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Tag < items[j].Tag })
	return items
}

// Subscribe registers an observer. Slow observers miss changes rather than
// block the platform.
func (c *Center) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Change, buffer)
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

func (c *Center) publishLocked(change Change) {
	for _, ch := range c.subs {
		select {
		case ch <- change:
		default:
		}
	}
}
