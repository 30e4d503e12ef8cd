package status

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

type Kind int

const (
	KindNone Kind = iota
	KindStatus
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindError:
		return "error"
	default:
		return "none"
	}
}

// Message is what the banner currently shows
type Message struct {
	Kind Kind
	Text string
}

// Channel holds at most one visible message. A status hides any error and
// an error hides any status; there is no history.
type Channel struct {
	mu      sync.RWMutex
	current Message

	listeners  map[int]func(Message)
	nextListen int
}

func NewChannel() *Channel {
	return &Channel{
		listeners: map[int]func(Message){},
	}
}

func (c *Channel) ShowStatus(text string) {
	c.set(Message{Kind: KindStatus, Text: text})
}

func (c *Channel) ShowError(text string) {
	c.set(Message{Kind: KindError, Text: text})
}

// Clear hides both regions
func (c *Channel) Clear() {
	c.set(Message{})
}

func (c *Channel) Current() Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Channel) Subscribe(listener func(Message)) func() {
	c.mu.Lock()
	key := c.nextListen
	c.nextListen++
	c.listeners[key] = listener
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, key)
		c.mu.Unlock()
	}
}

func (c *Channel) set(message Message) {
	c.mu.Lock()
	c.current = message
	keys := lo.Keys(c.listeners)
	sort.Ints(keys)
	listeners := make([]func(Message), 0, len(keys))
	for _, key := range keys {
		listeners = append(listeners, c.listeners[key])
	}
	c.mu.Unlock()

	for _, listener := range listeners {
		listener(message)
	}
}
