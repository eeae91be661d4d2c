package vault

import (
	"fmt"
	"sync"
)

// Notifier receives short human-readable status messages. Delivery is
// best-effort: implementations must not block the caller.
type Notifier interface {
	Notify(msg string)
}

// NopNotifier discards every message.
type NopNotifier struct{}

func (NopNotifier) Notify(string) {}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }

// Broadcaster fans messages out to any number of listeners. A listener whose
// buffer is full misses the message.
type Broadcaster struct {
	mu        sync.Mutex
	listeners map[chan string]struct{}
	closed    bool
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[chan string]struct{})}
}

// Notify delivers msg to every listener with buffer space.
func (b *Broadcaster) Notify(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.listeners {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Subscribe registers a listener with the given buffer size (minimum 1).
// cancel unregisters it and closes the channel.
func (b *Broadcaster) Subscribe(buffer int) (<-chan string, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan string, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.listeners[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.listeners[ch]; ok {
				delete(b.listeners, ch)
				close(ch)
			}
		})
	}
}

// Close closes every listener channel. Later Notify calls are dropped.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.listeners {
		delete(b.listeners, ch)
		close(ch)
	}
}

func foundMessage(n int) string {
	return fmt.Sprintf("Found %d records.", n)
}

func cycleCompleteMessage(r *CycleResult) string {
	return "Cycle complete: " + r.Summary()
}

func errorMessage(err error) string {
	if KindOf(err) == KindConnection {
		return "Connection error: " + err.Error()
	}
	return "Error: " + err.Error()
}
