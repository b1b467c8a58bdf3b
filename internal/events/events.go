// Package events fans attendance changes out to live listeners and the message broker.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Event types
const (
	TypeCheckIn  = "check_in"
	TypeCheckOut = "check_out"
	TypeCreated  = "created"
	TypeUpdated  = "updated"
	TypeDeleted  = "deleted"
)

// Sources of an attendance change
const (
	SourceLive   = "live"
	SourceManual = "manual"
)

// Event describes one attendance change.
type Event struct {
	Type       string               `json:"type"`
	Source     string               `json:"source"`
	DeviceID   string               `json:"deviceId,omitempty"`
	Attendance *database.Attendance `json:"attendance,omitempty"`
	At         time.Time            `json:"at"`
}

// Publisher delivers attendance events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Noop discards every event.
type Noop struct{}

// Publish does nothing.
func (Noop) Publish(context.Context, Event) error { return nil }

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

// Publish delivers the event to all publishers, even when one fails.
func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Broadcaster provides listener management and event broadcasting for in-process subscribers.
type Broadcaster struct {
	listeners []chan Event
	closed    bool
	mu        sync.RWMutex
}

// NewBroadcaster creates a broadcaster without listeners.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// AddListener adds an event listener. The channel is closed when the
// listener is removed or the broadcaster is closed.
func (b *Broadcaster) AddListener() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *Broadcaster) RemoveListener(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish sends an event to all listeners.
func (b *Broadcaster) Publish(_ context.Context, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- e:
		default:
			// Listener buffer full, skip.
		}
	}
	return nil
}

// ListenerCount returns the number of registered listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Close closes every listener channel; later listeners get a closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, listener := range b.listeners {
		close(listener)
	}
	b.listeners = nil
}
