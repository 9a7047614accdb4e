// Package events fans device presence changes out to live subscribers.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"stokmanager/internal/logger"
)

const (
	SourceHeartbeat  = "heartbeat"
	SourceScan       = "scan"
	SourceReconciler = "reconciler"
)

// StatusChange is published whenever a device's presence status flips.
type StatusChange struct {
	DeviceID string    `json:"deviceId"`
	From     string    `json:"from,omitempty"`
	To       string    `json:"to"`
	LastSeen *int64    `json:"lastSeen,omitempty"`
	At       time.Time `json:"at"`
	Source   string    `json:"source"`
}

// Bus is an in-process publish/subscribe hub. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan StatusChange
	nextID  int
	dropped func()
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan StatusChange)}
}

// OnDrop registers a callback invoked for every event a subscriber missed.
func (b *Bus) OnDrop(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropped = fn
}

// Subscribe returns a channel of events and a function that cancels the
// subscription and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan StatusChange, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan StatusChange, buffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber that has room for it. A nil bus
// discards events.
func (b *Bus) Publish(ev StatusChange) {
	if b == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			logger.Debug("Dropping status event for slow subscriber",
				zap.Int("subscriber", id),
				zap.String("device_id", ev.DeviceID),
			)
			if b.dropped != nil {
				b.dropped()
			}
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
