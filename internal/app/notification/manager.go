// Package notification provides the notification manager for broadcasting playback events.
package notification

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/segue/internal/app/playback"
)

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 64

// Notification is a playback event stamped with a broadcast sequence number.
type Notification struct {
	SequenceNo uint64
	Event      playback.Event
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(Notification) error
}

// Subscription is a subscriber's buffered view of the broadcast.
type Subscription struct {
	id      string
	ch      chan Notification
	dropped atomic.Uint64
	once    sync.Once
}

// ID returns the subscription ID.
func (s *Subscription) ID() string {
	return s.id
}

// C returns the notification channel. It is closed on Unsubscribe.
func (s *Subscription) C() <-chan Notification {
	return s.ch
}

// Dropped returns how many notifications were discarded because the buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Manager manages notification subscriptions and broadcasting.
// It implements playback.Sink; Publish never blocks.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	sequenceNo    atomic.Uint64
	bufferSize    int
}

// NewManager creates a new notification manager.
func NewManager(bufferSize int) *Manager {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Manager{
		subscriptions: make(map[string]*Subscription),
		bufferSize:    bufferSize,
	}
}

// Subscribe adds a new subscription.
func (m *Manager) Subscribe() *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := &Subscription{
		id: uuid.New().String(),
		ch: make(chan Notification, m.bufferSize),
	}
	m.subscriptions[sub.id] = sub
	zlog.Debug().Msgf("notification: subscribed id=%s", sub.id)
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub, ok := m.subscriptions[subscriptionID]; ok {
		delete(m.subscriptions, subscriptionID)
		sub.close()
		zlog.Debug().Msgf("notification: unsubscribed id=%s dropped=%d", subscriptionID, sub.Dropped())
	}
}

// Publish stamps the event with the next sequence number and queues it for every subscriber.
// Subscribers whose buffer is full miss the event.
func (m *Manager) Publish(e playback.Event) {
	n := Notification{
		SequenceNo: m.sequenceNo.Add(1),
		Event:      e,
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscriptions {
		select {
		case sub.ch <- n:
		default:
			// Buffer full, drop notification
			sub.dropped.Add(1)
		}
	}
}

// Forward sends the subscription's notifications to stream until ctx is done,
// the subscription is closed or a send fails.
func (m *Manager) Forward(ctx context.Context, sub *Subscription, stream Stream) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := stream.Send(n); err != nil {
				return err
			}
		}
	}
}

// SequenceNo returns the sequence number of the last published notification.
func (m *Manager) SequenceNo() uint64 {
	return m.sequenceNo.Load()
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sub := range m.subscriptions {
		sub.close()
	}
	m.subscriptions = make(map[string]*Subscription)
}

var _ playback.Sink = (*Manager)(nil)
