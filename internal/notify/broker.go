package notify

import (
	"errors"
	"sync"
)

// ErrSlowSubscriber is returned by a Subscriber whose outbound buffer is full.
var ErrSlowSubscriber = errors.New("subscriber buffer full")

// Subscriber is one live client connection.
type Subscriber interface {
	ID() string
	Send(Event) error
}

// GroupKey is the channel key for a user's connections.
func GroupKey(userID string) string {
	return "User_" + userID
}

// Broker is an in-process registry of subscribers grouped by key. Its state
// lives for the life of the process.
type Broker struct {
	mu     sync.RWMutex
	groups map[string]map[string]Subscriber
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{groups: make(map[string]map[string]Subscriber)}
}

// Register adds sub to key. Registering the same subscriber twice is a no-op.
func (b *Broker) Register(key string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	group, ok := b.groups[key]
	if !ok {
		group = make(map[string]Subscriber)
		b.groups[key] = group
	}
	group[sub.ID()] = sub
}

// Unregister removes the subscriber from key and drops empty groups.
func (b *Broker) Unregister(key, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	group, ok := b.groups[key]
	if !ok {
		return
	}
	delete(group, subID)
	if len(group) == 0 {
		delete(b.groups, key)
	}
}

// Count returns the number of subscribers under key.
func (b *Broker) Count(key string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.groups[key])
}

// Publish sends ev to every subscriber under key. It returns how many sends
// succeeded and the errors of those that did not.
func (b *Broker) Publish(key string, ev Event) (int, []error) {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.groups[key]))
	for _, s := range b.groups[key] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	delivered := 0
	var errs []error
	for _, s := range subs {
		if err := s.Send(ev); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered++
	}
	return delivered, errs
}
