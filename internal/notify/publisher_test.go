package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panickingSub struct{}

func (panickingSub) ID() string       { return "panic" }
func (panickingSub) Send(Event) error { panic("socket exploded") }

func TestPublisherRoutesByUser(t *testing.T) {
	b := NewBroker()
	sub := &recordingSub{id: "c1"}
	b.Register(GroupKey("u1"), sub)

	NewPublisher(b).Publish("u1", Completed("doc-9", "a.pdf", "s", []string{"x"}, time.Now()))

	got := sub.received()
	require.Len(t, got, 1)
	assert.Equal(t, EventCompleted, got[0].Name)
	assert.Equal(t, "doc-9", got[0].Data.DocumentID)
}

func TestPublisherNeverPanics(t *testing.T) {
	b := NewBroker()
	b.Register(GroupKey("u1"), panickingSub{})

	assert.NotPanics(t, func() {
		NewPublisher(b).Publish("u1", Started("d", "f", time.Now()))
	})
}

func TestPublisherToleratesMissingBroker(t *testing.T) {
	var p *Publisher
	assert.NotPanics(t, func() { p.Publish("u1", Started("d", "f", time.Now())) })
	assert.NotPanics(t, func() { (&Publisher{}).Publish("u1", Started("d", "f", time.Now())) })
}

func TestPublisherSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := NewBroker()
	fast := &recordingSub{id: "fast"}
	b.Register(GroupKey("u1"), &recordingSub{id: "slow", err: ErrSlowSubscriber})
	b.Register(GroupKey("u1"), fast)

	NewPublisher(b).Publish("u1", Failed("d", "f", "boom", time.Now()))
	assert.Len(t, fast.received(), 1)
}
