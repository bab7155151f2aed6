package notify

import (
	"errors"
	"fmt"

	"docqr-backend/internal/shared/metrics"
	"docqr-backend/internal/shared/telemetry"
)

// Publisher delivers processing events to a user's live connections on a
// best-effort basis. It never returns an error and never panics out.
type Publisher struct {
	Broker *Broker
}

// NewPublisher wraps a broker.
func NewPublisher(b *Broker) *Publisher {
	return &Publisher{Broker: b}
}

// Publish broadcasts ev to every connection of userID. Events with no live
// receiver are dropped.
func (p *Publisher) Publish(userID string, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Warn("notify.publish_panic", map[string]any{
				"event":       ev.Name,
				"document_id": ev.Data.DocumentID,
				"error":       fmt.Sprint(rec),
			})
			metrics.IncNotificationsDropped()
		}
	}()

	if p == nil || p.Broker == nil {
		return
	}
	delivered, errs := p.Broker.Publish(GroupKey(userID), ev)
	metrics.AddNotificationsSent(delivered)
	if delivered == 0 {
		metrics.IncNotificationsDropped()
	}
	if len(errs) > 0 {
		telemetry.Warn("notify.publish_failed", map[string]any{
			"event":       ev.Name,
			"document_id": ev.Data.DocumentID,
			"user_id":     userID,
			"delivered":   delivered,
			"failed":      len(errs),
			"error":       errors.Join(errs...).Error(),
		})
	}
}
