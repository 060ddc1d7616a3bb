// Package publisher bridges dispatcher events onto NATS subjects.
package publisher

import (
	"context"

	"github.com/sendora/sendora/internal/dispatcher"
)

// Subjects the dispatcher events are published under.
const (
	SubjectStatusChanged = "delivery.status_changed"
	SubjectBatchDone     = "delivery.batch_done"
)

// JetStreamClient is the nats client surface we need; an interface to
// allow mocking.
type JetStreamClient interface {
	Publish(ctx context.Context, subject string, data any) error
}

// NATSPublisher implements dispatcher.EventPublisher.
type NATSPublisher struct {
	js JetStreamClient
}

// NewNATSPublisher creates a new publisher.
func NewNATSPublisher(client JetStreamClient) *NATSPublisher {
	return &NATSPublisher{js: client}
}

// PublishDeliveryResult publishes a per-recipient status transition.
func (p *NATSPublisher) PublishDeliveryResult(ctx context.Context, event dispatcher.StatusChangeEvent) error {
	return p.js.Publish(ctx, SubjectStatusChanged, event)
}

// PublishBatchDone publishes the final batch summary.
func (p *NATSPublisher) PublishBatchDone(ctx context.Context, event dispatcher.BatchDoneEvent) error {
	return p.js.Publish(ctx, SubjectBatchDone, event)
}
