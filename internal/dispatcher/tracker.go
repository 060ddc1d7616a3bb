package dispatcher

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sendora/sendora/internal/logger"
	"github.com/sendora/sendora/internal/models"
)

// Broadcaster pushes events to connected wizard clients. Implemented by
// the web hub; nil disables broadcasting.
type Broadcaster interface {
	Broadcast(event any)
}

// EventPublisher publishes delivery events to external consumers.
// Implemented by the NATS publisher; nil disables publishing.
type EventPublisher interface {
	PublishDeliveryResult(ctx context.Context, event StatusChangeEvent) error
	PublishBatchDone(ctx context.Context, event BatchDoneEvent) error
}

// StatusChangeEvent is emitted on every task status transition.
type StatusChangeEvent struct {
	Type           string    `json:"type"`
	BatchID        string    `json:"batch_id"`
	RowIndex       int       `json:"row_index"`
	Recipient      string    `json:"recipient"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	CurrentStatus  string    `json:"current_status"`
	Attempt        int       `json:"attempt,omitempty"`
	Error          string    `json:"error,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BatchDoneEvent is emitted when every task has reached a terminal status.
type BatchDoneEvent struct {
	Type      string    `json:"type"`
	BatchID   string    `json:"batch_id"`
	Stats     Stats     `json:"stats"`
	Cancelled bool      `json:"cancelled"`
	DoneAt    time.Time `json:"done_at"`
}

// Tracker fans task status transitions out to the web hub, the event
// publisher and the log.
type Tracker struct {
	hub Broadcaster
	pub EventPublisher
	log *logger.Logger
}

// NewTracker creates a tracker. hub and pub may be nil.
func NewTracker(hub Broadcaster, pub EventPublisher, log *logger.Logger) *Tracker {
	return &Tracker{hub: hub, pub: pub, log: log}
}

// TrackStatus reports one status transition.
func (t *Tracker) TrackStatus(ctx context.Context, batchID uuid.UUID, result models.DeliveryResult, previous models.TaskStatus) {
	event := StatusChangeEvent{
		Type:           "delivery.status_changed",
		BatchID:        batchID.String(),
		RowIndex:       result.RowIndex,
		Recipient:      result.Recipient,
		PreviousStatus: string(previous),
		CurrentStatus:  string(result.Status),
		Attempt:        result.Attempts,
		Error:          result.Error,
		UpdatedAt:      result.UpdatedAt,
	}

	if t.hub != nil {
		t.hub.Broadcast(event)
	}
	if t.pub != nil {
		if err := t.pub.PublishDeliveryResult(ctx, event); err != nil {
			t.log.Warn().Err(err).Msg("publish delivery event failed")
		}
	}

	t.log.Info().
		Str("batch_id", batchID.String()).
		Int("row", result.RowIndex).
		Str("from", string(previous)).
		Str("to", string(result.Status)).
		Int("attempt", result.Attempts).
		Msg("delivery status changed")
}

// TrackBatchDone reports batch completion.
func (t *Tracker) TrackBatchDone(ctx context.Context, batchID uuid.UUID, stats Stats, cancelled bool) {
	event := BatchDoneEvent{
		Type:      "delivery.batch_done",
		BatchID:   batchID.String(),
		Stats:     stats,
		Cancelled: cancelled,
		DoneAt:    time.Now(),
	}

	if t.hub != nil {
		t.hub.Broadcast(event)
	}
	if t.pub != nil {
		if err := t.pub.PublishBatchDone(ctx, event); err != nil {
			t.log.Warn().Err(err).Msg("publish batch done event failed")
		}
	}

	t.log.Info().
		Str("batch_id", batchID.String()).
		Int("sent", stats.Sent).
		Int("failed", stats.Failed).
		Int("cancelled", stats.Cancelled).
		Bool("batch_cancelled", cancelled).
		Msg("batch finished")
}
