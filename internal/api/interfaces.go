package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/sendora/sendora/internal/dispatcher"
	"github.com/sendora/sendora/internal/models"
	"github.com/sendora/sendora/internal/pipeline"
	"github.com/sendora/sendora/internal/repository"
)

// PipelineService defines the interface for running send batches.
type PipelineService interface {
	Run(ctx context.Context, session *pipeline.BatchSession) (*dispatcher.Ledger, error)
}

// TemplateCatalog defines the interface for certificate template lookup.
type TemplateCatalog interface {
	Get(id string) (*models.CertificateTemplate, error)
	List() []*models.CertificateTemplate
}

// BatchHistory defines the interface for persisted batch summaries.
type BatchHistory interface {
	Save(ctx context.Context, batch *repository.Batch, results []models.DeliveryResult) error
	Get(ctx context.Context, id uuid.UUID) (*repository.Batch, error)
	List(ctx context.Context, limit int) ([]repository.Batch, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// HubBroadcaster defines the interface for WebSocket broadcasting.
type HubBroadcaster interface {
	Broadcast(message interface{})
}
