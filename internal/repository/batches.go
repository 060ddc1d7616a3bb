// Package repository persists finished batch summaries and their
// per-recipient outcomes. SMTP credentials are never stored.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sendora/sendora/internal/models"
)

// Batch is one finished send batch.
type Batch struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TemplateID string
	SMTPHost   string
	SMTPEmail  string
	Total      int
	Sent       int
	Failed     int
	Cancelled  int
	Aborted    bool
	CreatedAt  time.Time
	FinishedAt time.Time

	Results []BatchResult `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`
}

// BatchResult is the terminal outcome for one recipient row.
type BatchResult struct {
	ID        uint      `gorm:"primaryKey"`
	BatchID   uuid.UUID `gorm:"type:uuid;index"`
	RowIndex  int
	Recipient string
	Status    string
	Attempts  int
	ErrorKind string
	Error     string
	SentAt    *time.Time
}

// ErrBatchNotFound is returned when no batch with the given id exists.
var ErrBatchNotFound = errors.New("batch not found")

// BatchesRepository handles batch history operations.
type BatchesRepository struct {
	db *gorm.DB
}

// NewBatchesRepository creates a new batches repository.
func NewBatchesRepository(db *gorm.DB) *BatchesRepository {
	return &BatchesRepository{db: db}
}

// Migrate creates or updates the history tables.
func (r *BatchesRepository) Migrate() error {
	return r.db.AutoMigrate(&Batch{}, &BatchResult{})
}

// Save stores a finished batch with its per-recipient results in one
// transaction.
func (r *BatchesRepository) Save(ctx context.Context, batch *Batch, results []models.DeliveryResult) error {
	batch.Results = make([]BatchResult, 0, len(results))
	for _, res := range results {
		batch.Results = append(batch.Results, BatchResult{
			BatchID:   batch.ID,
			RowIndex:  res.RowIndex,
			Recipient: res.Recipient,
			Status:    string(res.Status),
			Attempts:  res.Attempts,
			ErrorKind: string(res.ErrorKind),
			Error:     res.Error,
			SentAt:    res.SentAt,
		})
	}

	if err := r.db.WithContext(ctx).Create(batch).Error; err != nil {
		return fmt.Errorf("save batch: %w", err)
	}
	return nil
}

// Get returns one batch with its results.
func (r *BatchesRepository) Get(ctx context.Context, id uuid.UUID) (*Batch, error) {
	var batch Batch
	err := r.db.WithContext(ctx).
		Preload("Results", func(db *gorm.DB) *gorm.DB {
			return db.Order("row_index")
		}).
		First(&batch, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return &batch, nil
}

// List returns the most recent batches without their results.
func (r *BatchesRepository) List(ctx context.Context, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 50
	}

	var batches []Batch
	err := r.db.WithContext(ctx).
		Order("finished_at DESC").
		Limit(limit).
		Find(&batches).Error
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}

// Delete removes a batch and its results.
func (r *BatchesRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("batch_id = ?", id).Delete(&BatchResult{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Batch{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrBatchNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	return nil
}
