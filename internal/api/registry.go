package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sendora/sendora/internal/dispatcher"
	"github.com/sendora/sendora/internal/logger"
	"github.com/sendora/sendora/internal/pipeline"
	"github.com/sendora/sendora/internal/repository"
)

// Batch states as reported by the API.
const (
	BatchStateRunning   = "RUNNING"
	BatchStateCompleted = "COMPLETED"
	BatchStateFailed    = "FAILED"
	BatchStateCancelled = "CANCELLED"
)

// BatchRun is the in-memory record of one batch accepted by the API.
type BatchRun struct {
	ID         uuid.UUID
	State      string
	Ledger     *dispatcher.Ledger
	Err        error
	StartedAt  time.Time
	FinishedAt *time.Time

	cancel    context.CancelFunc
	cancelled bool
}

// BatchRegistry owns the in-flight batch runs. Finished runs stay
// queryable until the process exits; durable history lives in the
// repository.
type BatchRegistry struct {
	mu      sync.RWMutex
	runs    map[uuid.UUID]*BatchRun
	pipe    PipelineService
	history BatchHistory
	log     *logger.Logger
}

// NewBatchRegistry creates a registry. history may be nil when persistence
// is disabled.
func NewBatchRegistry(pipe PipelineService, history BatchHistory, log *logger.Logger) *BatchRegistry {
	return &BatchRegistry{
		runs:    make(map[uuid.UUID]*BatchRun),
		pipe:    pipe,
		history: history,
		log:     log,
	}
}

// Start accepts a session and runs it in the background. The returned run
// is already registered under session.ID.
func (r *BatchRegistry) Start(session *pipeline.BatchSession) *BatchRun {
	ctx, cancel := context.WithCancel(context.Background())

	run := &BatchRun{
		ID:        session.ID,
		State:     BatchStateRunning,
		StartedAt: time.Now(),
		cancel:    cancel,
	}

	r.mu.Lock()
	r.runs[session.ID] = run
	r.mu.Unlock()

	go r.execute(ctx, session, run)

	return run
}

func (r *BatchRegistry) execute(ctx context.Context, session *pipeline.BatchSession, run *BatchRun) {
	ledger, err := r.pipe.Run(ctx, session)

	now := time.Now()

	r.mu.Lock()
	run.Ledger = ledger
	run.Err = err
	run.FinishedAt = &now
	switch {
	case run.cancelled:
		run.State = BatchStateCancelled
	case err != nil:
		run.State = BatchStateFailed
	default:
		run.State = BatchStateCompleted
	}
	cancelled := run.cancelled
	r.mu.Unlock()

	if err != nil {
		r.log.Error().Err(err).Str("batch_id", session.ID.String()).Msg("batch aborted")
		return
	}

	if r.history != nil && ledger != nil {
		r.persist(session, ledger, cancelled)
	}
}

func (r *BatchRegistry) persist(session *pipeline.BatchSession, ledger *dispatcher.Ledger, cancelled bool) {
	stats := ledger.Stats()
	run, _ := r.Get(session.ID)

	batch := &repository.Batch{
		ID:         session.ID,
		TemplateID: session.Certificate.TemplateID,
		SMTPHost:   session.Credentials.Host,
		SMTPEmail:  session.Credentials.Email,
		Total:      stats.Total,
		Sent:       stats.Sent,
		Failed:     stats.Failed,
		Cancelled:  stats.Cancelled,
		Aborted:    cancelled,
		CreatedAt:  run.StartedAt,
		FinishedAt: *run.FinishedAt,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.history.Save(ctx, batch, ledger.Snapshot()); err != nil {
		r.log.Error().Err(err).Str("batch_id", session.ID.String()).Msg("persist batch history failed")
	}
}

// Get returns a run by id.
func (r *BatchRegistry) Get(id uuid.UUID) (*BatchRun, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	return run, ok
}

// Cancel requests cooperative cancellation of a running batch. It reports
// whether the batch existed and was still running.
func (r *BatchRegistry) Cancel(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok || run.State != BatchStateRunning {
		return false
	}

	run.cancelled = true
	run.cancel()
	return true
}

// Status returns the API view of a run.
func (r *BatchRegistry) Status(id uuid.UUID) (BatchStatusResponse, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return BatchStatusResponse{}, false
	}

	resp := BatchStatusResponse{
		BatchID:    run.ID.String(),
		State:      run.State,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
	if run.Err != nil {
		resp.Error = run.Err.Error()
	}
	if run.Ledger != nil {
		resp.Stats = run.Ledger.Stats()
		resp.Results = run.Ledger.Snapshot()
	}
	return resp, true
}
