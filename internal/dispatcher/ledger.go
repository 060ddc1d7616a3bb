package dispatcher

import (
	"sort"
	"sync"
	"time"

	"github.com/sendora/sendora/internal/models"
)

// Ledger is the append-only per-recipient outcome record for one batch,
// keyed by row index. Each row index is written by exactly one in-flight
// task at a time; the read view is always row-index ordered regardless of
// completion order.
type Ledger struct {
	mu      sync.RWMutex
	results map[int]*models.DeliveryResult
}

// Stats aggregates ledger entries per status.
type Stats struct {
	Total     int `json:"total"`
	Queued    int `json:"queued"`
	Sending   int `json:"sending"`
	Retrying  int `json:"retrying"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// validTransitions guards the per-task state machine.
var validTransitions = map[models.TaskStatus][]models.TaskStatus{
	models.TaskStatusQueued:   {models.TaskStatusSending, models.TaskStatusFailed, models.TaskStatusCancelled},
	models.TaskStatusSending:  {models.TaskStatusSent, models.TaskStatusFailed, models.TaskStatusRetrying},
	models.TaskStatusRetrying: {models.TaskStatusSending, models.TaskStatusFailed},
	// terminal states
	models.TaskStatusSent:      {},
	models.TaskStatusFailed:    {},
	models.TaskStatusCancelled: {},
}

// NewLedger creates a ledger with one QUEUED entry per task.
func NewLedger(tasks []models.DeliveryTask) *Ledger {
	l := &Ledger{results: make(map[int]*models.DeliveryResult, len(tasks))}
	now := time.Now()
	for _, t := range tasks {
		l.results[t.RowIndex] = &models.DeliveryResult{
			RowIndex:  t.RowIndex,
			Recipient: t.Message.To,
			Status:    models.TaskStatusQueued,
			Warnings:  t.Warnings,
			UpdatedAt: now,
		}
	}
	return l
}

// transition applies a status change, returning the previous status and
// whether the transition was legal. Illegal transitions are ignored so a
// terminal entry can never regress.
func (l *Ledger) transition(rowIndex int, to models.TaskStatus, mutate func(*models.DeliveryResult)) (models.TaskStatus, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.results[rowIndex]
	if !ok {
		return "", false
	}

	previous := r.Status
	if !transitionAllowed(previous, to) {
		return previous, false
	}

	r.Status = to
	r.UpdatedAt = time.Now()
	if mutate != nil {
		mutate(r)
	}
	return previous, true
}

func transitionAllowed(from, to models.TaskStatus) bool {
	for _, v := range validTransitions[from] {
		if v == to {
			return true
		}
	}
	return false
}

// MarkSending records a dispatch attempt.
func (l *Ledger) MarkSending(rowIndex, attempt int) (models.TaskStatus, bool) {
	return l.transition(rowIndex, models.TaskStatusSending, func(r *models.DeliveryResult) {
		r.Attempts = attempt
	})
}

// MarkRetrying records a transient failure awaiting its next attempt.
func (l *Ledger) MarkRetrying(rowIndex int, err error) (models.TaskStatus, bool) {
	return l.transition(rowIndex, models.TaskStatusRetrying, func(r *models.DeliveryResult) {
		r.ErrorKind = models.KindOf(err)
		r.Error = err.Error()
	})
}

// MarkSent records a successful delivery.
func (l *Ledger) MarkSent(rowIndex int) (models.TaskStatus, bool) {
	return l.transition(rowIndex, models.TaskStatusSent, func(r *models.DeliveryResult) {
		now := time.Now()
		r.SentAt = &now
		r.Error = ""
		r.ErrorKind = ""
	})
}

// MarkFailed records a terminal failure.
func (l *Ledger) MarkFailed(rowIndex int, err error) (models.TaskStatus, bool) {
	return l.transition(rowIndex, models.TaskStatusFailed, func(r *models.DeliveryResult) {
		r.ErrorKind = models.KindOf(err)
		r.Error = err.Error()
	})
}

// MarkCancelled records a task that was still queued when the batch was
// cancelled.
func (l *Ledger) MarkCancelled(rowIndex int) (models.TaskStatus, bool) {
	return l.transition(rowIndex, models.TaskStatusCancelled, func(r *models.DeliveryResult) {
		r.ErrorKind = models.KindCancelled
	})
}

// Get returns a copy of one entry.
func (l *Ledger) Get(rowIndex int) (models.DeliveryResult, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.results[rowIndex]
	if !ok {
		return models.DeliveryResult{}, false
	}
	return *r, true
}

// Snapshot returns all entries in row-index order.
func (l *Ledger) Snapshot() []models.DeliveryResult {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.DeliveryResult, 0, len(l.results))
	for _, r := range l.results {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowIndex < out[j].RowIndex })
	return out
}

// Stats returns aggregate counts per status.
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{Total: len(l.results)}
	for _, r := range l.results {
		switch r.Status {
		case models.TaskStatusQueued:
			s.Queued++
		case models.TaskStatusSending:
			s.Sending++
		case models.TaskStatusRetrying:
			s.Retrying++
		case models.TaskStatusSent:
			s.Sent++
		case models.TaskStatusFailed:
			s.Failed++
		case models.TaskStatusCancelled:
			s.Cancelled++
		}
	}
	return s
}

// Finalized reports whether every entry is in a terminal status.
func (l *Ledger) Finalized() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, r := range l.results {
		if !r.Status.Terminal() {
			return false
		}
	}
	return true
}
