// Package dispatcher drives a batch of delivery tasks through the SMTP
// transport with bounded concurrency, rate limiting, retries and a
// per-recipient result ledger.
package dispatcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sendora/sendora/internal/logger"
	"github.com/sendora/sendora/internal/models"
	"github.com/sendora/sendora/internal/transport"
)

// Options configure one dispatcher service.
type Options struct {
	// Concurrency is the number of parallel transport workers.
	Concurrency int
	// MaxRetries is the number of retries after the first attempt for
	// transient send failures.
	MaxRetries int
	// RetryBase is the initial backoff interval between attempts.
	RetryBase time.Duration
	// RetryMaxInterval caps the exponential backoff.
	RetryMaxInterval time.Duration
}

// withDefaults fills unset options.
func (o Options) withDefaults() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 500 * time.Millisecond
	}
	if o.RetryMaxInterval <= 0 {
		o.RetryMaxInterval = 30 * time.Second
	}
	return o
}

// throttlePenalty pauses all workers after a provider throttle response.
const throttlePenalty = 5 * time.Second

// Service is the delivery orchestrator for send batches.
type Service struct {
	opts    Options
	limiter *RateLimiter
	tracker *Tracker
	log     *logger.Logger
}

// NewService creates a dispatcher service.
func NewService(opts Options, limiter *RateLimiter, tracker *Tracker, log *logger.Logger) *Service {
	if limiter == nil {
		limiter = DefaultRateLimiter()
	}
	return &Service{
		opts:    opts.withDefaults(),
		limiter: limiter,
		tracker: tracker,
		log:     log,
	}
}

// Dispatch runs the whole batch. The transport is verified first; a
// verification failure aborts the batch with a CREDENTIAL_ERROR before any
// task is attempted. Tasks are dispatched in row-index order; completions
// may land out of order, the ledger keeps the read view ordered. One
// recipient's terminal failure never halts the batch. Cancellation via ctx
// is cooperative: in-flight tasks finish or fail normally, tasks still
// queued become CANCELLED.
func (s *Service) Dispatch(ctx context.Context, batchID uuid.UUID, tasks []models.DeliveryTask, tr transport.Transport) (*Ledger, error) {
	if err := tr.Verify(ctx); err != nil {
		s.log.Error().Err(err).Str("batch_id", batchID.String()).Msg("transport verification failed")
		if models.IsKind(err, models.KindCredential) || models.IsKind(err, models.KindCancelled) {
			return nil, err
		}
		return nil, models.NewError(models.KindCredential, err)
	}

	ledger := NewLedger(tasks)

	s.log.Info().
		Str("batch_id", batchID.String()).
		Int("tasks", len(tasks)).
		Int("concurrency", s.opts.Concurrency).
		Msg("starting batch dispatch")

	// all tasks are enqueued upfront in row order so workers only ever
	// pull; the channel is the single dispatch point cancellation is
	// checked against
	queue := make(chan models.DeliveryTask, len(tasks))
	for _, t := range tasks {
		queue <- t
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < s.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				if ctx.Err() != nil {
					// no new task is dispatched after cancellation
					if prev, ok := ledger.MarkCancelled(task.RowIndex); ok {
						s.trackRow(ctx, batchID, ledger, task.RowIndex, prev)
					}
					continue
				}
				s.process(ctx, batchID, ledger, task, tr)
			}
		}()
	}
	wg.Wait()

	s.tracker.TrackBatchDone(ctx, batchID, ledger.Stats(), ctx.Err() != nil)
	return ledger, nil
}

// process drives one task through its state machine until a terminal
// status.
func (s *Service) process(ctx context.Context, batchID uuid.UUID, ledger *Ledger, task models.DeliveryTask, tr transport.Transport) {
	// tasks poisoned during rendering/composition fail without touching
	// the transport
	if task.BuildErr != nil {
		prev, _ := ledger.MarkFailed(task.RowIndex, task.BuildErr)
		s.trackRow(ctx, batchID, ledger, task.RowIndex, prev)
		return
	}

	sched := backoff.NewExponentialBackOff()
	sched.InitialInterval = s.opts.RetryBase
	sched.MaxInterval = s.opts.RetryMaxInterval
	sched.MaxElapsedTime = 0 // bounded by the attempt counter instead

	var lastErr error
	for attempt := 1; ; attempt++ {
		prev, _ := ledger.MarkSending(task.RowIndex, attempt)
		s.trackRow(ctx, batchID, ledger, task.RowIndex, prev)

		if err := s.limiter.Wait(ctx); err != nil {
			// cancelled while waiting for a send slot
			if lastErr == nil {
				lastErr = models.NewError(models.KindCancelled, err)
			}
			prev, _ := ledger.MarkFailed(task.RowIndex, lastErr)
			s.trackRow(ctx, batchID, ledger, task.RowIndex, prev)
			return
		}

		err := tr.Send(ctx, task.Message)
		if err == nil {
			prev, _ := ledger.MarkSent(task.RowIndex)
			s.trackRow(ctx, batchID, ledger, task.RowIndex, prev)
			return
		}
		lastErr = err

		if isThrottle(err) {
			s.limiter.Penalize(throttlePenalty)
		}

		if !models.Retryable(err) || attempt > s.opts.MaxRetries {
			prev, _ := ledger.MarkFailed(task.RowIndex, err)
			s.trackRow(ctx, batchID, ledger, task.RowIndex, prev)
			return
		}

		prev, _ = ledger.MarkRetrying(task.RowIndex, err)
		s.trackRow(ctx, batchID, ledger, task.RowIndex, prev)

		select {
		case <-time.After(sched.NextBackOff()):
		case <-ctx.Done():
			// retries aborted by cancellation: terminal failure with the
			// last transport error
			prev, _ := ledger.MarkFailed(task.RowIndex, lastErr)
			s.trackRow(ctx, batchID, ledger, task.RowIndex, prev)
			return
		}
	}
}

func (s *Service) trackRow(ctx context.Context, batchID uuid.UUID, ledger *Ledger, rowIndex int, previous models.TaskStatus) {
	if result, ok := ledger.Get(rowIndex); ok {
		s.tracker.TrackStatus(ctx, batchID, result, previous)
	}
}

// isThrottle detects provider throttling responses worth a global pause.
func isThrottle(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "too many") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "421") ||
		strings.Contains(msg, "450")
}
