package projection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/gazetteer-backend/internal/config"
	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

type recomputer interface {
	Recompute(ctx context.Context, ids ...uuid.UUID) BatchResult
}

// Scheduler collects entity ids touched by ledger writes and recomputes them
// in debounced batches. Repeated schedules of one entity within a window
// collapse into a single recompute.
type Scheduler struct {
	engine     recomputer
	debounce   time.Duration
	maxBatch   int
	retryDelay time.Duration
	log        *slog.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]struct{}
	delayed map[uuid.UUID]struct{}
	stopped bool
	wake    chan struct{}
	full    chan struct{}
}

// Drain retry policy for retryable failures.
const (
	drainAttempts = 3
	drainBackoff  = 50 * time.Millisecond
)

// NewScheduler creates a scheduler; call Run to start processing.
func NewScheduler(log *slog.Logger, engine recomputer, cfg config.ProjectionConfig) *Scheduler {
	maxBatch := cfg.QueueSize
	if maxBatch <= 0 {
		maxBatch = 1024
	}
	return &Scheduler{
		engine:     engine,
		debounce:   cfg.Debounce,
		maxBatch:   maxBatch,
		retryDelay: max(cfg.Debounce, time.Second),
		log:        log.With("service", "projection_scheduler"),
		pending:    make(map[uuid.UUID]struct{}),
		delayed:    make(map[uuid.UUID]struct{}),
		wake:       make(chan struct{}, 1),
		full:       make(chan struct{}, 1),
	}
}

// Schedule queues entities for recompute. It never blocks. After Run has
// returned the ids are logged and dropped.
func (s *Scheduler) Schedule(ids ...uuid.UUID) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.dropped(context.Background(), "recompute scheduled after scheduler stopped", ids)
		return
	}
	for _, id := range ids {
		if id != uuid.Nil {
			s.pending[id] = struct{}{}
		}
	}
	n := len(s.pending)
	s.mu.Unlock()

	if n == 0 {
		return
	}
	notify(s.wake)
	if n >= s.maxBatch {
		notify(s.full)
	}
}

// Len returns the number of queued entities.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Run processes the queue until ctx is cancelled, then drains what is left.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.InfoContext(ctx, "recompute scheduler started",
		slog.Duration("debounce", s.debounce),
		slog.Int("max_batch", s.maxBatch),
	)
	defer s.stop()
	for {
		select {
		case <-ctx.Done():
			s.shutdown(ctx)
			return nil
		case <-s.wake:
		}

		if s.debounce > 0 && s.Len() < s.maxBatch {
			timer := time.NewTimer(s.debounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				s.shutdown(ctx)
				return nil
			case <-timer.C:
			case <-s.full:
				timer.Stop()
			}
		}
		s.Flush(ctx)
	}
}

// Flush recomputes one batch of queued entities synchronously. Entities that
// failed with a retryable error are queued again after a delay.
func (s *Scheduler) Flush(ctx context.Context) BatchResult {
	_, res, retry := s.flush(ctx)
	if len(retry) > 0 {
		s.log.WarnContext(ctx, "requeueing entities after retryable failure", slog.Int("count", len(retry)))
		s.delay(retry)
	}
	if n := s.Len(); n > 0 {
		notify(s.wake)
	}
	return res
}

// Drain recomputes everything queued, including entities waiting out a retry
// delay, before returning. Retryable failures are retried in place a few
// times; entities that still fail are logged as dropped and reported in the
// result.
func (s *Scheduler) Drain(ctx context.Context) BatchResult {
	s.promote(nil)

	var total BatchResult
	start := time.Now()
	for attempt := 1; s.Len() > 0; attempt++ {
		var retry []uuid.UUID
		for s.Len() > 0 {
			ids, res, failed := s.flush(ctx)
			total.merge(res)
			for _, id := range ids {
				if _, ok := res.Failed[id]; !ok {
					delete(total.Failed, id)
				}
			}
			retry = append(retry, failed...)
		}
		if len(retry) == 0 {
			break
		}
		if attempt == drainAttempts || ctx.Err() != nil {
			s.dropped(ctx, "recompute dropped after retryable failures", retry)
			break
		}
		s.log.WarnContext(ctx, "retrying entities before returning",
			slog.Int("count", len(retry)),
			slog.Int("attempt", attempt),
		)
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(attempt) * drainBackoff):
		}
		s.mu.Lock()
		for _, id := range retry {
			s.pending[id] = struct{}{}
		}
		s.mu.Unlock()
	}
	total.Duration = time.Since(start)
	return total
}

// flush recomputes one batch. It returns the batch, the result and the ids
// whose failure is worth retrying; other failures are logged.
func (s *Scheduler) flush(ctx context.Context) ([]uuid.UUID, BatchResult, []uuid.UUID) {
	ids := s.take()
	if len(ids) == 0 {
		return nil, BatchResult{}, nil
	}

	res := s.engine.Recompute(ctx, ids...)

	var retry []uuid.UUID
	for id, err := range res.Failed {
		if domain.IsRetryable(err) && ctx.Err() == nil {
			retry = append(retry, id)
			continue
		}
		s.log.ErrorContext(ctx, "recompute failed",
			slog.String("entity_id", id.String()),
			slog.String("error", err.Error()),
		)
	}
	return ids, res, retry
}

// shutdown drains the queue with a context detached from the cancelled one.
func (s *Scheduler) shutdown(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if res := s.Drain(ctx); res.Processed > 0 {
		s.log.InfoContext(ctx, "recompute scheduler drained",
			slog.Int("processed", res.Processed),
			slog.Int("failed", len(res.Failed)),
		)
	}
}

func (s *Scheduler) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.promote(nil)
}

// delay queues ids again after retryDelay. Drain picks them up earlier.
func (s *Scheduler) delay(ids []uuid.UUID) {
	s.mu.Lock()
	for _, id := range ids {
		s.delayed[id] = struct{}{}
	}
	s.mu.Unlock()
	time.AfterFunc(s.retryDelay, func() { s.promote(ids) })
}

// promote moves delayed ids back into the queue; nil means all of them. Once
// the scheduler has stopped they are logged and dropped instead.
func (s *Scheduler) promote(ids []uuid.UUID) {
	s.mu.Lock()
	if ids == nil {
		for id := range s.delayed {
			ids = append(ids, id)
		}
	}
	moved := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.delayed[id]; ok {
			delete(s.delayed, id)
			moved = append(moved, id)
		}
	}
	stopped := s.stopped
	if !stopped {
		for _, id := range moved {
			s.pending[id] = struct{}{}
		}
	}
	n := len(s.pending)
	s.mu.Unlock()

	if stopped {
		s.dropped(context.Background(), "recompute dropped, scheduler stopped", moved)
		return
	}
	if len(moved) > 0 {
		notify(s.wake)
		if n >= s.maxBatch {
			notify(s.full)
		}
	}
}

// dropped logs entities whose recompute will not happen in this process.
// A later ledger write or a rebuild picks them up.
func (s *Scheduler) dropped(ctx context.Context, msg string, ids []uuid.UUID) {
	for _, id := range ids {
		s.log.ErrorContext(ctx, msg, slog.String("entity_id", id.String()))
	}
}

// take removes up to maxBatch ids from the queue.
func (s *Scheduler) take() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, min(len(s.pending), s.maxBatch))
	for id := range s.pending {
		if len(ids) == s.maxBatch {
			break
		}
		ids = append(ids, id)
		delete(s.pending, id)
	}
	return ids
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
