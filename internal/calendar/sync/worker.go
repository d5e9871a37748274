package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doorbellhq/doorbell/internal/calendar/domain"
	"github.com/doorbellhq/doorbell/internal/clock"
	obsmetrics "github.com/doorbellhq/doorbell/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WorkerConfig tunes the sync worker loop.
type WorkerConfig struct {
	// PollInterval is how often the worker sweeps for pending events.
	PollInterval time.Duration
	// DispatchDelay is the minimum age a pending row must reach before
	// dispatch. Gives rapid owner edits a chance to coalesce and keeps
	// third-party API latency off the request path.
	DispatchDelay time.Duration
	BatchSize     int
	JobTimeout    time.Duration
	// DeleteQueueCap bounds the buffered external-delete queue.
	DeleteQueueCap int
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.DispatchDelay <= 0 {
		c.DispatchDelay = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Second
	}
	if c.DeleteQueueCap <= 0 {
		c.DeleteQueueCap = 1024
	}
	return c
}

type WorkerParams struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Accounts  domain.AccountRepository
	Events    domain.EventRepository
	Providers map[domain.Provider]Provider
	Config    WorkerConfig        `optional:"true"`
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type deleteJob struct {
	event   domain.CalendarEvent
	readyAt time.Time
}

// Worker drives the pending→synced/error state machine: it polls calendar
// events that have sat pending past the dispatch delay and pushes them to
// their provider, and it drains the external-delete queue fed by fan-out.
type Worker struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	cfg       WorkerConfig
	accounts  domain.AccountRepository
	events    domain.EventRepository
	providers map[domain.Provider]Provider
	metrics   *obsmetrics.Metrics

	deletes chan deleteJob
}

func NewWorker(p WorkerParams) *Worker {
	cfg := p.Config.withDefaults()
	return &Worker{
		db:        p.DB,
		log:       p.Log.Named("calendar.worker"),
		clock:     p.Clock,
		cfg:       cfg,
		accounts:  p.Accounts,
		events:    p.Events,
		providers: p.Providers,
		metrics:   p.Metrics,
		deletes:   make(chan deleteJob, cfg.DeleteQueueCap),
	}
}

// EnqueueDelete schedules the external removal of an already-deleted row.
// The queue is fire-and-forget: when full, the job is dropped with a log
// line rather than blocking the caller's request.
func (w *Worker) EnqueueDelete(event domain.CalendarEvent) {
	job := deleteJob{event: event, readyAt: w.clock.Now().Add(w.cfg.DispatchDelay)}
	select {
	case w.deletes <- job:
	default:
		w.log.Warn("external delete queue full, dropping job",
			zap.String("event_id", event.ID.String()),
			zap.String("external_id", event.ExternalID),
		)
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("sync sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce(ctx context.Context) error {
	err := w.runJob(ctx, "calendar_dispatch", w.dispatchPending)
	return errors.Join(err, w.runJob(ctx, "calendar_delete", w.dispatchDeletes))
}

func (w *Worker) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := w.clock.Now()
	ctx, cancel := context.WithTimeout(parent, w.cfg.JobTimeout)
	defer cancel()

	workerMetrics := obsmetrics.Worker()
	workerMetrics.IncJobRun(name)

	err := fn(ctx)
	workerMetrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	// a deadline is a soft timeout: leftover rows stay pending and the next
	// sweep picks them up
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		workerMetrics.IncJobTimeout(name)
		w.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", w.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}

	workerMetrics.IncJobError(name)
	return fmt.Errorf("%s: %w", name, err)
}

func (w *Worker) dispatchPending(ctx context.Context) error {
	cutoff := w.clock.Now().Add(-w.cfg.DispatchDelay)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		events, err := w.events.FetchPending(ctx, w.db, cutoff, w.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		for _, event := range events {
			if event == nil {
				continue
			}
			w.dispatchOne(ctx, event)
		}

		// a short batch means the pending set is drained
		if len(events) < w.cfg.BatchSize {
			return nil
		}
	}
}

// dispatchOne pushes a single event to its provider and records the state
// transition. Every failure lands the row in error with sync_error set; it
// never stays pending, so the sweep loop cannot spin on it.
func (w *Worker) dispatchOne(ctx context.Context, event *domain.CalendarEvent) {
	account, err := w.accounts.Lookup(ctx, w.db, event.CalendarAccountID)
	if err != nil {
		w.markError(ctx, event, "", fmt.Errorf("account lookup: %w", err))
		return
	}
	if account == nil {
		w.markError(ctx, event, "", errors.New("calendar account no longer exists"))
		return
	}
	if !account.Active {
		w.markError(ctx, event, string(account.Provider), errors.New("calendar account deactivated"))
		return
	}

	provider, ok := w.providers[account.Provider]
	if !ok {
		w.markError(ctx, event, string(account.Provider), fmt.Errorf("no provider registered for %q", account.Provider))
		return
	}

	externalID, err := provider.UpsertEvent(ctx, *account, *event)
	if err != nil {
		w.markError(ctx, event, string(account.Provider), err)
		return
	}

	event.ExternalID = externalID
	event.SyncStatus = domain.SyncStatusSynced
	event.SyncError = ""
	event.UpdatedAt = w.clock.Now()
	if err := w.events.Update(ctx, w.db, event); err != nil {
		w.log.Warn("failed to persist synced status",
			zap.String("event_id", event.ID.String()),
			zap.Error(err),
		)
		return
	}
	w.metrics.RecordCalendarDispatch(ctx, string(account.Provider), "synced")
}

func (w *Worker) markError(ctx context.Context, event *domain.CalendarEvent, provider string, cause error) {
	event.SyncStatus = domain.SyncStatusError
	event.SyncError = cause.Error()
	event.UpdatedAt = w.clock.Now()
	if err := w.events.Update(ctx, w.db, event); err != nil {
		w.log.Warn("failed to persist error status",
			zap.String("event_id", event.ID.String()),
			zap.Error(err),
		)
		return
	}
	w.log.Warn("calendar dispatch failed",
		zap.String("event_id", event.ID.String()),
		zap.String("provider", provider),
		zap.Error(cause),
	)
	w.metrics.RecordCalendarDispatch(ctx, provider, "error")
}

// dispatchDeletes drains externally-deletable rows whose delay has elapsed.
// The queue is FIFO by enqueue time, so the first job that is not yet ready
// ends the drain; it goes back on the queue for the next sweep.
func (w *Worker) dispatchDeletes(ctx context.Context) error {
	now := w.clock.Now()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case job := <-w.deletes:
			if job.readyAt.After(now) {
				select {
				case w.deletes <- job:
				default:
					w.log.Warn("external delete queue full, dropping deferred job",
						zap.String("event_id", job.event.ID.String()),
					)
				}
				return nil
			}
			w.deleteOne(ctx, job.event)
		default:
			return nil
		}
	}
}

func (w *Worker) deleteOne(ctx context.Context, event domain.CalendarEvent) {
	account, err := w.accounts.Lookup(ctx, w.db, event.CalendarAccountID)
	if err != nil || account == nil {
		w.log.Warn("skipping external delete, account unavailable",
			zap.String("event_id", event.ID.String()),
			zap.Error(err),
		)
		return
	}

	provider, ok := w.providers[account.Provider]
	if !ok {
		w.log.Warn("skipping external delete, no provider",
			zap.String("provider", string(account.Provider)),
		)
		return
	}

	if err := provider.DeleteEvent(ctx, *account, event); err != nil {
		// the local row is already gone; external cleanup is best effort
		w.log.Warn("external delete failed",
			zap.String("event_id", event.ID.String()),
			zap.String("external_id", event.ExternalID),
			zap.Error(err),
		)
		w.metrics.RecordCalendarDispatch(ctx, string(account.Provider), "delete_error")
		return
	}
	w.metrics.RecordCalendarDispatch(ctx, string(account.Provider), "deleted")
}
