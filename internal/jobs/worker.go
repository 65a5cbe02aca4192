package jobs

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/generyand/sinag-sub000/internal/storage"
)

// Handler processes one claimed job. Returning an error wrapped with
// Permanent dead-letters the job instead of retrying it.
type Handler func(ctx context.Context, job storage.JobRecord) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as a domain-permanent failure. Bounded retry
// applies only to transient infrastructure errors.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether the error was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// WorkerConfig tunes the outbox polling loop.
type WorkerConfig struct {
	PollInterval time.Duration
	Lease        time.Duration
	BatchSize    int
	MaxAttempts  int
	BaseBackoff  time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.Lease <= 0 {
		c.Lease = time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 30 * time.Second
	}
	return c
}

// Worker claims due outbox jobs and runs their handlers with bounded
// retry and exponential backoff.
type Worker struct {
	store    storage.OutboxStore
	handlers map[string]Handler
	cfg      WorkerConfig
	clock    func() time.Time
	metrics  *Metrics
}

// NewWorker creates a worker over the outbox store.
func NewWorker(store storage.OutboxStore, handlers map[string]Handler, cfg WorkerConfig, metrics *Metrics) *Worker {
	return &Worker{
		store:    store,
		handlers: handlers,
		cfg:      cfg.withDefaults(),
		clock:    time.Now,
		metrics:  metrics,
	}
}

// Run polls until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("polling every %s", w.cfg.PollInterval)
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				log.Printf("poll failed: %v", err)
			}
		}
	}
}

// RunOnce claims and processes one batch of due jobs.
func (w *Worker) RunOnce(ctx context.Context) error {
	now := w.clock().UTC()
	claimed, err := w.store.ClaimDueJobs(ctx, now, w.cfg.Lease, w.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, job := range claimed {
		w.process(ctx, job)
	}
	w.observeQueueDepth(ctx)
	return nil
}

func (w *Worker) process(ctx context.Context, job storage.JobRecord) {
	handler, ok := w.handlers[job.Name]
	if !ok {
		log.Printf("no handler for job %s, dead-lettering %s", job.Name, job.Key)
		w.fail(ctx, job, "no handler registered", false)
		return
	}

	err := handler(ctx, job)
	if err == nil {
		if err := w.store.CompleteJob(ctx, job.Key); err != nil {
			log.Printf("complete %s: %v", job.Key, err)
		}
		w.metrics.JobProcessed(job.Name, "success")
		return
	}

	attempts := job.AttemptCount + 1
	retry := !IsPermanent(err) && attempts < w.cfg.MaxAttempts
	if retry {
		log.Printf("job %s attempt %d failed, will retry: %v", job.Key, attempts, err)
		w.metrics.JobProcessed(job.Name, "retry")
	} else {
		log.Printf("job %s attempt %d failed permanently: %v", job.Key, attempts, err)
		w.metrics.JobProcessed(job.Name, "dead")
	}
	w.fail(ctx, job, err.Error(), retry)
}

func (w *Worker) fail(ctx context.Context, job storage.JobRecord, lastError string, retry bool) {
	attempts := job.AttemptCount + 1
	next := w.clock().UTC().Add(w.backoff(attempts))
	if err := w.store.FailJob(ctx, job.Key, attempts, lastError, next, retry); err != nil {
		log.Printf("record failure for %s: %v", job.Key, err)
	}
}

// backoff doubles per attempt: base, 2*base, 4*base.
func (w *Worker) backoff(attempt int) time.Duration {
	d := w.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

func (w *Worker) observeQueueDepth(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	counts, err := w.store.CountJobs(ctx)
	if err != nil {
		log.Printf("count jobs: %v", err)
		return
	}
	w.metrics.SetQueueDepth(counts)
}
