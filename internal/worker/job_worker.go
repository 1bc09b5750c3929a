package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"listraksync/internal/domain"
	"listraksync/internal/logging"
	"listraksync/internal/models"

	"github.com/rs/zerolog"
)

// JobHandler handles one SyncJob page.
type JobHandler interface {
	Handle(ctx context.Context, job models.SyncJob) error
}

// JobWorker consumes SyncJobs from the queue with a fixed number of
// goroutines. Each goroutine handles one job at a time; jobs share nothing.
type JobWorker struct {
	queue        domain.JobQueue
	handler      JobHandler
	concurrency  int
	pollInterval time.Duration
	backoff      backoff
	logger       *zerolog.Logger
}

// NewJobWorker builds a worker with sane defaults.
func NewJobWorker(queue domain.JobQueue, handler JobHandler, concurrency int, pollInterval time.Duration, logger *zerolog.Logger) *JobWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &JobWorker{
		queue:        queue,
		handler:      handler,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		backoff:      backoff{base: time.Second, max: time.Minute},
		logger:       logging.Component(logger, "job_worker"),
	}
}

// Start runs the consumers and returns once ctx is done and every consumer
// finished its current job.
func (w *JobWorker) Start(ctx context.Context) {
	w.logger.Info().Int("concurrency", w.concurrency).Msg("job worker started")
	defer w.logger.Info().Msg("job worker stopped")

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.consume(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (w *JobWorker) consume(ctx context.Context, id int) {
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, ok, err := w.queue.Dequeue(ctx, w.pollInterval)
		if err != nil {
			failures++
			delay := w.backoff.delay(failures)
			w.logger.Error().Err(err).Int("consumer", id).Dur("backoff", delay).Msg("dequeue failed")
			if !sleep(ctx, delay) {
				return
			}
			continue
		}
		failures = 0
		if !ok {
			continue
		}
		w.ProcessJob(ctx, job)
	}
}

// ProcessJob handles a single job; a failed page goes to the dead-letter list.
func (w *JobWorker) ProcessJob(ctx context.Context, job models.SyncJob) {
	log := w.logger.With().
		Str("job_id", job.ID).
		Str("entity", string(job.Entity)).
		Str("scope_id", job.ScopeID).
		Int("offset", job.Offset).
		Logger()

	err := w.handler.Handle(ctx, job)
	if err == nil {
		return
	}

	event := log.Error()
	if errors.Is(err, models.ErrConfiguration) {
		event = log.Warn()
	}
	event.Err(err).Msg("sync job failed")

	if dlErr := w.queue.DeadLetter(ctx, job, err); dlErr != nil {
		log.Error().Err(dlErr).Msg("dead letter push failed")
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// backoff doubles from base with each consecutive dequeue failure, up to max.
type backoff struct {
	base time.Duration
	max  time.Duration
}

func (b backoff) delay(failures int) time.Duration {
	d := b.base
	for i := 1; i < failures && d < b.max; i++ {
		d *= 2
	}
	if d > b.max {
		d = b.max
	}
	return d
}
