package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coolfix/service-desk/internal/config"
	"github.com/coolfix/service-desk/internal/jobs"
	"github.com/coolfix/service-desk/internal/observability"
)

// JobHandler executes one claimed job.
type JobHandler interface {
	HandleJob(ctx context.Context, job jobs.Job) error
}

// JobWorker polls the queue for due jobs.
type JobWorker struct {
	queue       jobs.Queue
	handler     JobHandler
	logger      *zap.Logger
	metrics     *observability.Metrics
	interval    time.Duration
	visibility  time.Duration
	batch       int
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	now         func() time.Time

	stop chan struct{}
	done sync.WaitGroup
}

// JobWorkerDependencies bundles collaborators for the worker.
type JobWorkerDependencies struct {
	Queue   jobs.Queue
	Handler JobHandler
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Config  config.SchedulingConfig
	Clock   func() time.Time
}

// NewJobWorker constructs a worker; call Start to begin polling.
func NewJobWorker(deps JobWorkerDependencies) *JobWorker {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	batch := deps.Config.BatchSize
	if batch <= 0 {
		batch = 20
	}
	maxAttempts := deps.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &JobWorker{
		queue:       deps.Queue,
		handler:     deps.Handler,
		logger:      logger,
		metrics:     deps.Metrics,
		interval:    deps.Config.PollInterval(),
		visibility:  deps.Config.VisibilityTimeout(),
		batch:       batch,
		maxAttempts: maxAttempts,
		baseBackoff: 5 * time.Second,
		maxBackoff:  10 * time.Minute,
		now:         clock,
		stop:        make(chan struct{}),
	}
}

// Start runs the poll loop in a goroutine until ctx is done or Stop is called.
func (w *JobWorker) Start(ctx context.Context) {
	w.done.Add(1)
	go func() {
		defer w.done.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Warn("job poll failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop halts polling and waits for the in-flight batch.
func (w *JobWorker) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	w.done.Wait()
}

// RunOnce reaps expired claims, then claims and runs one batch. It returns how many jobs
// were processed.
func (w *JobWorker) RunOnce(ctx context.Context) (int, error) {
	now := w.now()
	if reaped, err := w.queue.ReapExpired(ctx, now); err != nil {
		return 0, err
	} else if reaped > 0 {
		w.logger.Info("requeued expired jobs", zap.Int("count", reaped))
	}

	claimed, err := w.queue.Claim(ctx, now, w.batch, w.visibility)
	if err != nil {
		return 0, err
	}
	for _, job := range claimed {
		w.process(ctx, job)
	}
	return len(claimed), nil
}

func (w *JobWorker) process(ctx context.Context, job jobs.Job) {
	logger := w.logger.With(
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("ticket_id", job.TicketID),
	)

	err := w.handler.HandleJob(ctx, job)
	if err == nil {
		if ackErr := w.queue.Ack(ctx, job.ID); ackErr != nil {
			logger.Error("ack job", zap.Error(ackErr))
		}
		w.metrics.RecordJob(string(job.Type), "ok")
		return
	}

	job.Attempts++
	job.LastError = err.Error()
	if job.Attempts >= w.maxAttempts {
		logger.Error("job exhausted retries; dropping", zap.Int("attempts", job.Attempts), zap.Error(err))
		if ackErr := w.queue.Ack(ctx, job.ID); ackErr != nil {
			logger.Error("ack job", zap.Error(ackErr))
		}
		w.metrics.RecordJob(string(job.Type), "dead")
		return
	}

	delay := jobs.Backoff(job.Attempts, w.baseBackoff, w.maxBackoff)
	logger.Warn("job failed; retrying", zap.Int("attempts", job.Attempts), zap.Duration("delay", delay), zap.Error(err))
	if retryErr := w.queue.Retry(ctx, job, w.now().Add(delay)); retryErr != nil {
		logger.Error("reschedule job", zap.Error(retryErr))
	}
	w.metrics.RecordJob(string(job.Type), "retry")
}
