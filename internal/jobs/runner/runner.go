package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
	"github.com/yungbote/coursegen-backend/internal/jobs/runtime"
	"github.com/yungbote/coursegen-backend/internal/observability"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

type entry struct {
	job       jobs.GenerationJob
	prior     string
	cancelled atomic.Bool
	retry     *time.Timer
}

// Runner schedules generation jobs in-process: FIFO queue, bounded workers,
// at most one queued or running job per key.
type Runner struct {
	log      *logger.Logger
	cfg      Config
	registry *runtime.Registry
	tracker  runtime.CourseTracker
	notify   runtime.Notifier

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []uuid.UUID
	entries  map[uuid.UUID]*entry
	inflight map[jobs.Key]uuid.UUID
	started  bool
	stopped  bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(baseLog *logger.Logger, cfg Config, registry *runtime.Registry, tracker runtime.CourseTracker, notify runtime.Notifier) *Runner {
	r := &Runner{
		log:      baseLog.With("component", "JobRunner"),
		cfg:      cfg.withDefaults(),
		registry: registry,
		tracker:  tracker,
		notify:   notify,
		entries:  make(map[uuid.UUID]*entry),
		inflight: make(map[jobs.Key]uuid.UUID),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.baseCtx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	r.log.Info("Starting job runner", "concurrency", r.cfg.Concurrency, "max_attempts", r.cfg.MaxAttempts)
	for i := 0; i < r.cfg.Concurrency; i++ {
		r.wg.Add(1)
		go r.loop(i + 1)
	}
}

// Stop cancels running attempts and waits for workers to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	for _, e := range r.entries {
		if e.retry != nil {
			e.retry.Stop()
		}
	}
	cancel := r.cancel
	r.cond.Broadcast()
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

func (r *Runner) Enqueue(ctx context.Context, spec runtime.Spec) (jobs.GenerationJob, error) {
	if spec.CourseID == 0 {
		return jobs.GenerationJob{}, apierr.Validation("course_id required")
	}
	if _, ok := r.registry.Get(spec.Kind); !ok {
		return jobs.GenerationJob{}, apierr.Validation("unknown job kind %q", spec.Kind)
	}
	var payload json.RawMessage
	if spec.Payload != nil {
		b, err := json.Marshal(spec.Payload)
		if err != nil {
			return jobs.GenerationJob{}, apierr.Validation("encode payload: %v", err)
		}
		payload = b
	}

	key := jobs.Key{CourseID: spec.CourseID, Kind: spec.Kind, Scope: spec.Scope}
	id := uuid.New()

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return jobs.GenerationJob{}, fmt.Errorf("job runner stopped")
	}
	if existing, ok := r.inflight[key]; ok {
		r.mu.Unlock()
		return jobs.GenerationJob{}, apierr.Conflict("a %s job for course %d is already in flight (%s)", spec.Kind, spec.CourseID, existing)
	}
	r.inflight[key] = id
	r.mu.Unlock()

	prior, err := r.tracker.Begin(ctx, spec.CourseID, spec.Kind)
	if err != nil {
		r.mu.Lock()
		delete(r.inflight, key)
		r.mu.Unlock()
		return jobs.GenerationJob{}, err
	}

	e := &entry{
		prior: prior,
		job: jobs.GenerationJob{
			ID:          id,
			CourseID:    spec.CourseID,
			Kind:        spec.Kind,
			Scope:       spec.Scope,
			OwnerUserID: spec.OwnerUserID,
			SessionID:   spec.SessionID,
			State:       jobs.StateQueued,
			Payload:     payload,
			EnqueuedAt:  time.Now().UTC(),
		},
	}

	r.mu.Lock()
	r.pruneLocked(time.Now().UTC())
	r.entries[id] = e
	r.queue = append(r.queue, id)
	snap := e.job
	r.cond.Signal()
	r.mu.Unlock()

	r.log.Info("Job enqueued", "job_id", id, "kind", spec.Kind, "course_id", spec.CourseID, "scope", spec.Scope)
	r.changed(ctx, snap)
	return snap, nil
}

func (r *Runner) Status(id uuid.UUID) (jobs.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return jobs.GenerationJob{}, apierr.NotFound("job %s not found", id)
	}
	return e.job, nil
}

// Cancel stops a queued job immediately and flags a running one; the flag is
// observed at the handler's next checkpoint.
func (r *Runner) Cancel(ctx context.Context, id uuid.UUID) (jobs.GenerationJob, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return jobs.GenerationJob{}, apierr.NotFound("job %s not found", id)
	}
	if e.job.State.Terminal() {
		snap := e.job
		r.mu.Unlock()
		return snap, apierr.Conflict("job %s already %s", id, snap.State)
	}
	e.cancelled.Store(true)
	if e.job.State == jobs.StateRunning {
		snap := e.job
		r.mu.Unlock()
		r.log.Info("Cancel requested for running job", "job_id", id)
		return snap, nil
	}

	if e.retry != nil {
		e.retry.Stop()
		e.retry = nil
	}
	r.removeQueuedLocked(id)
	r.finishLocked(e, jobs.StateCancelled, e.job.LastError)
	snap := e.job
	r.mu.Unlock()

	r.restore(ctx, e)
	r.changed(ctx, snap)
	return snap, nil
}

func (r *Runner) loop(workerID int) {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		for len(r.queue) == 0 && !r.stopped {
			r.cond.Wait()
		}
		if r.stopped {
			r.mu.Unlock()
			r.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		}
		id := r.queue[0]
		r.queue = r.queue[1:]
		e := r.entries[id]
		if e == nil || e.job.State != jobs.StateQueued || e.cancelled.Load() {
			r.mu.Unlock()
			continue
		}
		now := time.Now().UTC()
		e.job.State = jobs.StateRunning
		e.job.Attempts++
		if e.job.StartedAt == nil {
			e.job.StartedAt = &now
		}
		snap := e.job
		ctx := r.baseCtx
		r.mu.Unlock()

		r.changed(ctx, snap)
		r.run(ctx, workerID, e, snap)
	}
}

func (r *Runner) run(ctx context.Context, workerID int, e *entry, snap jobs.GenerationJob) {
	h, ok := r.registry.Get(snap.Kind)
	if !ok {
		r.complete(ctx, e, fmt.Errorf("no handler registered for kind=%s", snap.Kind), nil)
		return
	}

	spanCtx, span := observability.StartSpan(ctx, "job."+string(snap.Kind),
		attribute.String("job.id", snap.ID.String()),
		attribute.Int64("course.id", int64(snap.CourseID)),
		attribute.Int("job.attempt", snap.Attempts),
	)
	defer span.End()

	jc := runtime.NewContext(spanCtx, snap, e.cancelled.Load, func(stage string) {
		r.mu.Lock()
		e.job.Stage = stage
		s := e.job
		r.mu.Unlock()
		r.changed(ctx, s)
	})

	started := time.Now()
	var runErr error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("Job handler panic",
					"worker_id", workerID,
					"job_id", snap.ID,
					"kind", snap.Kind,
					"panic", rec,
				)
				runErr = fmt.Errorf("panic: %v", rec)
			}
		}()
		runErr = h.Run(jc)
	}()

	outcome := "ok"
	if runErr != nil {
		outcome = "error"
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}
	observability.ObserveJobRun(string(snap.Kind), outcome, time.Since(started))
	r.complete(ctx, e, runErr, jc.Result())
}

func (r *Runner) complete(ctx context.Context, e *entry, runErr error, result json.RawMessage) {
	r.mu.Lock()
	switch {
	case errors.Is(runErr, runtime.ErrCancelled) || (runErr != nil && e.cancelled.Load()) || r.interruptedLocked(ctx, runErr):
		// The handler rolled back; a run that committed before seeing the flag stays ready.
		r.finishLocked(e, jobs.StateCancelled, "")
		snap := e.job
		r.mu.Unlock()
		r.log.Info("Job cancelled", "job_id", snap.ID, "kind", snap.Kind)
		r.restore(context.WithoutCancel(ctx), e)
		r.changed(ctx, snap)

	case runErr == nil:
		e.job.Result = result
		r.finishLocked(e, jobs.StateReady, "")
		snap := e.job
		r.mu.Unlock()
		r.log.Info("Job finished", "job_id", snap.ID, "kind", snap.Kind, "attempts", snap.Attempts)
		r.changed(ctx, snap)

	case apierr.Retryable(runErr) && e.job.Attempts < r.cfg.MaxAttempts && !r.stopped:
		delay := r.cfg.retryDelay(e.job.Attempts)
		e.job.State = jobs.StateQueued
		e.job.LastError = runErr.Error()
		id := e.job.ID
		e.retry = time.AfterFunc(delay, func() { r.requeue(id) })
		snap := e.job
		r.mu.Unlock()
		r.log.Warn("Job attempt failed; retrying",
			"job_id", snap.ID,
			"kind", snap.Kind,
			"attempt", snap.Attempts,
			"delay", delay,
			"error", runErr,
		)
		observability.ObserveJobTransition(string(snap.Kind), "retry")
		r.changed(ctx, snap)

	default:
		r.finishLocked(e, jobs.StateFailed, runErr.Error())
		snap := e.job
		r.mu.Unlock()
		r.log.Error("Job failed", "job_id", snap.ID, "kind", snap.Kind, "attempts", snap.Attempts, "error", runErr)
		if err := r.tracker.Failed(context.WithoutCancel(ctx), snap.CourseID, snap.Kind, snap.LastError); err != nil {
			r.log.Warn("Failed to record job failure on course", "job_id", snap.ID, "error", err)
		}
		r.changed(ctx, snap)
	}
}

// interruptedLocked reports a run that failed because Stop cancelled the base
// context. Such a run is treated as cancelled so the course status is restored.
func (r *Runner) interruptedLocked(ctx context.Context, runErr error) bool {
	if runErr == nil || !r.stopped {
		return false
	}
	return errors.Is(runErr, context.Canceled) || ctx.Err() != nil
}

// pruneLocked forgets terminal jobs that finished more than Retention ago.
func (r *Runner) pruneLocked(now time.Time) {
	for id, e := range r.entries {
		if !e.job.State.Terminal() || e.job.FinishedAt == nil {
			continue
		}
		if now.Sub(*e.job.FinishedAt) > r.cfg.Retention {
			delete(r.entries, id)
		}
	}
}

func (r *Runner) requeue(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || r.stopped || e.job.State != jobs.StateQueued || e.cancelled.Load() {
		return
	}
	e.retry = nil
	r.queue = append(r.queue, id)
	r.cond.Signal()
}

func (r *Runner) finishLocked(e *entry, state jobs.State, lastError string) {
	now := time.Now().UTC()
	e.job.State = state
	e.job.FinishedAt = &now
	if lastError != "" {
		e.job.LastError = lastError
	}
	if r.inflight[e.job.Key()] == e.job.ID {
		delete(r.inflight, e.job.Key())
	}
}

func (r *Runner) removeQueuedLocked(id uuid.UUID) {
	for i, q := range r.queue {
		if q == id {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return
		}
	}
}

func (r *Runner) restore(ctx context.Context, e *entry) {
	if err := r.tracker.Restore(ctx, e.job.CourseID, e.job.Kind, e.prior); err != nil {
		r.log.Warn("Failed to restore course status", "job_id", e.job.ID, "error", err)
	}
}

func (r *Runner) changed(ctx context.Context, job jobs.GenerationJob) {
	observability.ObserveJobTransition(string(job.Kind), string(job.State))
	if r.notify != nil {
		r.notify.JobChanged(ctx, job)
	}
}
