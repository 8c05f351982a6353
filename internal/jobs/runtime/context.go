package runtime

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/pkg/ctxutil"
)

// ErrCancelled is returned from Checkpoint once the job was asked to stop.
// Handlers return it as-is so their transaction rolls back.
var ErrCancelled = errors.New("job cancelled")

/*
Context is the execution handle the runner gives a handler for one attempt.
It wraps:
  - the attempt's context.Context (deadline on runner shutdown),
  - a snapshot of the job,
  - the cancellation flag observed at step boundaries,
  - the only sanctioned way to report progress and a result.

Handlers never touch runner state directly.
*/
type Context struct {
	Ctx context.Context
	Job jobs.GenerationJob

	cancelled func() bool
	progress  func(stage string)
	result    json.RawMessage
}

func NewContext(ctx context.Context, job jobs.GenerationJob, cancelled func() bool, progress func(stage string)) *Context {
	if cancelled == nil {
		cancelled = func() bool { return false }
	}
	if progress == nil {
		progress = func(string) {}
	}
	if job.OwnerUserID != "" {
		ctx = ctxutil.WithTraceData(ctx, &ctxutil.TraceData{UserID: job.OwnerUserID, RequestID: job.ID.String()})
	}
	return &Context{Ctx: ctx, Job: job, cancelled: cancelled, progress: progress}
}

// Checkpoint marks a step boundary.
func (c *Context) Checkpoint() error {
	if c.cancelled() {
		return ErrCancelled
	}
	if c.Ctx.Err() != nil {
		return ErrCancelled
	}
	return nil
}

// Progress records the step the handler is entering.
func (c *Context) Progress(stage string) {
	c.Job.Stage = stage
	c.progress(stage)
}

// DecodePayload unmarshals the enqueue payload into v. An empty payload leaves v untouched.
func (c *Context) DecodePayload(v any) error {
	if len(c.Job.Payload) == 0 || string(c.Job.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(c.Job.Payload, v); err != nil {
		return apierr.Validation("decode %s payload: %v", c.Job.Kind, err)
	}
	return nil
}

func (c *Context) SetResult(v any) {
	b, err := json.Marshal(v)
	if err == nil {
		c.result = b
	}
}

func (c *Context) Result() json.RawMessage { return c.result }
