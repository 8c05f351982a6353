package runtime

import (
	"context"

	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
)

type Spec struct {
	CourseID    uint
	Kind        jobs.Kind
	Scope       string
	OwnerUserID string
	SessionID   string
	Payload     any
}

// Enqueuer lets handlers and services schedule follow-up jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, spec Spec) (jobs.GenerationJob, error)
}

// Notifier receives every job state change.
type Notifier interface {
	JobChanged(ctx context.Context, job jobs.GenerationJob)
}

// CourseTracker owns the course status column a job kind drives.
type CourseTracker interface {
	// Begin moves the column to pending and returns the prior value.
	Begin(ctx context.Context, courseID uint, kind jobs.Kind) (string, error)
	Restore(ctx context.Context, courseID uint, kind jobs.Kind, prior string) error
	Failed(ctx context.Context, courseID uint, kind jobs.Kind, lastError string) error
}
