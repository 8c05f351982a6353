package services

import (
	"context"

	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/coursegen-backend/internal/jobs/runtime"
	"github.com/yungbote/coursegen-backend/internal/realtime"
)

type jobNotifier struct {
	hub *realtime.Hub
}

// NewJobNotifier publishes every job state change to the job owner's socket.
func NewJobNotifier(hub *realtime.Hub) jobrt.Notifier {
	return &jobNotifier{hub: hub}
}

func (n *jobNotifier) JobChanged(ctx context.Context, job jobs.GenerationJob) {
	n.hub.Publish(ctx, job.OwnerUserID, StatusEvent(job))
}

func StatusEvent(job jobs.GenerationJob) realtime.Event {
	return realtime.Event{
		Type:     realtime.EventGenerationStatus,
		CourseID: job.CourseID,
		JobID:    job.ID.String(),
		Kind:     string(job.Kind),
		Scope:    job.Scope,
		State:    string(job.State),
		Stage:    job.Stage,
		Attempts: job.Attempts,
		Detail:   job.LastError,
	}
}
