package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/coursegen-backend/internal/jobs/runtime"
	"github.com/yungbote/coursegen-backend/internal/pkg/ctxutil"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

// JobRunner is the part of the job runner the services drive.
type JobRunner interface {
	jobrt.Enqueuer
	Status(id uuid.UUID) (jobs.GenerationJob, error)
	Cancel(ctx context.Context, id uuid.UUID) (jobs.GenerationJob, error)
}

type JobService interface {
	GetForRequestUser(ctx context.Context, jobID uuid.UUID) (jobs.GenerationJob, error)
	CancelForRequestUser(ctx context.Context, jobID uuid.UUID) (jobs.GenerationJob, error)
}

type jobService struct {
	log    *logger.Logger
	runner JobRunner
}

func NewJobService(baseLog *logger.Logger, runner JobRunner) JobService {
	return &jobService{log: baseLog.With("service", "JobService"), runner: runner}
}

func (s *jobService) GetForRequestUser(ctx context.Context, jobID uuid.UUID) (jobs.GenerationJob, error) {
	job, err := s.runner.Status(jobID)
	if err != nil {
		return jobs.GenerationJob{}, err
	}
	if !visibleTo(ctx, job) {
		return jobs.GenerationJob{}, apierr.NotFound("job %s not found", jobID)
	}
	return job, nil
}

func (s *jobService) CancelForRequestUser(ctx context.Context, jobID uuid.UUID) (jobs.GenerationJob, error) {
	if _, err := s.GetForRequestUser(ctx, jobID); err != nil {
		return jobs.GenerationJob{}, err
	}
	job, err := s.runner.Cancel(ctx, jobID)
	if err != nil {
		return job, err
	}
	s.log.Info("Job cancel requested", "job_id", jobID, "state", job.State, "user_id", ctxutil.UserID(ctx))
	return job, nil
}

// Admins see every job; other callers only their own.
func visibleTo(ctx context.Context, job jobs.GenerationJob) bool {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return false
	}
	return rd.IsAdmin() || (rd.UserID != "" && rd.UserID == job.OwnerUserID)
}
