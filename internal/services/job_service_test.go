package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/coursegen-backend/internal/data/repos/testutil"
	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/coursegen-backend/internal/jobs/runtime"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
)

func TestJobServiceVisibility(t *testing.T) {
	runner := newFakeRunner()
	svc := NewJobService(testutil.Logger(t), runner)
	job, err := runner.Enqueue(context.Background(), jobrt.Spec{CourseID: 1, Kind: jobs.KindAssessment, OwnerUserID: "learner-1"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	tests := []struct {
		name    string
		ctx     context.Context
		id      uuid.UUID
		wantErr apierr.Kind
	}{
		{name: "owner", ctx: learnerCtx("learner-1"), id: job.ID},
		{name: "admin", ctx: adminCtx(), id: job.ID},
		{name: "other learner", ctx: learnerCtx("learner-2"), id: job.ID, wantErr: apierr.KindNotFound},
		{name: "anonymous", ctx: context.Background(), id: job.ID, wantErr: apierr.KindNotFound},
		{name: "unknown job", ctx: adminCtx(), id: uuid.New(), wantErr: apierr.KindNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.GetForRequestUser(tc.ctx, tc.id)
			if tc.wantErr != "" {
				if !apierr.Is(err, tc.wantErr) {
					t.Fatalf("want %s got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetForRequestUser: %v", err)
			}
			if got.ID != job.ID {
				t.Fatalf("job id: want=%s got=%s", job.ID, got.ID)
			}
		})
	}
}

func TestJobServiceCancel(t *testing.T) {
	runner := newFakeRunner()
	svc := NewJobService(testutil.Logger(t), runner)
	job, err := runner.Enqueue(context.Background(), jobrt.Spec{CourseID: 1, Kind: jobs.KindComposition, OwnerUserID: "admin-1"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, err := svc.CancelForRequestUser(learnerCtx("learner-2"), job.ID); !apierr.Is(err, apierr.KindNotFound) {
		t.Fatalf("cancel by stranger: want not_found got %v", err)
	}
	got, err := svc.CancelForRequestUser(adminCtx(), job.ID)
	if err != nil {
		t.Fatalf("CancelForRequestUser: %v", err)
	}
	if got.State != jobs.StateCancelled {
		t.Fatalf("state: want=cancelled got=%s", got.State)
	}
}
