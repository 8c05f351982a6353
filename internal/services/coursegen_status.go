package services

import (
	"context"

	"gorm.io/gorm"

	repos "github.com/yungbote/coursegen-backend/internal/data/repos/learning"
	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	jobrt "github.com/yungbote/coursegen-backend/internal/jobs/runtime"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

// courseStatusTracker keeps the course status columns in step with the job
// runner. Composition jobs drive composition_status, assessment jobs drive
// test_generation_status; other kinds only check the course exists.
type courseStatusTracker struct {
	db      *gorm.DB
	log     *logger.Logger
	courses repos.CourseRepo
}

func NewCourseStatusTracker(db *gorm.DB, baseLog *logger.Logger, courses repos.CourseRepo) jobrt.CourseTracker {
	return &courseStatusTracker{
		db:      db,
		log:     baseLog.With("service", "CourseStatusTracker"),
		courses: courses,
	}
}

func (t *courseStatusTracker) Begin(ctx context.Context, courseID uint, kind jobs.Kind) (string, error) {
	var prior string
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		course, err := t.courses.GetByID(dbc, courseID)
		if err != nil {
			return err
		}
		switch kind {
		case jobs.KindComposition:
			prior = string(course.CompositionStatus)
			return t.courses.SetCompositionStatus(dbc, courseID, learning.CompositionPending, "")
		case jobs.KindAssessment:
			prior = string(course.TestGenerationStatus)
			return t.courses.SetTestGenerationStatus(dbc, courseID, learning.TestGenPending, "")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return prior, nil
}

func (t *courseStatusTracker) Restore(ctx context.Context, courseID uint, kind jobs.Kind, prior string) error {
	if prior == "" {
		return nil
	}
	column := statusColumn(kind)
	if column == "" {
		return nil
	}
	t.log.Debug("Restoring course status", "course_id", courseID, "kind", kind, "status", prior)
	return t.courses.UpdateFields(dbctx.New(ctx), courseID, map[string]interface{}{column: prior})
}

func (t *courseStatusTracker) Failed(ctx context.Context, courseID uint, kind jobs.Kind, lastError string) error {
	dbc := dbctx.New(ctx)
	switch kind {
	case jobs.KindComposition:
		return t.courses.SetCompositionStatus(dbc, courseID, learning.CompositionFailed, lastError)
	case jobs.KindAssessment:
		return t.courses.SetTestGenerationStatus(dbc, courseID, learning.TestGenFailed, lastError)
	}
	return nil
}

func statusColumn(kind jobs.Kind) string {
	switch kind {
	case jobs.KindComposition:
		return "composition_status"
	case jobs.KindAssessment:
		return "test_generation_status"
	}
	return ""
}
