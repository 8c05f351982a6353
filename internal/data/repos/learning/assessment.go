package learning

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

type TestRepo interface {
	Create(dbc dbctx.Context, test *learning.Test) (*learning.Test, error)
	LatestByCourse(dbc dbctx.Context, courseID uint) (*learning.Test, error)
}

type testRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTestRepo(db *gorm.DB, baseLog *logger.Logger) TestRepo {
	return &testRepo{db: db, log: baseLog.With("repo", "TestRepo")}
}

func (r *testRepo) Create(dbc dbctx.Context, test *learning.Test) (*learning.Test, error) {
	if test == nil || len(test.Questions) == 0 {
		return nil, apierr.Validation("test needs questions")
	}
	for i := range test.Questions {
		test.Questions[i].Order = i + 1
	}
	if err := dbc.DB(r.db).Create(test).Error; err != nil {
		return nil, apierr.Persistence("create test", err)
	}
	return test, nil
}

func (r *testRepo) LatestByCourse(dbc dbctx.Context, courseID uint) (*learning.Test, error) {
	var t learning.Test
	err := dbc.DB(r.db).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order(byOrder()) }).
		Where("course_id = ?", courseID).
		Order("id DESC").
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("no test for course %d", courseID)
	}
	if err != nil {
		return nil, apierr.Persistence("get test", err)
	}
	return &t, nil
}

type AssessmentRepo interface {
	GetSession(dbc dbctx.Context, sessionID uint) (*learning.TestSession, error)
	// ReplaceForSession swaps any earlier analysis of the session for rows.
	ReplaceForSession(dbc dbctx.Context, sessionID uint, rows []*learning.UserAssessment) ([]*learning.UserAssessment, error)
	ListBySession(dbc dbctx.Context, sessionID uint) ([]*learning.UserAssessment, error)
}

type assessmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) AssessmentRepo {
	return &assessmentRepo{db: db, log: baseLog.With("repo", "AssessmentRepo")}
}

func (r *assessmentRepo) GetSession(dbc dbctx.Context, sessionID uint) (*learning.TestSession, error) {
	var s learning.TestSession
	err := dbc.DB(r.db).
		Preload("Answers", orderByID).
		Preload("Answers.Question").
		Where("id = ?", sessionID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("test session %d not found", sessionID)
	}
	if err != nil {
		return nil, apierr.Persistence("get test session", err)
	}
	return &s, nil
}

func (r *assessmentRepo) ReplaceForSession(dbc dbctx.Context, sessionID uint, rows []*learning.UserAssessment) ([]*learning.UserAssessment, error) {
	if dbc.Tx == nil {
		var out []*learning.UserAssessment
		err := r.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			out, err = r.ReplaceForSession(dbc.WithTx(tx), sessionID, rows)
			return err
		})
		return out, err
	}
	transaction := dbc.DB(r.db)
	if err := transaction.Where("session_id = ?", sessionID).Delete(&learning.UserAssessment{}).Error; err != nil {
		return nil, apierr.Persistence("clear assessments", err)
	}
	if len(rows) == 0 {
		return rows, nil
	}
	for _, row := range rows {
		row.ID = 0
		row.SessionID = sessionID
	}
	if err := transaction.Create(&rows).Error; err != nil {
		return nil, apierr.Persistence("create assessments", err)
	}
	return rows, nil
}

func (r *assessmentRepo) ListBySession(dbc dbctx.Context, sessionID uint) ([]*learning.UserAssessment, error) {
	var out []*learning.UserAssessment
	if err := dbc.DB(r.db).Where("session_id = ?", sessionID).Order("id").Find(&out).Error; err != nil {
		return nil, apierr.Persistence("list assessments", err)
	}
	return out, nil
}
