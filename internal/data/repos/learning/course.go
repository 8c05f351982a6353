package learning

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

type CourseRepo interface {
	Create(dbc dbctx.Context, course *learning.Course) (*learning.Course, error)
	GetByID(dbc dbctx.Context, id uint) (*learning.Course, error)
	UpdateFields(dbc dbctx.Context, id uint, updates map[string]interface{}) error
	SetCompositionStatus(dbc dbctx.Context, id uint, status learning.CompositionStatus, lastError string) error
	SetTestGenerationStatus(dbc dbctx.Context, id uint, status learning.TestGenerationStatus, lastError string) error
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return &courseRepo{db: db, log: baseLog.With("repo", "CourseRepo")}
}

func (r *courseRepo) Create(dbc dbctx.Context, course *learning.Course) (*learning.Course, error) {
	if course == nil {
		return nil, apierr.Validation("course required")
	}
	if course.CompositionStatus == "" {
		course.CompositionStatus = learning.CompositionNotStarted
	}
	if course.TestGenerationStatus == "" {
		course.TestGenerationStatus = learning.TestGenNotStarted
	}
	if err := dbc.DB(r.db).Create(course).Error; err != nil {
		return nil, apierr.Persistence("create course", err)
	}
	return course, nil
}

func (r *courseRepo) GetByID(dbc dbctx.Context, id uint) (*learning.Course, error) {
	var c learning.Course
	err := dbc.DB(r.db).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("course %d not found", id)
	}
	if err != nil {
		return nil, apierr.Persistence("get course", err)
	}
	return &c, nil
}

func (r *courseRepo) UpdateFields(dbc dbctx.Context, id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	res := dbc.DB(r.db).Model(&learning.Course{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return apierr.Persistence("update course", res.Error)
	}
	if res.RowsAffected == 0 {
		return apierr.NotFound("course %d not found", id)
	}
	return nil
}

func (r *courseRepo) SetCompositionStatus(dbc dbctx.Context, id uint, status learning.CompositionStatus, lastError string) error {
	return r.UpdateFields(dbc, id, map[string]interface{}{
		"composition_status": status,
		"last_error":         lastError,
	})
}

func (r *courseRepo) SetTestGenerationStatus(dbc dbctx.Context, id uint, status learning.TestGenerationStatus, lastError string) error {
	return r.UpdateFields(dbc, id, map[string]interface{}{
		"test_generation_status": status,
		"last_error":             lastError,
	})
}
