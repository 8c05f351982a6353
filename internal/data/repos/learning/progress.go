package learning

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

type LessonProgressRepo interface {
	// MarkComplete is idempotent; a repeated call keeps the first completion time.
	MarkComplete(dbc dbctx.Context, userID string, lessonID uint) (*learning.LessonProgress, error)
	CountByLesson(dbc dbctx.Context, lessonID uint) (int64, error)
}

type lessonProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLessonProgressRepo(db *gorm.DB, baseLog *logger.Logger) LessonProgressRepo {
	return &lessonProgressRepo{db: db, log: baseLog.With("repo", "LessonProgressRepo")}
}

func (r *lessonProgressRepo) MarkComplete(dbc dbctx.Context, userID string, lessonID uint) (*learning.LessonProgress, error) {
	if userID == "" || lessonID == 0 {
		return nil, apierr.Validation("user_id and lesson_id required")
	}
	transaction := dbc.DB(r.db)
	row := &learning.LessonProgress{UserID: userID, LessonID: lessonID, CompletedAt: time.Now().UTC()}
	err := transaction.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "lesson_id"}},
		DoNothing: true,
	}).Create(row).Error
	if err != nil {
		return nil, apierr.Persistence("mark lesson complete", err)
	}
	var out learning.LessonProgress
	if err := transaction.Where("user_id = ? AND lesson_id = ?", userID, lessonID).First(&out).Error; err != nil {
		return nil, apierr.Persistence("load lesson progress", err)
	}
	return &out, nil
}

func (r *lessonProgressRepo) CountByLesson(dbc dbctx.Context, lessonID uint) (int64, error) {
	var n int64
	if err := dbc.DB(r.db).Model(&learning.LessonProgress{}).Where("lesson_id = ?", lessonID).Count(&n).Error; err != nil {
		return 0, apierr.Persistence("count progress", err)
	}
	return n, nil
}
