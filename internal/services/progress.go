package services

import (
	"context"
	"strings"

	repos "github.com/yungbote/coursegen-backend/internal/data/repos/learning"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

// LessonProgressService records lesson completions arriving over the socket.
type LessonProgressService struct {
	log      *logger.Logger
	lessons  repos.LessonRepo
	progress repos.LessonProgressRepo
}

func NewLessonProgressService(baseLog *logger.Logger, lessons repos.LessonRepo, progress repos.LessonProgressRepo) *LessonProgressService {
	return &LessonProgressService{
		log:      baseLog.With("service", "LessonProgressService"),
		lessons:  lessons,
		progress: progress,
	}
}

func (s *LessonProgressService) CompleteLesson(ctx context.Context, userID string, lessonID uint) error {
	if strings.TrimSpace(userID) == "" {
		return apierr.Unauthorized("user required")
	}
	dbc := dbctx.New(ctx)
	ok, err := s.lessons.Exists(dbc, lessonID)
	if err != nil {
		return err
	}
	if !ok {
		return apierr.NotFound("lesson %d not found", lessonID)
	}
	if _, err := s.progress.MarkComplete(dbc, userID, lessonID); err != nil {
		return err
	}
	s.log.Debug("Lesson completed", "user_id", userID, "lesson_id", lessonID)
	return nil
}
