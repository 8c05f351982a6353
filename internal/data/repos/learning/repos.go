package learning

import (
	"gorm.io/gorm"

	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

// Set bundles the repositories the generation pipeline writes through.
type Set struct {
	Courses     CourseRepo
	Drafts      DraftRepo
	Topics      TopicRepo
	Lessons     LessonRepo
	Progress    LessonProgressRepo
	Tests       TestRepo
	Assessments AssessmentRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Courses:     NewCourseRepo(db, log),
		Drafts:      NewDraftRepo(db, log),
		Topics:      NewTopicRepo(db, log),
		Lessons:     NewLessonRepo(db, log),
		Progress:    NewLessonProgressRepo(db, log),
		Tests:       NewTestRepo(db, log),
		Assessments: NewAssessmentRepo(db, log),
	}
}
