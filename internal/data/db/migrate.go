package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/coursegen-backend/internal/domain/learning"
)

// AutoMigrateAll keeps the tables this service writes in sync with the models.
// Schema migrations for the wider platform live elsewhere.
func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Catalog
		&learning.Course{},
		&learning.Topic{},
		&learning.Skill{},
		&learning.Lesson{},
		&learning.LessonSection{},
		&learning.Exercise{},
		&learning.ExerciseTestCase{},
		&learning.LessonProgress{},

		// Review
		&learning.Draft{},
		&learning.ReviewChatTurn{},

		// Assessment
		&learning.Test{},
		&learning.TestQuestion{},
		&learning.TestSession{},
		&learning.TestAnswer{},
		&learning.UserAssessment{},
	)
}
