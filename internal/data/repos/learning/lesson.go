package learning

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

type LessonRepo interface {
	CountByTopic(dbc dbctx.Context, topicID uint) (int64, error)
	// ReplaceForTopic deletes the topic's lessons (with their sections, exercises
	// and learner progress) and inserts the given ones in order, linking prev/next.
	// It opens its own transaction when dbc carries none.
	ReplaceForTopic(dbc dbctx.Context, topicID uint, lessons []*learning.Lesson) ([]*learning.Lesson, error)
	ListByTopic(dbc dbctx.Context, topicID uint) ([]*learning.Lesson, error)
	GetWithContent(dbc dbctx.Context, id uint) (*learning.Lesson, error)
	Exists(dbc dbctx.Context, id uint) (bool, error)
}

type lessonRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLessonRepo(db *gorm.DB, baseLog *logger.Logger) LessonRepo {
	return &lessonRepo{db: db, log: baseLog.With("repo", "LessonRepo")}
}

func (r *lessonRepo) CountByTopic(dbc dbctx.Context, topicID uint) (int64, error) {
	var n int64
	if err := dbc.DB(r.db).Model(&learning.Lesson{}).Where("topic_id = ?", topicID).Count(&n).Error; err != nil {
		return 0, apierr.Persistence("count lessons", err)
	}
	return n, nil
}

func (r *lessonRepo) ReplaceForTopic(dbc dbctx.Context, topicID uint, lessons []*learning.Lesson) ([]*learning.Lesson, error) {
	if dbc.Tx == nil {
		var out []*learning.Lesson
		err := r.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			out, err = r.ReplaceForTopic(dbc.WithTx(tx), topicID, lessons)
			return err
		})
		return out, err
	}
	transaction := dbc.DB(r.db)

	if err := deleteTopicLessons(transaction, topicID); err != nil {
		return nil, apierr.Persistence("delete lessons", err)
	}

	for i, l := range lessons {
		l.ID = 0
		l.TopicID = topicID
		l.Order = i + 1
		l.PrevLessonID = nil
		l.NextLessonID = nil
		if err := transaction.Omit("Sections", "Exercises").Create(l).Error; err != nil {
			return nil, apierr.Persistence("create lesson", err)
		}
		for j := range l.Sections {
			l.Sections[j].ID = 0
			l.Sections[j].LessonID = l.ID
		}
		if len(l.Sections) > 0 {
			if err := transaction.Create(&l.Sections).Error; err != nil {
				return nil, apierr.Persistence("create sections", err)
			}
		}
		for j := range l.Exercises {
			ex := &l.Exercises[j]
			ex.ID = 0
			ex.LessonID = l.ID
			cases := ex.TestCases
			if err := transaction.Omit("TestCases").Create(ex).Error; err != nil {
				return nil, apierr.Persistence("create exercise", err)
			}
			for k := range cases {
				cases[k].ID = 0
				cases[k].ExerciseID = ex.ID
			}
			if len(cases) > 0 {
				if err := transaction.Create(&cases).Error; err != nil {
					return nil, apierr.Persistence("create test cases", err)
				}
			}
			ex.TestCases = cases
		}
	}

	for i, l := range lessons {
		updates := map[string]interface{}{"prev_lesson_id": nil, "next_lesson_id": nil}
		if i > 0 {
			prev := lessons[i-1].ID
			l.PrevLessonID = &prev
			updates["prev_lesson_id"] = prev
		}
		if i < len(lessons)-1 {
			next := lessons[i+1].ID
			l.NextLessonID = &next
			updates["next_lesson_id"] = next
		}
		if err := transaction.Model(&learning.Lesson{}).Where("id = ?", l.ID).Updates(updates).Error; err != nil {
			return nil, apierr.Persistence("link lessons", err)
		}
	}
	return lessons, nil
}

func deleteTopicLessons(tx *gorm.DB, topicID uint) error {
	var lessonIDs []uint
	if err := tx.Model(&learning.Lesson{}).Where("topic_id = ?", topicID).Pluck("id", &lessonIDs).Error; err != nil {
		return err
	}
	if len(lessonIDs) == 0 {
		return nil
	}
	var exerciseIDs []uint
	if err := tx.Model(&learning.Exercise{}).Where("lesson_id IN ?", lessonIDs).Pluck("id", &exerciseIDs).Error; err != nil {
		return err
	}
	if len(exerciseIDs) > 0 {
		if err := tx.Where("exercise_id IN ?", exerciseIDs).Delete(&learning.ExerciseTestCase{}).Error; err != nil {
			return err
		}
	}
	steps := []struct {
		model any
		where string
	}{
		{&learning.Exercise{}, "lesson_id IN ?"},
		{&learning.LessonSection{}, "lesson_id IN ?"},
		{&learning.LessonProgress{}, "lesson_id IN ?"},
		{&learning.Lesson{}, "id IN ?"},
	}
	for _, s := range steps {
		if err := tx.Where(s.where, lessonIDs).Delete(s.model).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *lessonRepo) ListByTopic(dbc dbctx.Context, topicID uint) ([]*learning.Lesson, error) {
	var out []*learning.Lesson
	err := dbc.DB(r.db).Where("topic_id = ?", topicID).Order(byOrder()).Find(&out).Error
	if err != nil {
		return nil, apierr.Persistence("list lessons", err)
	}
	return out, nil
}

func (r *lessonRepo) GetWithContent(dbc dbctx.Context, id uint) (*learning.Lesson, error) {
	var l learning.Lesson
	err := dbc.DB(r.db).
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order(byOrder()) }).
		Preload("Exercises", orderByID).
		Preload("Exercises.TestCases", orderByID).
		Where("id = ?", id).
		First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("lesson %d not found", id)
	}
	if err != nil {
		return nil, apierr.Persistence("get lesson", err)
	}
	return &l, nil
}

func (r *lessonRepo) Exists(dbc dbctx.Context, id uint) (bool, error) {
	var n int64
	if err := dbc.DB(r.db).Model(&learning.Lesson{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, apierr.Persistence("lesson exists", err)
	}
	return n > 0, nil
}
