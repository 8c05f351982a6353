package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	"github.com/yungbote/coursegen-backend/internal/learning/draftdoc"
)

func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, title string) *learning.Course {
	tb.Helper()
	c := &learning.Course{
		OwnerUserID:          "admin-1",
		Title:                title,
		Description:          "A course about " + title,
		Level:                "beginner",
		CompositionStatus:    learning.CompositionNotStarted,
		TestGenerationStatus: learning.TestGenNotStarted,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

func SeedTopic(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID uint, name string, order int, skills ...string) *learning.Topic {
	tb.Helper()
	cid := courseID
	t := &learning.Topic{
		CourseID:    &cid,
		ExternalID:  draftdoc.TopicExternalID(courseID, name),
		Name:        name,
		Description: "All about " + name,
		Order:       order,
	}
	if err := tx.WithContext(ctx).Omit("Skills", "Lessons").Create(t).Error; err != nil {
		tb.Fatalf("seed topic: %v", err)
	}
	for _, s := range skills {
		sk := learning.Skill{TopicID: t.ID, Name: s, Description: s + " basics"}
		if err := tx.WithContext(ctx).Create(&sk).Error; err != nil {
			tb.Fatalf("seed skill: %v", err)
		}
		t.Skills = append(t.Skills, sk)
	}
	return t
}

func SeedLesson(tb testing.TB, ctx context.Context, tx *gorm.DB, topicID uint, order int, title string) *learning.Lesson {
	tb.Helper()
	l := &learning.Lesson{
		TopicID:     topicID,
		Title:       title,
		Description: title + " description",
		Order:       order,
		Sections: []learning.LessonSection{
			{Type: learning.SectionText, Content: "Intro to " + title, Order: 1},
		},
	}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed lesson: %v", err)
	}
	return l
}

// AnswerSpec describes one answered question of a seeded session.
type AnswerSpec struct {
	Skill   string
	Correct bool
}

func SeedFinishedSession(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID uint, userID string, answers []AnswerSpec) *learning.TestSession {
	tb.Helper()
	test := &learning.Test{CourseID: courseID, Title: "Entry test", DurationMinutes: 30}
	for i, a := range answers {
		test.Questions = append(test.Questions, learning.TestQuestion{
			Order:     i + 1,
			Type:      learning.QuestionMultipleChoice,
			Prompt:    "Question about " + a.Skill,
			Options:   []string{"a", "b"},
			Answer:    "a",
			SkillName: a.Skill,
		})
	}
	if err := tx.WithContext(ctx).Create(test).Error; err != nil {
		tb.Fatalf("seed test: %v", err)
	}
	now := time.Now().UTC()
	s := &learning.TestSession{TestID: test.ID, UserID: userID, CompletedAt: &now}
	for i, a := range answers {
		resp := "a"
		if !a.Correct {
			resp = "b"
		}
		s.Answers = append(s.Answers, learning.TestAnswer{
			QuestionID: test.Questions[i].ID,
			Response:   resp,
			Correct:    a.Correct,
		})
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed session: %v", err)
	}
	return s
}

func PtrUint(v uint) *uint { return &v }
