package services

import (
	"context"
	"strings"

	repos "github.com/yungbote/coursegen-backend/internal/data/repos/learning"
	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	"github.com/yungbote/coursegen-backend/internal/pkg/ctxutil"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

type CreateCourseInput struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Level       string `json:"level" binding:"omitempty,oneof=beginner intermediate advanced"`
}

// CourseView is a course with its live topics.
type CourseView struct {
	*learning.Course
	Topics []*learning.Topic `json:"topics"`
}

type CourseService interface {
	Create(ctx context.Context, in CreateCourseInput) (*learning.Course, error)
	Get(ctx context.Context, courseID uint) (*CourseView, error)
}

type courseService struct {
	log     *logger.Logger
	courses repos.CourseRepo
	topics  repos.TopicRepo
}

func NewCourseService(baseLog *logger.Logger, courses repos.CourseRepo, topics repos.TopicRepo) CourseService {
	return &courseService{
		log:     baseLog.With("service", "CourseService"),
		courses: courses,
		topics:  topics,
	}
}

func (s *courseService) Create(ctx context.Context, in CreateCourseInput) (*learning.Course, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apierr.Validation("title required")
	}
	course, err := s.courses.Create(dbctx.New(ctx), &learning.Course{
		OwnerUserID: ctxutil.UserID(ctx),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Level:       in.Level,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Course created", "course_id", course.ID, "user_id", course.OwnerUserID)
	return course, nil
}

func (s *courseService) Get(ctx context.Context, courseID uint) (*CourseView, error) {
	dbc := dbctx.New(ctx)
	course, err := s.courses.GetByID(dbc, courseID)
	if err != nil {
		return nil, err
	}
	topics, err := s.topics.ListByCourse(dbc, courseID)
	if err != nil {
		return nil, err
	}
	return &CourseView{Course: course, Topics: topics}, nil
}
