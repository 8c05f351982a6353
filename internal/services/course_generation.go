package services

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	repos "github.com/yungbote/coursegen-backend/internal/data/repos/learning"
	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	"github.com/yungbote/coursegen-backend/internal/jobs/pipeline/assessment"
	"github.com/yungbote/coursegen-backend/internal/jobs/pipeline/composition"
	"github.com/yungbote/coursegen-backend/internal/jobs/pipeline/ingestion"
	"github.com/yungbote/coursegen-backend/internal/jobs/pipeline/lessons"
	jobrt "github.com/yungbote/coursegen-backend/internal/jobs/runtime"
	"github.com/yungbote/coursegen-backend/internal/learning/draftdoc"
	"github.com/yungbote/coursegen-backend/internal/pkg/ctxutil"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

type ComposeInput struct {
	MaxTopics       int `json:"max_topics" binding:"omitempty,min=1,max=20"`
	LessonsPerTopic int `json:"lessons_per_topic" binding:"omitempty,min=1,max=10"`
}

type GenerateLessonsInput struct {
	TopicIDs   []uint `json:"topic_ids"`
	Regenerate bool   `json:"regenerate"`
}

// LessonJob is the outcome of enqueuing lessons for one topic. Error is set
// when that topic already has a job in flight.
type LessonJob struct {
	TopicID uint                `json:"topic_id"`
	Job     *jobs.GenerationJob `json:"job,omitempty"`
	Error   string              `json:"error,omitempty"`
}

type GenerateTestsInput struct {
	QuestionCount   int                    `json:"question_count" binding:"omitempty,min=1,max=100"`
	DurationMinutes int                    `json:"duration_minutes" binding:"omitempty,min=1,max=600"`
	Difficulty      *assessment.Difficulty `json:"difficulty"`
}

type AddDocumentInput struct {
	URL      string `json:"url" binding:"required"`
	Revision string `json:"revision"`
}

type DraftView struct {
	CourseID  uint                      `json:"course_id"`
	Version   int                       `json:"version"`
	SessionID string                    `json:"session_id"`
	Status    learning.DraftStatus      `json:"status"`
	Content   draftdoc.Content          `json:"content"`
	Chat      []learning.ReviewChatTurn `json:"chat"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

type CourseGenerationService interface {
	Compose(ctx context.Context, courseID uint, in ComposeInput) (jobs.GenerationJob, error)
	GetDraft(ctx context.Context, courseID uint) (*DraftView, error)
	GenerateLessons(ctx context.Context, courseID uint, in GenerateLessonsInput) ([]LessonJob, error)
	GenerateTests(ctx context.Context, courseID uint, in GenerateTestsInput) (jobs.GenerationJob, error)
	AddDocument(ctx context.Context, courseID uint, in AddDocumentInput) (jobs.GenerationJob, error)
}

type courseGenerationService struct {
	log     *logger.Logger
	courses repos.CourseRepo
	drafts  repos.DraftRepo
	topics  repos.TopicRepo
	runner  JobRunner
}

func NewCourseGenerationService(
	baseLog *logger.Logger,
	courses repos.CourseRepo,
	drafts repos.DraftRepo,
	topics repos.TopicRepo,
	runner JobRunner,
) CourseGenerationService {
	return &courseGenerationService{
		log:     baseLog.With("service", "CourseGenerationService"),
		courses: courses,
		drafts:  drafts,
		topics:  topics,
		runner:  runner,
	}
}

func (s *courseGenerationService) Compose(ctx context.Context, courseID uint, in ComposeInput) (jobs.GenerationJob, error) {
	course, err := s.courses.GetByID(dbctx.New(ctx), courseID)
	if err != nil {
		return jobs.GenerationJob{}, err
	}
	if course.CompositionStatus == learning.CompositionApproved {
		return jobs.GenerationJob{}, apierr.Conflict("course %d is already approved", courseID)
	}
	job, err := s.runner.Enqueue(ctx, jobrt.Spec{
		CourseID:    courseID,
		Kind:        jobs.KindComposition,
		OwnerUserID: ctxutil.UserID(ctx),
		SessionID:   uuid.NewString(),
		Payload: composition.Payload{
			MaxTopics:       in.MaxTopics,
			LessonsPerTopic: in.LessonsPerTopic,
		},
	})
	if err != nil {
		return jobs.GenerationJob{}, err
	}
	s.log.Info("Composition enqueued", "course_id", courseID, "job_id", job.ID, "session_id", job.SessionID)
	return job, nil
}

func (s *courseGenerationService) GetDraft(ctx context.Context, courseID uint) (*DraftView, error) {
	dbc := dbctx.New(ctx)
	draft, content, err := s.drafts.Load(dbc, courseID)
	if err != nil {
		return nil, err
	}
	turns, err := s.drafts.ListTurns(dbc, courseID)
	if err != nil {
		return nil, err
	}
	return &DraftView{
		CourseID:  draft.CourseID,
		Version:   draft.Version,
		SessionID: draft.SessionID,
		Status:    draft.Status,
		Content:   content,
		Chat:      turns,
		CreatedAt: draft.CreatedAt,
		UpdatedAt: draft.UpdatedAt,
	}, nil
}

func (s *courseGenerationService) GenerateLessons(ctx context.Context, courseID uint, in GenerateLessonsInput) ([]LessonJob, error) {
	dbc := dbctx.New(ctx)
	if _, err := s.courses.GetByID(dbc, courseID); err != nil {
		return nil, err
	}
	var (
		topics []*learning.Topic
		err    error
	)
	if len(in.TopicIDs) > 0 {
		topics, err = s.topics.ListByIDs(dbc, courseID, in.TopicIDs)
	} else {
		topics, err = s.topics.ListByCourse(dbc, courseID)
	}
	if err != nil {
		return nil, err
	}
	if len(topics) == 0 {
		return nil, apierr.Validation("course %d has no approved topics", courseID)
	}

	out, err := enqueueLessonJobs(ctx, s.runner, courseID, ctxutil.UserID(ctx), topics, in.Regenerate, 0)
	if err != nil {
		return nil, err
	}
	queued := 0
	for _, r := range out {
		if r.Job != nil {
			queued++
		}
	}
	if queued == 0 {
		return nil, apierr.Conflict("lessons are already being generated for every requested topic")
	}
	s.log.Info("Lesson generation enqueued", "course_id", courseID, "topics", len(topics), "queued", queued, "regenerate", in.Regenerate)
	return out, nil
}

// enqueueLessonJobs schedules one lessons job per topic. A topic that
// already has a job in flight is reported in its LessonJob; any other
// enqueue error aborts. lessonCount 0 leaves the count to the topic outlines.
func enqueueLessonJobs(ctx context.Context, runner JobRunner, courseID uint, ownerID string, topics []*learning.Topic, regenerate bool, lessonCount int) ([]LessonJob, error) {
	out := make([]LessonJob, 0, len(topics))
	for _, t := range topics {
		job, err := runner.Enqueue(ctx, jobrt.Spec{
			CourseID:    courseID,
			Kind:        jobs.KindLessons,
			Scope:       strconv.FormatUint(uint64(t.ID), 10),
			OwnerUserID: ownerID,
			Payload:     lessons.Payload{TopicID: t.ID, Regenerate: regenerate, LessonCount: lessonCount},
		})
		switch {
		case apierr.Is(err, apierr.KindConflict):
			out = append(out, LessonJob{TopicID: t.ID, Error: err.Error()})
		case err != nil:
			return out, err
		default:
			j := job
			out = append(out, LessonJob{TopicID: t.ID, Job: &j})
		}
	}
	return out, nil
}

func (s *courseGenerationService) GenerateTests(ctx context.Context, courseID uint, in GenerateTestsInput) (jobs.GenerationJob, error) {
	if in.QuestionCount < 0 || in.DurationMinutes < 0 {
		return jobs.GenerationJob{}, apierr.Validation("question_count and duration_minutes must be positive")
	}
	diff, err := assessment.NormalizeDifficulty(in.Difficulty)
	if err != nil {
		return jobs.GenerationJob{}, err
	}
	dbc := dbctx.New(ctx)
	if _, err := s.courses.GetByID(dbc, courseID); err != nil {
		return jobs.GenerationJob{}, err
	}
	topics, err := s.topics.ListByCourse(dbc, courseID)
	if err != nil {
		return jobs.GenerationJob{}, err
	}
	if len(topics) == 0 {
		return jobs.GenerationJob{}, apierr.Validation("course %d has no approved topics", courseID)
	}
	job, err := s.runner.Enqueue(ctx, jobrt.Spec{
		CourseID:    courseID,
		Kind:        jobs.KindAssessment,
		OwnerUserID: ctxutil.UserID(ctx),
		Payload: assessment.Payload{
			QuestionCount:   in.QuestionCount,
			DurationMinutes: in.DurationMinutes,
			Difficulty:      &diff,
		},
	})
	if err != nil {
		return jobs.GenerationJob{}, err
	}
	s.log.Info("Test generation enqueued", "course_id", courseID, "job_id", job.ID)
	return job, nil
}

func (s *courseGenerationService) AddDocument(ctx context.Context, courseID uint, in AddDocumentInput) (jobs.GenerationJob, error) {
	raw := strings.TrimSpace(in.URL)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return jobs.GenerationJob{}, apierr.Validation("url must be an absolute http(s) url")
	}
	if _, err := s.courses.GetByID(dbctx.New(ctx), courseID); err != nil {
		return jobs.GenerationJob{}, err
	}
	return s.runner.Enqueue(ctx, jobrt.Spec{
		CourseID:    courseID,
		Kind:        jobs.KindIngestion,
		OwnerUserID: ctxutil.UserID(ctx),
		Payload:     ingestion.Payload{URL: raw, Revision: strings.TrimSpace(in.Revision)},
	})
}
