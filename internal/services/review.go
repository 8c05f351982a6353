package services

import (
	"context"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/coursegen-backend/internal/data/docstore"
	repos "github.com/yungbote/coursegen-backend/internal/data/repos/learning"
	"github.com/yungbote/coursegen-backend/internal/domain/jobs"
	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	"github.com/yungbote/coursegen-backend/internal/jobs/pipeline/composition"
	jobrt "github.com/yungbote/coursegen-backend/internal/jobs/runtime"
	"github.com/yungbote/coursegen-backend/internal/learning/draftdoc"
	"github.com/yungbote/coursegen-backend/internal/pkg/ctxutil"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

type ReviewInput struct {
	Approved *bool  `json:"approved" binding:"required"`
	Feedback string `json:"feedback"`
}

type ChatInput struct {
	Message string `json:"message" binding:"required"`
}

type ApproveResult struct {
	Status        learning.DraftStatus `json:"status"`
	AlreadyDone   bool                 `json:"already_approved,omitempty"`
	Topics        []*learning.Topic    `json:"topics"`
	LessonJobs    []LessonJob          `json:"lesson_jobs,omitempty"`
	EnqueueFailed string               `json:"enqueue_error,omitempty"`
}

type RejectResult struct {
	Status       learning.DraftStatus     `json:"status"`
	Turn         *learning.ReviewChatTurn `json:"turn"`
	Recompose    *jobs.GenerationJob      `json:"job,omitempty"`
	RecomposeErr string                   `json:"job_error,omitempty"`
}

type ReviewService interface {
	Decide(ctx context.Context, courseID uint, in ReviewInput) (any, error)
	Approve(ctx context.Context, courseID uint) (*ApproveResult, error)
	Reject(ctx context.Context, courseID uint, feedback string) (*RejectResult, error)
	Chat(ctx context.Context, courseID uint, message string) (*learning.ReviewChatTurn, error)
	History(ctx context.Context, courseID uint) ([]docstore.DraftSnapshot, error)
}

type reviewService struct {
	db      *gorm.DB
	log     *logger.Logger
	courses repos.CourseRepo
	drafts  repos.DraftRepo
	topics  repos.TopicRepo
	history docstore.DraftHistory
	runner  JobRunner
}

func NewReviewService(
	db *gorm.DB,
	baseLog *logger.Logger,
	courses repos.CourseRepo,
	drafts repos.DraftRepo,
	topics repos.TopicRepo,
	history docstore.DraftHistory,
	runner JobRunner,
) ReviewService {
	return &reviewService{
		db:      db,
		log:     baseLog.With("service", "ReviewService"),
		courses: courses,
		drafts:  drafts,
		topics:  topics,
		history: history,
		runner:  runner,
	}
}

func (s *reviewService) Decide(ctx context.Context, courseID uint, in ReviewInput) (any, error) {
	if in.Approved == nil {
		return nil, apierr.Validation("approved required")
	}
	if *in.Approved {
		return s.Approve(ctx, courseID)
	}
	return s.Reject(ctx, courseID, in.Feedback)
}

// Approve promotes the pending draft into live topics and skills. A second
// call on an approved draft changes nothing.
func (s *reviewService) Approve(ctx context.Context, courseID uint) (*ApproveResult, error) {
	res := &ApproveResult{Status: learning.DraftApproved}
	lessonCount := 0
	err := serializable(ctx, s.db, s.log, func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		course, err := s.courses.GetByID(dbc, courseID)
		if err != nil {
			return err
		}
		draft, content, err := s.drafts.Load(dbc, courseID)
		if err != nil {
			return err
		}
		switch draft.Status {
		case learning.DraftApproved:
			res.AlreadyDone = true
			res.Topics, err = s.topics.ListByCourse(dbc, courseID)
			return err
		case learning.DraftRejected:
			return apierr.Conflict("draft v%d for course %d was rejected", draft.Version, courseID)
		}
		if course.CompositionStatus == learning.CompositionPending {
			return apierr.Conflict("a composition for course %d is still running", courseID)
		}

		res.Topics, err = s.topics.UpsertByExternalID(dbc, courseID, topicsFromDraft(courseID, content.Composition))
		if err != nil {
			return err
		}
		lessonCount = content.LessonsPerTopic
		ok, err := s.drafts.Transition(dbc, courseID, draft.Version, learning.DraftPending, learning.DraftApproved)
		if err != nil {
			return err
		}
		if !ok {
			return apierr.Conflict("draft for course %d changed during approval", courseID)
		}
		return s.courses.SetCompositionStatus(dbc, courseID, learning.CompositionApproved, "")
	})
	if err != nil {
		return nil, err
	}
	if res.AlreadyDone {
		return res, nil
	}

	s.log.Info("Draft approved", "course_id", courseID, "topics", len(res.Topics))
	res.LessonJobs, err = enqueueLessonJobs(ctx, s.runner, courseID, ctxutil.UserID(ctx), res.Topics, false, lessonCount)
	if err != nil {
		// The promotion is committed; lessons can be requested again later.
		s.log.Warn("Failed to enqueue lesson generation after approval", "course_id", courseID, "error", err)
		res.EnqueueFailed = err.Error()
	}
	return res, nil
}

func topicsFromDraft(courseID uint, c draftdoc.Composition) []*learning.Topic {
	out := make([]*learning.Topic, 0, len(c.Topics))
	for i, t := range c.Topics {
		outlines, _ := json.Marshal(t.LessonOutlines)
		topic := &learning.Topic{
			ExternalID:     draftdoc.TopicExternalID(courseID, t.Name),
			Name:           strings.TrimSpace(t.Name),
			Description:    t.Description,
			Order:          i + 1,
			Prerequisites:  append([]string{}, t.Prerequisites...),
			LessonOutlines: datatypes.JSON(outlines),
		}
		for _, sk := range t.Skills {
			topic.Skills = append(topic.Skills, learning.Skill{Name: sk.Name, Description: sk.Description})
		}
		out = append(out, topic)
	}
	return out
}

// Reject closes the pending draft and records the feedback as an admin turn.
// Non-empty feedback starts a new composition that sees it.
func (s *reviewService) Reject(ctx context.Context, courseID uint, feedback string) (*RejectResult, error) {
	feedback = strings.TrimSpace(feedback)
	res := &RejectResult{Status: learning.DraftRejected}
	var rejected *learning.Draft
	var topicCount, lessonsPerTopic int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		draft, content, err := s.drafts.Load(dbc, courseID)
		if err != nil {
			return err
		}
		if draft.Status != learning.DraftPending {
			return apierr.Conflict("draft v%d for course %d is already %s", draft.Version, courseID, draft.Status)
		}
		ok, err := s.drafts.Transition(dbc, courseID, draft.Version, learning.DraftPending, learning.DraftRejected)
		if err != nil {
			return err
		}
		if !ok {
			return apierr.Conflict("draft for course %d changed during rejection", courseID)
		}
		msg := feedback
		if msg == "" {
			msg = "Draft rejected."
		}
		turn := &learning.ReviewChatTurn{
			CourseID:     courseID,
			DraftVersion: draft.Version,
			Author:       learning.AuthorAdmin,
			Message:      msg,
		}
		if err := s.drafts.AppendTurn(dbc, turn); err != nil {
			return err
		}
		res.Turn = turn
		draft.Status = learning.DraftRejected
		rejected = draft
		topicCount = len(content.Composition.Topics)
		lessonsPerTopic = content.LessonsPerTopic
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Draft rejected", "course_id", courseID, "version", rejected.Version, "feedback", feedback != "")

	if err := s.history.Archive(context.WithoutCancel(ctx), docstore.SnapshotOf(rejected)); err != nil {
		s.log.Warn("Failed to archive rejected draft", "course_id", courseID, "version", rejected.Version, "error", err)
	}
	if feedback == "" {
		return res, nil
	}

	maxTopics := composition.DefaultMaxTopics
	if topicCount+1 > maxTopics {
		maxTopics = topicCount + 1
	}
	job, err := s.runner.Enqueue(ctx, jobrt.Spec{
		CourseID:    courseID,
		Kind:        jobs.KindComposition,
		OwnerUserID: ctxutil.UserID(ctx),
		SessionID:   rejected.SessionID,
		Payload:     composition.Payload{MaxTopics: maxTopics, LessonsPerTopic: lessonsPerTopic, Feedback: feedback},
	})
	if err != nil {
		s.log.Warn("Failed to re-enqueue composition", "course_id", courseID, "error", err)
		res.RecomposeErr = err.Error()
		return res, nil
	}
	res.Recompose = &job
	return res, nil
}

// Chat appends an admin turn to the review conversation. The next
// composition run reads the whole conversation.
func (s *reviewService) Chat(ctx context.Context, courseID uint, message string) (*learning.ReviewChatTurn, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apierr.Validation("message required")
	}
	dbc := dbctx.New(ctx)
	draft, err := s.drafts.Get(dbc, courseID)
	if err != nil {
		return nil, err
	}
	turn := &learning.ReviewChatTurn{
		CourseID:     courseID,
		DraftVersion: draft.Version,
		Author:       learning.AuthorAdmin,
		Message:      message,
	}
	if err := s.drafts.AppendTurn(dbc, turn); err != nil {
		return nil, err
	}
	return turn, nil
}

func (s *reviewService) History(ctx context.Context, courseID uint) ([]docstore.DraftSnapshot, error) {
	if _, err := s.courses.GetByID(dbctx.New(ctx), courseID); err != nil {
		return nil, err
	}
	return s.history.List(ctx, courseID)
}
