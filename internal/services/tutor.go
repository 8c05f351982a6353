package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/yungbote/coursegen-backend/internal/data/sessionmem"
	repos "github.com/yungbote/coursegen-backend/internal/data/repos/learning"
	"github.com/yungbote/coursegen-backend/internal/domain/learning"
	"github.com/yungbote/coursegen-backend/internal/learning/prompts"
	"github.com/yungbote/coursegen-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
	"github.com/yungbote/coursegen-backend/internal/platform/llm"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
	"github.com/yungbote/coursegen-backend/internal/platform/vector"
)

const (
	TutorContextLesson = "lesson"
	TutorContextTopic  = "topic"
)

type TutorQuery struct {
	Type      string `json:"type" binding:"required,oneof=lesson topic"`
	ContextID uint   `json:"context_id" binding:"required"`
	SessionID string `json:"session_id"`
	Question  string `json:"question" binding:"required"`
}

// TutorStream is the model's token stream. Once it ends cleanly the exchange
// is written to the session memory, when the query carried a session id.
type TutorStream struct {
	*llm.TokenStream
	once   sync.Once
	onDone func(answer string)
}

func (s *TutorStream) Next() (string, bool) {
	tok, ok := s.TokenStream.Next()
	if !ok {
		s.once.Do(func() {
			if s.Err() == nil && s.onDone != nil {
				s.onDone(s.Text())
			}
		})
	}
	return tok, ok
}

type TutorService interface {
	Stream(ctx context.Context, q TutorQuery) (*TutorStream, error)
}

type tutorService struct {
	log       *logger.Logger
	topics    repos.TopicRepo
	lessons   repos.LessonRepo
	llm       *llm.Facade
	retriever *vector.Retriever
	memory    sessionmem.Store
	topK      int
}

func NewTutorService(
	baseLog *logger.Logger,
	topics repos.TopicRepo,
	lessons repos.LessonRepo,
	facade *llm.Facade,
	retriever *vector.Retriever,
	memory sessionmem.Store,
	topK int,
) TutorService {
	if topK <= 0 {
		topK = 6
	}
	return &tutorService{
		log:       baseLog.With("service", "TutorService"),
		topics:    topics,
		lessons:   lessons,
		llm:       facade,
		retriever: retriever,
		memory:    memory,
		topK:      topK,
	}
}

func (s *tutorService) Stream(ctx context.Context, q TutorQuery) (*TutorStream, error) {
	q.Question = strings.TrimSpace(q.Question)
	q.SessionID = strings.TrimSpace(q.SessionID)
	if q.Question == "" {
		return nil, apierr.Validation("question required")
	}
	if q.ContextID == 0 {
		return nil, apierr.Validation("context_id required")
	}

	var (
		text     string
		courseID uint
		err      error
	)
	switch q.Type {
	case TutorContextLesson:
		text, courseID, err = s.lessonContext(ctx, q.ContextID)
	case TutorContextTopic:
		text, courseID, err = s.topicContext(ctx, q.ContextID)
	default:
		return nil, apierr.Validation("type must be lesson or topic")
	}
	if err != nil {
		return nil, err
	}

	var filter map[string]any
	if courseID != 0 {
		filter = map[string]any{"course_id": courseID}
	}
	snippets, err := s.retriever.SearchTexts(ctx, vector.NamespaceDocument, q.Question, s.topK, filter)
	if err != nil {
		s.log.Warn("Tutor retrieval failed; answering without snippets", "type", q.Type, "context_id", q.ContextID, "error", err)
		snippets = nil
	}

	var history []sessionmem.Turn
	if q.SessionID != "" && s.memory != nil {
		history, err = s.memory.Recent(ctx, q.SessionID)
		if err != nil {
			s.log.Warn("Tutor memory unavailable", "session_id", q.SessionID, "error", err)
			history = nil
		}
	}

	stream := s.llm.Stream(ctx, llm.Request{
		Prompt: prompts.Tutor,
		Vars: map[string]any{
			"Type":     q.Type,
			"Context":  text,
			"Snippets": snippets,
			"History":  history,
			"Question": q.Question,
		},
	})
	out := &TutorStream{TokenStream: stream}
	if q.SessionID != "" && s.memory != nil {
		sessionID, question := q.SessionID, q.Question
		out.onDone = func(answer string) {
			err := s.memory.Append(context.WithoutCancel(ctx), sessionID,
				sessionmem.Turn{Role: "user", Content: question},
				sessionmem.Turn{Role: "assistant", Content: answer},
			)
			if err != nil {
				s.log.Warn("Failed to store tutor turn", "session_id", sessionID, "error", err)
			}
		}
	}
	return out, nil
}

func (s *tutorService) lessonContext(ctx context.Context, lessonID uint) (string, uint, error) {
	dbc := dbctx.New(ctx)
	lesson, err := s.lessons.GetWithContent(dbc, lessonID)
	if err != nil {
		return "", 0, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Lesson: %s\n%s\n", lesson.Title, lesson.Description)
	for _, sec := range lesson.Sections {
		b.WriteString("\n")
		switch sec.Type {
		case learning.SectionQuiz:
			fmt.Fprintf(&b, "Quiz: %s\nOptions: %s\nAnswer: %s\n", sec.Content, strings.Join(sec.Options, " | "), sec.Answer)
		case learning.SectionImage:
			fmt.Fprintf(&b, "Image: %s\n", sec.Content)
		default:
			b.WriteString(sec.Content)
			b.WriteString("\n")
		}
		if sec.Explanation != "" {
			fmt.Fprintf(&b, "Explanation: %s\n", sec.Explanation)
		}
	}
	var courseID uint
	if topic, err := s.topics.GetByID(dbc, lesson.TopicID); err == nil && topic.CourseID != nil {
		courseID = *topic.CourseID
	}
	return b.String(), courseID, nil
}

func (s *tutorService) topicContext(ctx context.Context, topicID uint) (string, uint, error) {
	topic, err := s.topics.GetByID(dbctx.New(ctx), topicID)
	if err != nil {
		return "", 0, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n%s\n", topic.Name, topic.Description)
	if len(topic.Skills) > 0 {
		b.WriteString("\nSkills:\n")
		for _, sk := range topic.Skills {
			fmt.Fprintf(&b, "- %s: %s\n", sk.Name, sk.Description)
		}
	}
	var courseID uint
	if topic.CourseID != nil {
		courseID = *topic.CourseID
	}
	return b.String(), courseID, nil
}
