package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

// HandlerFunc either handles m or passes it on with next.
type HandlerFunc func(ctx context.Context, m *Message, next func() error) error

type Router struct {
	chain []HandlerFunc
}

func NewRouter(handlers ...HandlerFunc) *Router {
	return &Router{chain: handlers}
}

func (r *Router) Use(handlers ...HandlerFunc) { r.chain = append(r.chain, handlers...) }

func (r *Router) Dispatch(ctx context.Context, m *Message) error {
	var run func(i int) error
	run = func(i int) error {
		if i >= len(r.chain) {
			return nil
		}
		return r.chain[i](ctx, m, func() error { return run(i + 1) })
	}
	return run(0)
}

// LessonCompleter records that a learner finished a lesson.
type LessonCompleter interface {
	CompleteLesson(ctx context.Context, userID string, lessonID uint) error
}

// DefaultRouter is the chain every socket uses.
func DefaultRouter(log *logger.Logger, lessons LessonCompleter) *Router {
	return NewRouter(
		Recover(log),
		RequireType(),
		CompleteLesson(lessons),
		Unknown(),
	)
}

func Recover(log *logger.Logger) HandlerFunc {
	return func(ctx context.Context, m *Message, next func() error) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("Realtime handler panic", "type", m.Type, "panic", rec)
				err = fmt.Errorf("internal error")
			}
		}()
		return next()
	}
}

func RequireType() HandlerFunc {
	return func(ctx context.Context, m *Message, next func() error) error {
		if m.Type == "" {
			m.Reply(ErrorEvent("message type required"))
			return nil
		}
		return next()
	}
}

func CompleteLesson(lessons LessonCompleter) HandlerFunc {
	return func(ctx context.Context, m *Message, next func() error) error {
		if m.Type != MessageCompleteLesson {
			return next()
		}
		var data struct {
			LessonID uint `json:"lesson_id"`
		}
		if len(m.Data) == 0 || json.Unmarshal(m.Data, &data) != nil || data.LessonID == 0 {
			m.Reply(ErrorEvent("data.lesson_id required"))
			return nil
		}
		if err := lessons.CompleteLesson(ctx, m.UserID, data.LessonID); err != nil {
			return err
		}
		m.Reply(Event{Type: EventLessonCompleted, LessonID: data.LessonID})
		return nil
	}
}

func Unknown() HandlerFunc {
	return func(ctx context.Context, m *Message, next func() error) error {
		m.Reply(ErrorEvent("unknown message type: " + m.Type))
		return nil
	}
}
