package realtime

import (
	"context"
	"encoding/json"
)

const (
	EventGenerationStatus = "generation.status"
	EventLessonCompleted  = "lesson.completed"
	EventError            = "error"

	MessageCompleteLesson = "learn.complete_lesson"
)

// Event is a server to client message.
type Event struct {
	Type     string `json:"type"`
	CourseID uint   `json:"course_id,omitempty"`
	JobID    string `json:"job_id,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Scope    string `json:"scope,omitempty"`
	State    string `json:"state,omitempty"`
	Stage    string `json:"stage,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
	LessonID uint   `json:"lesson_id,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

func ErrorEvent(detail string) Event {
	return Event{Type: EventError, Detail: detail}
}

// Envelope addresses an event to one user; it is what travels on the bus.
type Envelope struct {
	UserID string `json:"user_id"`
	Event  Event  `json:"event"`
}

// Message is a client to server message.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`

	UserID string      `json:"-"`
	Reply  func(Event) `json:"-"`
}

// Bus carries envelopes between server instances.
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	StartForwarder(ctx context.Context, onMsg func(env Envelope)) error
	Close() error
}
