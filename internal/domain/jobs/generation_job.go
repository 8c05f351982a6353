package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindComposition Kind = "composition"
	KindLessons     Kind = "lessons"
	KindAssessment  Kind = "assessment"
	KindIngestion   Kind = "ingestion"
)

type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateReady     State = "ready"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// InFlight reports whether a job in this state blocks another job with the same key.
func (s State) InFlight() bool { return s == StateQueued || s == StateRunning }

func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed || s == StateCancelled
}

// Key identifies the single-flight slot of a job. Scope narrows the slot
// below the course, e.g. to one topic for lessons jobs.
type Key struct {
	CourseID uint
	Kind     Kind
	Scope    string
}

// GenerationJob is the runtime record of one logical agent run. It is not persisted.
type GenerationJob struct {
	ID          uuid.UUID       `json:"job_id"`
	CourseID    uint            `json:"course_id"`
	Kind        Kind            `json:"kind"`
	Scope       string          `json:"scope,omitempty"`
	OwnerUserID string          `json:"owner_user_id,omitempty"`
	SessionID   string          `json:"session_id,omitempty"`
	State       State           `json:"state"`
	Stage       string          `json:"stage,omitempty"`
	Attempts    int             `json:"attempts"`
	LastError   string          `json:"last_error,omitempty"`
	Payload     json.RawMessage `json:"-"`
	Result      json.RawMessage `json:"result,omitempty"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

func (j *GenerationJob) Key() Key {
	return Key{CourseID: j.CourseID, Kind: j.Kind, Scope: j.Scope}
}
