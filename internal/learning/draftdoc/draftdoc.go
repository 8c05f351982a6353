// Package draftdoc defines the versioned documents produced by the generation
// agents and the rules they must satisfy before anything is persisted.
package draftdoc

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
)

// SchemaVersion is embedded in every persisted draft blob.
const SchemaVersion = 1

// Content is the persisted draft blob. LessonsPerTopic is zero in blobs
// written before the requested lesson count was recorded.
type Content struct {
	SchemaVersion   int         `json:"schema_version"`
	Composition     Composition `json:"composition"`
	Feedback        string      `json:"feedback,omitempty"`
	LessonsPerTopic int         `json:"lessons_per_topic,omitempty"`
}

type Composition struct {
	Topics                  []TopicDraft `json:"topics" validate:"required,min=1,dive"`
	DurationEstimateMinutes int          `json:"duration_estimate_minutes" validate:"gte=0"`
	DescriptionRefined      string       `json:"description_refined"`
}

type TopicDraft struct {
	Name           string          `json:"name" validate:"required"`
	Description    string          `json:"description"`
	Prerequisites  []string        `json:"prerequisites"`
	Skills         []SkillDraft    `json:"skills" validate:"required,min=1,dive"`
	LessonOutlines []LessonOutline `json:"lesson_outlines" validate:"dive"`
}

type SkillDraft struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type LessonOutline struct {
	Title   string `json:"title" validate:"required"`
	Summary string `json:"summary"`
	Order   int    `json:"order" validate:"gte=1"`
}

func NewContent(c Composition, feedback string) Content {
	return Content{SchemaVersion: SchemaVersion, Composition: c, Feedback: feedback}
}

func Encode(c Content) ([]byte, error) {
	if c.SchemaVersion == 0 {
		c.SchemaVersion = SchemaVersion
	}
	if c.SchemaVersion != SchemaVersion {
		return nil, apierr.Conflict("draft schema_version %d is not supported", c.SchemaVersion)
	}
	return json.Marshal(c)
}

// Decode parses a stored blob and rejects schema versions this build does not know.
func Decode(raw []byte) (Content, error) {
	var probe struct {
		SchemaVersion *int `json:"schema_version"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Content{}, apierr.Validation("draft content is not valid json: %v", err)
	}
	if probe.SchemaVersion == nil {
		return Content{}, apierr.Conflict("draft content has no schema_version")
	}
	if *probe.SchemaVersion != SchemaVersion {
		return Content{}, apierr.Conflict("draft schema_version %d is not supported", *probe.SchemaVersion)
	}
	var c Content
	if err := json.Unmarshal(raw, &c); err != nil {
		return Content{}, apierr.Validation("decode draft content: %v", err)
	}
	return c, nil
}

// NormalizeName lowercases and collapses whitespace. Topic identity and
// prerequisite matching both go through it.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// TopicExternalID is stable across composition retries for the same course and topic name.
func TopicExternalID(courseID uint, name string) string {
	sum := sha256.Sum256([]byte(strconv.FormatUint(uint64(courseID), 10) + ":" + NormalizeName(name)))
	return hex.EncodeToString(sum[:16])
}

// ValidationError lists every rule an agent output broke. The list is fed
// back into the repair prompt.
type ValidationError struct {
	Subject string
	Issues  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s invalid: %s", e.Subject, strings.Join(e.Issues, "; "))
}

type issues struct {
	subject string
	list    []string
}

func (i *issues) addf(format string, args ...any) {
	i.list = append(i.list, fmt.Sprintf(format, args...))
}

func (i *issues) err() error {
	if len(i.list) == 0 {
		return nil
	}
	return &ValidationError{Subject: i.subject, Issues: i.list}
}
