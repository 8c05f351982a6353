package learning

import (
	"time"

	"gorm.io/datatypes"
)

type Test struct {
	ID              uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CourseID        uint           `gorm:"column:course_id;not null;index" json:"course_id"`
	Course          *Course        `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID" json:"-"`
	Title           string         `gorm:"column:title" json:"title"`
	DurationMinutes int            `gorm:"column:duration_minutes" json:"duration_minutes"`
	Difficulty      datatypes.JSON `gorm:"column:difficulty" json:"difficulty"`
	Questions       []TestQuestion `gorm:"constraint:OnDelete:CASCADE;foreignKey:TestID" json:"questions,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (Test) TableName() string { return "test" }

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionProblem        QuestionType = "problem"
)

type TestQuestion struct {
	ID         uint                        `gorm:"primaryKey;autoIncrement" json:"id"`
	TestID     uint                        `gorm:"column:test_id;not null;index" json:"test_id"`
	Order      int                         `gorm:"column:order;not null" json:"order"`
	Type       QuestionType                `gorm:"column:type;not null" json:"type"`
	Prompt     string                      `gorm:"column:prompt;type:text;not null" json:"prompt"`
	Options    datatypes.JSONSlice[string] `gorm:"column:options" json:"options,omitempty"`
	Answer     string                      `gorm:"column:answer;type:text" json:"answer"`
	TopicName  string                      `gorm:"column:topic_name" json:"topic_name"`
	SkillName  string                      `gorm:"column:skill_name;index" json:"skill_name"`
	Difficulty string                      `gorm:"column:difficulty" json:"difficulty"`
}

func (TestQuestion) TableName() string { return "test_question" }

// TestSession and TestAnswer are written by the scoring service; this module
// only reads finished sessions.
type TestSession struct {
	ID          uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	TestID      uint         `gorm:"column:test_id;not null;index" json:"test_id"`
	Test        *Test        `gorm:"constraint:OnDelete:CASCADE;foreignKey:TestID" json:"-"`
	UserID      string       `gorm:"column:user_id;not null;index" json:"user_id"`
	CompletedAt *time.Time   `gorm:"column:completed_at" json:"completed_at"`
	Answers     []TestAnswer `gorm:"constraint:OnDelete:CASCADE;foreignKey:SessionID" json:"answers,omitempty"`
}

func (TestSession) TableName() string { return "test_session" }

type TestAnswer struct {
	ID         uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID  uint          `gorm:"column:session_id;not null;index" json:"session_id"`
	QuestionID uint          `gorm:"column:question_id;not null" json:"question_id"`
	Question   *TestQuestion `gorm:"constraint:OnDelete:CASCADE;foreignKey:QuestionID" json:"-"`
	Response   string        `gorm:"column:response;type:text" json:"response"`
	Correct    bool          `gorm:"column:correct;not null" json:"correct"`
}

func (TestAnswer) TableName() string { return "test_answer" }

type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

type UserAssessment struct {
	ID                     uint                        `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID              uint                        `gorm:"column:session_id;not null;index" json:"session_id"`
	Session                *TestSession                `gorm:"constraint:OnDelete:CASCADE;foreignKey:SessionID" json:"-"`
	UserID                 string                      `gorm:"column:user_id;not null;index" json:"user_id"`
	SkillName              string                      `gorm:"column:skill_name;not null" json:"skill_name"`
	Weaknesses             datatypes.JSONSlice[string] `gorm:"column:weaknesses" json:"weaknesses"`
	WeaknessAnalysis       string                      `gorm:"column:weakness_analysis;type:text" json:"weakness_analysis"`
	ImprovementSuggestions datatypes.JSONSlice[string] `gorm:"column:improvement_suggestions" json:"improvement_suggestions"`
	CurrentLevel           string                      `gorm:"column:current_level" json:"current_level"`
	Severity               Severity                    `gorm:"column:severity" json:"severity"`
	IncorrectRatio         float64                     `gorm:"column:incorrect_ratio" json:"incorrect_ratio"`
	CreatedAt              time.Time                   `json:"created_at"`
}

func (UserAssessment) TableName() string { return "user_assessment" }
