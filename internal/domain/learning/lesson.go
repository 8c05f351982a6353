package learning

import (
	"time"

	"gorm.io/datatypes"
)

type Lesson struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	TopicID      uint   `gorm:"column:topic_id;not null;index" json:"topic_id"`
	Title        string `gorm:"column:title;not null" json:"title"`
	Description  string `gorm:"column:description;type:text" json:"description"`
	Order        int    `gorm:"column:order;not null" json:"order"`
	PrevLessonID *uint  `gorm:"column:prev_lesson_id" json:"prev_lesson_id"`
	NextLessonID *uint  `gorm:"column:next_lesson_id" json:"next_lesson_id"`

	Sections  []LessonSection `gorm:"constraint:OnDelete:CASCADE;foreignKey:LessonID" json:"sections,omitempty"`
	Exercises []Exercise      `gorm:"constraint:OnDelete:CASCADE;foreignKey:LessonID" json:"exercises,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Lesson) TableName() string { return "lesson" }

type SectionType string

const (
	SectionText  SectionType = "text"
	SectionCode  SectionType = "code"
	SectionImage SectionType = "image"
	SectionQuiz  SectionType = "quiz"
)

type LessonSection struct {
	ID          uint                        `gorm:"primaryKey;autoIncrement" json:"id"`
	LessonID    uint                        `gorm:"column:lesson_id;not null;index" json:"lesson_id"`
	Type        SectionType                 `gorm:"column:type;not null" json:"type"`
	Content     string                      `gorm:"column:content;type:text" json:"content"`
	Order       int                         `gorm:"column:order;not null" json:"order"`
	Options     datatypes.JSONSlice[string] `gorm:"column:options" json:"options,omitempty"`
	Answer      string                      `gorm:"column:answer" json:"answer,omitempty"`
	Explanation string                      `gorm:"column:explanation;type:text" json:"explanation,omitempty"`
}

func (LessonSection) TableName() string { return "lesson_section" }

type Exercise struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	LessonID     uint   `gorm:"column:lesson_id;not null;index" json:"lesson_id"`
	Title        string `gorm:"column:title;not null" json:"title"`
	Description  string `gorm:"column:description;type:text" json:"description"`
	Difficulty   string `gorm:"column:difficulty" json:"difficulty"`
	Content      string `gorm:"column:content;type:text" json:"content"`
	CodeTemplate string `gorm:"column:code_template;type:text" json:"code_template,omitempty"`
	Executable   bool   `gorm:"column:executable;not null;default:false" json:"executable"`

	TestCases []ExerciseTestCase `gorm:"constraint:OnDelete:CASCADE;foreignKey:ExerciseID" json:"test_cases,omitempty"`
}

func (Exercise) TableName() string { return "exercise" }

type ExerciseTestCase struct {
	ID             uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ExerciseID     uint   `gorm:"column:exercise_id;not null;index" json:"exercise_id"`
	Input          string `gorm:"column:input;type:text" json:"input"`
	ExpectedOutput string `gorm:"column:expected_output;type:text" json:"expected_output"`
	Explanation    string `gorm:"column:explanation;type:text" json:"explanation,omitempty"`
}

func (ExerciseTestCase) TableName() string { return "exercise_test_case" }

// LessonProgress records a learner finishing a lesson.
type LessonProgress struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      string    `gorm:"column:user_id;not null;uniqueIndex:idx_progress_user_lesson" json:"user_id"`
	LessonID    uint      `gorm:"column:lesson_id;not null;uniqueIndex:idx_progress_user_lesson" json:"lesson_id"`
	Lesson      *Lesson   `gorm:"constraint:OnDelete:CASCADE;foreignKey:LessonID" json:"-"`
	CompletedAt time.Time `gorm:"column:completed_at;not null" json:"completed_at"`
}

func (LessonProgress) TableName() string { return "lesson_progress" }
