package learning

import (
	"time"

	"gorm.io/datatypes"
)

type Topic struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	CourseID    *uint  `gorm:"column:course_id;uniqueIndex:idx_topic_course_external" json:"course_id"`
	ExternalID  string `gorm:"column:external_id;not null;uniqueIndex:idx_topic_course_external" json:"external_id"`
	Name        string `gorm:"column:name;not null" json:"name"`
	Description string `gorm:"column:description;type:text" json:"description"`
	Order       int    `gorm:"column:order;not null" json:"order"`

	// Prerequisites holds topic names from the same course.
	Prerequisites datatypes.JSONSlice[string] `gorm:"column:prerequisites" json:"prerequisites"`
	// LessonOutlines is carried over from the approved draft and guides lesson generation.
	LessonOutlines datatypes.JSON `gorm:"column:lesson_outlines" json:"lesson_outlines,omitempty"`

	Skills  []Skill  `gorm:"constraint:OnDelete:CASCADE;foreignKey:TopicID" json:"skills,omitempty"`
	Lessons []Lesson `gorm:"constraint:OnDelete:CASCADE;foreignKey:TopicID" json:"lessons,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Topic) TableName() string { return "topic" }

type Skill struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	TopicID     uint   `gorm:"column:topic_id;not null;index" json:"topic_id"`
	Name        string `gorm:"column:name;not null" json:"name"`
	Description string `gorm:"column:description;type:text" json:"description"`
}

func (Skill) TableName() string { return "skill" }
