package learning

import (
	"time"

	"gorm.io/gorm"
)

type CompositionStatus string

const (
	CompositionNotStarted CompositionStatus = "not_started"
	CompositionPending    CompositionStatus = "pending"
	CompositionReady      CompositionStatus = "ready"
	CompositionApproved   CompositionStatus = "approved"
	CompositionFailed     CompositionStatus = "failed"
)

type TestGenerationStatus string

const (
	TestGenNotStarted TestGenerationStatus = "not_started"
	TestGenPending    TestGenerationStatus = "pending"
	TestGenSuccess    TestGenerationStatus = "success"
	TestGenFailed     TestGenerationStatus = "failed"
)

type Course struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerUserID string `gorm:"column:owner_user_id;index" json:"owner_user_id,omitempty"`
	Title       string `gorm:"column:title;not null" json:"title"`
	Description string `gorm:"column:description;type:text" json:"description"`
	Level       string `gorm:"column:level" json:"level"`

	CompositionStatus    CompositionStatus    `gorm:"column:composition_status;not null;default:not_started;index" json:"composition_status"`
	TestGenerationStatus TestGenerationStatus `gorm:"column:test_generation_status;not null;default:not_started" json:"test_generation_status"`
	LastError            string               `gorm:"column:last_error;type:text" json:"last_error,omitempty"`

	Topics []Topic `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID" json:"topics,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Course) TableName() string { return "course" }
