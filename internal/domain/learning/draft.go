package learning

import (
	"time"

	"gorm.io/datatypes"
)

type DraftStatus string

const (
	DraftPending  DraftStatus = "pending"
	DraftApproved DraftStatus = "approved"
	DraftRejected DraftStatus = "rejected"
)

// Draft is the pending agent output for a course. One row per course; a new
// composition run overwrites it after archiving the previous version.
type Draft struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CourseID    uint           `gorm:"column:course_id;not null;uniqueIndex" json:"course_id"`
	Course      *Course        `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID" json:"-"`
	Version     int            `gorm:"column:version;not null;default:1" json:"version"`
	SessionID   string         `gorm:"column:session_id;index" json:"session_id"`
	Status      DraftStatus    `gorm:"column:status;not null;default:pending" json:"status"`
	ContentJSON datatypes.JSON `gorm:"column:content_json" json:"content"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (Draft) TableName() string { return "draft" }

type ChatAuthor string

const (
	AuthorAdmin ChatAuthor = "admin"
	AuthorAgent ChatAuthor = "agent"
)

type ReviewChatTurn struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	CourseID     uint       `gorm:"column:course_id;not null;index" json:"course_id"`
	Course       *Course    `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID" json:"-"`
	DraftVersion int        `gorm:"column:draft_version" json:"draft_version"`
	Author       ChatAuthor `gorm:"column:author;not null" json:"author"`
	Message      string     `gorm:"column:message;type:text;not null" json:"message"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
}

func (ReviewChatTurn) TableName() string { return "review_chat_turn" }
