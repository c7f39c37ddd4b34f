package models

import (
	"fmt"
	"time"
)

type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentAccepted  AssignmentStatus = "accepted"
	AssignmentDeclined  AssignmentStatus = "declined"
	AssignmentCompleted AssignmentStatus = "completed"
)

// Open reports whether the assignment still occupies the reviewer's slot for its round.
func (s AssignmentStatus) Open() bool {
	return s == AssignmentPending || s == AssignmentAccepted
}

// Assignment links a reviewer to a manuscript for one review round.
type Assignment struct {
	ID            string           `gorm:"primaryKey;column:id;size:36" json:"id"`
	ManuscriptID  string           `gorm:"column:manuscript_id;size:36;index" json:"manuscript_id"`
	ReviewerID    string           `gorm:"column:reviewer_id;size:36;index" json:"reviewer_id"`
	EditorID      string           `gorm:"column:editor_id;size:36" json:"editor_id"`
	AssignedBy    string           `gorm:"column:assigned_by;size:36" json:"assigned_by"`
	Round         int              `gorm:"column:round" json:"round"`
	Status        AssignmentStatus `gorm:"column:status;size:16" json:"status"`
	OpenKey       *string          `gorm:"column:open_key;size:120;uniqueIndex" json:"-"`
	DueDate       time.Time        `gorm:"column:due_date" json:"due_date"`
	ReviewID      *string          `gorm:"column:review_id;size:36" json:"review_id,omitempty"`
	DeclineReason *string          `gorm:"column:decline_reason" json:"decline_reason,omitempty"`
	RespondedAt   *time.Time       `gorm:"column:responded_at" json:"responded_at,omitempty"`
	CompletedAt   *time.Time       `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt     time.Time        `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"column:updated_at" json:"updated_at"`
}

func (Assignment) TableName() string {
	return "assignments"
}

// SlotKey identifies the (manuscript, reviewer, round) triple.
func SlotKey(manuscriptID, reviewerID string, round int) string {
	return fmt.Sprintf("%s:%s:%d", manuscriptID, reviewerID, round)
}

// RefreshOpenKey sets OpenKey while the assignment is open and clears it otherwise.
func (a *Assignment) RefreshOpenKey() {
	if a.Status.Open() {
		key := SlotKey(a.ManuscriptID, a.ReviewerID, a.Round)
		a.OpenKey = &key
		return
	}
	a.OpenKey = nil
}
