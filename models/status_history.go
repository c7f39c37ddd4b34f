package models

import "time"

// ManuscriptStatusHistory tracks every manuscript state transition.
type ManuscriptStatusHistory struct {
	HistoryID    uint            `gorm:"primaryKey;column:history_id" json:"history_id"`
	ManuscriptID string          `gorm:"column:manuscript_id;size:36;index" json:"manuscript_id"`
	FromState    ManuscriptState `gorm:"column:from_state;size:32" json:"from_state"`
	ToState      ManuscriptState `gorm:"column:to_state;size:32" json:"to_state"`
	Event        string          `gorm:"column:event;size:48" json:"event"`
	Round        int             `gorm:"column:round" json:"round"`
	ChangedBy    string          `gorm:"column:changed_by;size:36" json:"changed_by"`
	Notes        *string         `gorm:"column:notes" json:"notes"`
	CreatedAt    time.Time       `gorm:"column:created_at" json:"created_at"`
}

// TableName specifies the table for ManuscriptStatusHistory.
func (ManuscriptStatusHistory) TableName() string {
	return "manuscript_status_history"
}
