package models

import "time"

type Notification struct {
	NotificationID      uint      `gorm:"primaryKey;column:notification_id" json:"notification_id"`
	UserID              string    `gorm:"column:user_id;size:36;index" json:"user_id"`
	Event               string    `gorm:"column:event;size:48" json:"event"`
	Title               string    `gorm:"column:title" json:"title"`
	Message             string    `gorm:"column:message;type:text" json:"message"`
	Type                string    `gorm:"column:type" json:"type"` // info|success|warning|error
	RelatedManuscriptID *string   `gorm:"column:related_manuscript_id;size:36" json:"related_manuscript_id,omitempty"`
	IsRead              bool      `gorm:"column:is_read" json:"is_read"`
	CreatedAt           time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
