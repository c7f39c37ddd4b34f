package models

import (
	"strings"
	"time"
)

const (
	RoleAuthor   = "author"
	RoleReviewer = "reviewer"
	RoleEditor   = "editor"
)

type User struct {
	ID        string     `gorm:"primaryKey;column:id;size:36" json:"id"`
	Name      string     `gorm:"column:name" json:"name"`
	Email     string     `gorm:"column:email;unique;size:191" json:"email"`
	Roles     []string   `gorm:"column:roles;serializer:json" json:"roles"`
	CreatedAt time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt *time.Time `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// HasRole reports whether the user carries role, ignoring case.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if strings.EqualFold(strings.TrimSpace(r), role) {
			return true
		}
	}
	return false
}

// All lists every model owned by the workflow schema, in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Manuscript{},
		&Revision{},
		&Payment{},
		&Assignment{},
		&Review{},
		&ManuscriptStatusHistory{},
		&Notification{},
	}
}
