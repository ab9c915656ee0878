package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an authenticated account within a tenant.
type User struct {
	ID       string `gorm:"primaryKey" json:"id"`
	TenantID string `gorm:"index;not null" json:"tenant_id"`
	Name     string `json:"name"`
	Email    string `gorm:"uniqueIndex" json:"email"`
	// Role is one of "member", "admin", "super_admin".
	Role string `gorm:"default:member" json:"role"`
	// TelegramChatID links the account to a Telegram chat for offline
	// push notifications; zero means no linked device.
	TelegramChatID int64 `gorm:"index" json:"-"`
}

// BeforeCreate is a GORM hook that assigns a UUID if the ID is unset.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// Elevated reports whether the user may perform admin-gated actions,
// such as controlling a recording they did not start.
func (u *User) Elevated() bool {
	return u.Role == "admin" || u.Role == "super_admin"
}
