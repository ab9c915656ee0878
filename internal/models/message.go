package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Message is a persisted chat message. The realtime router creates it and
// hands ownership to storage; delivery to live members does not wait for
// the row to be written.
type Message struct {
	ID       string `gorm:"primaryKey" json:"id"`
	RoomID   string `gorm:"type:uuid;not null;index:idx_room_created" json:"room_id"`
	TenantID string `gorm:"not null;index" json:"tenant_id"`
	SenderID string `gorm:"not null" json:"sender_id"`
	Content  string `gorm:"type:text;not null" json:"content"`
	// Type is the kind of message ("text", "file", "system").
	Type string `gorm:"not null;default:text" json:"type"`

	// Confidence and Tags are advisory scoring metadata attached by the
	// scoring collaborator; they never influence routing.
	Confidence float64        `json:"confidence"`
	Tags       pq.StringArray `gorm:"type:text[]" json:"tags"`

	CreatedAt time.Time `gorm:"index:idx_room_created" json:"created_at"`
}

// BeforeCreate assigns a UUID if the ID is unset.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}
