package models

import "time"

// RoomKind distinguishes chat rooms from call rooms.
type RoomKind string

const (
	RoomChat RoomKind = "chat"
	RoomCall RoomKind = "call"
)

// ChatRoom is the persisted room row. Live membership is tracked in memory
// by the room manager; this record is the durable source the manager
// reconstructs chat membership from.
type ChatRoom struct {
	RoomID    string    `gorm:"primaryKey" json:"room_id"`
	TenantID  string    `gorm:"index;not null" json:"tenant_id"`
	Kind      string    `gorm:"not null;default:chat" json:"kind"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomMember is the authoritative membership row used for chat room
// access control.
type RoomMember struct {
	ID       uint   `gorm:"primaryKey"`
	RoomID   string `gorm:"type:uuid;not null;uniqueIndex:idx_room_user" json:"room_id"`
	UserID   string `gorm:"not null;uniqueIndex:idx_room_user" json:"user_id"`
	TenantID string `gorm:"not null;index" json:"tenant_id"`

	JoinedAt   time.Time  `json:"joined_at"`
	LastReadAt *time.Time `json:"last_read_at,omitempty"`
}
