package models

import (
	"time"

	"github.com/lib/pq"
)

// CallStatus is the lifecycle state of a call session. Transitions are
// monotonic: initiated -> ringing/connected -> ended.
type CallStatus string

const (
	CallInitiated CallStatus = "initiated"
	CallRinging   CallStatus = "ringing"
	CallConnected CallStatus = "connected"
	CallEnded     CallStatus = "ended"
)

// CallRecord is the persisted call session, updated by the coordinator as
// the session progresses and finalized when it ends.
type CallRecord struct {
	CallID      string `gorm:"primaryKey" json:"call_id"`
	RoomID      string `gorm:"index;not null" json:"room_id"`
	TenantID    string `gorm:"index;not null" json:"tenant_id"`
	InitiatorID string `gorm:"not null" json:"initiator_id"`
	// Kind is "audio", "video" or "screen_share".
	Kind     string         `gorm:"not null;default:video" json:"kind"`
	Status   string         `gorm:"not null;default:initiated" json:"status"`
	Invitees pq.StringArray `gorm:"type:text[]" json:"invitees"`

	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	// Duration is the connected time in seconds.
	Duration  int    `json:"duration"`
	EndReason string `json:"end_reason,omitempty"`

	RecordingPath     string `json:"recording_path,omitempty"`
	RecordingDuration int    `json:"recording_duration"`

	CreatedAt time.Time `json:"created_at"`
}

// CallParticipant is the persisted per-user call row.
type CallParticipant struct {
	ID     uint   `gorm:"primaryKey"`
	CallID string `gorm:"not null;uniqueIndex:idx_call_user" json:"call_id"`
	UserID string `gorm:"not null;uniqueIndex:idx_call_user" json:"user_id"`

	JoinedAt *time.Time `json:"joined_at,omitempty"`
	LeftAt   *time.Time `json:"left_at,omitempty"`
	// Duration is seconds between JoinedAt and LeftAt.
	Duration int `json:"duration"`

	AudioEnabled  bool `json:"audio_enabled"`
	VideoEnabled  bool `json:"video_enabled"`
	ScreenSharing bool `json:"screen_sharing"`

	// ConnectionQuality is one of "excellent", "good", "poor", "very_poor".
	ConnectionQuality string `gorm:"default:excellent" json:"connection_quality"`
}
