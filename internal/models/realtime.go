package models

import (
	"encoding/json"
	"time"
)

// EventType identifies a realtime event on the wire. Clients and server
// exchange a single Event envelope; the dispatch table in the websocket
// client routes inbound events by this type.
type EventType string

const (
	// Chat
	EventMessage     EventType = "message"
	EventTypingStart EventType = "typing_start"
	EventTypingStop  EventType = "typing_stop"
	EventMessageRead EventType = "message_read"
	EventJoinRoom    EventType = "join_room"
	EventLeaveRoom   EventType = "leave_room"
	EventRoomJoined  EventType = "room_joined"
	EventUserJoined  EventType = "user_joined"
	EventUserLeft    EventType = "user_left"

	// Presence
	EventPresenceUpdate  EventType = "presence_update"
	EventPresenceChanged EventType = "presence_changed"

	// Calls
	EventCallInvitation    EventType = "call_invitation"
	EventParticipantJoined EventType = "participant_joined"
	EventParticipantLeft   EventType = "participant_left"
	EventMediaChange       EventType = "media_change"
	EventMediaChanged      EventType = "media_changed"
	EventOffer             EventType = "offer"
	EventAnswer            EventType = "answer"
	EventICECandidate      EventType = "ice_candidate"
	EventRecordingStarted  EventType = "recording_started"
	EventRecordingStopped  EventType = "recording_stopped"
	EventCallEnded         EventType = "call_ended"
	EventCallNoAnswer      EventType = "call_no_answer"

	// Control
	EventSendAck EventType = "send_ack"
	EventWarning EventType = "warning"
	EventError   EventType = "error"
)

// Event is the wire unit for all realtime traffic.
type Event struct {
	Type      EventType       `json:"type"`
	RoomID    string          `json:"room_id,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
	SenderID  string          `json:"sender_id,omitempty"`
	TargetID  string          `json:"target_id,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`

	// Advisory scoring metadata, never used for routing decisions.
	Confidence float64  `json:"confidence,omitempty"`
	Tags       []string `json:"tags,omitempty"`

	// NodeID marks the server instance that produced the event, so pub/sub
	// mirroring between nodes does not re-deliver local events.
	NodeID string `json:"node_id,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Ephemeral reports whether the event may be dropped when a recipient's
// outbound queue is full. Messages and signaling are never dropped;
// indicators are.
func (e Event) Ephemeral() bool {
	switch e.Type {
	case EventTypingStart, EventTypingStop, EventPresenceChanged, EventMessageRead:
		return true
	}
	return false
}

// MediaState is the per-participant media toggle set.
type MediaState struct {
	AudioEnabled  bool `json:"audio_enabled"`
	VideoEnabled  bool `json:"video_enabled"`
	ScreenSharing bool `json:"screen_sharing"`
}

// MediaUpdate carries a partial media change; nil fields keep their
// current value.
type MediaUpdate struct {
	AudioEnabled  *bool `json:"audio_enabled"`
	VideoEnabled  *bool `json:"video_enabled"`
	ScreenSharing *bool `json:"screen_sharing"`
}

// Apply overlays the update onto a media state.
func (u MediaUpdate) Apply(s *MediaState) {
	if u.AudioEnabled != nil {
		s.AudioEnabled = *u.AudioEnabled
	}
	if u.VideoEnabled != nil {
		s.VideoEnabled = *u.VideoEnabled
	}
	if u.ScreenSharing != nil {
		s.ScreenSharing = *u.ScreenSharing
	}
}
