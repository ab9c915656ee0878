package realtime

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"teamgrid/backend/internal/models"
	"teamgrid/backend/internal/storage"

	"github.com/google/uuid"
)

// Participant is the live per-user state inside a call session.
type Participant struct {
	UserID   string            `json:"user_id"`
	JoinedAt time.Time         `json:"joined_at"`
	LeftAt   *time.Time        `json:"left_at,omitempty"`
	Duration time.Duration     `json:"duration"`
	Media    models.MediaState `json:"media"`
	Quality  string            `json:"connection_quality"`
}

func (p *Participant) active() bool {
	return !p.JoinedAt.IsZero() && p.LeftAt == nil
}

// Recording is the live recording state of a session.
type Recording struct {
	ID        string        `json:"id,omitempty"`
	Path      string        `json:"path,omitempty"`
	Active    bool          `json:"active"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// CallSession is one live call. All mutation happens under mu, which
// linearizes state transitions per call.
type CallSession struct {
	mu sync.Mutex

	CallID      string
	RoomID      string
	TenantID    string
	InitiatorID string
	Kind        string

	Status       models.CallStatus
	Invitees     []string
	Participants map[string]*Participant
	Recording    Recording

	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   *time.Time
	Duration  time.Duration
	EndReason string

	ringTimer *time.Timer
}

var callStatusRank = map[models.CallStatus]int{
	models.CallInitiated: 0,
	models.CallRinging:   1,
	models.CallConnected: 2,
	models.CallEnded:     3,
}

// advance moves the status forward. Transitions never reverse; a stale
// move is ignored. Callers hold s.mu.
func (s *CallSession) advance(status models.CallStatus) bool {
	if callStatusRank[status] <= callStatusRank[s.Status] {
		return false
	}
	s.Status = status
	return true
}

// CallCoordinator owns the call session table and the call lifecycle:
// invitations, signaling relay, media state, recording, and termination
// accounting.
type CallCoordinator struct {
	mu       sync.RWMutex
	sessions map[string]*CallSession

	registry   *Registry
	rooms      *RoomManager
	router     *Router
	storage    storage.Storage
	dispatcher *Dispatcher

	ringTimeout time.Duration
}

func NewCallCoordinator(reg *Registry, rooms *RoomManager, router *Router, st storage.Storage, d *Dispatcher, ringTimeout time.Duration) *CallCoordinator {
	return &CallCoordinator{
		sessions:    make(map[string]*CallSession),
		registry:    reg,
		rooms:       rooms,
		router:      router,
		storage:     st,
		dispatcher:  d,
		ringTimeout: ringTimeout,
	}
}

// Initiate creates a session, joins the caller to the call room and
// pushes an invitation to every callee. Reachable callees move the
// session to ringing; unreachable ones get a best-effort push.
func (c *CallCoordinator) Initiate(tenantID, callerID string, calleeIDs []string, kind string) (*CallSession, error) {
	if len(calleeIDs) == 0 {
		return nil, fmt.Errorf("call needs at least one participant")
	}

	now := time.Now()
	callID := uuid.New().String()
	s := &CallSession{
		CallID:      callID,
		RoomID:      "room_" + callID,
		TenantID:    tenantID,
		InitiatorID: callerID,
		Kind:        kind,
		Status:      models.CallInitiated,
		Invitees:    calleeIDs,
		Participants: map[string]*Participant{
			callerID: {
				UserID:   callerID,
				JoinedAt: now,
				Media:    models.MediaState{AudioEnabled: true, VideoEnabled: kind != "audio"},
				Quality:  "excellent",
			},
		},
		CreatedAt: now,
	}

	allowed := append([]string{callerID}, calleeIDs...)
	c.rooms.CreateCallRoom(s.RoomID, allowed)
	if err := c.rooms.JoinCall(s.RoomID, callerID); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.sessions[callID] = s
	c.mu.Unlock()

	c.persistNewCall(s, now)

	invitation := models.Event{
		Type:      models.EventCallInvitation,
		CallID:    callID,
		RoomID:    s.RoomID,
		SenderID:  callerID,
		Content:   kind,
		CreatedAt: now,
	}
	anyReachable := false
	for _, calleeID := range calleeIDs {
		if c.registry.SendToUser(calleeID, invitation) {
			anyReachable = true
			continue
		}
		c.dispatcher.Notify(calleeID, invitation)
	}

	s.mu.Lock()
	if anyReachable {
		s.advance(models.CallRinging)
	}
	s.ringTimer = time.AfterFunc(c.ringTimeout, func() { c.handleRingTimeout(callID) })
	s.mu.Unlock()

	log.Printf("calls: %s call %s initiated by %s with %d invitees", kind, callID, callerID, len(calleeIDs))
	return s, nil
}

// Join adds or reconnects a participant. The first join by anyone other
// than the caller connects the session.
func (c *CallCoordinator) Join(callID, userID string, media models.MediaState) error {
	s := c.session(callID)
	if s == nil {
		return ErrCallNotFound
	}

	s.mu.Lock()
	if s.Status == models.CallEnded {
		s.mu.Unlock()
		return ErrCallEnded
	}
	if !s.invited(userID) {
		s.mu.Unlock()
		return ErrAccessDenied
	}

	now := time.Now()
	p, ok := s.Participants[userID]
	if !ok || p.LeftAt != nil {
		p = &Participant{UserID: userID, JoinedAt: now, Quality: "excellent"}
		s.Participants[userID] = p
	}
	p.Media = media

	connected := false
	if userID != s.InitiatorID {
		connected = s.advance(models.CallConnected)
		if connected {
			s.StartedAt = now
		}
	}
	roomID := s.RoomID
	s.mu.Unlock()

	if err := c.rooms.JoinCall(roomID, userID); err != nil {
		return err
	}

	c.router.Broadcast(roomID, models.Event{
		Type:      models.EventParticipantJoined,
		CallID:    callID,
		RoomID:    roomID,
		SenderID:  userID,
		CreatedAt: now,
	}, userID)

	c.persistParticipant(callID, p)
	if connected {
		c.persistSession(s)
	}
	return nil
}

// UpdateMedia applies a partial media change and broadcasts it.
func (c *CallCoordinator) UpdateMedia(callID, userID string, upd models.MediaUpdate) error {
	s := c.session(callID)
	if s == nil {
		return ErrCallNotFound
	}

	s.mu.Lock()
	p, ok := s.Participants[userID]
	if !ok || !p.active() {
		s.mu.Unlock()
		return ErrParticipantNotFound
	}
	upd.Apply(&p.Media)
	state := p.Media
	roomID := s.RoomID
	s.mu.Unlock()

	payload, _ := json.Marshal(state)
	c.router.Broadcast(roomID, models.Event{
		Type:      models.EventMediaChanged,
		CallID:    callID,
		RoomID:    roomID,
		SenderID:  userID,
		Payload:   payload,
		CreatedAt: time.Now(),
	}, userID)

	c.persistParticipant(callID, p)
	return nil
}

// RelaySignal forwards an offer/answer/ICE payload between two current
// participants without interpreting it. An unreachable target is reported
// to the sender only and never aborts the session.
func (c *CallCoordinator) RelaySignal(callID, fromUserID, toUserID string, signalType models.EventType, payload json.RawMessage) error {
	s := c.session(callID)
	if s == nil {
		return ErrCallNotFound
	}

	s.mu.Lock()
	if s.Status == models.CallEnded {
		s.mu.Unlock()
		return ErrCallEnded
	}
	target, ok := s.Participants[toUserID]
	if !ok || !target.active() {
		s.mu.Unlock()
		return ErrParticipantNotFound
	}
	s.mu.Unlock()

	ev := models.Event{
		Type:      signalType,
		CallID:    callID,
		SenderID:  fromUserID,
		TargetID:  toUserID,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	if !c.registry.SendToUser(toUserID, ev) {
		return ErrRecipientUnreachable
	}
	return nil
}

// StartRecording begins recording; only the initiator or an elevated role
// may start one. Starting an already-active recording returns the current
// metadata.
func (c *CallCoordinator) StartRecording(callID, requestedBy string) (Recording, error) {
	s := c.session(callID)
	if s == nil {
		return Recording{}, ErrCallNotFound
	}
	if err := c.checkRecordingPermission(s, requestedBy); err != nil {
		return Recording{}, err
	}

	s.mu.Lock()
	if s.Status == models.CallEnded {
		s.mu.Unlock()
		return Recording{}, ErrCallEnded
	}
	if s.Recording.Active {
		rec := s.Recording
		s.mu.Unlock()
		return rec, nil
	}
	recordingID := uuid.New().String()
	s.Recording = Recording{
		ID:        recordingID,
		Path:      fmt.Sprintf("recordings/%s_%s.webm", callID, recordingID),
		Active:    true,
		StartedAt: time.Now(),
	}
	rec := s.Recording
	roomID := s.RoomID
	s.mu.Unlock()

	c.router.Broadcast(roomID, models.Event{
		Type:      models.EventRecordingStarted,
		CallID:    callID,
		RoomID:    roomID,
		SenderID:  requestedBy,
		Content:   rec.ID,
		CreatedAt: rec.StartedAt,
	}, "")

	c.persistSession(s)
	log.Printf("calls: recording %s started on call %s by %s", rec.ID, callID, requestedBy)
	return rec, nil
}

// StopRecording finalizes the recording metadata. It is idempotent:
// stopping a stopped recording returns the same final metadata.
func (c *CallCoordinator) StopRecording(callID, requestedBy string) (Recording, error) {
	s := c.session(callID)
	if s == nil {
		return Recording{}, ErrCallNotFound
	}
	if err := c.checkRecordingPermission(s, requestedBy); err != nil {
		return Recording{}, err
	}

	rec, stopped := c.finalizeRecording(s)
	if stopped {
		c.router.Broadcast(s.RoomID, models.Event{
			Type:      models.EventRecordingStopped,
			CallID:    callID,
			RoomID:    s.RoomID,
			SenderID:  requestedBy,
			Content:   rec.ID,
			CreatedAt: time.Now(),
		}, "")
		c.persistSession(s)
	}
	return rec, nil
}

// Leave finalizes one participant. When nobody is left the session ends
// and the room is cleaned up.
func (c *CallCoordinator) Leave(callID, userID string) error {
	s := c.session(callID)
	if s == nil {
		return ErrCallNotFound
	}

	now := time.Now()
	s.mu.Lock()
	p, ok := s.Participants[userID]
	if !ok || !p.active() {
		s.mu.Unlock()
		return nil
	}
	left := now
	p.LeftAt = &left
	p.Duration = left.Sub(p.JoinedAt)
	remaining := s.activeCount()
	roomID := s.RoomID
	s.mu.Unlock()

	c.rooms.Leave(roomID, userID)
	c.router.Broadcast(roomID, models.Event{
		Type:      models.EventParticipantLeft,
		CallID:    callID,
		RoomID:    roomID,
		SenderID:  userID,
		CreatedAt: now,
	}, userID)
	c.persistParticipant(callID, p)

	log.Printf("calls: user %s left call %s (%d remaining)", userID, callID, remaining)
	if remaining == 0 {
		c.finalize(s, "completed", "")
	}
	return nil
}

// End force-terminates the call for everyone.
func (c *CallCoordinator) End(callID, requestedBy string) error {
	s := c.session(callID)
	if s == nil {
		return ErrCallNotFound
	}
	c.finalize(s, "hangup", requestedBy)
	return nil
}

// SetQuality records a participant's reported connection quality.
func (c *CallCoordinator) SetQuality(callID, userID, quality string) error {
	s := c.session(callID)
	if s == nil {
		return ErrCallNotFound
	}
	s.mu.Lock()
	p, ok := s.Participants[userID]
	if !ok {
		s.mu.Unlock()
		return ErrParticipantNotFound
	}
	p.Quality = quality
	s.mu.Unlock()

	c.persistParticipant(callID, p)
	return nil
}

// HandleDisconnect finalizes the user's participation in every call they
// are active in; invoked when their last connection closes.
func (c *CallCoordinator) HandleDisconnect(userID string) {
	c.mu.RLock()
	ids := make([]string, 0)
	for id, s := range c.sessions {
		s.mu.Lock()
		p, ok := s.Participants[userID]
		if ok && p.active() {
			ids = append(ids, id)
		}
		s.mu.Unlock()
	}
	c.mu.RUnlock()

	for _, id := range ids {
		if err := c.Leave(id, userID); err != nil {
			log.Printf("calls: disconnect cleanup for user %s in call %s failed: %v", userID, id, err)
		}
	}
}

// HandleRoomEmpty is the room manager's cleanup hook for call rooms.
func (c *CallCoordinator) HandleRoomEmpty(roomID string) {
	c.mu.RLock()
	var s *CallSession
	for _, candidate := range c.sessions {
		if candidate.RoomID == roomID {
			s = candidate
			break
		}
	}
	c.mu.RUnlock()
	if s != nil {
		c.finalize(s, "completed", "")
	}
}

// Session returns the live session, or nil.
func (c *CallCoordinator) Session(callID string) *CallSession {
	return c.session(callID)
}

// Stats returns live call counters for the stats endpoint.
func (c *CallCoordinator) Stats() (activeCalls, activeRecordings int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.sessions {
		s.mu.Lock()
		if s.Status != models.CallEnded {
			activeCalls++
			if s.Recording.Active {
				activeRecordings++
			}
		}
		s.mu.Unlock()
	}
	return
}

// handleRingTimeout marks invitees who never answered and, when nobody
// connected, ends the call with reason "no-answer". A connected session
// keeps going with whoever did join.
func (c *CallCoordinator) handleRingTimeout(callID string) {
	s := c.session(callID)
	if s == nil {
		return
	}

	s.mu.Lock()
	if s.Status == models.CallEnded {
		s.mu.Unlock()
		return
	}
	var unanswered []string
	for _, invitee := range s.Invitees {
		p, ok := s.Participants[invitee]
		if !ok || p.JoinedAt.IsZero() {
			unanswered = append(unanswered, invitee)
		}
	}
	connected := s.Status == models.CallConnected
	initiator := s.InitiatorID
	s.mu.Unlock()

	for _, invitee := range unanswered {
		c.registry.SendToUser(initiator, models.Event{
			Type:      models.EventCallNoAnswer,
			CallID:    callID,
			TargetID:  invitee,
			CreatedAt: time.Now(),
		})
	}
	if !connected {
		log.Printf("calls: call %s unanswered after ring timeout", callID)
		c.finalize(s, "no-answer", "")
	}
}

// finalize ends the session: participants are closed out, any recording
// is stopped, durations are computed and the room is cleaned up.
// Idempotent; concurrent paths (leave of the last participant, explicit
// end, empty-room hook) may race into it.
func (c *CallCoordinator) finalize(s *CallSession, reason, endedBy string) {
	now := time.Now()

	s.mu.Lock()
	if !s.advance(models.CallEnded) {
		s.mu.Unlock()
		return
	}
	if s.ringTimer != nil {
		s.ringTimer.Stop()
	}
	s.EndedAt = &now
	s.EndReason = reason
	if !s.StartedAt.IsZero() {
		s.Duration = now.Sub(s.StartedAt)
	}
	var closed []*Participant
	for _, p := range s.Participants {
		if p.active() {
			left := now
			p.LeftAt = &left
			p.Duration = left.Sub(p.JoinedAt)
			closed = append(closed, p)
		}
	}
	callID := s.CallID
	roomID := s.RoomID
	s.mu.Unlock()

	rec, stopped := c.finalizeRecording(s)
	if stopped {
		log.Printf("calls: recording %s stopped with call %s", rec.ID, callID)
	}

	c.router.Broadcast(roomID, models.Event{
		Type:      models.EventCallEnded,
		CallID:    callID,
		RoomID:    roomID,
		SenderID:  endedBy,
		Content:   reason,
		CreatedAt: now,
	}, "")

	for _, p := range closed {
		c.persistParticipant(callID, p)
	}
	c.persistSession(s)

	c.rooms.Drop(roomID)
	c.mu.Lock()
	delete(c.sessions, callID)
	c.mu.Unlock()

	log.Printf("calls: call %s ended (%s)", callID, reason)
}

// finalizeRecording stops an active recording and reports whether this
// call did the stopping. Safe to call repeatedly.
func (c *CallCoordinator) finalizeRecording(s *CallSession) (Recording, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Recording.Active {
		return s.Recording, false
	}
	s.Recording.Active = false
	s.Recording.Duration = time.Since(s.Recording.StartedAt)
	return s.Recording, true
}

func (c *CallCoordinator) checkRecordingPermission(s *CallSession, userID string) error {
	s.mu.Lock()
	initiator := s.InitiatorID
	s.mu.Unlock()
	if userID == initiator {
		return nil
	}
	user, err := c.storage.GetUserByID(userID)
	if err == nil && user.Elevated() {
		return nil
	}
	return ErrRecordingPermission
}

func (s *CallSession) invited(userID string) bool {
	if userID == s.InitiatorID {
		return true
	}
	for _, id := range s.Invitees {
		if id == userID {
			return true
		}
	}
	return false
}

// activeCount counts joined participants who have not left. Callers hold
// s.mu.
func (s *CallSession) activeCount() int {
	n := 0
	for _, p := range s.Participants {
		if p.active() {
			n++
		}
	}
	return n
}

// Snapshot returns a copy of the session safe to serialize.
func (s *CallSession) Snapshot() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	participants := make([]Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		participants = append(participants, *p)
	}
	return map[string]interface{}{
		"call_id":      s.CallID,
		"room_id":      s.RoomID,
		"initiator_id": s.InitiatorID,
		"kind":         s.Kind,
		"status":       s.Status,
		"invitees":     s.Invitees,
		"participants": participants,
		"recording":    s.Recording,
		"started_at":   s.StartedAt,
		"ended_at":     s.EndedAt,
	}
}

// --- persistence helpers; storage failures never abort call flow ---

func (c *CallCoordinator) persistNewCall(s *CallSession, now time.Time) {
	rec := &models.CallRecord{
		CallID:      s.CallID,
		RoomID:      s.RoomID,
		TenantID:    s.TenantID,
		InitiatorID: s.InitiatorID,
		Kind:        s.Kind,
		Status:      string(s.Status),
		Invitees:    append([]string{}, s.Invitees...),
		CreatedAt:   now,
	}
	if err := c.storage.SaveCallRecord(rec); err != nil {
		log.Printf("calls: failed to persist new call %s: %v", s.CallID, err)
		return
	}
	joined := now
	caller := &models.CallParticipant{
		CallID: s.CallID, UserID: s.InitiatorID, JoinedAt: &joined,
		AudioEnabled: true, VideoEnabled: s.Kind != "audio", ConnectionQuality: "excellent",
	}
	if err := c.storage.SaveCallParticipant(caller); err != nil {
		log.Printf("calls: failed to persist caller row for call %s: %v", s.CallID, err)
	}
	for _, invitee := range s.Invitees {
		row := &models.CallParticipant{CallID: s.CallID, UserID: invitee, ConnectionQuality: "excellent"}
		if err := c.storage.SaveCallParticipant(row); err != nil {
			log.Printf("calls: failed to persist invitee row for call %s: %v", s.CallID, err)
		}
	}
}

func (c *CallCoordinator) persistSession(s *CallSession) {
	s.mu.Lock()
	rec := &models.CallRecord{
		CallID:            s.CallID,
		RoomID:            s.RoomID,
		TenantID:          s.TenantID,
		InitiatorID:       s.InitiatorID,
		Kind:              s.Kind,
		Status:            string(s.Status),
		Invitees:          append([]string{}, s.Invitees...),
		EndedAt:           s.EndedAt,
		Duration:          int(s.Duration.Seconds()),
		EndReason:         s.EndReason,
		RecordingPath:     s.Recording.Path,
		RecordingDuration: int(s.Recording.Duration.Seconds()),
		CreatedAt:         s.CreatedAt,
	}
	if !s.StartedAt.IsZero() {
		started := s.StartedAt
		rec.StartedAt = &started
	}
	s.mu.Unlock()

	if err := c.storage.UpdateCallRecord(rec); err != nil {
		log.Printf("calls: failed to update call record %s: %v", rec.CallID, err)
	}
}

func (c *CallCoordinator) persistParticipant(callID string, p *Participant) {
	row := &models.CallParticipant{
		CallID:            callID,
		UserID:            p.UserID,
		LeftAt:            p.LeftAt,
		Duration:          int(p.Duration.Seconds()),
		AudioEnabled:      p.Media.AudioEnabled,
		VideoEnabled:      p.Media.VideoEnabled,
		ScreenSharing:     p.Media.ScreenSharing,
		ConnectionQuality: p.Quality,
	}
	if !p.JoinedAt.IsZero() {
		joined := p.JoinedAt
		row.JoinedAt = &joined
	}
	if err := c.storage.UpdateCallParticipant(row); err != nil {
		log.Printf("calls: failed to update participant %s in call %s: %v", p.UserID, callID, err)
	}
}

func (c *CallCoordinator) session(callID string) *CallSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessions[callID]
}
