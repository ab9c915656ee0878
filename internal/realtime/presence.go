package realtime

import (
	"fmt"
	"log"
	"sync"
	"time"

	"teamgrid/backend/internal/config"
	"teamgrid/backend/internal/models"
	"teamgrid/backend/internal/storage"
)

// PresenceTracker derives and holds per-user availability. Status flips
// online/offline with the first/last connection, auto-away kicks in on
// idleness, and explicit statuses set by the user are never auto-reverted.
type PresenceTracker struct {
	mu     sync.Mutex
	states map[string]*models.PresenceState

	registry *Registry
	storage  storage.Storage

	awayThreshold    time.Duration
	offlineThreshold time.Duration
	sweepInterval    time.Duration

	stopCh chan struct{}
}

func NewPresenceTracker(reg *Registry, st storage.Storage, cfg config.Config) *PresenceTracker {
	return &PresenceTracker{
		states:           make(map[string]*models.PresenceState),
		registry:         reg,
		storage:          st,
		awayThreshold:    cfg.AwayThreshold,
		offlineThreshold: cfg.OfflineThreshold,
		sweepInterval:    cfg.SweepInterval,
		stopCh:           make(chan struct{}),
	}
}

// MarkOnline is invoked when a user's first connection registers.
func (p *PresenceTracker) MarkOnline(userID string) {
	p.mu.Lock()
	st := p.state(userID)
	st.Status = models.PresenceOnline
	st.AutoAway = false
	st.Explicit = false
	st.LastActivityAt = time.Now()
	snapshot := *st
	p.mu.Unlock()

	p.publish(snapshot)
}

// MarkOffline is invoked when a user's last connection closes. The state
// survives the disconnect; only the status moves.
func (p *PresenceTracker) MarkOffline(userID string) {
	p.mu.Lock()
	st := p.state(userID)
	st.Status = models.PresenceOffline
	st.AutoAway = false
	st.Explicit = false
	snapshot := *st
	p.mu.Unlock()

	p.publish(snapshot)
}

// Touch records activity. Only an auto-derived away status snaps back to
// online; busy/away chosen by the user stay put.
func (p *PresenceTracker) Touch(userID string) {
	p.mu.Lock()
	st := p.state(userID)
	st.LastActivityAt = time.Now()
	var snapshot *models.PresenceState
	if st.Status == models.PresenceAway && st.AutoAway {
		st.Status = models.PresenceOnline
		st.AutoAway = false
		s := *st
		snapshot = &s
	}
	p.mu.Unlock()

	if snapshot != nil {
		p.publish(*snapshot)
	}
}

// SetStatus applies an explicit status change requested by the user.
func (p *PresenceTracker) SetStatus(userID string, status models.PresenceStatus, customMessage string) error {
	switch status {
	case models.PresenceOnline, models.PresenceAway, models.PresenceBusy:
	default:
		return fmt.Errorf("status %q cannot be set explicitly", status)
	}

	p.mu.Lock()
	st := p.state(userID)
	st.Status = status
	st.CustomMessage = customMessage
	st.AutoAway = false
	// "online" re-enables auto-away; away/busy pin the status.
	st.Explicit = status != models.PresenceOnline
	st.LastActivityAt = time.Now()
	snapshot := *st
	p.mu.Unlock()

	p.publish(snapshot)
	return nil
}

// Get returns a copy of the user's presence state.
func (p *PresenceTracker) Get(userID string) models.PresenceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.state(userID)
}

// Run drives the idle sweep until Stop is called.
func (p *PresenceTracker) Run() {
	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.sweep(time.Now())
		case <-p.stopCh:
			return
		}
	}
}

func (p *PresenceTracker) Stop() {
	close(p.stopCh)
}

// sweep transitions idle connected users to away and force-disconnects
// users idle beyond the offline threshold. Failures are logged and picked
// up again on the next tick.
func (p *PresenceTracker) sweep(now time.Time) {
	type action struct {
		userID  string
		offline bool
		state   models.PresenceState
	}

	p.mu.Lock()
	var actions []action
	for userID, st := range p.states {
		if st.Status == models.PresenceOffline {
			continue
		}
		idle := now.Sub(st.LastActivityAt)
		switch {
		case idle > p.offlineThreshold:
			actions = append(actions, action{userID: userID, offline: true})
		case idle > p.awayThreshold && st.Status == models.PresenceOnline && !st.Explicit:
			st.Status = models.PresenceAway
			st.AutoAway = true
			actions = append(actions, action{userID: userID, state: *st})
		}
	}
	p.mu.Unlock()

	for _, a := range actions {
		if a.offline {
			log.Printf("presence: user %s idle beyond offline threshold, disconnecting", a.userID)
			p.registry.ForceDisconnect(a.userID)
			// Unregister marks the user offline through the last-close hook.
			continue
		}
		p.publish(a.state)
	}
}

// state returns the live record for a user, creating it on first use.
// Callers must hold p.mu.
func (p *PresenceTracker) state(userID string) *models.PresenceState {
	st, ok := p.states[userID]
	if !ok {
		st = &models.PresenceState{
			UserID:         userID,
			Status:         models.PresenceOffline,
			LastActivityAt: time.Now(),
		}
		p.states[userID] = st
	}
	return st
}

// publish mirrors the state to storage and notifies the user's chat
// contacts. Both are best-effort.
func (p *PresenceTracker) publish(st models.PresenceState) {
	if err := p.storage.SetPresence(st.UserID, st.Status, config.PresenceMirrorTTL); err != nil {
		log.Printf("presence: failed to mirror status for user %s: %v", st.UserID, err)
	}

	contacts, err := p.storage.RoomContacts(st.UserID)
	if err != nil {
		log.Printf("presence: failed to load contacts for user %s: %v", st.UserID, err)
		return
	}
	ev := models.Event{
		Type:      models.EventPresenceChanged,
		SenderID:  st.UserID,
		Content:   string(st.Status),
		CreatedAt: time.Now(),
	}
	for _, contact := range contacts {
		p.registry.SendToUser(contact, ev)
	}
}
