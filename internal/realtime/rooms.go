package realtime

import (
	"log"
	"sort"
	"sync"

	"teamgrid/backend/internal/models"
	"teamgrid/backend/internal/storage"
)

// room holds live membership for one room. Each room carries its own lock
// so traffic in unrelated rooms never serializes; the lock also orders
// fan-out, which is what gives per-room FIFO delivery.
type room struct {
	mu      sync.Mutex
	kind    models.RoomKind
	members map[string]struct{}
	// invited is the allow-list for call rooms; chat rooms check the
	// membership collaborator instead.
	invited map[string]struct{}
}

func (r *room) memberList() []string {
	members := make([]string, 0, len(r.members))
	for id := range r.members {
		members = append(members, id)
	}
	sort.Strings(members)
	return members
}

// RoomManager tracks who is in which room, independent of transport.
// Chat rooms are an in-memory cache over the persistent membership rows;
// evicting an empty chat room just means the next join rebuilds it.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*room

	storage storage.Storage

	// OnEmpty runs (in its own goroutine) after the last member leaves a
	// room; the call coordinator consumes it for call rooms.
	OnEmpty func(roomID string, kind models.RoomKind)
}

func NewRoomManager(st storage.Storage) *RoomManager {
	return &RoomManager{
		rooms:   make(map[string]*room),
		storage: st,
	}
}

// Join adds a user to a chat room, creating the live room on first join.
// Access is checked against the membership collaborator; joining a room
// you are already in is a no-op. Returns the member list after the join.
func (rm *RoomManager) Join(tenantID, roomID, userID string) ([]string, error) {
	r := rm.get(roomID)
	if r != nil {
		r.mu.Lock()
		if _, ok := r.members[userID]; ok {
			members := r.memberList()
			r.mu.Unlock()
			return members, nil
		}
		r.mu.Unlock()
	}

	ok, err := rm.storage.IsRoomMember(tenantID, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccessDenied
	}

	r = rm.getOrCreate(roomID, models.RoomChat)
	r.mu.Lock()
	r.members[userID] = struct{}{}
	members := r.memberList()
	r.mu.Unlock()

	log.Printf("rooms: user %s joined chat room %s", userID, roomID)
	return members, nil
}

// CreateCallRoom registers a call room with its invite allow-list.
func (rm *RoomManager) CreateCallRoom(roomID string, invited []string) {
	r := rm.getOrCreate(roomID, models.RoomCall)
	r.mu.Lock()
	for _, id := range invited {
		r.invited[id] = struct{}{}
	}
	r.mu.Unlock()
}

// JoinCall adds a user to a call room; only invited users may enter.
func (rm *RoomManager) JoinCall(roomID, userID string) error {
	r := rm.get(roomID)
	if r == nil {
		return ErrAccessDenied
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invited[userID]; !ok {
		return ErrAccessDenied
	}
	r.members[userID] = struct{}{}
	return nil
}

// Leave removes a user from a room on an explicit departure; a mere
// disconnect keeps membership so the user still receives offline
// notifications. The last member leaving drops the live room and fires
// the cleanup hook.
func (rm *RoomManager) Leave(roomID, userID string) {
	r := rm.get(roomID)
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.members, userID)
	empty := len(r.members) == 0
	kind := r.kind
	r.mu.Unlock()

	if empty {
		rm.Drop(roomID)
		if rm.OnEmpty != nil {
			go rm.OnEmpty(roomID, kind)
		}
	}
}

// MembersOf returns the current member set of a room.
func (rm *RoomManager) MembersOf(roomID string) []string {
	r := rm.get(roomID)
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memberList()
}

// Kind reports the room's kind, if the room is live.
func (rm *RoomManager) Kind(roomID string) (models.RoomKind, bool) {
	r := rm.get(roomID)
	if r == nil {
		return "", false
	}
	return r.kind, true
}

// withRoom runs fn with the room's lock held and the member list as it
// stood at that moment. Publishers use it to serialize per-room fan-out.
func (rm *RoomManager) withRoom(roomID string, fn func(members []string)) bool {
	r := rm.get(roomID)
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.memberList())
	return true
}

// Drop evicts a room from the live cache.
func (rm *RoomManager) Drop(roomID string) {
	rm.mu.Lock()
	delete(rm.rooms, roomID)
	rm.mu.Unlock()
}

// Stats returns live room counters for the stats endpoint.
func (rm *RoomManager) Stats() (roomCount, memberCount int) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	for _, r := range rm.rooms {
		r.mu.Lock()
		memberCount += len(r.members)
		r.mu.Unlock()
	}
	return len(rm.rooms), memberCount
}

func (rm *RoomManager) get(roomID string) *room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[roomID]
}

func (rm *RoomManager) getOrCreate(roomID string, kind models.RoomKind) *room {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	r, ok := rm.rooms[roomID]
	if !ok {
		r = &room{
			kind:    kind,
			members: make(map[string]struct{}),
			invited: make(map[string]struct{}),
		}
		rm.rooms[roomID] = r
	}
	return r
}
