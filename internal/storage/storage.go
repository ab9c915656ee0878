package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"teamgrid/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// Storage is the persistence collaborator consumed by the realtime core.
// PostgreSQL (via GORM) holds durable rows; Redis holds the presence
// mirror and carries cross-node event fan-out.
type Storage interface {
	// Users
	GetUserByID(id string) (*models.User, error)
	SaveUser(user *models.User) error

	// Messages
	SaveMessage(msg *models.Message) error
	LoadRecentMessages(roomID string, limit, offset int) ([]models.Message, error)
	MarkRoomRead(roomID, userID string) error

	// Membership
	IsRoomMember(tenantID, roomID, userID string) (bool, error)
	RoomContacts(userID string) ([]string, error)
	EnsureRoom(room *models.ChatRoom) error

	// Calls
	SaveCallRecord(rec *models.CallRecord) error
	UpdateCallRecord(rec *models.CallRecord) error
	SaveCallParticipant(p *models.CallParticipant) error
	UpdateCallParticipant(p *models.CallParticipant) error
	ActiveCallIDs() ([]string, error)

	// Presence mirror
	SetPresence(userID string, status models.PresenceStatus, ttl time.Duration) error
	GetPresence(userID string) (models.PresenceStatus, error)
	ClearPresence(userID string) error

	// Cross-node fan-out
	PublishEvent(roomID string, ev models.Event) error
	SubscribeRooms() *redis.PubSub
}

// Service implements Storage on top of GORM and Redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

func (s *Service) GetUserByID(id string) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) SaveUser(user *models.User) error {
	return s.DB.Save(user).Error
}

func (s *Service) SaveMessage(msg *models.Message) error {
	if err := s.DB.Create(msg).Error; err != nil {
		log.Printf("ERROR: failed to save message for room %s: %v", msg.RoomID, err)
		return err
	}
	return nil
}

// LoadRecentMessages returns messages for a room, newest page first but
// each page ordered oldest to newest for replay.
func (s *Service) LoadRecentMessages(roomID string, limit, offset int) ([]models.Message, error) {
	var msgs []models.Message
	err := s.DB.Where("room_id = ?", roomID).
		Order("created_at desc").
		Limit(limit).Offset(offset).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *Service) MarkRoomRead(roomID, userID string) error {
	return s.DB.Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("last_read_at", gorm.Expr("NOW()")).Error
}

func (s *Service) IsRoomMember(tenantID, roomID, userID string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.RoomMember{}).
		Where("tenant_id = ? AND room_id = ? AND user_id = ?", tenantID, roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// RoomContacts returns the distinct users sharing a chat room with the
// given user; presence changes are broadcast to this set.
func (s *Service) RoomContacts(userID string) ([]string, error) {
	var contacts []string
	err := s.DB.Raw(`
        SELECT DISTINCT rm2.user_id
        FROM room_members rm1
        JOIN room_members rm2 ON rm1.room_id = rm2.room_id
        JOIN chat_rooms cr ON cr.room_id = rm1.room_id
        WHERE rm1.user_id = ? AND rm2.user_id != ? AND cr.kind = 'chat'
    `, userID, userID).Scan(&contacts).Error
	if err != nil {
		log.Printf("ERROR: failed to load contacts for user %s: %v", userID, err)
		return nil, err
	}
	return contacts, nil
}

func (s *Service) EnsureRoom(room *models.ChatRoom) error {
	return s.DB.Where("room_id = ?", room.RoomID).FirstOrCreate(room).Error
}

func (s *Service) SaveCallRecord(rec *models.CallRecord) error {
	return s.DB.Create(rec).Error
}

func (s *Service) UpdateCallRecord(rec *models.CallRecord) error {
	return s.DB.Save(rec).Error
}

func (s *Service) SaveCallParticipant(p *models.CallParticipant) error {
	return s.DB.Create(p).Error
}

func (s *Service) UpdateCallParticipant(p *models.CallParticipant) error {
	return s.DB.Model(&models.CallParticipant{}).
		Where("call_id = ? AND user_id = ?", p.CallID, p.UserID).
		Updates(map[string]interface{}{
			"joined_at":          p.JoinedAt,
			"left_at":            p.LeftAt,
			"duration":           p.Duration,
			"audio_enabled":      p.AudioEnabled,
			"video_enabled":      p.VideoEnabled,
			"screen_sharing":     p.ScreenSharing,
			"connection_quality": p.ConnectionQuality,
		}).Error
}

// ActiveCallIDs returns call ids not yet ended, used by the admin CLI to
// find stuck sessions.
func (s *Service) ActiveCallIDs() ([]string, error) {
	var ids []string
	err := s.DB.Model(&models.CallRecord{}).
		Where("status != ?", string(models.CallEnded)).
		Pluck("call_id", &ids).Error
	if err != nil {
		log.Printf("ERROR: failed to list active calls: %v", err)
		return nil, err
	}
	return ids, nil
}

// SetPresence mirrors a user's status into Redis with a TTL so the CRUD
// layer can read availability without touching the realtime core.
func (s *Service) SetPresence(userID string, status models.PresenceStatus, ttl time.Duration) error {
	return s.Redis.Set(s.Ctx, "presence:"+userID, string(status), ttl).Err()
}

func (s *Service) GetPresence(userID string) (models.PresenceStatus, error) {
	v, err := s.Redis.Get(s.Ctx, "presence:"+userID).Result()
	if errors.Is(err, redis.Nil) {
		return models.PresenceOffline, nil
	}
	if err != nil {
		return models.PresenceOffline, err
	}
	return models.PresenceStatus(v), nil
}

func (s *Service) ClearPresence(userID string) error {
	return s.Redis.Del(s.Ctx, "presence:"+userID).Err()
}

// PublishEvent fans an event out to the room's Redis channel so sibling
// nodes can mirror delivery to their own connections.
func (s *Service) PublishEvent(roomID string, ev models.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, "room:"+roomID, payload).Err()
}

// SubscribeRooms subscribes to every room channel.
func (s *Service) SubscribeRooms() *redis.PubSub {
	return s.Redis.PSubscribe(s.Ctx, "room:*")
}
