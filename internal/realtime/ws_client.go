package realtime

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"teamgrid/backend/internal/config"
	"teamgrid/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// Signaling payloads (SDP offers) run into tens of KB.
	maxMessageSize = 64 * 1024
)

// WebSocketClient implements Client over a gorilla/websocket connection.
// Inbound events are routed through a typed dispatch table; outbound
// events flow through a bounded send channel with the drop/timeout policy
// described on Enqueue.
type WebSocketClient struct {
	connID   string
	userID   string
	tenantID string

	conn *websocket.Conn
	hub  *Hub

	// send is never closed; done signals shutdown so a racing Enqueue can
	// never hit a closed channel.
	send        chan models.Event
	done        chan struct{}
	sendTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func NewWebSocketClient(hub *Hub, conn *websocket.Conn, userID, tenantID string) *WebSocketClient {
	return &WebSocketClient{
		connID:      uuid.New().String(),
		userID:      userID,
		tenantID:    tenantID,
		conn:        conn,
		hub:         hub,
		send:        make(chan models.Event, hub.Cfg.SendBuffer),
		done:        make(chan struct{}),
		sendTimeout: hub.Cfg.SendTimeout,
	}
}

func (c *WebSocketClient) ConnID() string   { return c.connID }
func (c *WebSocketClient) UserID() string   { return c.userID }
func (c *WebSocketClient) TenantID() string { return c.tenantID }

// Enqueue applies the backpressure policy: ephemeral events are dropped
// when the buffer is full; everything else blocks up to the send timeout
// and is then abandoned for this one recipient.
func (c *WebSocketClient) Enqueue(ev models.Event) error {
	if ev.Ephemeral() {
		select {
		case <-c.done:
			return ErrRecipientUnreachable
		case c.send <- ev:
		default:
			log.Printf("ws: dropping %s for user %s, outbound queue full", ev.Type, c.userID)
		}
		return nil
	}

	select {
	case <-c.done:
		return ErrRecipientUnreachable
	case c.send <- ev:
		return nil
	case <-time.After(c.sendTimeout):
		return ErrRecipientUnreachable
	}
}

// Run starts the read and write pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close signals shutdown, which stops the write pump and closes the
// transport. Safe to call more than once; the registry is the only
// caller besides the pumps' own teardown.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.hub.Registry.Unregister(c.connID)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: read error for user %s: %v", c.userID, err)
			}
			break
		}

		var ev models.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			log.Printf("ws: bad event from user %s: %v", c.userID, err)
			continue
		}
		ev.SenderID = c.userID

		c.hub.Presence.Touch(c.userID)
		c.dispatch(ev)
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("ws: failed to encode %s for user %s: %v", ev.Type, c.userID, err)
				continue
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// wsHandlers is the dispatch table for inbound events. Each handler is a
// small adapter from the wire event to a component call, so transitions
// stay testable without a live transport.
var wsHandlers = map[models.EventType]func(*WebSocketClient, models.Event){
	models.EventJoinRoom:       (*WebSocketClient).handleJoinRoom,
	models.EventLeaveRoom:      (*WebSocketClient).handleLeaveRoom,
	models.EventMessage:        (*WebSocketClient).handleMessage,
	models.EventTypingStart:    (*WebSocketClient).handleTyping,
	models.EventTypingStop:     (*WebSocketClient).handleTyping,
	models.EventMessageRead:    (*WebSocketClient).handleMessageRead,
	models.EventPresenceUpdate: (*WebSocketClient).handlePresenceUpdate,
	models.EventOffer:          (*WebSocketClient).handleSignal,
	models.EventAnswer:         (*WebSocketClient).handleSignal,
	models.EventICECandidate:   (*WebSocketClient).handleSignal,
	models.EventMediaChange:    (*WebSocketClient).handleMediaChange,
}

func (c *WebSocketClient) dispatch(ev models.Event) {
	handler, ok := wsHandlers[ev.Type]
	if !ok {
		log.Printf("ws: unknown event type %q from user %s", ev.Type, c.userID)
		return
	}
	handler(c, ev)
}

func (c *WebSocketClient) handleJoinRoom(ev models.Event) {
	members, err := c.hub.Rooms.Join(c.tenantID, ev.RoomID, c.userID)
	if err != nil {
		c.sendError(ev.RoomID, err)
		return
	}

	payload, _ := json.Marshal(members)
	c.Enqueue(models.Event{
		Type:      models.EventRoomJoined,
		RoomID:    ev.RoomID,
		Payload:   payload,
		CreatedAt: time.Now(),
	})

	// Replay recent history so a fresh device catches up.
	history, err := c.hub.Storage.LoadRecentMessages(ev.RoomID, config.HistoryReplayLimit, 0)
	if err != nil {
		log.Printf("ws: history replay for room %s failed: %v", ev.RoomID, err)
	}
	for _, m := range history {
		c.Enqueue(models.Event{
			Type:       models.EventMessage,
			RoomID:     m.RoomID,
			SenderID:   m.SenderID,
			MessageID:  m.ID,
			Content:    m.Content,
			Confidence: m.Confidence,
			Tags:       m.Tags,
			CreatedAt:  m.CreatedAt,
		})
	}

	c.hub.Router.Broadcast(ev.RoomID, models.Event{
		Type:      models.EventUserJoined,
		RoomID:    ev.RoomID,
		SenderID:  c.userID,
		CreatedAt: time.Now(),
	}, c.userID)
}

func (c *WebSocketClient) handleLeaveRoom(ev models.Event) {
	c.hub.Rooms.Leave(ev.RoomID, c.userID)
	c.hub.Router.Broadcast(ev.RoomID, models.Event{
		Type:      models.EventUserLeft,
		RoomID:    ev.RoomID,
		SenderID:  c.userID,
		CreatedAt: time.Now(),
	}, c.userID)
}

func (c *WebSocketClient) handleMessage(ev models.Event) {
	msg, err := c.hub.Router.Publish(c.tenantID, ev.RoomID, c.userID, ev.Content, "text")

	var perr *PersistenceError
	switch {
	case err == nil:
		c.ack(msg)
	case errors.As(err, &perr):
		// Delivery already happened; the sender gets the ack plus a
		// may-not-be-saved warning.
		c.ack(msg)
		c.Enqueue(models.Event{
			Type:      models.EventWarning,
			RoomID:    ev.RoomID,
			MessageID: msg.ID,
			Content:   "message delivered but may not be saved",
			CreatedAt: time.Now(),
		})
	default:
		c.sendError(ev.RoomID, err)
	}
}

func (c *WebSocketClient) handleTyping(ev models.Event) {
	c.hub.Router.Typing(ev.RoomID, c.userID, ev.Type == models.EventTypingStart)
}

func (c *WebSocketClient) handleMessageRead(ev models.Event) {
	c.hub.Router.MarkRead(ev.RoomID, c.userID, ev.MessageID)
}

func (c *WebSocketClient) handlePresenceUpdate(ev models.Event) {
	var customMessage string
	if len(ev.Payload) > 0 {
		if err := json.Unmarshal(ev.Payload, &customMessage); err != nil {
			c.sendError("", err)
			return
		}
	}
	if err := c.hub.Presence.SetStatus(c.userID, models.PresenceStatus(ev.Content), customMessage); err != nil {
		c.sendError("", err)
	}
}

func (c *WebSocketClient) handleSignal(ev models.Event) {
	err := c.hub.Calls.RelaySignal(ev.CallID, c.userID, ev.TargetID, ev.Type, ev.Payload)
	if err != nil {
		// Relay failures are reported to the sender only; the session
		// keeps going.
		c.Enqueue(models.Event{
			Type:      models.EventWarning,
			CallID:    ev.CallID,
			TargetID:  ev.TargetID,
			Content:   err.Error(),
			CreatedAt: time.Now(),
		})
	}
}

func (c *WebSocketClient) handleMediaChange(ev models.Event) {
	var upd models.MediaUpdate
	if len(ev.Payload) > 0 {
		if err := json.Unmarshal(ev.Payload, &upd); err != nil {
			c.sendError("", err)
			return
		}
	}
	if err := c.hub.Calls.UpdateMedia(ev.CallID, c.userID, upd); err != nil {
		c.sendError("", err)
	}
}

func (c *WebSocketClient) ack(msg *models.Message) {
	c.Enqueue(models.Event{
		Type:      models.EventSendAck,
		RoomID:    msg.RoomID,
		MessageID: msg.ID,
		CreatedAt: time.Now(),
	})
}

func (c *WebSocketClient) sendError(roomID string, err error) {
	c.Enqueue(models.Event{
		Type:      models.EventError,
		RoomID:    roomID,
		Content:   err.Error(),
		CreatedAt: time.Now(),
	})
}
