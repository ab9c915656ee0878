package handler

import (
	"net/http"
	"strconv"

	"teamgrid/backend/internal/config"
	"teamgrid/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// GetRoomMessages returns a page of a room's history, oldest first.
func (h *Handler) GetRoomMessages(c *gin.Context) {
	identity, err := h.identify(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	roomID := c.Param("id")
	ok, err := h.Storage.IsRoomMember(identity.TenantID, roomID, identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this room"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(config.HistoryReplayLimit)))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	messages, err := h.Storage.LoadRecentMessages(roomID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": messages})
}

type setPresenceRequest struct {
	Status  string `json:"status" binding:"required"`
	Message string `json:"message"`
}

// SetPresence applies an explicit presence change.
func (h *Handler) SetPresence(c *gin.Context) {
	identity, err := h.identify(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req setPresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	if err := h.Hub.Presence.SetStatus(identity.UserID, models.PresenceStatus(req.Status), req.Message); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.Hub.Presence.Get(identity.UserID)})
}

// GetStats exposes live counters for operations dashboards.
func (h *Handler) GetStats(c *gin.Context) {
	roomCount, memberCount := h.Hub.Rooms.Stats()
	activeCalls, activeRecordings := h.Hub.Calls.Stats()
	c.JSON(http.StatusOK, gin.H{
		"connections":       h.Hub.Registry.ConnectionCount(),
		"online_users":      h.Hub.Registry.UserCount(),
		"active_rooms":      roomCount,
		"room_members":      memberCount,
		"active_calls":      activeCalls,
		"active_recordings": activeRecordings,
		"pending_pushes":    h.Hub.Dispatcher.Pending(),
	})
}
