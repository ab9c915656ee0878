package handler

import (
	"errors"
	"net/http"

	"teamgrid/backend/internal/models"
	"teamgrid/backend/internal/realtime"

	"github.com/gin-gonic/gin"
)

type initiateCallRequest struct {
	Participants []string `json:"participants" binding:"required"`
	Kind         string   `json:"kind"`
}

// InitiateCall creates a call session and invites the participants.
func (h *Handler) InitiateCall(c *gin.Context) {
	identity, err := h.identify(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req initiateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "participants are required"})
		return
	}
	if req.Kind == "" {
		req.Kind = "video"
	}

	session, err := h.Hub.Calls.Initiate(identity.TenantID, identity.UserID, req.Participants, req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": session.Snapshot()})
}

type joinCallRequest struct {
	AudioEnabled *bool `json:"audio_enabled"`
	VideoEnabled *bool `json:"video_enabled"`
}

// JoinCall connects the caller to an existing call.
func (h *Handler) JoinCall(c *gin.Context) {
	identity, err := h.identify(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req joinCallRequest
	_ = c.ShouldBindJSON(&req)
	media := models.MediaState{AudioEnabled: true, VideoEnabled: true}
	if req.AudioEnabled != nil {
		media.AudioEnabled = *req.AudioEnabled
	}
	if req.VideoEnabled != nil {
		media.VideoEnabled = *req.VideoEnabled
	}

	callID := c.Param("id")
	if err := h.Hub.Calls.Join(callID, identity.UserID, media); err != nil {
		h.callError(c, err)
		return
	}

	session := h.Hub.Calls.Session(callID)
	if session == nil {
		c.JSON(http.StatusGone, gin.H{"error": "call already ended"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": session.Snapshot()})
}

// UpdateCallMedia applies a partial media change.
func (h *Handler) UpdateCallMedia(c *gin.Context) {
	identity, err := h.identify(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var upd models.MediaUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media update"})
		return
	}
	if err := h.Hub.Calls.UpdateMedia(c.Param("id"), identity.UserID, upd); err != nil {
		h.callError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "media updated"})
}

// StartRecording begins recording the call.
func (h *Handler) StartRecording(c *gin.Context) {
	identity, err := h.identify(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	rec, err := h.Hub.Calls.StartRecording(c.Param("id"), identity.UserID)
	if err != nil {
		h.callError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rec})
}

// StopRecording finalizes the recording; stopping twice is a no-op.
func (h *Handler) StopRecording(c *gin.Context) {
	identity, err := h.identify(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	rec, err := h.Hub.Calls.StopRecording(c.Param("id"), identity.UserID)
	if err != nil {
		h.callError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rec})
}

type qualityRequest struct {
	Quality string `json:"quality" binding:"required"`
}

// ReportQuality records the caller's reported connection quality.
func (h *Handler) ReportQuality(c *gin.Context) {
	identity, err := h.identify(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req qualityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quality is required"})
		return
	}
	switch req.Quality {
	case "excellent", "good", "poor", "very_poor":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown quality level"})
		return
	}
	if err := h.Hub.Calls.SetQuality(c.Param("id"), identity.UserID, req.Quality); err != nil {
		h.callError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "quality recorded"})
}

// LeaveCall removes the caller from the call.
func (h *Handler) LeaveCall(c *gin.Context) {
	identity, err := h.identify(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	if err := h.Hub.Calls.Leave(c.Param("id"), identity.UserID); err != nil {
		h.callError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "left call"})
}

// EndCall hangs up for everyone.
func (h *Handler) EndCall(c *gin.Context) {
	identity, err := h.identify(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	if err := h.Hub.Calls.End(c.Param("id"), identity.UserID); err != nil {
		h.callError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "call ended"})
}

func (h *Handler) callError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, realtime.ErrCallNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, realtime.ErrCallEnded):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, realtime.ErrAccessDenied), errors.Is(err, realtime.ErrRecordingPermission):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, realtime.ErrParticipantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
