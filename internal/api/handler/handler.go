package handler

import (
	"teamgrid/backend/internal/realtime"
	"teamgrid/backend/internal/storage"
)

// Handler carries the realtime hub and storage into the gin routes.
type Handler struct {
	Hub       *realtime.Hub
	Storage   storage.Storage
	JWTSecret []byte
}

func NewHandler(hub *realtime.Hub, st storage.Storage, jwtSecret string) *Handler {
	return &Handler{
		Hub:       hub,
		Storage:   st,
		JWTSecret: []byte(jwtSecret),
	}
}
