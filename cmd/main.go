package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"teamgrid/backend/internal/api/handler"
	"teamgrid/backend/internal/config"
	"teamgrid/backend/internal/models"
	"teamgrid/backend/internal/push"
	"teamgrid/backend/internal/realtime"
	"teamgrid/backend/internal/scoring"
	"teamgrid/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.ChatRoom{},
		&models.RoomMember{},
		&models.Message{},
		&models.CallRecord{},
		&models.CallParticipant{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting TeamGrid Realtime Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg := config.Load()
	db, rdb := setupDependencies(cfg)
	s := storage.NewService(db, rdb)

	var pusher realtime.Pusher
	if cfg.TelegramToken != "" {
		tp, err := push.NewTelegramPusher(cfg.TelegramToken, s)
		if err != nil {
			log.Fatalf("Failed to start Telegram pusher: %v", err)
		}
		pusher = tp
	} else {
		log.Println("TELEGRAM_BOT_TOKEN not set, offline notifications go to the log")
		pusher = push.LogPusher{}
	}

	hub := realtime.NewHub(s, scoring.Heuristic{}, pusher, cfg)
	hub.Run()

	r := gin.Default()
	h := handler.NewHandler(hub, s, cfg.JWTSecret)

	r.GET("/token", h.GetToken)
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api")
	{
		api.POST("/calls", h.InitiateCall)
		api.POST("/calls/:id/join", h.JoinCall)
		api.PUT("/calls/:id/media", h.UpdateCallMedia)
		api.POST("/calls/:id/recording/start", h.StartRecording)
		api.POST("/calls/:id/recording/stop", h.StopRecording)
		api.PUT("/calls/:id/quality", h.ReportQuality)
		api.POST("/calls/:id/leave", h.LeaveCall)
		api.POST("/calls/:id/end", h.EndCall)
		api.GET("/rooms/:id/messages", h.GetRoomMessages)
		api.PUT("/presence", h.SetPresence)
		api.GET("/stats", h.GetStats)
	}

	server := &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
