package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"teamgrid/backend/internal/config"
	"teamgrid/backend/internal/models"
	"teamgrid/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	storageSvc := storage.NewService(db, rdb)

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "active-calls":
		ids, err := storageSvc.ActiveCallIDs()
		if err != nil {
			log.Fatalf("Error listing active calls: %v", err)
		}
		if len(ids) == 0 {
			fmt.Println("No active calls.")
			return
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	case "end-call":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin end-call <call_id>")
			os.Exit(1)
		}
		callID := os.Args[2]
		if err := endCall(storageSvc, callID); err != nil {
			log.Fatalf("Error ending call: %v", err)
		}
		fmt.Printf("Call %s has been marked ended.\n", callID)
	case "presence":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin presence <user_id>")
			os.Exit(1)
		}
		userID := os.Args[2]
		status, err := storageSvc.GetPresence(userID)
		if err != nil {
			log.Fatalf("Error reading presence: %v", err)
		}
		fmt.Printf("User %s is %s.\n", userID, status)
	case "clear-presence":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin clear-presence <user_id>")
			os.Exit(1)
		}
		userID := os.Args[2]
		if err := storageSvc.ClearPresence(userID); err != nil {
			log.Fatalf("Error clearing presence: %v", err)
		}
		fmt.Printf("Presence for user %s has been cleared.\n", userID)
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

// endCall force-closes a call record that the server lost track of, for
// example after a crash. It only touches the database row; live sessions
// end through the API.
func endCall(s *storage.Service, callID string) error {
	var rec models.CallRecord
	if err := s.DB.First(&rec, "call_id = ?", callID).Error; err != nil {
		return err
	}
	now := time.Now()
	rec.Status = string(models.CallEnded)
	rec.EndedAt = &now
	rec.EndReason = "admin"
	if rec.StartedAt != nil {
		rec.Duration = int(now.Sub(*rec.StartedAt).Seconds())
	}
	return s.UpdateCallRecord(&rec)
}
