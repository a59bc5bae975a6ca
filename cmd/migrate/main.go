package main

import (
	"log"

	"buildadvisor/internal/config"
	"buildadvisor/internal/database"
	"buildadvisor/internal/domain/checkout"
	"buildadvisor/internal/domain/profile"
	"buildadvisor/internal/domain/usage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running AutoMigrate...")
	if err := database.Migrate(db,
		&profile.UserProfile{},
		&usage.Counters{},
		&checkout.Record{},
	); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}
	log.Println("Schema is up to date: user_profiles, usage_counts, checkout_sessions")
}
