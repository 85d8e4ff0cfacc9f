package main

import (
	"errors"
	"flag"
	"log"

	"github.com/golang-migrate/migrate/v4"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/adapter/storage"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/config"
)

func main() {
	action := flag.String("action", "up", "Migration action: up, down, or version")
	steps := flag.Int("steps", 0, "Number of migrations to roll back (for down)")
	flag.Parse()

	cfg := config.LoadConfig()
	if cfg.MySQLDSN == "" {
		log.Fatal("MYSQL_DSN is required")
	}

	m, err := storage.NewMigrator(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("Failed to create migrate instance: %v", err)
	}
	defer m.Close()

	switch *action {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("Migrations applied successfully")

	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("Migrations rolled back successfully")

	case "version":
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatalf("Failed to get version: %v", err)
		}
		log.Printf("Current version: %d, Dirty: %v", version, dirty)

	default:
		log.Fatalf("Unknown action: %s (use up, down, or version)", *action)
	}
}
