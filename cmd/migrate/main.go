package main

import (
	"flag"
	"log"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/supreset/identity/internal/database"
	"github.com/supreset/identity/internal/migration"
	"github.com/supreset/identity/internal/server"
)

func main() {
	command := flag.String("command", "up", "migration command (up/down/down-to/status/version/reset)")
	target := flag.String("version", "", "target version for down-to")
	flag.Parse()

	if os.Getenv("APP_ENV") == "" {
		os.Setenv("APP_ENV", "development")
	}

	// Database settings only; the signing secret is not needed here
	cfg, err := server.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := server.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	manager, err := database.NewManager(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer manager.Close()

	migrator, err := migration.NewMigrator(manager)
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}

	switch *command {
	case "up":
		if err := migrator.Up(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("Successfully ran migrations")

	case "down":
		if err := migrator.Down(); err != nil {
			log.Fatalf("Failed to rollback migrations: %v", err)
		}
		log.Println("Successfully rolled back migrations")

	case "down-to":
		version, err := strconv.ParseInt(*target, 10, 64)
		if err != nil {
			log.Fatalf("Invalid -version %q: %v", *target, err)
		}
		if err := migrator.DownTo(version); err != nil {
			log.Fatalf("Failed to migrate down: %v", err)
		}
		logger.Info("Migrated down", zap.Int64("version", version))

	case "status":
		if err := migrator.Status(); err != nil {
			log.Fatalf("Failed to get migration status: %v", err)
		}

	case "version":
		version, err := migrator.Version()
		if err != nil {
			log.Fatalf("Failed to get migration version: %v", err)
		}
		log.Printf("Current migration version: %d", version)

	case "reset":
		if err := migrator.Reset(); err != nil {
			log.Fatalf("Failed to reset migrations: %v", err)
		}
		log.Println("Successfully reset migrations")

	default:
		log.Fatalf("Unknown command: %s", *command)
	}
}
