// migrate applies the embedded schema migrations for the identity service.
//
// Usage: go run ./cmd/migrate [up|down]   (default up)
package main

import (
	"errors"
	"log"
	"os"

	"painel-auth/internal/config"
	"painel-auth/internal/db/migrate"
)

func main() {
	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}
	switch direction {
	case "up", "down":
	default:
		log.Fatalf("unknown direction %q: use up or down", direction)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; set it in .env or the environment")
	}

	if err := migrate.Run(cfg.DatabaseURL, direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("schema already up to date")
			return
		}
		log.Fatalf("migrate: %v", err)
	}
	log.Printf("migrations applied (%s)", direction)
}
