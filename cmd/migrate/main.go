package main

import (
	"context"
	"flag"
	"log"

	"github.com/muhammadchandra19/tickstore/internal/infrastructure/questdb/migrations"
	"github.com/muhammadchandra19/tickstore/pkg/config"
	"github.com/muhammadchandra19/tickstore/pkg/logger"
	"github.com/muhammadchandra19/tickstore/pkg/migration"
	"github.com/muhammadchandra19/tickstore/pkg/questdb"
)

func main() {
	direction := flag.String("direction", "up", "up or down")
	steps := flag.Int("steps", 0, "number of migrations to apply or revert (0 applies all pending)")
	flag.Parse()

	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.NewLogger(logger.WithLoggingLevel(logger.Level(cfg.App.LogLevel)))
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	// Initialize QuestDB client
	client, err := questdb.NewClient(ctx, cfg.QuestDB)
	if err != nil {
		log.Fatalf("Failed to initialize QuestDB client: %v", err)
	}
	defer client.Close()

	runner := migration.NewRunner(client, migrations.FS, lg)

	var n int
	switch *direction {
	case "up":
		n, err = runner.Up(ctx, *steps)
	case "down":
		n, err = runner.Down(ctx, *steps)
	default:
		log.Fatalf("Unknown direction %q", *direction)
	}
	if err != nil {
		log.Fatalf("Migration failed after %d step(s): %v", n, err)
	}

	log.Printf("Migrations completed successfully: %d %s", n, *direction)
}
