// Package main runs database migrations from the command line.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	pgstore "github.com/kinship-labs/kinship/internal/store/postgres"
	"github.com/kinship-labs/kinship/pkg/config"
	"github.com/kinship-labs/kinship/pkg/logger"
)

func main() {
	down := flag.Bool("down", false, "roll back one migration instead of migrating up")
	flag.Parse()

	log := logger.New(slog.LevelInfo, false)

	cfg := config.LoadWithDefaults()

	store, err := pgstore.NewPostgresStore(pgstore.DefaultConfig(cfg.DatabaseDSN), log.Logger)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if *down {
		err = pgstore.MigrateDown(store.DB())
	} else {
		err = pgstore.Migrate(store.DB())
	}
	if err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}

	direction := "up"
	if *down {
		direction = "down"
	}
	fmt.Printf("migrations applied (%s)\n", direction)
}
