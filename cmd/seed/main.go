// Package main seeds the relationship-type catalog.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kinship-labs/kinship/internal/family"
	pgstore "github.com/kinship-labs/kinship/internal/store/postgres"
	"github.com/kinship-labs/kinship/pkg/config"
	"github.com/kinship-labs/kinship/pkg/logger"
)

func main() {
	overrides := flag.String("overrides", "", "path to a YAML file of relationship-type overrides")
	flag.Parse()

	log := logger.New(slog.LevelInfo, false)

	cfg := config.LoadWithDefaults()

	overridePath := *overrides
	if overridePath == "" {
		overridePath = cfg.SeedOverridesPath
	}

	store, err := pgstore.NewPostgresStore(pgstore.DefaultConfig(cfg.DatabaseDSN), log.Logger)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	if err := pgstore.Migrate(store.DB()); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	registry := family.NewRegistry(store, log.Logger)
	created, err := registry.Seed(ctx, overridePath)
	if err != nil {
		log.Error("failed to seed relationship types", "error", err)
		os.Exit(1)
	}

	for _, rt := range created {
		log.Info("created relationship type", "name", rt.Name)
	}
	log.Info("seed complete", "created", len(created))
}
