// Package main provides the entry point for the API server.
package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kinship-labs/kinship/internal/api"
	"github.com/kinship-labs/kinship/internal/auth"
	"github.com/kinship-labs/kinship/internal/cleanup"
	"github.com/kinship-labs/kinship/internal/family"
	"github.com/kinship-labs/kinship/internal/mail"
	"github.com/kinship-labs/kinship/internal/shutdown"
	pgstore "github.com/kinship-labs/kinship/internal/store/postgres"
	"github.com/kinship-labs/kinship/pkg/config"
	"github.com/kinship-labs/kinship/pkg/logger"
)

func main() {
	log := logger.New(slog.LevelInfo, true)

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	store, err := pgstore.NewPostgresStore(pgstore.DefaultConfig(cfg.DatabaseDSN), log.Logger)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := pgstore.Migrate(store.DB()); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	registry := family.NewRegistry(store, log.Logger)
	created, err := registry.Seed(ctx, cfg.SeedOverridesPath)
	if err != nil {
		log.Error("failed to seed relationship types", "error", err)
		os.Exit(1)
	}
	if len(created) > 0 {
		log.Info("seeded relationship types", "count", len(created))
	}

	mailer, err := mail.NewMailer(ctx, cfg.Mail, log.Logger)
	if err != nil {
		log.Error("failed to initialize mailer", "error", err)
		os.Exit(1)
	}

	invitations := family.NewInvitationService(store, registry, mailer, log.Logger)

	authService := auth.NewService(&auth.Config{
		JWTSecret:   []byte(cfg.JWTSecret),
		TokenExpiry: cfg.JWTExpiry,
	}, log.Logger)

	sweeper := cleanup.NewService(store, invitations, &cleanup.Settings{
		SweepInterval: cfg.Cleanup.SweepInterval,
		EdgeRetention: cfg.Cleanup.EdgeRetention,
	}, log.Logger)

	server := api.NewServer(cfg, store, registry, invitations, authService, store, log.Logger)

	coordinator := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.Logger),
	)

	serverCtx, serverCancel := context.WithCancel(ctx)
	sweepCtx, sweepCancel := context.WithCancel(ctx)

	go sweeper.Run(sweepCtx)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(serverCtx)
	}()

	coordinator.Register(shutdown.NewCloserComponent("database", store))
	coordinator.Register(shutdown.NewFuncComponent("cleanup", func(ctx context.Context) error {
		sweepCancel()
		return nil
	}))
	coordinator.Register(shutdown.NewFuncComponent("api-server", func(ctx context.Context) error {
		serverCancel()
		return <-serverDone
	}))

	coordinator.WaitForSignal()
	coordinator.Wait()

	log.Info("server stopped")
	os.Exit(coordinator.ExitCode())
}
