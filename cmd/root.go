package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-cluster/internal/config"
	"github.com/kozaktomas/face-cluster/internal/database"
	"github.com/kozaktomas/face-cluster/internal/database/postgres"
	"github.com/kozaktomas/face-cluster/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "face-cluster",
	Short: "Group detected faces into people and keep manual corrections",
	Long: `Face Cluster groups face embeddings stored in PostgreSQL into clusters
with DBSCAN, keeps cluster identities stable across runs and replays manual
corrections (exclusions and person assignments) after every run.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads and validates the configuration and installs the logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logger.Setup(cfg.Log), nil
}

// openStore connects to PostgreSQL, runs migrations and returns the store.
// The returned close function releases the pool.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, func(), error) {
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("DATABASE_URL environment variable is required")
	}
	if err := postgres.Initialize(ctx, &cfg.Database); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	pool := postgres.GetGlobalPool()
	database.RegisterPostgresBackend(func() database.Store { return postgres.NewStore(pool) })

	store, err := database.GetStore(ctx)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, func() { pool.Close() }, nil
}
