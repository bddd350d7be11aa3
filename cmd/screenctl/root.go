package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"candidate-screening/internal/config"
	pg "candidate-screening/internal/infra/db/postgres"
	"candidate-screening/internal/infra/security"
	"candidate-screening/internal/usecase"
)

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "screenctl",
	Short:         "Operate the candidate screening job queue",
	Long:          "screenctl inspects and manages screening jobs and requisitions directly in Postgres.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: SCREENING_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log queue operations to stderr")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves the config path: explicit flag, then SCREENING_CONFIG, then ./config.yaml.
func loadConfig() (*config.Config, error) {
	path := cfgPath
	if path == "" {
		if env := os.Getenv("SCREENING_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.LoadConfig(path, false)
}

// env is what every subcommand needs: an open pool and the queue operations on top of it.
type env struct {
	cfg   *config.Config
	pool  *pgxpool.Pool
	queue usecase.QueueUseCase
	log   *zerolog.Logger
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	var out io.Writer = io.Discard
	if verbose {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	logger := zerolog.New(out).With().Timestamp().Logger()

	pool, err := pg.Connect(ctx, cfg.Database.URL, 2)
	if err != nil {
		return nil, err
	}
	artifacts := pg.NewArtifactStore(pool)
	sealer, err := security.FromConfig(cfg.Security)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if sealer != nil {
		artifacts.WithEncryption(sealer)
	}
	tm := pg.NewTxManager(pool)
	queue := usecase.NewQueueUseCase(
		pg.NewJobRepo(pool, tm),
		pg.NewApplicationRepo(pool),
		pg.NewRequisitionRepo(pool),
		artifacts,
		tm,
		cfg.Pipeline.MaxAttempts,
		&logger,
	)
	return &env{cfg: cfg, pool: pool, queue: queue, log: &logger}, nil
}

func (e *env) Close() { e.pool.Close() }
