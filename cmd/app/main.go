package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"candidate-screening/internal/config"
	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/model"
	"candidate-screening/internal/domain/ports/adapter"
	aiAdapters "candidate-screening/internal/infra/adapters/ai"
	"candidate-screening/internal/infra/adapters/email"
	"candidate-screening/internal/infra/adapters/telegram"
	"candidate-screening/internal/infra/adapters/tms"
	pg "candidate-screening/internal/infra/db/postgres"
	"candidate-screening/internal/infra/logging"
	"candidate-screening/internal/infra/metrics"
	red "candidate-screening/internal/infra/redis"
	"candidate-screening/internal/infra/sched"
	"candidate-screening/internal/infra/security"
	"candidate-screening/internal/infra/web"
	"candidate-screening/internal/infra/worker"
	"candidate-screening/internal/usecase"
)

// set with -ldflags at build time
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "use no-op collaborators when credentials are missing")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("screening service stopped with error")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	jobRepo := pg.NewJobRepo(pool, tm)
	appRepo := pg.NewApplicationRepo(pool)
	reqRepo := pg.NewRequisitionRepoCacheDecorator(pg.NewRequisitionRepo(pool), redisClient, cfg.Redis.CacheTTL, logger)
	artifacts := pg.NewArtifactStore(pool)
	sealer, err := security.FromConfig(cfg.Security)
	if err != nil {
		return err
	}
	if sealer != nil {
		artifacts.WithEncryption(sealer)
		logger.Info().Msg("artifact encryption enabled")
	}

	// ---- Collaborators ----
	tmsClient, err := tms.NewClient(ctx, cfg.TMS)
	if err != nil {
		return fmt.Errorf("tms client: %w", err)
	}
	aiClient, err := buildAI(ctx, cfg, rateLimiter, logger)
	if err != nil {
		return err
	}
	mailer, err := buildMailer(cfg, logger)
	if err != nil {
		return err
	}
	alerter, err := buildAlerter(cfg, logger)
	if err != nil {
		return err
	}

	// ---- Stages ----
	timeouts := usecase.Timeouts{
		TMS:       cfg.Timeouts.TMS,
		AI:        cfg.Timeouts.AI,
		Email:     cfg.Timeouts.Email,
		Artifacts: cfg.Timeouts.Artifacts,
	}
	registry := usecase.NewStageRegistry(
		usecase.NewSyncStage(tmsClient, cfg.Pipeline.SyncLookback, timeouts, logger),
		usecase.NewAnalyzeStage(tmsClient, aiClient, appRepo, artifacts, timeouts),
		usecase.NewSendInterviewStage(mailer, appRepo, artifacts, usecase.InterviewSettings{
			BaseURL: cfg.Email.Interview.BaseURL,
			Subject: cfg.Email.Interview.Subject,
		}, timeouts),
		usecase.NewEvaluateStage(aiClient, artifacts, timeouts),
		usecase.NewGenerateReportStage(artifacts, timeouts),
		usecase.NewUploadReportStage(tmsClient, appRepo, artifacts, timeouts),
	)
	if err := registry.Validate(); err != nil {
		return err
	}

	// ---- Use cases ----
	backoffByType := make(map[model.JobType]time.Duration, len(cfg.Pipeline.BackoffByType))
	for name, d := range cfg.Pipeline.BackoffByType {
		backoffByType[model.JobType(name)] = d
	}
	policy := usecase.NewRetryPolicy(cfg.Pipeline.BackoffBase, backoffByType)
	pipelineUC := usecase.NewPipelineUseCase(jobRepo, appRepo, reqRepo, tm, policy, alerter, cfg.Pipeline.MaxAttempts, logger)
	queueUC := usecase.NewQueueUseCase(jobRepo, appRepo, reqRepo, artifacts, tm, cfg.Pipeline.MaxAttempts, logger)

	// ---- Workers and schedulers ----
	processor := worker.NewJobProcessor(pipelineUC, registry, cfg.Pipeline.RunTimeout(), cfg.Pipeline.PollInterval, logger)
	workers := worker.NewPool(cfg.Pipeline.Workers, hostname(), logger)
	reclaimer := sched.NewReclaimer(cfg.Pipeline.ReclaimInterval, cfg.Pipeline.LivenessTimeout, cfg.Pipeline.ReclaimBatch, pipelineUC, logger)
	syncer := sched.NewSyncScheduler(cfg.Pipeline.SyncInterval, cfg.Pipeline.DefaultPriority, reqRepo, jobRepo, queueUC, locker, logger)

	// ---- Admin API ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.APIKey, !cfg.Runtime.Dev, "", cfg.Admin.SessionTTL)
	if !auth.Enabled() {
		logger.Warn().Msg("admin.api_key or admin.jwt_secret not set; management routes will refuse all requests")
	}
	server := web.NewServer(queueUC, auth, map[string]web.HealthCheck{
		"postgres": pingPostgres(pool),
		"redis":    redisClient.Ping,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	workers.Start(gctx, processor.Run)
	g.Go(func() error { return reclaimer.Run(gctx) })
	g.Go(func() error { return syncer.Run(gctx) })
	g.Go(func() error {
		pg.ReportPoolStats(gctx, pool, 15*time.Second, logger)
		return nil
	})
	g.Go(func() error { return server.Start(cfg.Admin.Port) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("admin API shutdown")
		}
		return nil
	})

	err = g.Wait()
	// in-flight jobs settle through a detached context; wait for them before closing the pool
	workers.Stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildAI(ctx context.Context, cfg *config.Config, limiter aiAdapters.Limiter, logger *zerolog.Logger) (adapter.AIClient, error) {
	byProvider := map[string]adapter.AIClient{}
	limit := func(provider string, inner adapter.AIClient) adapter.AIClient {
		return aiAdapters.NewLimitedAI(inner, cfg.AI.ConcurrentLimit, limiter, cfg.AI.CallsPerMinute, func(now time.Time) string {
			return red.AICallsKey(provider, now)
		})
	}

	if cfg.AI.OpenAIKey != "" {
		oa, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel, cfg.AI.OpenAIBaseURL)
		if err != nil {
			return nil, fmt.Errorf("openai adapter: %w", err)
		}
		byProvider[aiAdapters.ProviderOpenAI] = limit(aiAdapters.ProviderOpenAI, oa)
	}
	if cfg.AI.GeminiKey != "" {
		gm, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, "", 0)
		if err != nil {
			return nil, fmt.Errorf("gemini adapter: %w", err)
		}
		byProvider[aiAdapters.ProviderGemini] = limit(aiAdapters.ProviderGemini, gm)
	}

	var inner adapter.AIClient
	switch {
	case len(byProvider) > 0:
		inner = aiAdapters.NewMultiAIAdapter(cfg.AI.DefaultModel, byProvider, nil)
		logger.Info().Str("default_model", cfg.AI.DefaultModel).Int("providers", len(byProvider)).Msg("AI adapter configured")
	case cfg.Runtime.Dev:
		inner = aiAdapters.NewNoopAIAdapter(logger)
		logger.Warn().Msg("no AI provider configured; using no-op adapter")
	default:
		return nil, fmt.Errorf("no AI provider configured: set ai.openai_key or ai.gemini_key: %w", domain.ErrMissingCredentials)
	}
	return aiAdapters.NewValidatingAI(aiAdapters.NewTokenBudgetAI(inner, cfg.AI.MaxInputTokens, logger, cfg.AI.DefaultModel)), nil
}

func buildMailer(cfg *config.Config, logger *zerolog.Logger) (adapter.EmailClient, error) {
	m, err := email.NewHTTPMailer(cfg.Email, &http.Client{})
	if errors.Is(err, domain.ErrMissingCredentials) && cfg.Runtime.Dev {
		logger.Warn().Msg("email not configured; using no-op mailer")
		return email.NewNoopMailer(logger), nil
	}
	if err != nil {
		return nil, fmt.Errorf("mailer: %w", err)
	}
	return m, nil
}

// Alerts are optional: without Telegram settings they only reach the log.
func buildAlerter(cfg *config.Config, logger *zerolog.Logger) (adapter.OperatorAlerter, error) {
	a, err := telegram.NewAlerter(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
	if errors.Is(err, domain.ErrMissingCredentials) {
		logger.Warn().Msg("telegram alerting not configured; alerts go to the log only")
		return telegram.NewNoopAlerter(logger), nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func pingPostgres(pool *pgxpool.Pool) web.HealthCheck {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return pool.Ping(ctx)
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "worker"
	}
	return h
}
