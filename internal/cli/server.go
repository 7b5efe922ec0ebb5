package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quizmusic-service/internal/app"
	"quizmusic-service/internal/config"
	"quizmusic-service/internal/fixtures"
	"quizmusic-service/internal/infra/memory"
	pgstore "quizmusic-service/internal/infra/postgres"
	redisstore "quizmusic-service/internal/infra/redis"
	"quizmusic-service/internal/logger"
	transport "quizmusic-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", "", "port to listen on (overrides config and PORT)")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	levels, err := cfg.LevelTable()
	if err != nil {
		return fmt.Errorf("level table: %w", err)
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var (
		loader app.CatalogLoader
		scores app.ScoreRepository
	)
	if pool != nil {
		loader = pgstore.NewCatalog(pool)
		scores = pgstore.NewScoreStore(pool)
	} else {
		bundled, err := fixtures.Bundled()
		if err != nil {
			return err
		}
		static := memory.NewStaticCatalogFromFixtures(bundled)
		loader = static
		scores = memory.NewScoreStore(static)
		log.Warn("postgres not configured, serving bundled catalog with in-memory scores")
	}

	sampler := app.NewSampler()
	catalogTTL := config.TTLDuration(cfg.Quiz.CatalogTTL, 10*time.Minute)
	sessionTTL := config.TTLDuration(cfg.Quiz.SessionTTL, 30*time.Minute)

	var catalog app.ThemeCatalog
	if redisClient != nil {
		catalog = redisstore.NewCatalogCache(redisClient, loader, catalogTTL, sampler).WithLogger(log)
	} else {
		catalog = memory.NewCatalog(loader, catalogTTL, sampler).WithLogger(log)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient, sessionTTL)
	} else {
		store = memory.NewSessionStore(sessionTTL)
	}

	service := app.NewQuizService(store, catalog, scores, levels, log, cfg.Quiz.QuestionCount)

	mux := http.NewServeMux()
	transport.NewAPIHandler(service, log).Register(mux)
	mux.HandleFunc("GET /ws", transport.NewWSHandler(service, log).ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting quiz service", zap.String("port", finalPort), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
