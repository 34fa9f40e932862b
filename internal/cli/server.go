package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quiz-assessment-service/internal/app"
	"quiz-assessment-service/internal/config"
	"quiz-assessment-service/internal/domain"
	"quiz-assessment-service/internal/grading"
	"quiz-assessment-service/internal/infra/memory"
	pgstore "quiz-assessment-service/internal/infra/postgres"
	redisstore "quiz-assessment-service/internal/infra/redis"
	"quiz-assessment-service/internal/leaderboard"
	"quiz-assessment-service/internal/metrics"
	transport "quiz-assessment-service/internal/transport/http"
	"quiz-assessment-service/internal/tutor"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runServer(cmd.Context(), cfg, *port, logger)
		},
	}
}

// quizCatalog is the authoritative quiz store: Postgres when configured,
// otherwise the bundled sample quizzes in memory.
type quizCatalog interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
	DeleteQuiz(ctx context.Context, quizID string) error
}

type stores struct {
	catalog     quizCatalog
	quizzes     app.QuizRepository
	submissions app.SubmissionRepository
	hints       app.HintCounter
	board       leaderboard.Store
	cache       leaderboard.Cache
	close       func()
}

// openStores picks Postgres and Redis adapters when configured and falls
// back to in-process ones otherwise.
func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, error) {
	s := stores{close: func() {}}
	var closers []func()

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return s, err
		}
		closers = append(closers, pool.Close)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })
	}
	s.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if pool != nil {
		s.catalog = pgstore.NewQuizStore(pool)
		s.submissions = pgstore.NewSubmissionStore(pool)
		s.board = pgstore.NewLeaderboardStore(pool)
	} else {
		s.catalog = memory.NewQuizCatalog(sampleQuizzes()...)
		s.submissions = memory.NewSubmissionStore()
		s.board = memory.NewLeaderboardStore()
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if redisClient != nil {
		s.quizzes = redisstore.NewQuizRepository(redisClient, s.catalog, quizTTL)
		s.hints = redisstore.NewHintCounter(redisClient, config.TTLDuration(cfg.Hints.Window, 24*time.Hour))
		s.cache = redisstore.NewCache(redisClient)
	} else {
		s.quizzes = memory.NewQuizRepository(s.catalog, quizTTL)
		s.hints = memory.NewHintCounter()
		s.cache = memory.NewCache()
	}

	logger.Info("stores ready",
		zap.Bool("postgres", pool != nil),
		zap.Bool("redis", redisClient != nil),
	)
	return s, nil
}

func runServer(ctx context.Context, cfg config.Config, portFlag string, logger *zap.Logger) error {
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	m := metrics.New()
	t := tutor.New(ctx, cfg.LLM(), cfg.Env, logger.Named("tutor"), m)
	logger.Info("tutor selected", zap.String("tutor", t.Name()))

	engine := grading.NewEngine(t, t, cfg.GradingPolicy(),
		grading.WithLogger(logger.Named("grading")),
		grading.WithMetrics(m),
	)
	aggregator := leaderboard.NewAggregator(st.board, st.cache,
		leaderboard.WithTTL(config.TTLDuration(cfg.Leaderboard.TTL, leaderboard.DefaultTTL)),
		leaderboard.WithLogger(logger.Named("leaderboard")),
		leaderboard.WithMetrics(m),
	)
	service := app.NewAssessmentService(app.Dependencies{
		Quizzes:     st.quizzes,
		Catalog:     st.catalog,
		Submissions: st.submissions,
		Hints:       st.hints,
		Hinter:      t,
		Engine:      engine,
		Leaderboard: aggregator,
	},
		app.WithLogger(logger.Named("assessment")),
		app.WithHintLimit(cfg.HintLimit()),
		app.WithHintReset(cfg.Env != config.EnvProduction),
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(service, m.Handler(), logger.Named("http")),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting assessment service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
