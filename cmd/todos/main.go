package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/todokit/db/migrations"
	"github.com/dmitrymomot/todokit/handler"
	"github.com/dmitrymomot/todokit/modules/prompt"
	"github.com/dmitrymomot/todokit/modules/todo"
	"github.com/dmitrymomot/todokit/pkg/config"
	"github.com/dmitrymomot/todokit/pkg/httpserver"
	"github.com/dmitrymomot/todokit/pkg/logger"
	"github.com/dmitrymomot/todokit/pkg/pg"
	"github.com/dmitrymomot/todokit/pkg/queue"
	"github.com/dmitrymomot/todokit/pkg/ratelimiter"
	"github.com/dmitrymomot/todokit/pkg/redis"
)

func main() {
	cfg := config.MustLoad[appConfig]()

	log, err := newLogger(cfg)
	if err != nil {
		slog.Error("failed to configure logger", logger.Error(err))
		os.Exit(1)
	}
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("application stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func newLogger(cfg appConfig) (*slog.Logger, error) {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, cfg.Name),
		logger.WithContextExtractors(logger.RequestIDExtractor()),
		logger.WithAttr(slog.String("version", cfg.Version)),
	}
	if cfg.LogLevel != "" {
		level, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		opts = append(opts, logger.WithLevel(level))
	}
	if cfg.LogFile != "" {
		opts = append(opts, logger.WithFile(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays))
	}
	return logger.New(opts...), nil
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, migrations.FS, cfg.PG, log.With(logger.Component("migrate"))); err != nil {
		return err
	}

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("failed to close redis client", logger.Error(err))
		}
	}()

	// Queue
	locker, err := queue.NewRedisLocker(redisClient, cfg.LockPrefix)
	if err != nil {
		return err
	}
	taskStorage, err := queue.NewPostgresStorage(pool)
	if err != nil {
		return err
	}
	enqueuer, err := queue.NewEnqueuer(taskStorage,
		queue.WithEnqueuerLocker(locker),
		queue.WithEnqueuerLogger(log.With(logger.Component("enqueuer"))),
	)
	if err != nil {
		return err
	}

	lanes, err := queue.ParseLanes(cfg.Queue.Lanes)
	if err != nil {
		return err
	}
	worker, err := queue.NewWorker(taskStorage,
		queue.WithLanes(lanes...),
		queue.WithLocker(locker),
		queue.WithPullInterval(cfg.Queue.PollInterval),
		queue.WithLockTimeout(cfg.Queue.LockTimeout),
		queue.WithUniqueLockTTL(cfg.Queue.UniqueLockTTL),
		queue.WithMaxConcurrentTasks(cfg.Queue.MaxConcurrentTasks),
		queue.WithWorkerLogger(log.With(logger.Component("worker"))),
	)
	if err != nil {
		return err
	}

	limitStore, err := ratelimiter.NewRedisStore(redisClient, "")
	if err != nil {
		return err
	}
	limit, err := newRateLimit(cfg.RateLimit, limitStore, log)
	if err != nil {
		return err
	}

	// Todos
	todoStore, err := todo.NewPostgresStore(pool)
	if err != nil {
		return err
	}
	todoSvc, err := todo.NewService(todoStore, enqueuer,
		todo.WithServiceLogger(log),
		todo.WithAppMeta(map[string]any{"app_name": cfg.Name, "app_version": cfg.Version}),
		todo.WithCleanupMiddleware(limit("cleanup")),
	)
	if err != nil {
		return err
	}
	cleanupTask, err := todo.NewCleanupTask(todoStore, todo.WithCleanupLogger(log))
	if err != nil {
		return err
	}
	if err := worker.RegisterHandler(cleanupTask); err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		httpserver.AccessLog(log.With(logger.Component("http")), "/up"),
		middleware.Recoverer,
	)
	r.Get("/up", httpserver.HealthCheckHandler(log,
		httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)},
		httpserver.Check{Name: "redis", Fn: redis.Healthcheck(redisClient)},
	))
	r.Get("/", todoSvc.Index())
	r.Mount("/todos", todoSvc.Handle())

	// AI prompt pairs are served only when a generator is configured.
	if cfg.Prompt.Enabled() {
		generator, err := prompt.NewGeminiGenerator(ctx, cfg.Prompt)
		if err != nil {
			return err
		}
		promptStore, err := prompt.NewPostgresStore(pool, nil)
		if err != nil {
			return err
		}
		promptSvc, err := prompt.NewService(promptStore, generator, enqueuer,
			prompt.WithModel(cfg.Prompt.Model),
			prompt.WithServiceLogger(log),
		)
		if err != nil {
			return err
		}
		if err := worker.RegisterHandler(promptSvc.PerformHandler()); err != nil {
			return err
		}
		r.With(limit("ai")).Mount("/ai", promptSvc.Handle())
	} else {
		log.Info("GEMINI_API_KEY is not set, AI routes are disabled")
	}

	scheduler, err := newScheduler(cfg.Queue, enqueuer, taskStorage, log)
	if err != nil {
		return err
	}

	server := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(worker.Run(ctx))
	if scheduler != nil {
		g.Go(scheduler.Run(ctx))
	}
	g.Go(func() error {
		return server.Run(ctx, r)
	})

	return g.Wait()
}

// newRateLimit returns a per-route, per-client limiter.
// Denials render as a JSON 429 and store failures as a JSON 503.
func newRateLimit(cfg ratelimiter.Config, store ratelimiter.Store, log *slog.Logger) (func(route string) func(http.Handler) http.Handler, error) {
	bucket, err := ratelimiter.NewBucket(store, cfg)
	if err != nil {
		return nil, err
	}

	log = log.With(logger.Component("ratelimit"))
	opts := []ratelimiter.MiddlewareOption{
		ratelimiter.WithLimitedHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = handler.JSONError(handler.ErrTooManyRequests).Render(w, r)
		})),
		ratelimiter.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			log.ErrorContext(r.Context(), "rate limit check failed", logger.Error(err))
			_ = handler.JSONError(handler.ErrServiceUnavailable).Render(w, r)
		}),
	}

	return func(route string) func(http.Handler) http.Handler {
		return ratelimiter.Middleware(bucket, ratelimiter.Composite(ratelimiter.Static(route), ratelimiter.ByIP()), opts...)
	}, nil
}

// newScheduler builds the cron scheduler from the schedule file. It returns
// nil when the file is missing or defines no valid entries. Invalid entries
// are logged and skipped.
func newScheduler(cfg queue.Config, enqueuer queue.TaskEnqueuer, repo queue.SchedulerRepository, log *slog.Logger) (*queue.Scheduler, error) {
	log = log.With(logger.Component("scheduler"))

	entries, err := queue.LoadScheduleFile(cfg.ScheduleFile)
	if errors.Is(err, queue.ErrInvalidScheduleFile) {
		return nil, err
	}
	if err != nil {
		log.Error("schedule file has invalid entries", slog.String("file", cfg.ScheduleFile), logger.Error(err))
	}
	if len(entries) == 0 {
		log.Info("no recurring tasks scheduled", slog.String("file", cfg.ScheduleFile))
		return nil, nil
	}

	scheduler, err := queue.NewScheduler(enqueuer, repo,
		queue.WithCheckInterval(cfg.SchedulerInterval),
		queue.WithSchedulerLogger(log),
	)
	if err != nil {
		return nil, err
	}

	registered := 0
	for _, entry := range entries {
		if err := scheduler.AddEntry(entry); err != nil {
			log.Error("schedule entry skipped",
				slog.String("entry", entry.Name),
				logger.TaskName(entry.Task),
				logger.Queue(entry.Queue),
				logger.Error(err))
			continue
		}
		registered++
	}
	if registered == 0 {
		return nil, nil
	}

	log.Info("schedule loaded",
		slog.String("file", cfg.ScheduleFile),
		logger.Count(int64(registered)),
		slog.Duration("check_interval", cfg.SchedulerInterval))
	return scheduler, nil
}
