package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"teamflow/backend/internal/activity"
	"teamflow/backend/internal/cache"
	"teamflow/backend/internal/config"
	"teamflow/backend/internal/database"
	"teamflow/backend/internal/handlers"
	"teamflow/backend/internal/logging"
	"teamflow/backend/internal/mail"
	"teamflow/backend/internal/monitoring"
	"teamflow/backend/internal/seed"
	"teamflow/backend/internal/services"
	"teamflow/backend/internal/worker"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm/logger"
)

const boardCacheEntries = 1000

// app holds the long-lived dependencies shared by the commands.
type app struct {
	cfg    *config.Config
	logger *logging.Logger

	pool       *database.DatabasePool
	redis      *redis.Client
	jobs       *worker.JobQueue
	worker     *worker.Worker
	boardCache *cache.MultiLevelCache
	async      *activity.AsyncSink
	boards     *services.BoardServiceImpl

	services handlers.Services
}

func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logging.New(os.Stderr, cfg.Logging.Level), nil
}

func openDatabase(cfg *config.Config) (*database.DatabasePool, error) {
	level := logger.Warn
	if cfg.Logging.Level == logging.LevelDebug {
		level = logger.Info
	}
	return database.NewDatabasePool(&database.PoolConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.GetDatabaseDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		LogLevel:        level,
	})
}

func newApp(ctx context.Context, cfg *config.Config, log *logging.Logger) (*app, error) {
	pool, err := openDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(pool.DB); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	a := &app{cfg: cfg, logger: log, pool: pool}

	var l2 cache.Cache
	if cfg.Redis.Enabled {
		a.redis = cache.NewRedisClient(&cache.CacheConfig{
			Addr:         cfg.GetRedisAddr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable at startup", "addr", cfg.GetRedisAddr(), "error", err)
		}
		l2 = cache.NewRedisCache(a.redis, cache.DefaultCacheConfig().KeyPrefix)
		a.jobs = worker.NewJobQueue(a.redis, cfg.Worker.MaxRetries)
	}
	a.boardCache = cache.NewMultiLevelCache(cache.NewMemoryCache(boardCacheEntries), l2, log)

	store := activity.NewStore(pool.DB, log)
	var smtp *mail.SMTPSender
	if cfg.Mail.Enabled {
		smtp = mail.NewSMTPSender(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From)
		var sender mail.Sender = smtp
		if a.jobs != nil {
			sender = worker.NewEmailQueue(a.jobs)
		}
		store = store.WithDelivery(mail.NewNotifier(pool.DB, sender, cfg.Mail.BaseURL))
	}

	var sink activity.Sink
	switch cfg.FanOut.Mode {
	case config.FanOutInline:
		sink = activity.NewInlineSink(store, log)
	case config.FanOutQueue:
		sink = activity.NewQueueSink(worker.NewFanoutQueue(a.jobs), store, log)
	default:
		a.async = activity.NewAsyncSink(store, log)
		sink = a.async
	}

	if a.jobs != nil {
		a.worker = worker.NewWorker(worker.WorkerConfig{
			RedisClient:  a.redis,
			Concurrency:  cfg.Worker.Concurrency,
			PollInterval: cfg.Worker.PollInterval,
			Queues:       cfg.Worker.Queues,
			Logger:       log,
		})
		a.worker.RegisterHandler(worker.JobTypeActivityFanout, worker.FanoutHandler(store))
		if smtp != nil {
			a.worker.RegisterHandler(worker.JobTypeEmailNotification, worker.EmailHandler(smtp))
		}
	}

	a.boards = services.NewBoardService(pool.DB, a.boardCache, cfg.Board.CacheTTL, log)
	deps := services.Deps{DB: pool.DB, Sink: sink, Boards: a.boards, Logger: log}
	a.services = handlers.Services{
		Auth:          services.NewAuthService(pool.DB, cfg.Auth),
		Teams:         services.NewTeamService(deps),
		Projects:      services.NewProjectService(deps),
		Tasks:         services.NewTaskService(deps),
		Links:         services.NewLinkService(deps),
		Boards:        a.boards,
		Notifications: services.NewNotificationService(pool.DB),
		Comments:      services.NewCommentService(deps),
		Subtasks:      services.NewSubtaskService(deps),
		Tags:          services.NewTagService(deps),
		Ideas:         services.NewIdeaService(deps),
		Notes:         services.NewNoteService(pool.DB),
		Goals:         services.NewGoalService(pool.DB),
		Portfolios:    services.NewPortfolioService(pool.DB),
		Reports:       services.NewReportService(pool.DB),
	}
	return a, nil
}

func (a *app) seedServices() seed.Services {
	return seed.Services{
		Auth:     a.services.Auth,
		Teams:    a.services.Teams,
		Projects: a.services.Projects,
		Tasks:    a.services.Tasks,
		Links:    a.services.Links,
		Comments: a.services.Comments,
		Tags:     a.services.Tags,
		Goals:    a.services.Goals,
	}
}

// registerProbes exposes dependency health and counters on /health and /metrics.
func (a *app) registerProbes() {
	monitoring.RegisterHealthCheck("database", a.pool.HealthContext)
	monitoring.RegisterStats("database", a.pool.Stats)
	monitoring.RegisterStats("board_cache", a.boardCache.Stats)

	if a.redis != nil {
		monitoring.RegisterHealthCheck("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if a.jobs != nil {
		monitoring.RegisterStats("jobs", func() map[string]interface{} {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			stats := make(map[string]interface{})
			for _, q := range a.cfg.Worker.Queues {
				if n, err := a.jobs.GetQueueSize(ctx, q); err == nil {
					stats[q] = n
				}
			}
			if n, err := a.jobs.ScheduledCount(ctx); err == nil {
				stats["scheduled"] = n
			}
			if n, err := a.jobs.DeadCount(ctx); err == nil {
				stats["dead"] = n
			}
			return stats
		})
	}
}

// Close drains pending fan-out writes before releasing connections.
func (a *app) Close() {
	if a.worker != nil {
		a.worker.Stop()
	}
	if a.async != nil {
		if err := a.async.Close(); err != nil {
			a.logger.Error("drain activity writes", "error", err)
		}
	}
	if err := a.boardCache.Close(); err != nil {
		a.logger.Warn("close board cache", "error", err)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if err := a.pool.Close(); err != nil {
		a.logger.Warn("close database", "error", err)
	}
}
