package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"listraksync/internal/config"
	"listraksync/internal/database"
	"listraksync/internal/dispatcher"
	"listraksync/internal/domain"
	"listraksync/internal/events"
	"listraksync/internal/feed"
	"listraksync/internal/listrak"
	"listraksync/internal/logging"
	"listraksync/internal/queue"
	"listraksync/internal/report"
	"listraksync/internal/repository"
	"listraksync/internal/service"
	"listraksync/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const memoryQueueSize = 1024

// Queue is the job queue plus the inspection calls the binaries use.
type Queue interface {
	domain.JobQueue
	Len(ctx context.Context) (int64, error)
	DeadLetters(ctx context.Context) ([]queue.DeadLetter, error)
}

// App is the wired connector shared by the CLI and the worker binary.
type App struct {
	Config     *config.Config
	Logger     *zerolog.Logger
	DB         *database.DB
	Redis      *redis.Client
	Queue      Queue
	Tokens     domain.TokenCache
	Client     *listrak.Client
	Dispatcher *dispatcher.Dispatcher
	Worker     *worker.JobWorker
	Sweeper    *worker.RetrySweeper
	Exporter   *feed.Exporter
	Reports    *report.Writer
	Service    *service.SyncService
	Bus        *events.EventBus
}

// New opens the database and redis and builds every component. Without a
// reachable redis the queue and token cache stay in-process.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, DB: db}
	a.Redis = initRedis(ctx, cfg.Redis, logger)

	memoryTokens := repository.NewMemoryTokenCache()
	if a.Redis != nil {
		a.Queue = queue.NewRedisQueue(a.Redis, cfg.Worker.QueueKey)
		a.Tokens = repository.NewFailoverTokenCache(repository.NewRedisTokenCache(a.Redis), memoryTokens, logger)
	} else {
		a.Queue = queue.NewMemoryQueue(memoryQueueSize)
		a.Tokens = memoryTokens
	}

	settings := cfg.Listrak.Settings
	tokens := listrak.NewTokenProvider(
		cfg.Listrak.TokenURL,
		&http.Client{Timeout: cfg.Listrak.Timeout},
		a.Tokens,
		logging.Component(logger, "listrak_token"),
	)
	a.Client = listrak.NewClient(cfg.Listrak, settings, tokens, db, logging.Component(logger, "listrak_client"))

	a.Dispatcher = dispatcher.New(
		dispatcher.Sources{
			Scopes:               db,
			Customers:            db,
			Orders:               db,
			NewsletterRecipients: db,
		},
		settings,
		a.Client,
		db,
		a.Queue,
		cfg.Worker.PageSize,
		logger,
	)
	a.Worker = worker.NewJobWorker(a.Queue, a.Dispatcher, cfg.Worker.Concurrency, cfg.Worker.PollInterval, logger)
	a.Sweeper = worker.NewRetrySweeper(db, a.Client, settings, cfg.Worker.RetryInterval, logger)
	a.Exporter = feed.NewExporter(db, cfg.Feed.FileName, cfg.Feed.PageSize, logger)
	a.Reports = report.NewWriter(db)
	a.Service = service.NewSyncService(a.Dispatcher, a.Exporter, a.Sweeper, a.Reports, settings, cfg.Feed, afero.NewOsFs(), logger)

	a.Bus = events.NewEventBus()
	events.RegisterSyncHooks(a.Bus, a.Dispatcher, logger)

	return a, nil
}

// Drain handles queued jobs inline until the queue stays empty for one poll.
// Continuation pages enqueued on the way are handled too.
func (a *App) Drain(ctx context.Context) (int, error) {
	handled := 0
	for {
		job, ok, err := a.Queue.Dequeue(ctx, 200*time.Millisecond)
		if err != nil {
			return handled, err
		}
		if !ok {
			return handled, nil
		}
		a.Worker.ProcessJob(ctx, job)
		handled++
	}
}

// InProcessQueue reports whether jobs live only in this process and must be
// drained before it exits.
func (a *App) InProcessQueue() bool {
	return a.Redis == nil
}

func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, repository.Close(a.Redis))
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func initRedis(ctx context.Context, cfg config.RedisConfig, logger *zerolog.Logger) *redis.Client {
	if cfg.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with in-process queue")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Address).Msg("redis connected")
	return client
}
