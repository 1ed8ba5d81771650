package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mobbexco/subscriptions-bridge/pkg/config"
	"github.com/mobbexco/subscriptions-bridge/pkg/httpserver"
	"github.com/mobbexco/subscriptions-bridge/pkg/logger"
	"github.com/mobbexco/subscriptions-bridge/pkg/mobbex"
	"github.com/mobbexco/subscriptions-bridge/pkg/orders"
	"github.com/mobbexco/subscriptions-bridge/pkg/pg"
	"github.com/mobbexco/subscriptions-bridge/pkg/redis"
	"github.com/mobbexco/subscriptions-bridge/pkg/subscription"
)

type appConfig struct {
	Logger logger.Config
	DB     pg.Config
	Redis  redis.Config
	HTTP   httpserver.Config
	Mobbex mobbex.Config
	Orders orders.Config

	// PublicURL is the externally reachable base of this service; the
	// webhook URL handed to the provider is derived from it.
	PublicURL string `env:"PUBLIC_URL,required"`
	ReturnURL string `env:"RETURN_URL"`

	CatalogPath string `env:"CATALOG_PATH"`

	RedisLock         bool          `env:"REDIS_LOCK_ENABLED" envDefault:"false"`
	SchedulerEnabled  bool          `env:"SCHEDULER_ENABLED" envDefault:"true"`
	SchedulerInterval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"1m"`
	SchedulerBatch    int           `env:"SCHEDULER_BATCH_SIZE" envDefault:"100"`
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.NewFromConfig(cfg.Logger)
	logger.SetAsDefault(log)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("service exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := pg.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.DB, log); err != nil {
		return err
	}

	mobbexClient, err := mobbex.NewClient(cfg.Mobbex)
	if err != nil {
		return err
	}

	orderClient, err := orders.NewClient(cfg.Orders)
	if err != nil {
		return err
	}

	webhookURL := cfg.PublicURL + "/webhook?mobbex_token=" + mobbexClient.Token()
	provider := subscription.NewMobbexProvider(mobbexClient, cfg.ReturnURL, webhookURL)

	subscriptions := subscription.NewPostgresSubscriptionStore(pool)
	subscribers := subscription.NewPostgresSubscriberStore(pool)

	serviceOpts := []subscription.ServiceOption{subscription.WithLogger(log)}
	probes := []func(context.Context) error{pg.Healthcheck(pool)}

	if cfg.RedisLock {
		redisClient, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		serviceOpts = append(serviceOpts, subscription.WithLocker(subscription.NewRedisLocker(redisClient)))
		probes = append(probes, redis.Healthcheck(redisClient))
	}

	service := subscription.NewService(subscriptions, subscribers, orderClient, provider, serviceOpts...)

	if cfg.CatalogPath != "" {
		if err := service.SyncCatalog(ctx, subscription.NewFileSource(cfg.CatalogPath)); err != nil {
			return err
		}
	}

	if cfg.SchedulerEnabled {
		executor := subscription.NewExecutor(provider, log)
		trigger := subscription.NewTrigger(subscribers, orderClient, executor, log)
		scheduler := subscription.NewScheduler(subscriptions, subscribers, trigger, log,
			subscription.WithCheckInterval(cfg.SchedulerInterval),
			subscription.WithBatchSize(cfg.SchedulerBatch))
		go func() {
			if err := scheduler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error("billing scheduler stopped", "error", err)
				cancel()
			}
		}()
	}

	router := chi.NewRouter()
	router.Use(middleware.RealIP, middleware.Recoverer)
	router.Get("/health", httpserver.HealthCheckHandler(log))
	router.Get("/ready", httpserver.HealthCheckHandler(log, probes...))
	router.Mount("/", subscription.NewHandler(service, log).Routes())

	server := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	return server.Run(ctx, router)
}
