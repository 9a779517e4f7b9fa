package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/coolfix/service-desk/internal/agent"
	"github.com/coolfix/service-desk/internal/ai"
	"github.com/coolfix/service-desk/internal/analyzer"
	httptransport "github.com/coolfix/service-desk/internal/api/http"
	"github.com/coolfix/service-desk/internal/api/http/handlers"
	"github.com/coolfix/service-desk/internal/config"
	"github.com/coolfix/service-desk/internal/conversation"
	"github.com/coolfix/service-desk/internal/detector"
	"github.com/coolfix/service-desk/internal/events"
	"github.com/coolfix/service-desk/internal/jobs"
	"github.com/coolfix/service-desk/internal/observability"
	"github.com/coolfix/service-desk/internal/persistence"
	"github.com/coolfix/service-desk/internal/repository"
	"github.com/coolfix/service-desk/internal/service"
	"github.com/coolfix/service-desk/internal/session"
	"github.com/coolfix/service-desk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var ticketRepo repository.TicketRepository
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		ticketRepo = repository.NewTicketRepository(pool)
	} else {
		ticketRepo = repository.NewMemoryTicketRepository()
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		queue    jobs.Queue
		sessions session.Store
	)
	if redis.Available() {
		queue = jobs.NewRedisQueue(redis.Client)
		sessions = session.NewRedisStore(redis.Client, cfg.Session.StoreTTL())
	} else {
		queue = jobs.NewMemoryQueue()
		sessions = session.NewMemoryStore(cfg.Session.StoreTTL())
	}

	roster, err := config.LoadRoster(cfg.Roster.Path)
	if err != nil {
		logger.Warn("technician roster unavailable; using built-in roster", zap.String("path", cfg.Roster.Path), zap.Error(err))
		roster = config.DefaultRoster()
	}

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	var publisher *events.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			logger.Fatal("failed to init kafka publisher", zap.Error(err))
		}
		defer publisher.Close() //nolint:errcheck
	}
	worker.StartNotificationWorker(notificationService, dispatcher, publisher)

	generator := ai.WithDeadline(ai.NewAnthropicClient(cfg.AI), cfg.AI.Model, cfg.AI.Timeout(), metrics, logger)
	msgAnalyzer := analyzer.New(analyzer.Dependencies{Generator: generator, Logger: logger, Metrics: metrics})
	msgDetector := detector.New(detector.Dependencies{
		Generator:           generator,
		ConfidenceThreshold: cfg.AI.ConfidenceThreshold,
		Logger:              logger,
		Metrics:             metrics,
	})

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:      ticketRepo,
		Queue:           queue,
		Roster:          roster,
		Dispatcher:      dispatcher,
		Logger:          logger,
		Metrics:         metrics,
		AssignmentDelay: cfg.Scheduling.AssignmentDelay(),
	})
	taskAgent := agent.New(agent.Dependencies{
		Tickets:      ticketService,
		Logger:       logger,
		Metrics:      metrics,
		SupportPhone: cfg.Notification.SupportPhone,
	})
	conversations := conversation.NewService(conversation.Dependencies{
		Sessions:     sessions,
		Analyzer:     msgAnalyzer,
		Detector:     msgDetector,
		Agent:        taskAgent,
		Contacts:     notificationService,
		Dispatcher:   dispatcher,
		Logger:       logger,
		HistoryLimit: cfg.Session.HistoryLimit,
	})
	tokens := session.NewTokenManager(cfg.Session.TokenSecret, cfg.Session.TokenTTL())

	jobWorker := worker.NewJobWorker(worker.JobWorkerDependencies{
		Queue:   queue,
		Handler: ticketService,
		Logger:  logger,
		Metrics: metrics,
		Config:  cfg.Scheduling,
	})
	jobWorker.Start(ctx)
	defer jobWorker.Stop()

	probes := map[string]handlers.Pinger{"postgres": nil, "redis": nil}
	if pg.PoolHandle() != nil {
		probes["postgres"] = pg
	}
	if redis.Available() {
		probes["redis"] = redis
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, probes),
		Chat:    handlers.NewChatHandler(conversations, tokens),
		Analyze: handlers.NewAnalyzeHandler(msgAnalyzer, msgDetector),
		Tickets: handlers.NewTicketsHandler(ticketService),
		Session: session.NewMiddleware(tokens),
		Metrics: metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
