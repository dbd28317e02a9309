package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/worker"
)

// repositories is the storage backend chosen at startup.
type repositories struct {
	users       repository.UserRepository
	departments repository.DepartmentRepository
	categories  repository.CategoryRepository
	equipment   repository.EquipmentRepository
	tickets     repository.TicketRepository
	attachments repository.AttachmentRepository
	comments    repository.CommentRepository
	history     repository.TicketHistoryRepository
}

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

	clk := clock.Real()
	metrics := observability.NewMetrics()

	var pg *persistence.Postgres
	repos := memoryRepositories()
	if cfg.Storage.Driver == config.StorageDriverPostgres && cfg.Postgres.DSN != "" {
		pg, err = persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()

		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = postgresRepositories(pg)
	} else {
		logger.Warn("using in-memory storage; data is lost on restart")
	}

	var rdb *persistence.Redis
	if cfg.Storage.SessionStore == config.SessionStoreRedis || cfg.Storage.CatalogCacheTTL() > 0 {
		rdb = persistence.NewRedis(ctx, cfg.Redis, logger)
		defer rdb.Close()
	}

	var sessions repository.SessionRepository
	if cfg.Storage.SessionStore == config.SessionStoreRedis {
		sessions = repository.NewRedisSessionRepository(rdb.Handle(), clk.Now)
	} else {
		sessions = memory.NewSessionStore(clk.Now)
	}

	var federated auth.FederatedProvider
	if cfg.Auth.FederatedSessionURL != "" {
		federated = auth.NewHTTPFederatedProvider(cfg.Auth.FederatedSessionURL, cfg.Auth.FederatedTimeout())
	}

	dispatcher := events.NewInMemoryDispatcher()

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:       repos.users,
		DepartmentRepo: repos.departments,
		SessionRepo:    sessions,
		Federated:      federated,
		Clock:          clk,
		Logger:         logger,
	})
	catalogService := service.NewCatalogService(service.CatalogDependencies{
		CategoryRepo:   repos.categories,
		DepartmentRepo: repos.departments,
		EquipmentRepo:  repos.equipment,
		CategoryCache:  repository.NewCategoryCache(rdb.Handle(), cfg.Storage.CatalogCacheTTL(), logger),
		Logger:         logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     repos.tickets,
		AttachmentRepo: repos.attachments,
		CommentRepo:    repos.comments,
		HistoryRepo:    repos.history,
		CategoryRepo:   repos.categories,
		EquipmentRepo:  repos.equipment,
		UserRepo:       repos.users,
		Dispatcher:     dispatcher,
		Clock:          clk,
		Logger:         logger,
	}, cfg.Attachments, cfg.Escalation)
	userService := service.NewUserService(repos.users)

	var webhook *worker.WebhookWorker
	var sink service.NotificationSink
	if cfg.Notification.WebhookURL != "" {
		webhook = worker.NewWebhookWorker(cfg.Notification.WebhookURL, cfg.Notification.QueueSize, logger, metrics)
		sink = webhook
	}
	notificationService := service.NewNotificationService(dispatcher, sink, logger, cfg.Notification)
	worker.StartNotificationWorker(ctx, notificationService, webhook)

	var escalationDone <-chan struct{}
	if cfg.Escalation.Enabled {
		escalationDone = worker.StartEscalationWorker(ctx, ticketService, cfg.Escalation.Interval(), logger, metrics)
	}

	app := httptransport.NewApp(cfg.App.Name, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:          cfg.App.RequestTimeout(),
		CORSAllowOrigins: cfg.App.CORSAllowOrigins,
	})
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Prefix:         cfg.App.APIPrefix,
		LoginRateLimit: cfg.Auth.LoginRateLimitPerMinute,
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rdb, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Catalog:        handlers.NewCatalogHandler(catalogService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: auth.NewAuthMiddleware(authService),
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	if escalationDone != nil {
		<-escalationDone
	}
	if webhook != nil {
		webhook.Wait()
	}
}

func memoryRepositories() repositories {
	store := memory.NewStore()
	return repositories{
		users:       store.Users(),
		departments: store.Departments(),
		categories:  store.Categories(),
		equipment:   store.Equipment(),
		tickets:     store.Tickets(),
		attachments: store.Attachments(),
		comments:    store.Comments(),
		history:     store.History(),
	}
}

func postgresRepositories(pg *persistence.Postgres) repositories {
	pool := pg.PoolHandle()
	return repositories{
		users:       repository.NewUserRepository(pool),
		departments: repository.NewDepartmentRepository(pool),
		categories:  repository.NewCategoryRepository(pool),
		equipment:   repository.NewEquipmentRepository(pool),
		tickets:     repository.NewTicketRepository(pool),
		attachments: repository.NewAttachmentRepository(pool),
		comments:    repository.NewCommentRepository(pool),
		history:     repository.NewTicketHistoryRepository(pool),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
