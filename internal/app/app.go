// Package app wires configuration, storage, external clients, the usecase
// services, and the HTTP layer into one runnable unit.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/ravenfall/scrim-scheduler/external/big4"
	"github.com/ravenfall/scrim-scheduler/external/gateway"
	"github.com/ravenfall/scrim-scheduler/internal/config"
	"github.com/ravenfall/scrim-scheduler/internal/domain/notification"
	"github.com/ravenfall/scrim-scheduler/internal/infrastructure/account/warden"
	"github.com/ravenfall/scrim-scheduler/internal/infrastructure/repository/postgres"
	"github.com/ravenfall/scrim-scheduler/internal/interfaces/httpapi"
	idgen "github.com/ravenfall/scrim-scheduler/internal/platform/id"
	"github.com/ravenfall/scrim-scheduler/internal/platform/logging"
	"github.com/ravenfall/scrim-scheduler/internal/platform/resilience"
	"github.com/ravenfall/scrim-scheduler/internal/usecase"
)

// App holds the wired HTTP server together with the resources that need an
// explicit shutdown in main.
type App struct {
	Server     *http.Server
	Dispatcher *usecase.Dispatcher

	db *sqlx.DB
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	db, err := otelsqlx.Connect("postgres",
		normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary),
		otelsql.WithDBSystem("postgresql"),
		otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	tx := postgres.NewTransactor(db)
	teamRepo := postgres.NewTeamRepository(db)
	proposalRepo := postgres.NewProposalRepository(db)
	matchRepo := postgres.NewMatchRepository(db)
	availabilityRepo := postgres.NewAvailabilityRepository(db)
	eventRepo := postgres.NewEventRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)

	wardenClient := warden.NewClient(warden.ClientConfig{
		BaseURL:      cfg.WardenBaseURL,
		ServiceToken: cfg.WardenServiceToken,
		Timeout:      cfg.WardenTimeout,
		CacheTTL:     cfg.WardenCacheTTL,
		CacheSize:    cfg.WardenCacheSize,
		Logger:       logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.WardenCircuitEnabled,
			FailureThreshold: cfg.WardenCircuitFailureCount,
			OpenTimeout:      cfg.WardenCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.WardenCircuitHalfOpenMaxReq,
		},
	})

	slogger := logger.Slog()

	var publisher usecase.GatewayPublisher = disabledPublisher{}
	if cfg.GatewayEnabled {
		publisher = gateway.NewPublisher(gateway.PublisherConfig{
			BaseURL: cfg.GatewayBaseURL,
			Token:   cfg.GatewayToken,
			Timeout: cfg.GatewayTimeout,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.GatewayCircuitEnabled,
				FailureThreshold: cfg.GatewayCircuitFailCount,
				OpenTimeout:      cfg.GatewayCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.GatewayCircuitHalfOpenMax,
			},
		}, slogger)
	}
	dispatcher := usecase.NewDispatcher(notificationRepo, publisher, slogger)

	var feed usecase.FixtureFeed = disabledFeed{}
	if cfg.Big4Enabled {
		feed = big4.NewClient(big4.ClientConfig{
			BaseURL:    cfg.Big4BaseURL,
			APIKey:     cfg.Big4APIKey,
			Timeout:    cfg.Big4Timeout,
			MaxRetries: cfg.Big4MaxRetries,
			FeedOffset: cfg.Big4FeedUTCOffset,
			Logger:     logger,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.Big4CircuitEnabled,
				FailureThreshold: cfg.Big4CircuitFailureCount,
				OpenTimeout:      cfg.Big4CircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.Big4CircuitHalfOpenMaxReq,
			},
		})
	}

	idGen := idgen.NewRandomGenerator()

	proposalSvc := usecase.NewProposalService(
		tx, proposalRepo, matchRepo, teamRepo, availabilityRepo,
		eventRepo, notificationRepo, wardenClient, idGen, dispatcher, slogger,
	)
	matchSvc := usecase.NewMatchService(
		tx, matchRepo, proposalRepo, teamRepo, availabilityRepo,
		eventRepo, notificationRepo, idGen, dispatcher, slogger,
	)
	teamSvc := usecase.NewTeamService(tx, teamRepo, eventRepo, slogger)
	big4Svc := usecase.NewBig4Service(tx, feed, matchRepo, teamRepo, eventRepo, idGen, slogger)

	handler := httpapi.NewHandler(proposalSvc, matchSvc, teamSvc, big4Svc, logger)
	router := httpapi.NewRouter(handler, wardenClient, logger, cfg.CORSAllowedOrigins, cfg.InternalJobToken)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &App{
		Server:     server,
		Dispatcher: dispatcher,
		db:         db,
	}, nil
}

// Close releases everything New acquired. The HTTP server is shut down
// separately by the caller so in-flight requests can still enqueue
// notifications before the dispatcher drains.
func (a *App) Close() error {
	a.Dispatcher.Close()
	return a.db.Close()
}

// disabledPublisher stands in when no delivery gateway is configured.
// Records fail fast and stay visible in the notifications table.
type disabledPublisher struct{}

func (disabledPublisher) Publish(context.Context, notification.Record) error {
	return fmt.Errorf("delivery gateway is not configured")
}

// disabledFeed stands in when the Big4 integration is off. Import runs
// report the dependency as unavailable instead of panicking.
type disabledFeed struct{}

func (disabledFeed) UpcomingFixtures(context.Context) ([]usecase.Big4Fixture, error) {
	return nil, fmt.Errorf("big4 feed is not configured")
}
