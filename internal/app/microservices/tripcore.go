package microservices

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nomadcore/triphail/config"
	httpserver "github.com/nomadcore/triphail/internal/adapter/http/server"
	"github.com/nomadcore/triphail/internal/adapter/http/handler"
	"github.com/nomadcore/triphail/internal/adapter/presence"
	repo "github.com/nomadcore/triphail/internal/adapter/postgres"
	tripeventrabbit "github.com/nomadcore/triphail/internal/adapter/rabbit"
	"github.com/nomadcore/triphail/internal/service/dispatch"
	"github.com/nomadcore/triphail/internal/service/lifecycle"
	"github.com/nomadcore/triphail/internal/service/notifysink"
	"github.com/nomadcore/triphail/internal/service/spatial"
	"github.com/nomadcore/triphail/pkg/clock"
	"github.com/nomadcore/triphail/pkg/logger"
	postgresclient "github.com/nomadcore/triphail/pkg/postgres"
	rabbitmq "github.com/nomadcore/triphail/pkg/rabbit"
	"github.com/nomadcore/triphail/pkg/trm"
)

// TripCoreService wires the trip-core mode: the HTTP/websocket surface,
// the in-process dispatch controller and lifecycle service, and the
// trip_events producer that feeds notify-worker.
type TripCoreService struct {
	postgresDB *postgresclient.PostgreDB
	httpServer *httpserver.API
	rabbitMQ   *rabbitmq.RabbitMQ

	cfg config.Config
	log logger.Logger
}

// NewTripCore creates the trip-core microservice.
func NewTripCore(ctx context.Context, cfg config.Config, log logger.Logger) (*TripCoreService, error) {
	postgresDB, err := postgresclient.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}

	rabbitClient, err := rabbitmq.New(ctx, cfg.RabbitMQ.GetDSN(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to setup rabbitmq: %w", err)
	}
	eventPublisher := tripeventrabbit.NewTripEventPublisher(rabbitClient, log)

	clk := clock.New()
	tx := trm.New(postgresDB.Pool)

	tripRepo := repo.NewTripRepo(postgresDB.Pool, tx)
	driverProfileRepo := repo.NewDriverProfileRepo(postgresDB.Pool)
	driverPickupRepo := repo.NewDriverPickupRepo(postgresDB.Pool)
	notificationRepo := repo.NewNotificationRepo(postgresDB.Pool)

	presenceHub := presence.NewHub(driverProfileRepo, clk, log)
	spatialIndex := spatial.NewIndex(presenceHub, clk)
	notifier := notifysink.New(notificationRepo, clk, log)

	dispatchController := dispatch.NewController(spatialIndex, presenceHub, tripRepo, notifier, clk, log)
	lifecycleSvc := lifecycle.New(tripRepo, driverPickupRepo, driverProfileRepo, eventPublisher, dispatchController, clk, log)

	tripHandler := handler.NewTrip(tripRepo, dispatchController, lifecycleSvc, eventPublisher, clk, log)
	driverSocket := handler.NewDriverSocket(presenceHub, dispatchController, log)

	httpServer, err := httpserver.New(cfg, tripHandler, driverSocket, log)
	if err != nil {
		return nil, fmt.Errorf("failed to setup http server: %w", err)
	}

	if err := dispatchController.ReconcileStaleTrips(ctx); err != nil {
		return nil, fmt.Errorf("failed to reconcile stale trips: %w", err)
	}

	go presenceHub.HealthLoop(ctx, 30*time.Second)

	return &TripCoreService{
		postgresDB: postgresDB,
		httpServer: httpServer,
		rabbitMQ:   rabbitClient,
		cfg:        cfg,
		log:        log,
	}, nil
}

func (s *TripCoreService) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	s.httpServer.Run(ctx, errCh)

	defer s.close(ctx)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	s.log.Info(ctx, "trip-core service has been started")

	select {
	case errRun := <-errCh:
		return errRun
	case sig := <-shutdownCh:
		s.log.Info(ctx, "shutting down application", "signal", sig.String())
		return nil
	}
}

func (s *TripCoreService) close(ctx context.Context) {
	if s.httpServer != nil {
		if err := s.httpServer.Stop(ctx); err != nil {
			s.log.Warn(ctx, "failed to gracefully close http server", "error", err.Error())
		}
	}

	if s.rabbitMQ != nil {
		if err := s.rabbitMQ.Close(ctx); err != nil {
			s.log.Warn(ctx, "failed to close rabbitmq connection", "error", err.Error())
		}
	}

	if s.postgresDB != nil && s.postgresDB.Pool != nil {
		s.postgresDB.Pool.Close()
	}

	s.log.Info(ctx, "trip-core service closed")
}
