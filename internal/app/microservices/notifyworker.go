package microservices

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nomadcore/triphail/config"
	httpserver "github.com/nomadcore/triphail/internal/adapter/http/server"
	repo "github.com/nomadcore/triphail/internal/adapter/postgres"
	tripeventrabbit "github.com/nomadcore/triphail/internal/adapter/rabbit"
	"github.com/nomadcore/triphail/internal/service/notifysink"
	"github.com/nomadcore/triphail/pkg/clock"
	"github.com/nomadcore/triphail/pkg/logger"
	postgresclient "github.com/nomadcore/triphail/pkg/postgres"
	rabbitmq "github.com/nomadcore/triphail/pkg/rabbit"
)

// NotifyWorkerService wires the notify-worker mode: it has no inbound HTTP
// surface of its own beyond health/metrics, and exists solely to drain
// trip_events and persist dispatcher notifications.
type NotifyWorkerService struct {
	postgresDB *postgresclient.PostgreDB
	httpServer *httpserver.API
	rabbitMQ   *rabbitmq.RabbitMQ
	consumer   *tripeventrabbit.TripEventConsumer

	wg     sync.WaitGroup
	cancel context.CancelFunc

	cfg config.Config
	log logger.Logger
}

// NewNotifyWorker creates the notify-worker microservice.
func NewNotifyWorker(ctx context.Context, cfg config.Config, log logger.Logger) (*NotifyWorkerService, error) {
	postgresDB, err := postgresclient.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}

	rabbitClient, err := rabbitmq.New(ctx, cfg.RabbitMQ.GetDSN(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to setup rabbitmq: %w", err)
	}

	tripRepo := repo.NewTripRepo(postgresDB.Pool, nil)
	notificationRepo := repo.NewNotificationRepo(postgresDB.Pool)

	sink := notifysink.New(notificationRepo, clock.New(), log)
	consumer := tripeventrabbit.NewTripEventConsumer(rabbitClient, tripRepo, sink, log)

	httpServer, err := httpserver.New(cfg, nil, nil, log)
	if err != nil {
		return nil, fmt.Errorf("failed to setup http server: %w", err)
	}

	return &NotifyWorkerService{
		postgresDB: postgresDB,
		httpServer: httpServer,
		rabbitMQ:   rabbitClient,
		consumer:   consumer,
		cfg:        cfg,
		log:        log,
	}, nil
}

func (s *NotifyWorkerService) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	s.httpServer.Run(ctx, errCh)

	consumeCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.consumer.Run(consumeCtx); err != nil {
			select {
			case errCh <- fmt.Errorf("trip event consumer stopped: %w", err):
			default:
				s.log.Error(ctx, "trip event consumer error, errCh blocked", err)
			}
		}
	}()

	defer s.close(ctx)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	s.log.Info(ctx, "notify-worker service has been started")

	select {
	case errRun := <-errCh:
		return errRun
	case sig := <-shutdownCh:
		s.log.Info(ctx, "shutting down application", "signal", sig.String())
		return nil
	}
}

func (s *NotifyWorkerService) close(ctx context.Context) {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.log.Warn(ctx, "timeout waiting for trip event consumer to stop")
	}

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

	s.log.Info(ctx, "notify-worker service closed")
}
