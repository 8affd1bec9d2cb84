package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nomadcore/triphail/config"
	"github.com/nomadcore/triphail/internal/adapter/http/handler"
	"github.com/nomadcore/triphail/internal/adapter/http/middleware"
	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/pkg/logger"
	wrap "github.com/nomadcore/triphail/pkg/logger/wrapper"
)

const serverIPAddress = "%s:%s"

type API struct {
	mode   types.ServiceMode
	mux    *http.ServeMux
	server *http.Server
	routes *handlers // routes/handlers
	m      *middleware.Middleware

	addr string
	cfg  config.Config
	log  logger.Logger
}

type handlers struct {
	trip         *handler.Trip
	driverSocket *handler.DriverSocket
}

// New wires the HTTP surface for a single service mode. trip-core serves the
// full trip CRUD/lifecycle surface plus the driver websocket channel;
// notify-worker exposes only health and metrics, since it has no inbound
// HTTP surface of its own — it drains rabbitmq and persists notifications.
func New(
	cfg config.Config,
	trip *handler.Trip,
	driverSocket *handler.DriverSocket,
	logger logger.Logger,
) (*API, error) {
	addr := fmt.Sprintf(serverIPAddress, "0.0.0.0", cfg.WebSocket.Port)
	handlers := &handlers{}

	switch cfg.Mode {
	case types.CoreService:
		if trip == nil || driverSocket == nil {
			return nil, errors.New("trip and driver socket handlers are required in trip-core mode")
		}
		handlers.trip = trip
		handlers.driverSocket = driverSocket
	case types.NotifyWorkerService:
		// no HTTP surface beyond health/metrics
	default:
		return nil, fmt.Errorf("invalid mode: %s", cfg.Mode)
	}

	mid := middleware.NewMiddleware(cfg.Auth.AccessSecret, logger)

	api := &API{
		mode: cfg.Mode,

		mux:    http.NewServeMux(),
		routes: handlers,
		m:      mid,
		addr:   addr,
		cfg:    cfg,
		log:    logger,
	}

	api.server = &http.Server{
		Addr:    api.addr,
		Handler: api.mux,
	}

	setupRoutes(api.mux, handlers, mid, cfg.Mode, logger)

	return api, nil
}

func (a *API) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ctx = wrap.WithAction(ctx, "http_server_stop")

	a.log.Debug(ctx, "shutting down HTTP server...", "address", a.addr)
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	a.log.Debug(ctx, "shutting down HTTP server completed")

	return nil
}

func (a *API) Run(ctx context.Context, errCh chan<- error) {
	go func() {
		ctx = wrap.WithAction(ctx, "http_server_start")
		a.log.Info(ctx, "started http server", "address", a.addr, "mode", a.mode)
		if err := http.ListenAndServe(a.addr, a.withMiddleware()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
			return
		}
	}()
}

// withMiddleware applies middlewares to the mux
func (a *API) withMiddleware() http.Handler {
	return a.m.Recover(a.m.RequestID(a.m.Metrics(string(a.mode))(a.m.Auth(a.mux))))
}
