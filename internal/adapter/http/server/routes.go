package server

import (
	"net/http"

	"github.com/nomadcore/triphail/internal/adapter/http/handler"
	"github.com/nomadcore/triphail/internal/adapter/http/middleware"
	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// setupRoutes - setups http routes
func setupRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware, mode types.ServiceMode, log logger.Logger) {
	health := handler.NewHealth(string(mode), log)
	mux.HandleFunc("/health", health.HealthCheck)
	setupMetricsRoute(mux)

	if mode == types.CoreService {
		setupTripRoutes(mux, routes, m)
		setupSwaggerRoutes(mux)
	}
}

// setupTripRoutes wires the trip CRUD/lifecycle surface and the driver
// websocket channel. Dispatcher-role callers create and monitor trips;
// driver-role callers create driver-initiated trips and drive them through
// start/complete.
func setupTripRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware) {
	mux.Handle("POST /trips", m.RequireRoles(routes.trip.CreateDriverInitiated, types.RoleDriver))
	mux.Handle("POST /trips/dispatcher", m.RequireRoles(routes.trip.CreateDispatcherInitiated, types.RoleDispatcher))
	mux.Handle("GET /trips/active", m.RequireRoles(routes.trip.GetActive, types.RoleDriver))
	mux.Handle("GET /trips/history", m.RequireRoles(routes.trip.GetHistory, types.RoleDriver))
	mux.Handle("GET /trips/statistics", m.RequireRoles(routes.trip.GetStatistics, types.RoleDriver))
	mux.Handle("GET /trips/{id}", m.RequireRoles(routes.trip.GetByID, types.RoleDriver, types.RoleDispatcher, types.RoleAdmin))
	mux.Handle("PUT /trips/{id}/start", m.RequireRoles(routes.trip.Start, types.RoleDriver))
	mux.Handle("PUT /trips/{id}/cancel", m.RequireRoles(routes.trip.Cancel, types.RoleDriver, types.RoleDispatcher))
	mux.Handle("PUT /trips/{id}/complete", m.RequireRoles(routes.trip.Complete, types.RoleDriver))

	mux.HandleFunc("GET /ws/drivers/{driver_id}", routes.driverSocket.HandleWS)
}

// setupSwaggerRoutes configures the Swagger UI endpoint.
func setupSwaggerRoutes(mux *http.ServeMux) {
	swaggerURL := httpSwagger.InstanceName("tripcore")
	mux.HandleFunc("/swagger/", httpSwagger.Handler(swaggerURL))
}

// setupMetricsRoute configures the Prometheus metrics endpoint
func setupMetricsRoute(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}
