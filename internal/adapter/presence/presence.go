// Package presence implements the Presence Hub: it owns the live driver
// websocket connections, authenticates on connect, tracks last known
// location/availability, and is both the dispatch controller's delivery
// mechanism and the spatial index's position source.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/internal/service/spatial"
	"github.com/nomadcore/triphail/pkg/clock"
	"github.com/nomadcore/triphail/pkg/logger"
	ws "github.com/nomadcore/triphail/pkg/wsHub"
	"github.com/nomadcore/triphail/pkg/uuid"
)

// DriverRepo is the subset of driver-profile persistence the hub needs to
// keep presence state consistent with the durable record.
type DriverRepo interface {
	GetActiveVehicle(ctx context.Context, driverID uuid.UUID) (models.Vehicle, error)
	GetRating(ctx context.Context, driverID uuid.UUID) (float64, error)
	SetOnline(ctx context.Context, driverID uuid.UUID, online bool) error
	SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) error
	SetLastKnownLocation(ctx context.Context, driverID uuid.UUID, loc models.Location) error
}

type driverState struct {
	status       types.DriverStatus
	location     models.Location
	vehicleClass types.VehicleClass
	vehicle      models.Vehicle
	rating       float64
	updatedAt    time.Time
}

// Hub tracks one websocket connection per online driver and the last
// presence sample reported on it.
type Hub struct {
	conns *ws.ConnectionHub
	repo  DriverRepo
	clock clock.Clock
	log   logger.Logger

	mu    sync.RWMutex
	state map[uuid.UUID]*driverState
}

func NewHub(repo DriverRepo, clk clock.Clock, log logger.Logger) *Hub {
	return &Hub{
		conns: ws.NewConnHub(log),
		repo:  repo,
		clock: clk,
		log:   log,
		state: make(map[uuid.UUID]*driverState),
	}
}

// Connect registers a newly authenticated driver connection, marking them
// online. It does not set availability: the client must send an explicit
// set_availability to start receiving offers.
func (h *Hub) Connect(ctx context.Context, driverID uuid.UUID, conn *ws.Conn) error {
	if err := h.conns.Add(conn); err != nil {
		return err
	}

	vehicle, err := h.repo.GetActiveVehicle(ctx, driverID)
	if err != nil {
		h.log.Warn(ctx, "failed to load active vehicle on connect", "driver_id", driverID.String(), "error", err.Error())
	}
	rating, err := h.repo.GetRating(ctx, driverID)
	if err != nil {
		h.log.Warn(ctx, "failed to load driver rating on connect", "driver_id", driverID.String(), "error", err.Error())
	}

	h.mu.Lock()
	h.state[driverID] = &driverState{
		status:       types.StatusDriverOffline,
		vehicleClass: vehicle.Class,
		vehicle:      vehicle,
		rating:       rating,
		updatedAt:    h.clock.Now(),
	}
	h.mu.Unlock()

	if err := h.repo.SetOnline(ctx, driverID, true); err != nil {
		h.log.Warn(ctx, "failed to persist driver online state", "driver_id", driverID.String(), "error", err.Error())
	}
	return nil
}

// Disconnect clears a driver's online/availability state. Any offer timer
// still armed for this driver is left untouched; the dispatch controller
// lets it expire or fails the next send.
func (h *Hub) Disconnect(ctx context.Context, driverID uuid.UUID) {
	h.conns.Delete(driverID)

	h.mu.Lock()
	delete(h.state, driverID)
	h.mu.Unlock()

	if err := h.repo.SetOnline(ctx, driverID, false); err != nil {
		h.log.Warn(ctx, "failed to persist driver offline state", "driver_id", driverID.String(), "error", err.Error())
	}
	if err := h.repo.SetAvailability(ctx, driverID, false); err != nil {
		h.log.Warn(ctx, "failed to clear driver availability on disconnect", "driver_id", driverID.String(), "error", err.Error())
	}
}

// HandleLocationUpdate applies a location_update client message.
func (h *Hub) HandleLocationUpdate(ctx context.Context, driverID uuid.UUID, loc models.Location) {
	h.mu.Lock()
	st, ok := h.state[driverID]
	if ok {
		st.location = loc
		st.updatedAt = h.clock.Now()
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	if err := h.repo.SetLastKnownLocation(ctx, driverID, loc); err != nil {
		h.log.Warn(ctx, "failed to persist driver location", "driver_id", driverID.String(), "error", err.Error())
	}
}

// HandleAvailabilityChange applies a set_availability client message,
// optionally carrying an inline location update.
func (h *Hub) HandleAvailabilityChange(ctx context.Context, driverID uuid.UUID, available bool, loc *models.Location) {
	h.mu.Lock()
	st, ok := h.state[driverID]
	if ok {
		if available {
			st.status = types.StatusDriverAvailable
		} else {
			st.status = types.StatusDriverOffline
		}
		if loc != nil {
			st.location = *loc
		}
		st.updatedAt = h.clock.Now()
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	if err := h.repo.SetAvailability(ctx, driverID, available); err != nil {
		h.log.Warn(ctx, "failed to persist driver availability", "driver_id", driverID.String(), "error", err.Error())
	}
	if loc != nil {
		if err := h.repo.SetLastKnownLocation(ctx, driverID, *loc); err != nil {
			h.log.Warn(ctx, "failed to persist inline location update", "driver_id", driverID.String(), "error", err.Error())
		}
	}
}

// MarkBusy flips a driver to BUSY once they accept a trip, making them
// ineligible for further offers until released.
func (h *Hub) MarkBusy(driverID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if st, ok := h.state[driverID]; ok {
		st.status = types.StatusDriverBusy
	}
}

// MarkAvailable flips a driver back to AVAILABLE once their trip ends.
func (h *Hub) MarkAvailable(driverID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if st, ok := h.state[driverID]; ok {
		st.status = types.StatusDriverAvailable
	}
}

/* ======================= dispatch.PresenceHub ======================= */

func (h *Hub) IsOnline(driverID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.state[driverID]
	return ok
}

func (h *Hub) SendOffer(ctx context.Context, driverID uuid.UUID, offer models.TripOffer) error {
	conn, err := h.conns.GetConn(driverID)
	if err != nil {
		return err
	}
	return conn.Send(toDualCasedOffer(offer))
}

func (h *Hub) NotifyOfferWithdrawn(ctx context.Context, driverID, tripID uuid.UUID) {
	if err := h.conns.SendTo(driverID, map[string]any{
		"type":    "offer_withdrawn",
		"tripId":  tripID.String(),
		"trip_id": tripID.String(),
	}); err != nil {
		h.log.Debug(ctx, "failed to notify offer withdrawn, driver likely disconnected", "driver_id", driverID.String())
	}
}

func (h *Hub) NotifyStatusChanged(ctx context.Context, driverID, tripID uuid.UUID, status types.TripStatus) {
	if status == types.TripAccepted {
		h.MarkBusy(driverID)
	}
	if err := h.conns.SendTo(driverID, map[string]any{
		"type":      "trip_status_changed",
		"tripId":    tripID.String(),
		"trip_id":   tripID.String(),
		"driverId":  driverID.String(),
		"driver_id": driverID.String(),
		"status":    status,
	}); err != nil {
		h.log.Debug(ctx, "failed to notify status change, driver likely disconnected", "driver_id", driverID.String())
	}
}

/* ======================= spatial.PositionSource ======================= */

func (h *Hub) OnlineDrivers(ctx context.Context) ([]spatial.DriverPosition, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]spatial.DriverPosition, 0, len(h.state))
	for id, st := range h.state {
		out = append(out, spatial.DriverPosition{
			DriverID:     id,
			Location:     st.location,
			Status:       st.status,
			VehicleClass: st.vehicleClass,
			Vehicle:      st.vehicle,
			Rating:       st.rating,
			UpdatedAt:    st.updatedAt,
		})
	}
	return out, nil
}

// HealthLoop delegates to the underlying connection hub's idle-connection
// reaper.
func (h *Hub) HealthLoop(ctx context.Context, interval time.Duration) {
	h.conns.HealthLoop(ctx, interval)
}

// toDualCasedOffer duplicates the offer's identifying fields under both
// snake_case and camelCase keys, per the wire-semantics note: heterogeneous
// clients are accommodated by literal duplication, not aliasing.
func toDualCasedOffer(offer models.TripOffer) map[string]any {
	return map[string]any{
		"type":        offer.MsgType,
		"offerId":     offer.ID.String(),
		"offer_id":    offer.ID.String(),
		"tripId":      offer.TripID.String(),
		"trip_id":     offer.TripID.String(),
		"tripNumber":  offer.TripNumber,
		"trip_number": offer.TripNumber,
		"pickup": map[string]any{
			"lat":       offer.PickupLocation.Lat,
			"latitude":  offer.PickupLocation.Lat,
			"lng":       offer.PickupLocation.Lng,
			"longitude": offer.PickupLocation.Lng,
			"address":   offer.PickupLocation.Address,
		},
		"destination": map[string]any{
			"lat":       offer.DestinationLocation.Lat,
			"latitude":  offer.DestinationLocation.Lat,
			"lng":       offer.DestinationLocation.Lng,
			"longitude": offer.DestinationLocation.Lng,
			"address":   offer.DestinationLocation.Address,
		},
		"estimatedFareCents":               offer.EstimatedFareCents,
		"estimated_fare_cents":             offer.EstimatedFareCents,
		"driverEarningsCents":              offer.DriverEarningsCents,
		"driver_earnings_cents":            offer.DriverEarningsCents,
		"distanceToPickupKm":               offer.DistanceToPickupKm,
		"distance_to_pickup_km":             offer.DistanceToPickupKm,
		"estimatedTripDurationMinutes":     offer.EstimatedTripDurationMinutes,
		"estimated_trip_duration_minutes":  offer.EstimatedTripDurationMinutes,
		"expiresAt":                        offer.ExpiresAt,
		"expires_at":                       offer.ExpiresAt,
	}
}
