package handler

import (
	"context"
	"net/http"
	"time"

	repo "github.com/nomadcore/triphail/internal/adapter/postgres"
	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/internal/service/fare"
	"github.com/nomadcore/triphail/internal/service/spatial"
	"github.com/nomadcore/triphail/pkg/clock"
	"github.com/nomadcore/triphail/pkg/logger"
	wrap "github.com/nomadcore/triphail/pkg/logger/wrapper"
	"github.com/nomadcore/triphail/pkg/uuid"
	"github.com/nomadcore/triphail/pkg/validator"
)

// TripRepo is the persistence surface the trip handler reads and writes
// directly (creation and read-models); lifecycle transitions go through
// Lifecycle instead.
type TripRepo interface {
	Create(ctx context.Context, trip *models.Trip) error
	GetByID(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)
	ActiveForDriver(ctx context.Context, driverID uuid.UUID) (*models.Trip, error)
	History(ctx context.Context, f repo.HistoryFilter) ([]models.Trip, int, error)
	Statistics(ctx context.Context, driverID uuid.UUID, start, end time.Time) (repo.Statistics, error)
}

// Dispatcher starts candidate discovery for a newly requested trip.
// Satisfied by *dispatch.Controller.
type Dispatcher interface {
	Dispatch(ctx context.Context, trip *models.Trip, vehicleClass *types.VehicleClass)
}

// Lifecycle drives a trip through start/cancel/complete. Satisfied by
// *lifecycle.Service.
type Lifecycle interface {
	Start(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error)
	Cancel(ctx context.Context, tripID, actorUserID uuid.UUID, reason string) (*models.Trip, error)
	Complete(ctx context.Context, tripID, driverID uuid.UUID, actualDistanceKm, actualDurationMin float64, fareCentsOverride *int64) (*models.Trip, error)
}

// EventPublisher announces a newly requested trip onto trip_events, for
// notify-worker to pick up independent of in-process candidate discovery.
// Satisfied by *rabbit.TripEventPublisher.
type EventPublisher interface {
	PublishTripRequested(ctx context.Context, msg models.TripRequestedMessage) error
}

type Trip struct {
	repo       TripRepo
	dispatcher Dispatcher
	lifecycle  Lifecycle
	events     EventPublisher
	clk        clock.Clock
	log        logger.Logger
}

func NewTrip(repo TripRepo, dispatcher Dispatcher, lifecycle Lifecycle, events EventPublisher, clk clock.Clock, log logger.Logger) *Trip {
	return &Trip{repo: repo, dispatcher: dispatcher, lifecycle: lifecycle, events: events, clk: clk, log: log}
}

type locationInput struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

func (l locationInput) toLocation() models.Location {
	return models.Location{Latitude: l.Lat, Longitude: l.Lng, Address: l.Address}
}

// createTripInput covers both POST /trips (driver-initiated) and
// POST /trips/dispatcher (dispatcher-initiated); the caller's role decides
// which fields apply and what the resulting status is.
type createTripInput struct {
	VehicleClass         types.VehicleClass `json:"vehicle_class"`
	Pickup               locationInput      `json:"pickup"`
	Destination          locationInput      `json:"destination"`
	EstimatedFareCents   *int64             `json:"estimated_fare_cents"`
	EstimatedDurationMin *int               `json:"estimated_duration_min"`
	EstimatedDistanceKm  *float64           `json:"estimated_distance_km"`

	// TripKind defaults to standard when omitted; PaymentMethod defaults to
	// cash, matching the cash-heavy dispatcher workflow this core supports.
	TripKind      types.TripKind      `json:"trip_kind"`
	PaymentMethod types.PaymentMethod `json:"payment_method"`

	PassengerID          uuid.UUID `json:"passenger_id"`
	PassengerPhone       string    `json:"passenger_phone"`
	PassengerDisplayName string    `json:"passenger_display_name"`
	IsNewPassenger       bool      `json:"is_new_passenger"`

	// Delivery-only: required when TripKind == delivery.
	DeliveryRecipient    *string `json:"delivery_recipient"`
	DeliveryInstructions *string `json:"delivery_instructions"`
	DeliveryPackage      *string `json:"delivery_package"`
}

func (in createTripInput) validate(v *validator.Validator) {
	v.Check(validator.PermittedValue(in.VehicleClass, types.ClassEconomy, types.ClassPremium, types.ClassXL), "vehicle_class", "must be a recognized vehicle class")
	v.Check(in.Pickup.Lat != 0 || in.Pickup.Lng != 0, "pickup", "must include lat and lng")
	v.Check(in.Destination.Lat != 0 || in.Destination.Lng != 0, "destination", "must include lat and lng")
	if in.TripKind != "" {
		v.Check(validator.PermittedValue(in.TripKind, types.KindStandard, types.KindDelivery), "trip_kind", "must be standard or delivery")
	}
	if in.PaymentMethod != "" {
		v.Check(validator.PermittedValue(in.PaymentMethod, types.PaymentCash, types.PaymentCard, types.PaymentWallet), "payment_method", "must be a recognized payment method")
	}
	if tripKind(in) == types.KindDelivery {
		v.Check(in.DeliveryRecipient != nil && *in.DeliveryRecipient != "", "delivery_recipient", "is required for a delivery trip")
	}
}

func tripKind(in createTripInput) types.TripKind {
	if in.TripKind == "" {
		return types.KindStandard
	}
	return in.TripKind
}

func paymentMethod(in createTripInput) types.PaymentMethod {
	if in.PaymentMethod == "" {
		return types.PaymentCash
	}
	return in.PaymentMethod
}

// CreateDriverInitiated handles POST /trips: a driver starting a trip they
// already arranged off-platform. It never broadcasts — the trip is created
// already in_progress, assigned to the caller.
func (h *Trip) CreateDriverInitiated(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "create_driver_initiated_trip")
	user := models.UserFromContext(ctx)

	var in createTripInput
	if err := readJSON(w, r, &in); err != nil {
		badRequestResponse(w, err)
		return
	}
	v := validator.New()
	in.validate(v)
	if !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	fareCents := h.estimateFareCents(in)
	now := h.clk.Now()
	driverID := user.ID

	trip := &models.Trip{
		ID:                   uuid.New(),
		TripNumber:           tripNumber(now),
		Status:               types.TripInProgress,
		DispatcherID:         nil, // driver-initiated: no dispatcher in the loop
		PassengerID:          in.PassengerID,
		PassengerPhone:       in.PassengerPhone,
		PassengerDisplayName: in.PassengerDisplayName,
		VehicleClass:         in.VehicleClass,
		Pickup:               in.Pickup.toLocation(),
		Destination:          in.Destination.toLocation(),
		DriverID:             &driverID,
		Kind:                 tripKind(in),
		PaymentMethod:        paymentMethod(in),
		PaymentStatus:        types.PaymentPending,
		IsNewPassenger:       in.IsNewPassenger,
		DeliveryRecipient:    in.DeliveryRecipient,
		DeliveryInstructions: in.DeliveryInstructions,
		DeliveryPackage:      in.DeliveryPackage,
		EstimatedFareCents:   fareCents,
		EstimatedDurationMin: estimatedDurationMin(in),
		EstimatedDistanceKm:  estimatedDistanceKm(in),
		CreatedAt:            now,
		StartedAt:            &now,
	}

	if err := h.repo.Create(ctx, trip); err != nil {
		h.log.Error(ctx, "failed to create driver-initiated trip", err)
		errorResponse(w, http.StatusInternalServerError, "the server encountered a problem")
		return
	}

	writeJSON(w, http.StatusCreated, envelope{"trip": trip}, nil)
}

// CreateDispatcherInitiated handles POST /trips/dispatcher: a dispatcher
// requesting a ride for a rider, which kicks off candidate discovery.
func (h *Trip) CreateDispatcherInitiated(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "create_dispatcher_initiated_trip")
	user := models.UserFromContext(ctx)

	var in createTripInput
	if err := readJSON(w, r, &in); err != nil {
		badRequestResponse(w, err)
		return
	}
	v := validator.New()
	in.validate(v)
	if !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	fareCents := h.estimateFareCents(in)
	now := h.clk.Now()
	dispatcherID := user.ID

	trip := &models.Trip{
		ID:                   uuid.New(),
		TripNumber:           tripNumber(now),
		Status:               types.TripRequested,
		DispatcherID:         &dispatcherID,
		PassengerID:          in.PassengerID,
		PassengerPhone:       in.PassengerPhone,
		PassengerDisplayName: in.PassengerDisplayName,
		VehicleClass:         in.VehicleClass,
		Pickup:               in.Pickup.toLocation(),
		Destination:          in.Destination.toLocation(),
		Kind:                 tripKind(in),
		PaymentMethod:        paymentMethod(in),
		PaymentStatus:        types.PaymentPending,
		IsNewPassenger:       in.IsNewPassenger,
		DeliveryRecipient:    in.DeliveryRecipient,
		DeliveryInstructions: in.DeliveryInstructions,
		DeliveryPackage:      in.DeliveryPackage,
		EstimatedFareCents:   fareCents,
		EstimatedDurationMin: estimatedDurationMin(in),
		EstimatedDistanceKm:  estimatedDistanceKm(in),
		CreatedAt:            now,
	}

	if err := h.repo.Create(ctx, trip); err != nil {
		h.log.Error(ctx, "failed to create dispatcher-initiated trip", err)
		errorResponse(w, http.StatusInternalServerError, "the server encountered a problem")
		return
	}

	class := in.VehicleClass
	h.dispatcher.Dispatch(context.WithoutCancel(ctx), trip, &class)

	if err := h.events.PublishTripRequested(ctx, models.TripRequestedMessage{
		TripID:              trip.ID,
		TripNumber:          trip.TripNumber,
		PickupLocation:      models.LocationMessage{Lat: trip.Pickup.Latitude, Lng: trip.Pickup.Longitude, Address: trip.Pickup.Address},
		DestinationLocation: models.LocationMessage{Lat: trip.Destination.Latitude, Lng: trip.Destination.Longitude, Address: trip.Destination.Address},
		VehicleClass:        string(trip.VehicleClass),
		EstimatedFareCents:  trip.EstimatedFareCents,
		CorrelationID:       wrap.GetRequestID(ctx),
	}); err != nil {
		h.log.Warn(ctx, "failed to publish trip requested event", "trip_id", trip.ID.String(), "error", err.Error())
	}

	writeJSON(w, http.StatusCreated, envelope{"trip": trip}, nil)
}

// GetActive handles GET /trips/active.
func (h *Trip) GetActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := models.UserFromContext(ctx)

	trip, err := h.repo.ActiveForDriver(ctx, user.ID)
	if err != nil {
		h.log.Error(ctx, "failed to load active trip", err, "driver_id", user.ID.String())
		errorResponse(w, http.StatusInternalServerError, "the server encountered a problem")
		return
	}

	writeJSON(w, http.StatusOK, envelope{"trip": trip}, nil)
}

// GetHistory handles GET /trips/history.
func (h *Trip) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := models.UserFromContext(ctx)
	qs := r.URL.Query()
	v := validator.New()

	f := repo.HistoryFilter{
		DriverID: user.ID,
		Page:     readInt(qs, "page", 1, v),
		Limit:    readInt(qs, "limit", 20, v),
	}
	if status := qs.Get("status"); status != "" {
		s := types.TripStatus(status)
		f.Status = &s
	}
	if start := qs.Get("start_date"); start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			v.AddError("start_date", "must be an RFC3339 timestamp")
		} else {
			f.StartDate = &t
		}
	}
	if end := qs.Get("end_date"); end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			v.AddError("end_date", "must be an RFC3339 timestamp")
		} else {
			f.EndDate = &t
		}
	}
	if !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	trips, total, err := h.repo.History(ctx, f)
	if err != nil {
		h.log.Error(ctx, "failed to load trip history", err, "driver_id", user.ID.String())
		errorResponse(w, http.StatusInternalServerError, "the server encountered a problem")
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"trips": trips,
		"total": total,
		"page":  f.Page,
		"limit": f.Limit,
	}, nil)
}

// GetStatistics handles GET /trips/statistics.
func (h *Trip) GetStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := models.UserFromContext(ctx)
	qs := r.URL.Query()

	now := h.clk.Now()
	start, end := now.AddDate(0, 0, -30), now
	if s := qs.Get("start_date"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			start = t
		} else {
			badRequestResponse(w, err)
			return
		}
	}
	if e := qs.Get("end_date"); e != "" {
		if t, err := time.Parse(time.RFC3339, e); err == nil {
			end = t
		} else {
			badRequestResponse(w, err)
			return
		}
	}

	overall, err := h.repo.Statistics(ctx, user.ID, start, end)
	if err != nil {
		h.log.Error(ctx, "failed to load statistics", err, "driver_id", user.ID.String())
		errorResponse(w, http.StatusInternalServerError, "the server encountered a problem")
		return
	}

	weekStart := startOfWeek(now)
	thisWeek, err := h.repo.Statistics(ctx, user.ID, weekStart, now)
	if err != nil {
		h.log.Error(ctx, "failed to load weekly statistics", err, "driver_id", user.ID.String())
		errorResponse(w, http.StatusInternalServerError, "the server encountered a problem")
		return
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	thisMonth, err := h.repo.Statistics(ctx, user.ID, monthStart, now)
	if err != nil {
		h.log.Error(ctx, "failed to load monthly statistics", err, "driver_id", user.ID.String())
		errorResponse(w, http.StatusInternalServerError, "the server encountered a problem")
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"overall":    overall,
		"this_week":  thisWeek,
		"this_month": thisMonth,
	}, nil)
}

// GetByID handles GET /trips/:id, synthesizing an event timeline from the
// trip row's timestamp columns.
func (h *Trip) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tripID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid trip id")
		return
	}

	trip, err := h.repo.GetByID(ctx, tripID)
	if err != nil {
		h.log.Error(ctx, "failed to load trip", err, "trip_id", tripID.String())
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"trip":   trip,
		"events": buildEventTimeline(trip),
	}, nil)
}

// Start handles PUT /trips/:id/start.
func (h *Trip) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := models.UserFromContext(ctx)

	tripID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid trip id")
		return
	}

	trip, err := h.lifecycle.Start(ctx, tripID, user.ID)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, envelope{"trip": trip}, nil)
}

type cancelInput struct {
	Reason string `json:"reason"`
}

// Cancel handles PUT /trips/:id/cancel.
func (h *Trip) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := models.UserFromContext(ctx)

	tripID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid trip id")
		return
	}

	var in cancelInput
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &in); err != nil {
			badRequestResponse(w, err)
			return
		}
	}

	trip, err := h.lifecycle.Cancel(ctx, tripID, user.ID, in.Reason)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, envelope{"trip": trip}, nil)
}

type completeInput struct {
	ActualDistanceKm    float64 `json:"actual_distance_km"`
	ActualDurationMin   float64 `json:"actual_duration_minutes"`
	FareCentsOverride   *int64  `json:"fare_cents_override"`
}

// Complete handles PUT /trips/:id/complete.
func (h *Trip) Complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := models.UserFromContext(ctx)

	tripID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid trip id")
		return
	}

	var in completeInput
	if err := readJSON(w, r, &in); err != nil {
		badRequestResponse(w, err)
		return
	}

	trip, err := h.lifecycle.Complete(ctx, tripID, user.ID, in.ActualDistanceKm, in.ActualDurationMin, in.FareCentsOverride)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, envelope{"trip": trip}, nil)
}

func (h *Trip) estimateFareCents(in createTripInput) int64 {
	if in.EstimatedFareCents != nil {
		return *in.EstimatedFareCents
	}
	distanceKm := estimatedDistanceKm(in)
	durationMin := float64(estimatedDurationMin(in))
	return fare.Derive(distanceKm, durationMin)
}

func estimatedDistanceKm(in createTripInput) float64 {
	if in.EstimatedDistanceKm != nil {
		return *in.EstimatedDistanceKm
	}
	return spatial.HaversineDistanceKm(in.Pickup.Lat, in.Pickup.Lng, in.Destination.Lat, in.Destination.Lng)
}

func estimatedDurationMin(in createTripInput) int {
	if in.EstimatedDurationMin != nil {
		return *in.EstimatedDurationMin
	}
	return spatial.EstimatedDurationMinutes(estimatedDistanceKm(in), in.VehicleClass)
}

func tripNumber(now time.Time) string {
	return "TR-" + now.Format("20060102150405")
}

func startOfWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, -(weekday - 1))
}

type tripEvent struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

func buildEventTimeline(trip *models.Trip) []tripEvent {
	events := []tripEvent{{Name: "requested", Timestamp: trip.CreatedAt}}
	if trip.MatchedAt != nil {
		events = append(events, tripEvent{Name: "accepted", Timestamp: *trip.MatchedAt})
	}
	if trip.StartedAt != nil {
		events = append(events, tripEvent{Name: "started", Timestamp: *trip.StartedAt})
	}
	if trip.CompletedAt != nil {
		events = append(events, tripEvent{Name: "completed", Timestamp: *trip.CompletedAt})
	}
	if trip.CanceledAt != nil {
		events = append(events, tripEvent{Name: "canceled", Timestamp: *trip.CanceledAt})
	}
	return events
}
