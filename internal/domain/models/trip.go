package models

import (
	"time"

	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/pkg/uuid"
)

// TripInfo is the read-model projection used by list/history/statistics endpoints.
type TripInfo struct {
	TripID              uuid.UUID `json:"trip_id"`
	TripNumber          string    `json:"trip_number"`
	Status              string    `json:"status"`
	DispatcherID        uuid.UUID `json:"dispatcher_id"`
	DriverID             *uuid.UUID `json:"driver_id,omitempty"`
	PickupAddress       string    `json:"pickup_address"`
	DestinationAddress  string    `json:"destination_address"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	FinalFareCents      *int64    `json:"final_fare_cents,omitempty"`
}

// Trip is a dispatcher- or driver-created ride or delivery request moving
// through the sequential offer/accept lifecycle and, once matched, the
// in_progress/completed arc.
type Trip struct {
	ID           uuid.UUID
	TripNumber   string
	Status       types.TripStatus
	DispatcherID *uuid.UUID // nil for driver-initiated trips
	PassengerID  uuid.UUID
	// PassengerPhone/PassengerDisplayName are denormalized onto the trip at
	// creation time since the passenger profile store is an external
	// collaborator the core does not read back from.
	PassengerPhone       string
	PassengerDisplayName string
	VehicleClass         types.VehicleClass
	Pickup       Location
	Destination  Location
	DriverID     *uuid.UUID

	Kind           types.TripKind
	PaymentMethod  types.PaymentMethod
	PaymentStatus  types.PaymentStatus
	IsNewPassenger bool

	// Delivery-only fields; empty for Kind == KindStandard.
	DeliveryRecipient    *string
	DeliveryInstructions *string
	DeliveryPackage      *string

	EstimatedFareCents   int64
	EstimatedDurationMin int
	EstimatedDistanceKm  float64

	FinalFareCents      *int64
	DriverEarningsCents *int64
	CommissionCents     *int64
	ActualDistanceKm    *float64
	ActualDurationMin   *float64

	CancellationReason *string
	CanceledByUserID   *uuid.UUID

	CreatedAt   time.Time
	MatchedAt   *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CanceledAt  *time.Time
}

// DriverPickup records a single driver's GPS sample while en route to, or
// during, a trip. It is the audit trail behind distance-completed /
// distance-remaining figures. Nothing in this module writes or reads it; the
// presence hub keeps its own last-known fix.
type DriverPickup struct {
	ID        uuid.UUID
	TripID    uuid.UUID
	DriverID  uuid.UUID
	Location  Location
	SpeedKmh  float64
	RecordedAt time.Time
}

/* ======================= wire messages ======================= */

type LocationMessage struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// TripRequestedMessage is published to the trip_events exchange when a
// dispatcher creates a new trip, for notify-worker to record. Candidate
// discovery does not depend on it; the dispatch controller starts in-process.
type TripRequestedMessage struct {
	TripID              uuid.UUID       `json:"trip_id"`
	TripNumber          string          `json:"trip_number"`
	PickupLocation      LocationMessage `json:"pickup_location"`
	DestinationLocation LocationMessage `json:"destination_location"`
	VehicleClass        string          `json:"vehicle_class"`
	EstimatedFareCents  int64           `json:"estimated_fare_cents"`
	CorrelationID       string          `json:"correlation_id"`
}

// TripStatusUpdateMessage is published on every trip status transition, for
// the notification sink to fan out to dispatcher/driver sockets.
type TripStatusUpdateMessage struct {
	TripID         uuid.UUID  `json:"trip_id"`
	Status         string     `json:"status"`
	Timestamp      time.Time  `json:"timestamp"`
	DriverID       *uuid.UUID `json:"driver_id,omitempty"`
	CorrelationID  string     `json:"correlation_id"`
	FinalFareCents *int64     `json:"final_fare_cents,omitempty"`
}

/* ======================= dispatch offer wire types ======================= */

// TripOffer is pushed over a driver's websocket when they are next in the
// candidate queue for a trip. The driver has until ExpiresAt to respond.
type TripOffer struct {
	ID                           uuid.UUID       `json:"offer_id"`
	MsgType                      string          `json:"type"` // "trip_offer"
	TripID                       uuid.UUID       `json:"trip_id"`
	TripNumber                   string          `json:"trip_number"`
	TripKind                     types.TripKind  `json:"trip_kind"`
	PickupLocation               LocationMessage `json:"pickup_location"`
	DestinationLocation          LocationMessage `json:"destination_location"`
	EstimatedFareCents           int64           `json:"estimated_fare_cents"`
	DriverEarningsCents          int64           `json:"driver_earnings_cents"`
	DistanceToPickupKm           float64         `json:"distance_to_pickup_km"`
	EstimatedTripDurationMinutes int             `json:"estimated_trip_duration_minutes"`
	ExpiresAt                    time.Time       `json:"expires_at"`

	// PassengerPhone/PassengerDisplayName identify who the driver is picking
	// up. For a delivery trip PassengerDisplayName carries the recipient's
	// name instead of the passenger's own.
	PassengerPhone       string  `json:"passenger_phone,omitempty"`
	PassengerDisplayName string  `json:"passenger_display_name,omitempty"`
	DeliveryPackage      *string `json:"delivery_package,omitempty"`
}

// TripOfferResponse is the driver's reply: accept or decline the pending offer.
type TripOfferResponse struct {
	ID              uuid.UUID       `json:"offer_id"`
	TripID          uuid.UUID       `json:"trip_id"`
	Accepted        bool            `json:"accepted"`
	CurrentLocation LocationMessage `json:"current_location"`
}

// TripEvent is the admin/dispatcher-facing transition record for a trip.
type TripEvent struct {
	OldStatus        types.TripStatus `json:"old_status"`
	NewStatus        types.TripStatus `json:"new_status"`
	DriverID         *uuid.UUID       `json:"driver_id,omitempty"`
	Location         Location         `json:"location"`
	EstimatedArrival *time.Time       `json:"estimated_arrival,omitempty"`
}

// PassengerLocationUpdateDTO is the socket message fanned out to the
// dispatcher side as the matched driver's position changes en route.
type PassengerLocationUpdateDTO struct {
	Type               string          `json:"type"`
	TripID             uuid.UUID       `json:"trip_id"`
	DriverLocation     LocationMessage `json:"driver_location"`
	EstimatedArrival   time.Time       `json:"estimated_arrival"`
	DistanceToPickupKm float64         `json:"distance_to_pickup_km"`
}
