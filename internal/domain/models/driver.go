package models

import (
	"time"

	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/pkg/uuid"
)

// DriverProfile is the dispatch-relevant state of a driver: who they are,
// what they drive, whether they can currently be offered a trip, and their
// running totals. Position is tracked separately by the presence hub /
// spatial index, not embedded here.
type DriverProfile struct {
	ID            uuid.UUID
	Name          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LicenseNumber string
	Vehicle       Vehicle
	Rating        float64
	TotalTrips    int
	// TotalEarningsCents is a saturating accumulator of the driver's 85% share
	// of completed-trip fares, in integer cents.
	TotalEarningsCents int64
	Status             types.DriverStatus
	IsVerified          bool

	// IsAvailable and CurrentTripID together gate whether the driver is a
	// dispatch candidate; both are maintained by the Trip Lifecycle Service.
	IsAvailable   bool
	CurrentTripID *uuid.UUID
}

// DriverWithDistance pairs a driver snapshot with its great-circle distance
// from a dispatch query point, as returned by the spatial index.
type DriverWithDistance struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Rating     float64         `json:"rating"`
	Location   LocationMessage `json:"location"`
	Vehicle    Vehicle         `json:"vehicle"`
	DistanceKm float64         `json:"distance_km"`
}

type Vehicle struct {
	Class types.VehicleClass `json:"class"`
	Make  string             `json:"make"`
	Model string             `json:"model"`
	Color string             `json:"color"`
	Plate string             `json:"plate"`
	Year  int                `json:"year"`
}

// DriverStatusUpdateMessage is published whenever a driver's dispatch
// availability changes (e.g. goes AVAILABLE, or BUSY on accepting a trip).
type DriverStatusUpdateMessage struct {
	DriverID  uuid.UUID          `json:"driver_id"`
	Status    types.DriverStatus `json:"status"`
	TripID    *uuid.UUID         `json:"trip_id,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

type DriverInfo struct {
	Name    string  `json:"name"`
	Rating  float64 `json:"rating"`
	Vehicle Vehicle `json:"vehicle"`
}

// DriverMatchResponse is the payload sent to the dispatcher/passenger side
// once a driver has accepted a trip offer.
type DriverMatchResponse struct {
	TripID                  uuid.UUID       `json:"trip_id"`
	DriverID                uuid.UUID       `json:"driver_id"`
	Accepted                bool            `json:"accepted"`
	EstimatedArrivalMinutes int             `json:"estimated_arrival_minutes"`
	DriverLocation          LocationMessage `json:"driver_location"`
	DriverInfo              DriverInfo      `json:"driver_info"`
	CorrelationID           string          `json:"correlation_id"`
}
