package models

import (
	"time"

	"github.com/nomadcore/triphail/pkg/uuid"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

type Coordinates struct {
	Location       Location `json:"location"`
	AccuracyMeters float64  `json:"accuracy_meters,omitempty"`
	SpeedKmh       float64  `json:"speed_kmh,omitempty"`
	HeadingDegrees float64  `json:"heading_degrees,omitempty"`
}

// DriverLocationUpdate is the shape of a driver's location push. No code in
// this module decodes or publishes it; the only exchange declared here is
// trip_events.
type DriverLocationUpdate struct {
	DriverID  uuid.UUID `json:"driver_id"`
	TripID    *uuid.UUID `json:"trip_id,omitempty"`
	TimeStamp time.Time  `json:"timestamp"`

	Coordinates
}
