package dispatch

import (
	"context"
	"time"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/pkg/uuid"
)

// SpatialIndex is the candidate-discovery primitive the controller queries at
// dispatch start, on widening, and while class-polling.
type SpatialIndex interface {
	FindNearby(ctx context.Context, pickup models.Location, classes []types.VehicleClass, radiusKm float64) ([]models.DriverWithDistance, error)
}

// PresenceHub is the subset of the presence layer the controller needs: check
// liveness before offering, push the offer, and push withdrawal/status events.
type PresenceHub interface {
	IsOnline(driverID uuid.UUID) bool
	SendOffer(ctx context.Context, driverID uuid.UUID, offer models.TripOffer) error
	NotifyOfferWithdrawn(ctx context.Context, driverID, tripID uuid.UUID)
	NotifyStatusChanged(ctx context.Context, driverID, tripID uuid.UUID, status types.TripStatus)
}

// TripRepo is the persistence surface the controller drives directly,
// independent of the Trip Lifecycle Service (which owns start/cancel/complete).
type TripRepo interface {
	// RecordOffer appends an operational-log row for one offer attempt.
	RecordOffer(ctx context.Context, tripID, driverID uuid.UUID, fareEstimateCents int64) error
	// TryAccept resolves the accept race: it succeeds only if the trip is
	// still requested and driverless, locking both rows in one transaction.
	TryAccept(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error)
	// AutoCancelIfRequested conditionally cancels a still-requested,
	// still-driverless trip; it reports whether it actually canceled.
	AutoCancelIfRequested(ctx context.Context, tripID uuid.UUID, reason string) (*models.Trip, bool, error)
	// StaleRequested returns still-requested trips older than cutoff, for the
	// boot-time reconciliation pass that covers a restart during an
	// in-memory auto-cancel window.
	StaleRequested(ctx context.Context, cutoff time.Time) ([]models.Trip, error)
}

// Notifier persists the dispatcher-facing notifications the controller emits
// on acceptance and auto-cancel.
type Notifier interface {
	NotifyTripAccepted(ctx context.Context, trip *models.Trip) error
	NotifyAutoCanceled(ctx context.Context, trip *models.Trip, reason string) error
}
