package lifecycle

import (
	"context"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/pkg/uuid"
)

// TripRepo is the persistence surface the lifecycle service drives. Each
// setter enforces its own precondition (status, ownership) transactionally
// and returns the updated row so callers never re-read.
type TripRepo interface {
	GetByID(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)

	// SetInProgress transitions accepted->in_progress (or is a no-op returning
	// the current row if already in_progress, for idempotent retries), only
	// for the trip's matched driver.
	SetInProgress(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error)

	// SetCanceled transitions requested/accepted/in_progress->canceled,
	// recording reason and the acting user.
	SetCanceled(ctx context.Context, tripID, actorUserID uuid.UUID, reason string) (*models.Trip, error)

	// SetCompleted transitions in_progress->completed for the trip's matched
	// driver, persisting the final fare split and the actuals it was derived
	// (or overridden) from.
	SetCompleted(ctx context.Context, tripID, driverID uuid.UUID, fareCents, driverEarningsCents, commissionCents int64, actualDistanceKm, actualDurationMin float64) (*models.Trip, error)
}

// DriverPickupRepo advances the per-trip driver-pickup operational log
// (created/accepted/canceled), separate from the trip row itself.
type DriverPickupRepo interface {
	AdvanceToAccepted(ctx context.Context, tripID, driverID uuid.UUID) error
	CloseAsCanceled(ctx context.Context, tripID uuid.UUID) error
}

// DriverProfileRepo is the subset of driver-profile persistence the
// lifecycle service needs to keep availability and running totals correct.
type DriverProfileRepo interface {
	GetByID(ctx context.Context, driverID uuid.UUID) (*models.DriverProfile, error)
	ReleaseDriver(ctx context.Context, driverID uuid.UUID) error
	RecordCompletion(ctx context.Context, driverID uuid.UUID, earningsDeltaCents int64) error
}

// EventPublisher fans out trip status transitions to the trip_events
// exchange, which notify-worker drains into the notification sink.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, msg models.TripStatusUpdateMessage) error
}

// DispatchCanceler tears down a still-broadcasting trip's actor. Satisfied
// by *dispatch.Controller; kept as a narrow interface here to avoid a
// dependency from lifecycle back onto the dispatch package's internals.
type DispatchCanceler interface {
	Cancel(tripID uuid.UUID)
}
