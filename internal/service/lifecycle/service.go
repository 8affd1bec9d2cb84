// Package lifecycle implements the Trip Lifecycle Service: the
// start/cancel/complete transitions a trip moves through once it has been
// created, independent of how it got a driver (dispatched or
// driver-initiated).
package lifecycle

import (
	"context"
	"fmt"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/internal/service/fare"
	"github.com/nomadcore/triphail/pkg/clock"
	"github.com/nomadcore/triphail/pkg/logger"
	wrap "github.com/nomadcore/triphail/pkg/logger/wrapper"
	"github.com/nomadcore/triphail/pkg/uuid"
)

type Service struct {
	trips    TripRepo
	pickups  DriverPickupRepo
	drivers  DriverProfileRepo
	events   EventPublisher
	dispatch DispatchCanceler
	clock    clock.Clock
	log      logger.Logger
}

func New(trips TripRepo, pickups DriverPickupRepo, drivers DriverProfileRepo, events EventPublisher, dispatch DispatchCanceler, clk clock.Clock, log logger.Logger) *Service {
	return &Service{
		trips:    trips,
		pickups:  pickups,
		drivers:  drivers,
		events:   events,
		dispatch: dispatch,
		clock:    clk,
		log:      log,
	}
}

// Start transitions an accepted trip to in_progress. Calling it again while
// already in_progress is accepted as an idempotent retry rather than an
// error, per 4.5.
func (s *Service) Start(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if trip.DriverID == nil || *trip.DriverID != driverID {
		return nil, wrap.Error(ctx, types.ErrTripDriverMismatch)
	}
	if trip.Status != types.TripAccepted && trip.Status != types.TripInProgress {
		return nil, wrap.Error(ctx, fmt.Errorf("%w: trip is %s", types.ErrTripNotAccepted, trip.Status))
	}

	updated, err := s.trips.SetInProgress(ctx, tripID, driverID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	if err := s.pickups.AdvanceToAccepted(ctx, tripID, driverID); err != nil {
		s.log.Warn(ctx, "failed to advance driver pickup to accepted", "error", err.Error())
	}

	s.publishStatus(ctx, updated)
	return updated, nil
}

// Cancel transitions a requested, accepted, or in_progress trip to canceled,
// releases the matched driver if any, and tears down any still-running
// dispatch broadcast.
func (s *Service) Cancel(ctx context.Context, tripID, actorUserID uuid.UUID, reason string) (*models.Trip, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	switch trip.Status {
	case types.TripRequested, types.TripAccepted, types.TripInProgress:
	default:
		return nil, wrap.Error(ctx, fmt.Errorf("%w: trip is %s", types.ErrTripAlreadyClosed, trip.Status))
	}

	wasRequested := trip.Status == types.TripRequested

	updated, err := s.trips.SetCanceled(ctx, tripID, actorUserID, reason)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	if err := s.pickups.CloseAsCanceled(ctx, tripID); err != nil {
		s.log.Warn(ctx, "failed to close driver pickup as canceled", "error", err.Error())
	}
	if updated.DriverID != nil {
		if err := s.drivers.ReleaseDriver(ctx, *updated.DriverID); err != nil {
			s.log.Warn(ctx, "failed to release driver on cancel", "driver_id", updated.DriverID.String(), "error", err.Error())
		}
	}

	if wasRequested {
		s.dispatch.Cancel(tripID)
	}

	s.publishStatus(ctx, updated)
	return updated, nil
}

// Complete transitions an in_progress trip to completed, deriving the final
// fare split from actuals when the caller omits it, and accumulating the
// driver's running earnings.
func (s *Service) Complete(ctx context.Context, tripID, driverID uuid.UUID, actualDistanceKm, actualDurationMin float64, fareCentsOverride *int64) (*models.Trip, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if trip.DriverID == nil || *trip.DriverID != driverID {
		return nil, wrap.Error(ctx, types.ErrTripDriverMismatch)
	}
	if trip.Status != types.TripInProgress {
		return nil, wrap.Error(ctx, fmt.Errorf("%w: trip is %s", types.ErrTripNotInProgress, trip.Status))
	}

	fareCents := fare.Derive(actualDistanceKm, actualDurationMin)
	if fareCentsOverride != nil {
		if *fareCentsOverride < 0 {
			return nil, wrap.Error(ctx, types.ErrInvalidFareInputs)
		}
		fareCents = *fareCentsOverride
	}
	driverEarnings, commission := fare.Split(fareCents)

	updated, err := s.trips.SetCompleted(ctx, tripID, driverID, fareCents, driverEarnings, commission, actualDistanceKm, actualDurationMin)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	if err := s.drivers.RecordCompletion(ctx, driverID, driverEarnings); err != nil {
		s.log.Warn(ctx, "failed to record driver completion totals", "driver_id", driverID.String(), "error", err.Error())
	}

	s.publishStatus(ctx, updated)
	return updated, nil
}

func (s *Service) publishStatus(ctx context.Context, trip *models.Trip) {
	msg := models.TripStatusUpdateMessage{
		TripID:    trip.ID,
		Status:    string(trip.Status),
		Timestamp: s.clock.Now(),
		DriverID:  trip.DriverID,
	}
	if trip.Status == types.TripCompleted {
		msg.FinalFareCents = trip.FinalFareCents
	}
	if err := s.events.PublishStatusChanged(ctx, msg); err != nil {
		s.log.Warn(ctx, "failed to publish trip status change", "trip_id", trip.ID.String(), "error", err.Error())
	}
}
