// Package notifysink implements the Dispatcher Notification Sink: it
// consumes trip lifecycle events and persists a notification record for the
// dispatcher who filed the trip. Delivery beyond persistence is out of scope.
package notifysink

import (
	"context"
	"fmt"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/pkg/clock"
	"github.com/nomadcore/triphail/pkg/logger"
	wrap "github.com/nomadcore/triphail/pkg/logger/wrapper"
	"github.com/nomadcore/triphail/pkg/uuid"
)

// Store persists notification rows. Delivery (push/SMS/email) beyond this
// is explicitly out of scope per the spec's external-collaborator list.
type Store interface {
	Insert(ctx context.Context, n *models.Notification) error
}

type Sink struct {
	store Store
	clock clock.Clock
	log   logger.Logger
}

func New(store Store, clk clock.Clock, log logger.Logger) *Sink {
	return &Sink{store: store, clock: clk, log: log}
}

// NotifyTripCreated handles a dispatcher-initiated trip_created event. A
// driver-initiated trip has no dispatcher to notify, so it is a no-op.
func (s *Sink) NotifyTripCreated(ctx context.Context, trip *models.Trip) error {
	if trip.DispatcherID == nil {
		return nil
	}
	return s.persist(ctx, *trip.DispatcherID, types.Dispatcher, types.EventTripRequested,
		fmt.Sprintf("Trip %s requested, searching for a nearby driver.", trip.TripNumber))
}

// NotifyTripAccepted handles the trip_accepted event emitted once the
// accept race resolves. It satisfies dispatch.Notifier.
func (s *Sink) NotifyTripAccepted(ctx context.Context, trip *models.Trip) error {
	if trip.DispatcherID == nil {
		return nil
	}
	return s.persist(ctx, *trip.DispatcherID, types.Dispatcher, types.EventDriverMatched,
		fmt.Sprintf("Trip %s matched with a driver.", trip.TripNumber))
}

// NotifyAutoCanceled handles the trip_auto_canceled event emitted when the
// 3-minute dispatch window is exhausted without an accept. It satisfies
// dispatch.Notifier.
func (s *Sink) NotifyAutoCanceled(ctx context.Context, trip *models.Trip, reason string) error {
	if trip.DispatcherID == nil {
		return nil
	}
	return s.persist(ctx, *trip.DispatcherID, types.Dispatcher, types.EventTripCanceled,
		fmt.Sprintf("Trip %s was canceled: %s", trip.TripNumber, reason))
}

// NotifyTripCompleted handles the trip_completed event emitted once a
// driver completes the trip.
func (s *Sink) NotifyTripCompleted(ctx context.Context, trip *models.Trip) error {
	if trip.DispatcherID == nil {
		return nil
	}
	return s.persist(ctx, *trip.DispatcherID, types.Dispatcher, types.EventTripCompleted,
		fmt.Sprintf("Trip %s completed.", trip.TripNumber))
}

func (s *Sink) persist(ctx context.Context, recipientID uuid.UUID, recipient types.EntityType, eventType types.TripEvent, body string) error {
	n := &models.Notification{
		ID:          uuid.New(),
		RecipientID: recipientID,
		Recipient:   recipient,
		EventType:   eventType,
		Payload:     []byte(body),
		CreatedAt:   s.clock.Now(),
	}
	if err := s.store.Insert(ctx, n); err != nil {
		s.log.Warn(ctx, "failed to persist dispatcher notification", "event", string(eventType), "error", err.Error())
		return wrap.Error(ctx, err)
	}
	return nil
}
