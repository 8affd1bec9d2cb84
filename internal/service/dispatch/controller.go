package dispatch

import (
	"context"
	"sync"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/pkg/clock"
	"github.com/nomadcore/triphail/pkg/logger"
	"github.com/nomadcore/triphail/pkg/uuid"
)

// reconcileWindow matches AutoCancelTimeout: a requested trip older than this
// at boot was either mid-broadcast when the process stopped or already past
// its in-memory auto-cancel deadline, so it is safe to cancel outright.
const reconcileWindow = AutoCancelTimeout

// Controller owns the registry of in-flight trip broadcasts. Each requested
// trip gets exactly one actor goroutine for its whole dispatch lifetime;
// the registry only tracks the channels needed to route external events
// (driver responses, explicit cancellation) into that goroutine.
type Controller struct {
	spatial  SpatialIndex
	presence PresenceHub
	repo     TripRepo
	notifier Notifier
	clock    clock.Clock
	log      logger.Logger

	mu        sync.Mutex
	broadcast map[uuid.UUID]*actor
}

func NewController(spatial SpatialIndex, presence PresenceHub, repo TripRepo, notifier Notifier, clk clock.Clock, log logger.Logger) *Controller {
	return &Controller{
		spatial:   spatial,
		presence:  presence,
		repo:      repo,
		notifier:  notifier,
		clock:     clk,
		log:       log,
		broadcast: make(map[uuid.UUID]*actor),
	}
}

// Dispatch starts the offer rotation for a newly requested trip. vehicleClass
// is nil when the dispatcher did not request a specific class, which skips
// straight to the wide, all-classes query per 4.4.1.
func (c *Controller) Dispatch(ctx context.Context, trip *models.Trip, vehicleClass *types.VehicleClass) {
	a := newActor(c, trip, vehicleClass)

	c.mu.Lock()
	c.broadcast[trip.ID] = a
	c.mu.Unlock()

	go a.run(context.WithoutCancel(ctx))
}

// HandleResponse routes a driver's accept/decline for an offer into the
// owning actor. It returns types.ErrTripNotFound if no broadcast is active
// for the trip (already resolved, timed out, or never dispatched).
func (c *Controller) HandleResponse(tripID, driverID uuid.UUID, accepted bool) error {
	c.mu.Lock()
	a, ok := c.broadcast[tripID]
	c.mu.Unlock()
	if !ok {
		return types.ErrTripNotFound
	}

	select {
	case a.responseCh <- responseEvent{driverID: driverID, accepted: accepted}:
	default:
		// the actor's buffer is saturated; the response is dropped as stale
		// rather than blocking the caller.
	}
	return nil
}

// Cancel requests early termination of a trip's broadcast, e.g. when the
// dispatcher cancels a still-requested trip directly.
func (c *Controller) Cancel(tripID uuid.UUID) {
	c.mu.Lock()
	a, ok := c.broadcast[tripID]
	c.mu.Unlock()
	if !ok {
		return
	}

	select {
	case a.cancelCh <- struct{}{}:
	default:
	}
}

// IsDispatching reports whether a trip currently has an active broadcast.
func (c *Controller) IsDispatching(tripID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.broadcast[tripID]
	return ok
}

// DriverCurrentOffer reports the trip a driver currently holds a live,
// unexpired offer for, if any. Used to resolve an implied decline (e.g. a
// driver socket disconnecting mid-offer) without waiting for the per-offer
// timeout.
func (c *Controller) DriverCurrentOffer(driverID uuid.UUID) (uuid.UUID, bool) {
	c.mu.Lock()
	actors := make([]*actor, 0, len(c.broadcast))
	for _, a := range c.broadcast {
		actors = append(actors, a)
	}
	c.mu.Unlock()

	for _, a := range actors {
		if offeree, ok := a.currentOfferee(); ok && offeree == driverID {
			return a.trip.ID, true
		}
	}
	return uuid.Nil, false
}

// ReconcileStaleTrips cancels any trip still sitting in requested older than
// reconcileWindow, covering a restart that happened before the in-memory
// auto-cancel timer for it would have fired. Called once at startup, before
// the HTTP server starts accepting traffic.
func (c *Controller) ReconcileStaleTrips(ctx context.Context) error {
	cutoff := c.clock.Now().Add(-reconcileWindow)
	stale, err := c.repo.StaleRequested(ctx, cutoff)
	if err != nil {
		return err
	}

	for i := range stale {
		trip, canceled, err := c.repo.AutoCancelIfRequested(ctx, stale[i].ID, AutoCancelReason)
		if err != nil {
			c.log.Warn(ctx, "reconcile: auto-cancel failed", "trip_id", stale[i].ID.String(), "error", err.Error())
			continue
		}
		if !canceled {
			continue
		}
		if err := c.notifier.NotifyAutoCanceled(ctx, trip, AutoCancelReason); err != nil {
			c.log.Warn(ctx, "reconcile: failed to persist auto-cancel notification", "error", err.Error())
		}
	}

	if len(stale) > 0 {
		c.log.Info(ctx, "reconciled stale trips on boot", "count", len(stale))
	}
	return nil
}

func (c *Controller) finish(tripID uuid.UUID) {
	c.mu.Lock()
	delete(c.broadcast, tripID)
	c.mu.Unlock()
}
