package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/internal/service/fare"
	"github.com/nomadcore/triphail/pkg/clock"
	wrap "github.com/nomadcore/triphail/pkg/logger/wrapper"
	"github.com/nomadcore/triphail/pkg/metrics"
	"github.com/nomadcore/triphail/pkg/uuid"
)

type responseEvent struct {
	driverID uuid.UUID
	accepted bool
}

// actor is the per-trip goroutine that owns BroadcastState exclusively and
// runs the offer protocol described in spec 4.4. Nothing outside this
// goroutine ever mutates state; external inputs (driver responses, explicit
// cancellation) arrive over channels and are applied serially.
type actor struct {
	ctrl         *Controller
	trip         *models.Trip
	vehicleClass *types.VehicleClass

	state BroadcastState

	responseCh chan responseEvent
	cancelCh   chan struct{}

	// offereeMu guards offeree, the driver currently holding a live,
	// unexpired offer, so the controller can answer a cross-goroutine
	// "who is this trip offered to right now" query (e.g. for a driver
	// socket disconnecting mid-offer) without touching actor-owned state.
	offereeMu sync.RWMutex
	offeree   uuid.UUID
}

func newActor(ctrl *Controller, trip *models.Trip, vehicleClass *types.VehicleClass) *actor {
	return &actor{
		ctrl:         ctrl,
		trip:         trip,
		vehicleClass: vehicleClass,
		state:        BroadcastState{TripID: trip.ID},
		responseCh:   make(chan responseEvent, 4),
		cancelCh:     make(chan struct{}, 1),
	}
}

func (a *actor) run(ctx context.Context) {
	ctx = wrap.WithTripID(ctx, a.trip.ID.String())
	defer a.ctrl.finish(a.trip.ID)

	metrics.DispatchActiveBroadcasts.Inc()
	defer metrics.DispatchActiveBroadcasts.Dec()

	a.state.StartedAt = a.ctrl.clock.Now()

	autoCancel := a.ctrl.clock.NewTimer(AutoCancelTimeout)
	defer autoCancel.Stop()

	var classExpansion clock.Timer
	var classPoll clock.Ticker
	defer func() {
		if classExpansion != nil {
			classExpansion.Stop()
		}
		if classPoll != nil {
			classPoll.Stop()
		}
	}()

	var perOffer clock.Timer
	defer func() {
		if perOffer != nil {
			perOffer.Stop()
		}
	}()

	if a.vehicleClass != nil {
		drivers, err := a.ctrl.spatial.FindNearby(ctx, a.trip.Pickup, []types.VehicleClass{*a.vehicleClass}, OfferRadiusKm)
		if err != nil {
			a.ctrl.log.Warn(ctx, "spatial query failed, treating as no candidates", "error", err.Error())
			drivers = nil
		}
		if len(drivers) > 0 {
			a.state.Candidates = cappedCandidates(drivers)
			classExpansion = a.ctrl.clock.NewTimer(ClassExpansionTimeout)
		} else {
			a.state.IsPollingForClass = true
			classPoll = a.ctrl.clock.NewTicker(ClassPollInterval)
		}
	} else {
		drivers, err := a.ctrl.spatial.FindNearby(ctx, a.trip.Pickup, nil, OfferRadiusKm)
		if err != nil {
			a.ctrl.log.Warn(ctx, "spatial query failed, treating as no candidates", "error", err.Error())
			drivers = nil
		}
		a.state.Candidates = cappedCandidates(drivers)
		a.state.HasExpandedToAllClasses = true
	}
	metrics.DispatchCandidateListSize.Observe(float64(len(a.state.Candidates)))

	if !a.state.IsPollingForClass {
		perOffer = a.offerNext(ctx)
	}

	for {
		var perOfferC, classExpansionC, classPollC <-chan time.Time
		if perOffer != nil {
			perOfferC = perOffer.C()
		}
		if classExpansion != nil {
			classExpansionC = classExpansion.C()
		}
		if classPoll != nil {
			classPollC = classPoll.C()
		}

		select {
		case <-ctx.Done():
			return

		case <-a.cancelCh:
			if perOffer != nil {
				a.withdrawOffer(ctx)
			}
			return

		case ev := <-a.responseCh:
			if a.state.Index >= len(a.state.Candidates) || a.state.Candidates[a.state.Index].ID != ev.driverID {
				// stale response from a driver no longer the head of the queue.
				continue
			}
			if perOffer != nil {
				perOffer.Stop()
				perOffer = nil
			}
			if ev.accepted {
				if a.tryAccept(ctx, ev.driverID) {
					return
				}
				perOffer = a.offerNext(ctx)
				continue
			}
			a.state.Index++
			perOffer = a.offerNext(ctx)

		case <-perOfferC:
			perOffer = nil
			a.state.Index++
			perOffer = a.offerNext(ctx)

		case <-classExpansionC:
			classExpansion = nil
			if perOffer == nil {
				perOffer = a.widenAndResume(ctx)
			} else {
				a.widen(ctx)
			}

		case <-classPollC:
			a.state.PollAttempts++
			drivers, err := a.ctrl.spatial.FindNearby(ctx, a.trip.Pickup, []types.VehicleClass{*a.vehicleClass}, OfferRadiusKm)
			if err != nil {
				drivers = nil
			}
			if len(drivers) > 0 {
				classPoll.Stop()
				classPoll = nil
				a.state.IsPollingForClass = false
				a.state.Candidates = cappedCandidates(drivers)
				classExpansion = a.ctrl.clock.NewTimer(ClassExpansionTimeout)
				perOffer = a.offerNext(ctx)
				continue
			}
			if a.state.PollAttempts >= ClassPollMaxAttempts {
				classPoll.Stop()
				classPoll = nil
				a.state.IsPollingForClass = false
				perOffer = a.widenAndResume(ctx)
			}

		case <-autoCancel.C():
			if perOffer != nil {
				a.withdrawOffer(ctx)
			}
			a.autoCancel(ctx)
			return
		}
	}
}

// offerNext advances past any candidates with no live connection and offers
// the trip to the next reachable one, arming a fresh per-offer timer. It
// returns nil once the candidate list is exhausted.
func (a *actor) offerNext(ctx context.Context) clock.Timer {
	for a.state.Index < len(a.state.Candidates) {
		candidate := a.state.Candidates[a.state.Index]
		if !a.ctrl.presence.IsOnline(candidate.ID) {
			a.state.Index++
			continue
		}

		offer := a.buildOffer(candidate)
		if err := a.ctrl.presence.SendOffer(ctx, candidate.ID, offer); err != nil {
			a.ctrl.log.Warn(ctx, "failed to deliver trip offer, advancing", "driver_id", candidate.ID.String(), "error", err.Error())
			a.state.Index++
			continue
		}

		if err := a.ctrl.repo.RecordOffer(ctx, a.trip.ID, candidate.ID, a.trip.EstimatedFareCents); err != nil {
			a.ctrl.log.Warn(ctx, "failed to record offer log", "driver_id", candidate.ID.String(), "error", err.Error())
		}

		metrics.RecordOfferSent()
		a.setOfferee(candidate.ID)
		return a.ctrl.clock.NewTimer(PerOfferTimeout)
	}
	a.setOfferee(uuid.Nil)
	return nil
}

func (a *actor) setOfferee(driverID uuid.UUID) {
	a.offereeMu.Lock()
	a.offeree = driverID
	a.offereeMu.Unlock()
}

// currentOfferee reports the driver currently holding a live, unexpired
// offer for this trip, if any. Safe to call from outside the actor's own
// goroutine.
func (a *actor) currentOfferee() (uuid.UUID, bool) {
	a.offereeMu.RLock()
	defer a.offereeMu.RUnlock()
	if a.offeree.IsNil() {
		return uuid.Nil, false
	}
	return a.offeree, true
}

func (a *actor) buildOffer(candidate models.DriverWithDistance) models.TripOffer {
	driverEarnings, _ := fare.Split(a.trip.EstimatedFareCents)

	displayName := a.trip.PassengerDisplayName
	if a.trip.Kind == types.KindDelivery && a.trip.DeliveryRecipient != nil {
		displayName = *a.trip.DeliveryRecipient
	}

	return models.TripOffer{
		ID:                           uuid.New(),
		MsgType:                      "trip_offer",
		TripID:                       a.trip.ID,
		TripNumber:                   a.trip.TripNumber,
		TripKind:                     a.trip.Kind,
		PickupLocation:               toLocationMessage(a.trip.Pickup),
		DestinationLocation:          toLocationMessage(a.trip.Destination),
		EstimatedFareCents:           a.trip.EstimatedFareCents,
		DriverEarningsCents:          driverEarnings,
		DistanceToPickupKm:           candidate.DistanceKm,
		EstimatedTripDurationMinutes: a.trip.EstimatedDurationMin,
		ExpiresAt:                    a.ctrl.clock.Now().Add(PerOfferTimeout),
		PassengerPhone:               a.trip.PassengerPhone,
		PassengerDisplayName:         displayName,
		DeliveryPackage:              a.trip.DeliveryPackage,
	}
}

func (a *actor) widen(ctx context.Context) {
	drivers, err := a.ctrl.spatial.FindNearby(ctx, a.trip.Pickup, nil, OfferRadiusKm)
	if err != nil {
		a.ctrl.log.Warn(ctx, "widening spatial query failed", "error", err.Error())
		drivers = nil
	}
	a.state.Candidates = cappedCandidates(mergeWidened(a.state.Candidates, drivers))
	a.state.HasExpandedToAllClasses = true
	metrics.RecordWidening()
}

func (a *actor) widenAndResume(ctx context.Context) clock.Timer {
	a.widen(ctx)
	return a.offerNext(ctx)
}

// withdrawOffer notifies the candidate currently holding a live, unexpired
// offer that the trip was resolved out from under them (explicit cancel or
// auto-cancel), per 4.4.6 — the only candidate with a pending offer at any
// moment in this sequential protocol.
func (a *actor) withdrawOffer(ctx context.Context) {
	if a.state.Index >= len(a.state.Candidates) {
		return
	}
	a.ctrl.presence.NotifyOfferWithdrawn(ctx, a.state.Candidates[a.state.Index].ID, a.trip.ID)
}

// tryAccept resolves the accept race via the repository's locked conditional
// update. It returns true if the actor should terminate (trip resolved).
func (a *actor) tryAccept(ctx context.Context, driverID uuid.UUID) bool {
	trip, err := a.ctrl.repo.TryAccept(ctx, a.trip.ID, driverID)
	if err != nil {
		a.ctrl.log.Warn(ctx, "accept race lost or failed, continuing rotation", "driver_id", driverID.String(), "error", err.Error())
		return false
	}

	a.ctrl.presence.NotifyStatusChanged(ctx, driverID, a.trip.ID, types.TripAccepted)
	if err := a.ctrl.notifier.NotifyTripAccepted(ctx, trip); err != nil {
		a.ctrl.log.Warn(ctx, "failed to persist trip-accepted notification", "error", err.Error())
	}
	a.ctrl.log.Info(ctx, "trip accepted", "driver_id", driverID.String())
	return true
}

func (a *actor) autoCancel(ctx context.Context) {
	trip, canceled, err := a.ctrl.repo.AutoCancelIfRequested(ctx, a.trip.ID, AutoCancelReason)
	if err != nil {
		a.ctrl.log.Warn(ctx, "auto-cancel update failed", "error", err.Error())
		return
	}
	if !canceled {
		// an accept committed concurrently with the auto-cancel timer firing.
		return
	}

	metrics.RecordAutoCancel()
	if err := a.ctrl.notifier.NotifyAutoCanceled(ctx, trip, AutoCancelReason); err != nil {
		a.ctrl.log.Warn(ctx, "failed to persist auto-cancel notification", "error", err.Error())
	}
	a.ctrl.log.Info(ctx, "trip auto-canceled", "reason", AutoCancelReason)
}

func toLocationMessage(l models.Location) models.LocationMessage {
	return models.LocationMessage{Lat: l.Latitude, Lng: l.Longitude, Address: l.Address}
}
