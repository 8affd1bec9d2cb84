package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/pkg/clock"
	"github.com/nomadcore/triphail/pkg/logger"
	"github.com/nomadcore/triphail/pkg/uuid"
)

type fakeSpatial struct {
	mu      sync.Mutex
	byClass map[types.VehicleClass][]models.DriverWithDistance
	all     []models.DriverWithDistance
}

func (f *fakeSpatial) FindNearby(ctx context.Context, pickup models.Location, classes []types.VehicleClass, radiusKm float64) ([]models.DriverWithDistance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(classes) == 0 {
		out := make([]models.DriverWithDistance, len(f.all))
		copy(out, f.all)
		return out, nil
	}
	out := f.byClass[classes[0]]
	cp := make([]models.DriverWithDistance, len(out))
	copy(cp, out)
	return cp, nil
}

func (f *fakeSpatial) setClass(class types.VehicleClass, drivers []models.DriverWithDistance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byClass == nil {
		f.byClass = make(map[types.VehicleClass][]models.DriverWithDistance)
	}
	f.byClass[class] = drivers
}

func (f *fakeSpatial) setAll(drivers []models.DriverWithDistance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.all = drivers
}

type fakePresence struct {
	mu      sync.Mutex
	online  map[uuid.UUID]bool
	offered []uuid.UUID
}

func newFakePresence() *fakePresence {
	return &fakePresence{online: make(map[uuid.UUID]bool)}
}

func (f *fakePresence) IsOnline(driverID uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[driverID]
}

func (f *fakePresence) SendOffer(ctx context.Context, driverID uuid.UUID, offer models.TripOffer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offered = append(f.offered, driverID)
	return nil
}

func (f *fakePresence) NotifyOfferWithdrawn(ctx context.Context, driverID, tripID uuid.UUID) {}

func (f *fakePresence) NotifyStatusChanged(ctx context.Context, driverID, tripID uuid.UUID, status types.TripStatus) {
}

func (f *fakePresence) setOnline(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[id] = true
}

func (f *fakePresence) offeredDrivers() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uuid.UUID, len(f.offered))
	copy(out, f.offered)
	return out
}

type fakeRepo struct {
	mu        sync.Mutex
	accepted  *uuid.UUID
	trip      *models.Trip
	canceled  bool
	cancelMsg string
}

func (f *fakeRepo) RecordOffer(ctx context.Context, tripID, driverID uuid.UUID, fareEstimateCents int64) error {
	return nil
}

func (f *fakeRepo) TryAccept(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accepted != nil {
		return nil, types.ErrTripNotFound
	}
	f.accepted = &driverID
	cp := *f.trip
	cp.Status = types.TripAccepted
	cp.DriverID = &driverID
	f.trip = &cp
	return &cp, nil
}

func (f *fakeRepo) AutoCancelIfRequested(ctx context.Context, tripID uuid.UUID, reason string) (*models.Trip, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accepted != nil {
		return nil, false, nil
	}
	f.canceled = true
	f.cancelMsg = reason
	cp := *f.trip
	cp.Status = types.TripCanceled
	f.trip = &cp
	return &cp, true, nil
}

func (f *fakeRepo) wasAccepted() (uuid.UUID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accepted == nil {
		return uuid.UUID{}, false
	}
	return *f.accepted, true
}

func (f *fakeRepo) wasCanceled() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelMsg, f.canceled
}

type fakeNotifier struct {
	mu          sync.Mutex
	accepted    int
	autoCancels int
}

func (f *fakeNotifier) NotifyTripAccepted(ctx context.Context, trip *models.Trip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted++
	return nil
}

func (f *fakeNotifier) NotifyAutoCanceled(ctx context.Context, trip *models.Trip, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autoCancels++
	return nil
}

func classPtr(c types.VehicleClass) *types.VehicleClass { return &c }

func newHarness(trip *models.Trip) (*Controller, *fakeSpatial, *fakePresence, *fakeRepo, *fakeNotifier, *clock.Fake) {
	spatial := &fakeSpatial{}
	presence := newFakePresence()
	repo := &fakeRepo{trip: trip}
	notifier := &fakeNotifier{}
	fake := clock.NewFake(time.Unix(0, 0))
	ctrl := NewController(spatial, presence, repo, notifier, fake, logger.InitLogger("test", "ERROR"))
	return ctrl, spatial, presence, repo, notifier, fake
}

// waitUntil polls cond with short real sleeps, bounding the wait so a stuck
// actor fails the test instead of hanging it.
func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestDispatch_ClassMatchFirstDriverAccepts(t *testing.T) {
	d1 := uuid.New()
	d2 := uuid.New()
	trip := &models.Trip{ID: uuid.New(), VehicleClass: types.ClassXL, EstimatedFareCents: 12000}

	ctrl, spatial, presence, repo, notifier, _ := newHarness(trip)
	spatial.setClass(types.ClassXL, []models.DriverWithDistance{
		{ID: d1, DistanceKm: 0.35},
	})
	presence.setOnline(d1)
	presence.setOnline(d2)

	ctrl.Dispatch(context.Background(), trip, classPtr(types.ClassXL))
	waitUntil(t, func() bool { return len(presence.offeredDrivers()) >= 1 })

	if err := ctrl.HandleResponse(trip.ID, d1, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitUntil(t, func() bool { _, ok := repo.wasAccepted(); return ok })

	got, ok := repo.wasAccepted()
	if !ok || got != d1 {
		t.Fatalf("expected d1 to be accepted, got %s ok=%v", got, ok)
	}
	if offered := presence.offeredDrivers(); len(offered) != 1 || offered[0] != d1 {
		t.Fatalf("expected only d1 to be offered, got %v", offered)
	}
	waitUntil(t, func() bool { notifier.mu.Lock(); defer notifier.mu.Unlock(); return notifier.accepted == 1 })
}

func TestDispatch_FirstDeclinesSecondAccepts(t *testing.T) {
	d1 := uuid.New()
	d3 := uuid.New()
	trip := &models.Trip{ID: uuid.New(), VehicleClass: types.ClassXL, EstimatedFareCents: 12000}

	ctrl, spatial, presence, repo, _, _ := newHarness(trip)
	spatial.setClass(types.ClassXL, []models.DriverWithDistance{
		{ID: d1, DistanceKm: 0.35},
		{ID: d3, DistanceKm: 0.9},
	})
	presence.setOnline(d1)
	presence.setOnline(d3)

	ctrl.Dispatch(context.Background(), trip, classPtr(types.ClassXL))
	waitUntil(t, func() bool { return len(presence.offeredDrivers()) >= 1 })

	if err := ctrl.HandleResponse(trip.ID, d1, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitUntil(t, func() bool { return len(presence.offeredDrivers()) >= 2 })

	if err := ctrl.HandleResponse(trip.ID, d3, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitUntil(t, func() bool { _, ok := repo.wasAccepted(); return ok })

	got, ok := repo.wasAccepted()
	if !ok || got != d3 {
		t.Fatalf("expected d3 to be accepted after d1's decline, got %s ok=%v", got, ok)
	}
}

func TestDispatch_ClassPollingThenWiden(t *testing.T) {
	d2 := uuid.New()
	trip := &models.Trip{ID: uuid.New(), VehicleClass: "CLASS7", EstimatedFareCents: 12000}

	ctrl, spatial, presence, repo, _, fake := newHarness(trip)
	// no class-7 drivers anywhere; a class-2 driver is reachable only via
	// the wide (all-classes) query used once widening occurs.
	spatial.setAll([]models.DriverWithDistance{{ID: d2, DistanceKm: 1.5}})
	presence.setOnline(d2)

	ctrl.Dispatch(context.Background(), trip, classPtr("CLASS7"))

	// advance past all 12 polling attempts (60s) to trigger the widen.
	for i := 0; i < 13; i++ {
		fake.Advance(ClassPollInterval)
		time.Sleep(2 * time.Millisecond)
	}

	waitUntil(t, func() bool { return len(presence.offeredDrivers()) >= 1 })
	if err := ctrl.HandleResponse(trip.ID, d2, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitUntil(t, func() bool { _, ok := repo.wasAccepted(); return ok })

	got, ok := repo.wasAccepted()
	if !ok || got != d2 {
		t.Fatalf("expected d2 to be accepted after widening, got %s ok=%v", got, ok)
	}
}

func TestDispatch_TotalTimeoutAutoCancels(t *testing.T) {
	trip := &models.Trip{ID: uuid.New(), VehicleClass: types.ClassEconomy, EstimatedFareCents: 12000}

	ctrl, _, _, repo, notifier, fake := newHarness(trip)
	// no candidates at all: narrow query empty with no class ever appearing.
	ctrl.Dispatch(context.Background(), trip, classPtr(types.ClassEconomy))

	fake.Advance(AutoCancelTimeout)
	waitUntil(t, func() bool { _, canceled := repo.wasCanceled(); return canceled })

	reason, canceled := repo.wasCanceled()
	if !canceled {
		t.Fatalf("expected auto-cancel to fire")
	}
	if reason != AutoCancelReason {
		t.Fatalf("unexpected cancel reason: %s", reason)
	}
	waitUntil(t, func() bool { notifier.mu.Lock(); defer notifier.mu.Unlock(); return notifier.autoCancels == 1 })
}
