package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/pkg/clock"
	"github.com/nomadcore/triphail/pkg/logger"
	"github.com/nomadcore/triphail/pkg/uuid"
)

type fakeTripRepo struct {
	trip *models.Trip
}

func (f *fakeTripRepo) GetByID(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	if f.trip == nil || f.trip.ID != tripID {
		return nil, types.ErrTripNotFound
	}
	cp := *f.trip
	return &cp, nil
}

func (f *fakeTripRepo) SetInProgress(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error) {
	f.trip.Status = types.TripInProgress
	now := time.Now()
	f.trip.StartedAt = &now
	cp := *f.trip
	return &cp, nil
}

func (f *fakeTripRepo) SetCanceled(ctx context.Context, tripID, actorUserID uuid.UUID, reason string) (*models.Trip, error) {
	f.trip.Status = types.TripCanceled
	f.trip.CancellationReason = &reason
	f.trip.CanceledByUserID = &actorUserID
	cp := *f.trip
	return &cp, nil
}

func (f *fakeTripRepo) SetCompleted(ctx context.Context, tripID, driverID uuid.UUID, fareCents, driverEarningsCents, commissionCents int64, actualDistanceKm, actualDurationMin float64) (*models.Trip, error) {
	f.trip.Status = types.TripCompleted
	f.trip.FinalFareCents = &fareCents
	f.trip.DriverEarningsCents = &driverEarningsCents
	f.trip.CommissionCents = &commissionCents
	f.trip.ActualDistanceKm = &actualDistanceKm
	f.trip.ActualDurationMin = &actualDurationMin
	cp := *f.trip
	return &cp, nil
}

type fakePickupRepo struct {
	advanced bool
	closed   bool
}

func (f *fakePickupRepo) AdvanceToAccepted(ctx context.Context, tripID, driverID uuid.UUID) error {
	f.advanced = true
	return nil
}

func (f *fakePickupRepo) CloseAsCanceled(ctx context.Context, tripID uuid.UUID) error {
	f.closed = true
	return nil
}

type fakeDriverRepo struct {
	released         uuid.UUID
	releasedCalled   bool
	earningsRecorded int64
}

func (f *fakeDriverRepo) GetByID(ctx context.Context, driverID uuid.UUID) (*models.DriverProfile, error) {
	return &models.DriverProfile{ID: driverID}, nil
}

func (f *fakeDriverRepo) ReleaseDriver(ctx context.Context, driverID uuid.UUID) error {
	f.released = driverID
	f.releasedCalled = true
	return nil
}

func (f *fakeDriverRepo) RecordCompletion(ctx context.Context, driverID uuid.UUID, earningsDeltaCents int64) error {
	f.earningsRecorded = earningsDeltaCents
	return nil
}

type fakePublisher struct {
	published []models.TripStatusUpdateMessage
}

func (f *fakePublisher) PublishStatusChanged(ctx context.Context, msg models.TripStatusUpdateMessage) error {
	f.published = append(f.published, msg)
	return nil
}

type fakeCanceler struct {
	canceled uuid.UUID
	called   bool
}

func (f *fakeCanceler) Cancel(tripID uuid.UUID) {
	f.canceled = tripID
	f.called = true
}

func newTestService(trip *models.Trip) (*Service, *fakeTripRepo, *fakePickupRepo, *fakeDriverRepo, *fakePublisher, *fakeCanceler) {
	tr := &fakeTripRepo{trip: trip}
	pr := &fakePickupRepo{}
	dr := &fakeDriverRepo{}
	pub := &fakePublisher{}
	cancel := &fakeCanceler{}
	svc := New(tr, pr, dr, pub, cancel, clock.NewFake(time.Unix(0, 0)), logger.InitLogger("test", "ERROR"))
	return svc, tr, pr, dr, pub, cancel
}

func TestStart_AcceptedToInProgress(t *testing.T) {
	driverID := uuid.New()
	trip := &models.Trip{ID: uuid.New(), Status: types.TripAccepted, DriverID: &driverID}
	svc, _, pickups, _, pub, _ := newTestService(trip)

	got, err := svc.Start(context.Background(), trip.ID, driverID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != types.TripInProgress {
		t.Fatalf("expected in_progress, got %s", got.Status)
	}
	if !pickups.advanced {
		t.Fatalf("expected driver pickup to be advanced to accepted")
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected one status publication, got %d", len(pub.published))
	}
}

func TestStart_IsIdempotentWhenAlreadyInProgress(t *testing.T) {
	driverID := uuid.New()
	trip := &models.Trip{ID: uuid.New(), Status: types.TripInProgress, DriverID: &driverID}
	svc, _, _, _, _, _ := newTestService(trip)

	if _, err := svc.Start(context.Background(), trip.ID, driverID); err != nil {
		t.Fatalf("expected idempotent start to succeed, got %v", err)
	}
}

func TestStart_RejectsWrongDriver(t *testing.T) {
	driverID := uuid.New()
	trip := &models.Trip{ID: uuid.New(), Status: types.TripAccepted, DriverID: &driverID}
	svc, _, _, _, _, _ := newTestService(trip)

	if _, err := svc.Start(context.Background(), trip.ID, uuid.New()); err == nil {
		t.Fatalf("expected driver mismatch error")
	}
}

func TestCancel_RequestedTripTearsDownBroadcast(t *testing.T) {
	trip := &models.Trip{ID: uuid.New(), Status: types.TripRequested}
	svc, _, pickups, _, _, cancel := newTestService(trip)

	if _, err := svc.Cancel(context.Background(), trip.ID, uuid.New(), "changed my mind"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cancel.called {
		t.Fatalf("expected dispatch broadcast to be torn down for a requested trip")
	}
	if !pickups.closed {
		t.Fatalf("expected driver pickup to be closed as canceled")
	}
}

func TestCancel_InProgressTripReleasesDriverWithoutTouchingDispatch(t *testing.T) {
	driverID := uuid.New()
	trip := &models.Trip{ID: uuid.New(), Status: types.TripInProgress, DriverID: &driverID}
	svc, _, _, drivers, _, cancel := newTestService(trip)

	if _, err := svc.Cancel(context.Background(), trip.ID, uuid.New(), "breakdown"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancel.called {
		t.Fatalf("did not expect dispatch teardown for a trip that was never in requested state")
	}
	if !drivers.releasedCalled || drivers.released != driverID {
		t.Fatalf("expected driver %s to be released, got called=%v id=%s", driverID, drivers.releasedCalled, drivers.released)
	}
}

func TestCancel_RejectsTerminalTrip(t *testing.T) {
	trip := &models.Trip{ID: uuid.New(), Status: types.TripCompleted}
	svc, _, _, _, _, _ := newTestService(trip)

	if _, err := svc.Cancel(context.Background(), trip.ID, uuid.New(), "too late"); err == nil {
		t.Fatalf("expected a terminal trip to reject cancellation")
	}
}

func TestComplete_DerivesFareWhenOmitted(t *testing.T) {
	driverID := uuid.New()
	trip := &models.Trip{ID: uuid.New(), Status: types.TripInProgress, DriverID: &driverID}
	svc, _, _, drivers, _, _ := newTestService(trip)

	got, err := svc.Complete(context.Background(), trip.ID, driverID, 7, 22, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.FinalFareCents == nil || *got.FinalFareCents != 19900 {
		t.Fatalf("expected derived fare of 19900, got %v", got.FinalFareCents)
	}
	if drivers.earningsRecorded != *got.DriverEarningsCents {
		t.Fatalf("expected recorded earnings to match driver share, got %d vs %d", drivers.earningsRecorded, *got.DriverEarningsCents)
	}
}

func TestComplete_RejectsWhenNotInProgress(t *testing.T) {
	driverID := uuid.New()
	trip := &models.Trip{ID: uuid.New(), Status: types.TripAccepted, DriverID: &driverID}
	svc, _, _, _, _, _ := newTestService(trip)

	if _, err := svc.Complete(context.Background(), trip.ID, driverID, 7, 22, nil); err == nil {
		t.Fatalf("expected completion to be rejected while trip is still accepted")
	}
}
