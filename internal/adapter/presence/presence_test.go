package presence

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

type fakeDriverRepo struct {
	vehicle      models.Vehicle
	rating       float64
	online       map[uuid.UUID]bool
	available    map[uuid.UUID]bool
	lastLocation map[uuid.UUID]models.Location
}

func newFakeDriverRepo() *fakeDriverRepo {
	return &fakeDriverRepo{
		online:       make(map[uuid.UUID]bool),
		available:    make(map[uuid.UUID]bool),
		lastLocation: make(map[uuid.UUID]models.Location),
	}
}

func (f *fakeDriverRepo) GetActiveVehicle(ctx context.Context, driverID uuid.UUID) (models.Vehicle, error) {
	return f.vehicle, nil
}
func (f *fakeDriverRepo) GetRating(ctx context.Context, driverID uuid.UUID) (float64, error) {
	return f.rating, nil
}
func (f *fakeDriverRepo) SetOnline(ctx context.Context, driverID uuid.UUID, online bool) error {
	f.online[driverID] = online
	return nil
}
func (f *fakeDriverRepo) SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) error {
	f.available[driverID] = available
	return nil
}
func (f *fakeDriverRepo) SetLastKnownLocation(ctx context.Context, driverID uuid.UUID, loc models.Location) error {
	f.lastLocation[driverID] = loc
	return nil
}

func newTestHub() (*Hub, *fakeDriverRepo) {
	repo := newFakeDriverRepo()
	repo.vehicle = models.Vehicle{Class: types.ClassEconomy, Plate: "AA-12345"}
	repo.rating = 4.8
	log := logger.InitLogger("test", "ERROR")
	h := NewHub(repo, clock.NewFake(time.Unix(0, 0)), log)
	return h, repo
}

// seed registers driver state directly, bypassing the websocket connection
// path so presence bookkeeping can be tested without a live socket.
func (h *Hub) seed(driverID uuid.UUID, st *driverState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state[driverID] = st
}

func TestHub_HandleAvailabilityChange_FlipsStatusAndPersists(t *testing.T) {
	h, repo := newTestHub()
	driverID := uuid.New()
	h.seed(driverID, &driverState{status: types.StatusDriverOffline})

	loc := &models.Location{Latitude: 9.01, Longitude: 38.76}
	h.HandleAvailabilityChange(context.Background(), driverID, true, loc)

	drivers, err := h.OnlineDrivers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drivers) != 1 || drivers[0].Status != types.StatusDriverAvailable {
		t.Fatalf("expected driver to be marked available, got %+v", drivers)
	}
	if !repo.available[driverID] {
		t.Fatalf("expected availability to be persisted")
	}
	if repo.lastLocation[driverID] != *loc {
		t.Fatalf("expected inline location to be persisted, got %+v", repo.lastLocation[driverID])
	}
}

func TestHub_HandleLocationUpdate_UpdatesTimestamp(t *testing.T) {
	h, repo := newTestHub()
	driverID := uuid.New()
	h.seed(driverID, &driverState{status: types.StatusDriverAvailable})

	loc := models.Location{Latitude: 9.02, Longitude: 38.75}
	h.HandleLocationUpdate(context.Background(), driverID, loc)

	if repo.lastLocation[driverID] != loc {
		t.Fatalf("expected location to be persisted")
	}
	drivers, _ := h.OnlineDrivers(context.Background())
	if drivers[0].Location != loc {
		t.Fatalf("expected in-memory state to reflect new location")
	}
}

func TestHub_MarkBusyThenAvailable(t *testing.T) {
	h, _ := newTestHub()
	driverID := uuid.New()
	h.seed(driverID, &driverState{status: types.StatusDriverAvailable})

	h.MarkBusy(driverID)
	drivers, _ := h.OnlineDrivers(context.Background())
	if drivers[0].Status != types.StatusDriverBusy {
		t.Fatalf("expected driver to be marked busy")
	}

	h.MarkAvailable(driverID)
	drivers, _ = h.OnlineDrivers(context.Background())
	if drivers[0].Status != types.StatusDriverAvailable {
		t.Fatalf("expected driver to be marked available again")
	}
}

func TestHub_IsOnline_ReflectsSeededState(t *testing.T) {
	h, _ := newTestHub()
	driverID := uuid.New()
	if h.IsOnline(driverID) {
		t.Fatalf("expected unknown driver to be offline")
	}
	h.seed(driverID, &driverState{status: types.StatusDriverOffline})
	if !h.IsOnline(driverID) {
		t.Fatalf("expected seeded driver to be reported online")
	}
}

func TestToDualCasedOffer_DuplicatesIdentifyingFields(t *testing.T) {
	tripID := uuid.New()
	offerID := uuid.New()
	offer := models.TripOffer{
		ID:                 offerID,
		MsgType:            "trip_offer",
		TripID:             tripID,
		EstimatedFareCents: 19900,
		DistanceToPickupKm: 1.2,
	}

	payload := toDualCasedOffer(offer)
	if payload["tripId"] != tripID.String() || payload["trip_id"] != tripID.String() {
		t.Fatalf("expected trip id to be present under both cases")
	}
	if payload["offerId"] != offerID.String() || payload["offer_id"] != offerID.String() {
		t.Fatalf("expected offer id to be present under both cases")
	}
	if payload["estimatedFareCents"] != int64(19900) || payload["estimated_fare_cents"] != int64(19900) {
		t.Fatalf("expected fare to be present under both cases")
	}
}
