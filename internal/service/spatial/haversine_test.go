package spatial

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/pkg/clock"
	"github.com/nomadcore/triphail/pkg/uuid"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("invalid time literal %q: %v", s, err)
	}
	return tm
}

func TestHaversineDistanceKm_SamePoint(t *testing.T) {
	d := HaversineDistanceKm(9.0105, 38.7636, 9.0105, 38.7636)
	if d != 0 {
		t.Fatalf("expected 0 distance for identical points, got %f", d)
	}
}

func TestHaversineDistanceKm_KnownRoute(t *testing.T) {
	// Addis Ababa Bole to Piazza, roughly 4km apart.
	d := HaversineDistanceKm(9.0054, 38.7636, 9.0372, 38.7500)
	if d < 3 || d > 6 {
		t.Fatalf("expected distance in a plausible range, got %f", d)
	}
}

func TestEstimatedDurationMinutes_FasterForXL(t *testing.T) {
	economy := EstimatedDurationMinutes(20, types.ClassEconomy)
	xl := EstimatedDurationMinutes(20, types.ClassXL)
	if xl >= economy {
		t.Fatalf("expected XL class to be faster over the same distance: economy=%d xl=%d", economy, xl)
	}
}

type fakeSource struct {
	drivers []DriverPosition
}

func (f fakeSource) OnlineDrivers(ctx context.Context) ([]DriverPosition, error) {
	return f.drivers, nil
}

func TestIndex_FindNearby_FiltersAndSorts(t *testing.T) {
	fake := clock.NewFake(mustTime(t, "2026-01-01T00:00:00Z"))
	pickup := models.Location{Latitude: 9.0105, Longitude: 38.7636}

	near := uuid.New()
	far := uuid.New()
	busy := uuid.New()
	wrongClass := uuid.New()
	stale := uuid.New()

	source := fakeSource{drivers: []DriverPosition{
		{DriverID: far, Location: models.Location{Latitude: 9.3, Longitude: 39.1}, Status: types.StatusDriverAvailable, VehicleClass: types.ClassEconomy, UpdatedAt: fake.Now()},
		{DriverID: near, Location: models.Location{Latitude: 9.011, Longitude: 38.764}, Status: types.StatusDriverAvailable, VehicleClass: types.ClassEconomy, UpdatedAt: fake.Now()},
		{DriverID: busy, Location: models.Location{Latitude: 9.0108, Longitude: 38.7638}, Status: types.StatusDriverBusy, VehicleClass: types.ClassEconomy, UpdatedAt: fake.Now()},
		{DriverID: wrongClass, Location: models.Location{Latitude: 9.0108, Longitude: 38.7638}, Status: types.StatusDriverAvailable, VehicleClass: types.ClassPremium, UpdatedAt: fake.Now()},
		{DriverID: stale, Location: models.Location{Latitude: 9.0106, Longitude: 38.7637}, Status: types.StatusDriverAvailable, VehicleClass: types.ClassEconomy, UpdatedAt: fake.Now().Add(-10 * time.Minute)},
	}}

	idx := NewIndex(source, fake)
	result, err := idx.FindNearby(context.Background(), pickup, []types.VehicleClass{types.ClassEconomy}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected exactly 1 eligible candidate, got %d", len(result))
	}
	if result[0].ID != near {
		t.Fatalf("expected nearest eligible driver to be returned, got %s", result[0].ID)
	}
}

func TestIndex_FindNearby_RadiusExcludesDistantDrivers(t *testing.T) {
	fake := clock.NewFake(mustTime(t, "2026-01-01T00:00:00Z"))
	pickup := models.Location{Latitude: 9.0105, Longitude: 38.7636}
	distant := uuid.New()

	source := fakeSource{drivers: []DriverPosition{
		{DriverID: distant, Location: models.Location{Latitude: 10.5, Longitude: 40.0}, Status: types.StatusDriverAvailable, VehicleClass: types.ClassEconomy, UpdatedAt: fake.Now()},
	}}

	idx := NewIndex(source, fake)
	result, err := idx.FindNearby(context.Background(), pickup, nil, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 0 {
		t.Fatalf("expected distant driver to be excluded by radius, got %d results", len(result))
	}
}

func TestEstimatedArrival_IsAfterNow(t *testing.T) {
	now := mustTime(t, "2026-01-01T00:00:00Z")
	arrival := EstimatedArrival(now, 10, types.ClassEconomy)
	if !arrival.After(now) {
		t.Fatalf("expected arrival to be after now")
	}
	if math.Abs(arrival.Sub(now).Minutes()-20) > 1 {
		t.Fatalf("expected roughly 20 minutes travel time, got %v", arrival.Sub(now))
	}
}
