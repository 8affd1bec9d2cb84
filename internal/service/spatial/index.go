package spatial

import (
	"context"
	"sort"
	"time"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/pkg/clock"
	"github.com/nomadcore/triphail/pkg/uuid"
)

// FreshnessWindow bounds how old a driver's last location report may be and
// still count as a dispatch candidate.
const FreshnessWindow = 5 * time.Minute

// DriverPosition is a driver's last known presence sample, as tracked by the
// presence hub. The spatial index never persists positions itself; it only
// ranks whatever the source currently reports.
type DriverPosition struct {
	DriverID     uuid.UUID
	Location     models.Location
	Status       types.DriverStatus
	VehicleClass types.VehicleClass
	Vehicle      models.Vehicle
	Rating       float64
	UpdatedAt    time.Time
}

// PositionSource supplies the current snapshot of online drivers. In
// production this is the presence hub; in tests, a fixed in-memory slice.
type PositionSource interface {
	OnlineDrivers(ctx context.Context) ([]DriverPosition, error)
}

// Index ranks online drivers by distance from a pickup point for candidate
// discovery.
type Index struct {
	source PositionSource
	clock  clock.Clock
}

func NewIndex(source PositionSource, clk clock.Clock) *Index {
	return &Index{source: source, clock: clk}
}

// FindNearby returns drivers whose vehicle class is in classes, whose status
// is AVAILABLE, and whose distance from pickup is within radiusKm, sorted by
// ascending distance. An empty classes slice matches any class.
func (idx *Index) FindNearby(ctx context.Context, pickup models.Location, classes []types.VehicleClass, radiusKm float64) ([]models.DriverWithDistance, error) {
	drivers, err := idx.source.OnlineDrivers(ctx)
	if err != nil {
		return nil, err
	}

	wantClass := make(map[types.VehicleClass]bool, len(classes))
	for _, c := range classes {
		wantClass[c] = true
	}

	now := idx.clock.Now()

	type ranked struct {
		candidate models.DriverWithDistance
		age       time.Duration
	}
	scored := make([]ranked, 0, len(drivers))
	for _, d := range drivers {
		if d.Status != types.StatusDriverAvailable {
			continue
		}
		if len(wantClass) > 0 && !wantClass[d.VehicleClass] {
			continue
		}
		age := now.Sub(d.UpdatedAt)
		if age > FreshnessWindow {
			continue
		}

		distanceKm := HaversineDistanceKm(pickup.Latitude, pickup.Longitude, d.Location.Latitude, d.Location.Longitude)
		if distanceKm > radiusKm {
			continue
		}

		scored = append(scored, ranked{
			candidate: models.DriverWithDistance{
				ID:     d.DriverID,
				Rating: d.Rating,
				Location: models.LocationMessage{
					Lat: d.Location.Latitude,
					Lng: d.Location.Longitude,
				},
				Vehicle:    d.Vehicle,
				DistanceKm: distanceKm,
			},
			age: age,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].candidate.DistanceKm != scored[j].candidate.DistanceKm {
			return scored[i].candidate.DistanceKm < scored[j].candidate.DistanceKm
		}
		if scored[i].age != scored[j].age {
			return scored[i].age < scored[j].age
		}
		return scored[i].candidate.ID.String() < scored[j].candidate.ID.String()
	})

	candidates := make([]models.DriverWithDistance, len(scored))
	for i, s := range scored {
		candidates[i] = s.candidate
	}
	return candidates, nil
}
