package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/internal/service/fare"
	"github.com/nomadcore/triphail/pkg/uuid"
)

// DriverProfileRepo is the durable driver_profiles table: identity, vehicle,
// rating and running totals. Live presence (online/available/location) is
// owned by the presence hub and only mirrored here on change, per the data
// model's ownership split.
type DriverProfileRepo struct {
	db *pgxpool.Pool
}

func NewDriverProfileRepo(db *pgxpool.Pool) *DriverProfileRepo {
	return &DriverProfileRepo{db: db}
}

func (r *DriverProfileRepo) GetByID(ctx context.Context, driverID uuid.UUID) (*models.DriverProfile, error) {
	q := TxorDB(ctx, r.db)
	var d models.DriverProfile
	var vehicleClass types.VehicleClass
	var make_, model, color, plate string
	var year int
	err := q.QueryRow(ctx, `
		SELECT dp.id, dp.name, dp.created_at, dp.updated_at, dp.license_number,
			dp.rating, dp.total_trips, dp.total_earnings_cents, dp.status, dp.is_verified,
			dp.is_available, dp.current_trip_id,
			COALESCE(v.class, ''), COALESCE(v.make, ''), COALESCE(v.model, ''),
			COALESCE(v.color, ''), COALESCE(v.plate, ''), COALESCE(v.year, 0)
		FROM driver_profiles dp
		LEFT JOIN vehicles v ON v.driver_id = dp.id AND v.is_active
		WHERE dp.id = $1`, driverID,
	).Scan(
		&d.ID, &d.Name, &d.CreatedAt, &d.UpdatedAt, &d.LicenseNumber,
		&d.Rating, &d.TotalTrips, &d.TotalEarningsCents, &d.Status, &d.IsVerified,
		&d.IsAvailable, &d.CurrentTripID,
		&vehicleClass, &make_, &model, &color, &plate, &year,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrDriverLocationNotFound
	}
	if err != nil {
		return nil, err
	}
	d.Vehicle = models.Vehicle{Class: vehicleClass, Make: make_, Model: model, Color: color, Plate: plate, Year: year}
	return &d, nil
}

// GetActiveVehicle returns a driver's active vehicle, used by the presence
// hub on connect to tag the live connection with its class for matching.
func (r *DriverProfileRepo) GetActiveVehicle(ctx context.Context, driverID uuid.UUID) (models.Vehicle, error) {
	q := TxorDB(ctx, r.db)
	var v models.Vehicle
	err := q.QueryRow(ctx, `
		SELECT class, make, model, color, plate, year
		FROM vehicles WHERE driver_id = $1 AND is_active LIMIT 1`, driverID,
	).Scan(&v.Class, &v.Make, &v.Model, &v.Color, &v.Plate, &v.Year)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Vehicle{}, nil
	}
	return v, err
}

func (r *DriverProfileRepo) GetRating(ctx context.Context, driverID uuid.UUID) (float64, error) {
	q := TxorDB(ctx, r.db)
	var rating float64
	err := q.QueryRow(ctx, `SELECT rating FROM driver_profiles WHERE id = $1`, driverID).Scan(&rating)
	return rating, err
}

func (r *DriverProfileRepo) SetOnline(ctx context.Context, driverID uuid.UUID, online bool) error {
	q := TxorDB(ctx, r.db)
	status := types.StatusDriverOffline
	if online {
		status = types.StatusDriverAvailable
	}
	_, err := q.Exec(ctx, `UPDATE driver_profiles SET status = $1, updated_at = now() WHERE id = $2`, status, driverID)
	return err
}

func (r *DriverProfileRepo) SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) error {
	q := TxorDB(ctx, r.db)
	_, err := q.Exec(ctx, `UPDATE driver_profiles SET is_available = $1, updated_at = now() WHERE id = $2`, available, driverID)
	return err
}

func (r *DriverProfileRepo) SetLastKnownLocation(ctx context.Context, driverID uuid.UUID, loc models.Location) error {
	q := TxorDB(ctx, r.db)
	_, err := q.Exec(ctx, `
		UPDATE driver_profiles
		SET last_known_location = point($1, $2), last_location_update = now(), updated_at = now()
		WHERE id = $3`, loc.Longitude, loc.Latitude, driverID)
	return err
}

// ReleaseDriver clears current_trip_id and restores availability once a trip
// ends (canceled or completed), maintaining the DriverProfile invariant that
// current_trip_id is non-null iff the driver has an accepted/in_progress trip.
func (r *DriverProfileRepo) ReleaseDriver(ctx context.Context, driverID uuid.UUID) error {
	q := TxorDB(ctx, r.db)
	_, err := q.Exec(ctx, `
		UPDATE driver_profiles
		SET current_trip_id = NULL, is_available = true, updated_at = now()
		WHERE id = $1 AND status != $2`, driverID, types.StatusDriverOffline)
	return err
}

// RecordCompletion accumulates a driver's lifetime earnings (saturating, see
// fare.AddEarnings) and increments their completed-trip count.
func (r *DriverProfileRepo) RecordCompletion(ctx context.Context, driverID uuid.UUID, earningsDeltaCents int64) error {
	q := TxorDB(ctx, r.db)
	var current int64
	if err := q.QueryRow(ctx, `SELECT total_earnings_cents FROM driver_profiles WHERE id = $1`, driverID).Scan(&current); err != nil {
		return err
	}
	updated := fare.AddEarnings(current, earningsDeltaCents)
	_, err := q.Exec(ctx, `
		UPDATE driver_profiles
		SET total_earnings_cents = $1, total_trips = total_trips + 1, updated_at = now()
		WHERE id = $2`, updated, driverID)
	return err
}
