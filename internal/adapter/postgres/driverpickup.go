package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/pkg/uuid"
)

// DriverPickupRepo is the per-offer operational log: one row per trip+driver
// pairing that was accepted, mirroring the trip's driver-visible states
// (accepted/completed/canceled) independent of the trip row itself.
type DriverPickupRepo struct {
	db *pgxpool.Pool
}

func NewDriverPickupRepo(db *pgxpool.Pool) *DriverPickupRepo {
	return &DriverPickupRepo{db: db}
}

// Create opens a pickup row at accept time, snapshotting the trip's
// addresses/coordinates/fare estimate for the driver's operational history.
func (r *DriverPickupRepo) Create(ctx context.Context, trip *models.Trip, driverID uuid.UUID) error {
	q := TxorDB(ctx, r.db)
	_, err := q.Exec(ctx, `
		INSERT INTO driver_pickups (
			id, trip_id, driver_id, status,
			pickup_address, pickup_lat, pickup_lng,
			destination_address, destination_lat, destination_lng,
			fare_estimate_cents, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11, now())`,
		uuid.New(), trip.ID, driverID, types.PickupAccepted,
		trip.Pickup.Address, trip.Pickup.Latitude, trip.Pickup.Longitude,
		trip.Destination.Address, trip.Destination.Latitude, trip.Destination.Longitude,
		trip.EstimatedFareCents,
	)
	return err
}

func (r *DriverPickupRepo) AdvanceToAccepted(ctx context.Context, tripID, driverID uuid.UUID) error {
	q := TxorDB(ctx, r.db)
	_, err := q.Exec(ctx, `
		UPDATE driver_pickups SET status = $1
		WHERE trip_id = $2 AND driver_id = $3`, types.PickupAccepted, tripID, driverID)
	return err
}

func (r *DriverPickupRepo) CloseAsCanceled(ctx context.Context, tripID uuid.UUID) error {
	q := TxorDB(ctx, r.db)
	_, err := q.Exec(ctx, `
		UPDATE driver_pickups SET status = $1
		WHERE trip_id = $2 AND status NOT IN ($3, $4)`,
		types.PickupCanceled, tripID, types.PickupCompleted, types.PickupCanceled)
	return err
}

func (r *DriverPickupRepo) CloseAsCompleted(ctx context.Context, tripID uuid.UUID) error {
	q := TxorDB(ctx, r.db)
	_, err := q.Exec(ctx, `
		UPDATE driver_pickups SET status = $1
		WHERE trip_id = $2`, types.PickupCompleted, tripID)
	return err
}
