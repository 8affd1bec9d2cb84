package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/pkg/trm"
	"github.com/nomadcore/triphail/pkg/uuid"
)

// TripRepo is the durable trips table, backing both the dispatch controller's
// TryAccept race resolution and the lifecycle service's state transitions.
type TripRepo struct {
	db *pgxpool.Pool
	tx trm.TxManager
}

func NewTripRepo(db *pgxpool.Pool, tx trm.TxManager) *TripRepo {
	return &TripRepo{db: db, tx: tx}
}

func (r *TripRepo) Create(ctx context.Context, trip *models.Trip) error {
	q := TxorDB(ctx, r.db)
	_, err := q.Exec(ctx, `
		INSERT INTO trips (
			id, trip_number, status, dispatcher_id, vehicle_class, passenger_id, passenger_phone, passenger_display_name, trip_kind, payment_method, payment_status,
			pickup_lat, pickup_lng, pickup_address,
			destination_lat, destination_lng, destination_address,
			delivery_recipient, delivery_instructions, delivery_package,
			estimated_fare_cents, estimated_duration_min, estimated_distance_km,
			requested_at, is_new_passenger, driver_id, started_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)`,
		trip.ID, trip.TripNumber, trip.Status, trip.DispatcherID, trip.VehicleClass,
		trip.PassengerID, trip.PassengerPhone, trip.PassengerDisplayName, trip.Kind, trip.PaymentMethod, trip.PaymentStatus,
		trip.Pickup.Latitude, trip.Pickup.Longitude, trip.Pickup.Address,
		trip.Destination.Latitude, trip.Destination.Longitude, trip.Destination.Address,
		trip.DeliveryRecipient, trip.DeliveryInstructions, trip.DeliveryPackage,
		trip.EstimatedFareCents, trip.EstimatedDurationMin, trip.EstimatedDistanceKm,
		trip.CreatedAt, trip.IsNewPassenger, trip.DriverID, trip.StartedAt,
	)
	return err
}

func (r *TripRepo) GetByID(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	q := TxorDB(ctx, r.db)
	row := q.QueryRow(ctx, `
		SELECT id, trip_number, status, dispatcher_id, vehicle_class, passenger_id, passenger_phone, passenger_display_name, trip_kind, payment_method, payment_status,
			pickup_lat, pickup_lng, pickup_address,
			destination_lat, destination_lng, destination_address,
			delivery_recipient, delivery_instructions, delivery_package,
			driver_id, estimated_fare_cents, estimated_duration_min, estimated_distance_km,
			final_fare_cents, driver_earnings_cents, commission_cents,
			actual_distance_km, actual_duration_min,
			cancellation_reason, canceled_by_user_id,
			requested_at, matched_at, started_at, completed_at, canceled_at, is_new_passenger
		FROM trips WHERE id = $1`, tripID)
	return scanTrip(row)
}

// TryAccept atomically assigns driverID to tripID iff the trip is still
// requested and unassigned, resolving the accept-race: the first caller to
// land this update wins, everyone else gets ErrTripNotFound back (the
// conditional update affected no row because another driver already won).
func (r *TripRepo) TryAccept(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error) {
	var trip *models.Trip
	err := r.tx.Do(ctx, func(ctx context.Context) error {
		q := TxorDB(ctx, r.db)
		row := q.QueryRow(ctx, `
			UPDATE trips SET status = $1, driver_id = $2, matched_at = now()
			WHERE id = $3 AND status = $4 AND driver_id IS NULL
			RETURNING id, trip_number, status, dispatcher_id, vehicle_class, passenger_id, passenger_phone, passenger_display_name, trip_kind, payment_method, payment_status,
				pickup_lat, pickup_lng, pickup_address,
				destination_lat, destination_lng, destination_address,
			delivery_recipient, delivery_instructions, delivery_package,
				driver_id, estimated_fare_cents, estimated_duration_min, estimated_distance_km,
				final_fare_cents, driver_earnings_cents, commission_cents,
				actual_distance_km, actual_duration_min,
				cancellation_reason, canceled_by_user_id,
				requested_at, matched_at, started_at, completed_at, canceled_at, is_new_passenger`,
			types.TripAccepted, driverID, tripID, types.TripRequested,
		)
		var err error
		trip, err = scanTrip(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return types.ErrTripNotFound
		}
		if err != nil {
			return err
		}
		_, err = q.Exec(ctx, `
			UPDATE driver_profiles SET current_trip_id = $1, is_available = false, updated_at = now()
			WHERE id = $2`, tripID, driverID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return trip, nil
}

// RecordOffer appends an operational-log row for one sequential offer
// attempt, carrying the fare estimate quoted to the driver at offer time.
func (r *TripRepo) RecordOffer(ctx context.Context, tripID, driverID uuid.UUID, fareEstimateCents int64) error {
	q := TxorDB(ctx, r.db)
	_, err := q.Exec(ctx, `
		INSERT INTO trip_offers (trip_id, driver_id, status, fare_estimate_cents, offered_at)
		VALUES ($1, $2, $3, $4, now())`,
		tripID, driverID, types.OfferPending, fareEstimateCents,
	)
	return err
}

// AutoCancelIfRequested cancels the trip only if it is still requested (i.e.
// no driver accepted in the window between the controller's decision and
// this write landing), avoiding a race against a just-accepted trip.
func (r *TripRepo) AutoCancelIfRequested(ctx context.Context, tripID uuid.UUID, reason string) (*models.Trip, bool, error) {
	q := TxorDB(ctx, r.db)
	row := q.QueryRow(ctx, `
		UPDATE trips SET status = $1, cancellation_reason = $2, canceled_at = now()
		WHERE id = $3 AND status = $4
		RETURNING id, trip_number, status, dispatcher_id, vehicle_class, passenger_id, passenger_phone, passenger_display_name, trip_kind, payment_method, payment_status,
			pickup_lat, pickup_lng, pickup_address,
			destination_lat, destination_lng, destination_address,
			delivery_recipient, delivery_instructions, delivery_package,
			driver_id, estimated_fare_cents, estimated_duration_min, estimated_distance_km,
			final_fare_cents, driver_earnings_cents, commission_cents,
			actual_distance_km, actual_duration_min,
			cancellation_reason, canceled_by_user_id,
			requested_at, matched_at, started_at, completed_at, canceled_at, is_new_passenger`,
		types.TripCanceled, reason, tripID, types.TripRequested,
	)
	trip, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return trip, true, nil
}

func (r *TripRepo) SetInProgress(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error) {
	q := TxorDB(ctx, r.db)
	row := q.QueryRow(ctx, `
		UPDATE trips SET status = $1, started_at = COALESCE(started_at, now())
		WHERE id = $2 AND driver_id = $3 AND status IN ($1, $4)
		RETURNING id, trip_number, status, dispatcher_id, vehicle_class, passenger_id, passenger_phone, passenger_display_name, trip_kind, payment_method, payment_status,
			pickup_lat, pickup_lng, pickup_address,
			destination_lat, destination_lng, destination_address,
			delivery_recipient, delivery_instructions, delivery_package,
			driver_id, estimated_fare_cents, estimated_duration_min, estimated_distance_km,
			final_fare_cents, driver_earnings_cents, commission_cents,
			actual_distance_km, actual_duration_min,
			cancellation_reason, canceled_by_user_id,
			requested_at, matched_at, started_at, completed_at, canceled_at, is_new_passenger`,
		types.TripInProgress, tripID, driverID, types.TripAccepted,
	)
	return scanTrip(row)
}

func (r *TripRepo) SetCanceled(ctx context.Context, tripID, actorUserID uuid.UUID, reason string) (*models.Trip, error) {
	q := TxorDB(ctx, r.db)
	row := q.QueryRow(ctx, `
		UPDATE trips SET status = $1, cancellation_reason = $2, canceled_by_user_id = $3, canceled_at = now()
		WHERE id = $4 AND status IN ($5, $6, $7)
		RETURNING id, trip_number, status, dispatcher_id, vehicle_class, passenger_id, passenger_phone, passenger_display_name, trip_kind, payment_method, payment_status,
			pickup_lat, pickup_lng, pickup_address,
			destination_lat, destination_lng, destination_address,
			delivery_recipient, delivery_instructions, delivery_package,
			driver_id, estimated_fare_cents, estimated_duration_min, estimated_distance_km,
			final_fare_cents, driver_earnings_cents, commission_cents,
			actual_distance_km, actual_duration_min,
			cancellation_reason, canceled_by_user_id,
			requested_at, matched_at, started_at, completed_at, canceled_at, is_new_passenger`,
		types.TripCanceled, reason, actorUserID, tripID,
		types.TripRequested, types.TripAccepted, types.TripInProgress,
	)
	return scanTrip(row)
}

func (r *TripRepo) SetCompleted(ctx context.Context, tripID, driverID uuid.UUID, fareCents, driverEarningsCents, commissionCents int64, actualDistanceKm, actualDurationMin float64) (*models.Trip, error) {
	q := TxorDB(ctx, r.db)
	row := q.QueryRow(ctx, `
		UPDATE trips SET status = $1, final_fare_cents = $2, driver_earnings_cents = $3,
			commission_cents = $4, actual_distance_km = $5, actual_duration_min = $6, completed_at = now(),
			payment_status = $10
		WHERE id = $7 AND driver_id = $8 AND status = $9
		RETURNING id, trip_number, status, dispatcher_id, vehicle_class, passenger_id, passenger_phone, passenger_display_name, trip_kind, payment_method, payment_status,
			pickup_lat, pickup_lng, pickup_address,
			destination_lat, destination_lng, destination_address,
			delivery_recipient, delivery_instructions, delivery_package,
			driver_id, estimated_fare_cents, estimated_duration_min, estimated_distance_km,
			final_fare_cents, driver_earnings_cents, commission_cents,
			actual_distance_km, actual_duration_min,
			cancellation_reason, canceled_by_user_id,
			requested_at, matched_at, started_at, completed_at, canceled_at, is_new_passenger`,
		types.TripCompleted, fareCents, driverEarningsCents, commissionCents,
		actualDistanceKm, actualDurationMin, tripID, driverID,
		types.TripInProgress, types.PaymentCompleted,
	)
	return scanTrip(row)
}

// StaleRequested returns requested trips older than cutoff, for the
// boot-time reconciliation pass that auto-cancels trips that were still
// waiting on a driver when the process last stopped.
func (r *TripRepo) StaleRequested(ctx context.Context, cutoff time.Time) ([]models.Trip, error) {
	q := TxorDB(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT id, trip_number, status, dispatcher_id, vehicle_class, passenger_id, passenger_phone, passenger_display_name, trip_kind, payment_method, payment_status,
			pickup_lat, pickup_lng, pickup_address,
			destination_lat, destination_lng, destination_address,
			delivery_recipient, delivery_instructions, delivery_package,
			driver_id, estimated_fare_cents, estimated_duration_min, estimated_distance_km,
			final_fare_cents, driver_earnings_cents, commission_cents,
			actual_distance_km, actual_duration_min,
			cancellation_reason, canceled_by_user_id,
			requested_at, matched_at, started_at, completed_at, canceled_at, is_new_passenger
		FROM trips WHERE status = $1 AND requested_at < $2`,
		types.TripRequested, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Trip
	for rows.Next() {
		trip, err := scanTripRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *trip)
	}
	return out, rows.Err()
}

// ActiveForDriver returns the driver's currently-assigned non-terminal trip,
// or nil if they have none.
func (r *TripRepo) ActiveForDriver(ctx context.Context, driverID uuid.UUID) (*models.Trip, error) {
	q := TxorDB(ctx, r.db)
	row := q.QueryRow(ctx, `
		SELECT id, trip_number, status, dispatcher_id, vehicle_class, passenger_id, passenger_phone, passenger_display_name, trip_kind, payment_method, payment_status,
			pickup_lat, pickup_lng, pickup_address,
			destination_lat, destination_lng, destination_address,
			delivery_recipient, delivery_instructions, delivery_package,
			driver_id, estimated_fare_cents, estimated_duration_min, estimated_distance_km,
			final_fare_cents, driver_earnings_cents, commission_cents,
			actual_distance_km, actual_duration_min,
			cancellation_reason, canceled_by_user_id,
			requested_at, matched_at, started_at, completed_at, canceled_at, is_new_passenger
		FROM trips WHERE driver_id = $1 AND status IN ($2, $3)
		ORDER BY requested_at DESC LIMIT 1`,
		driverID, types.TripAccepted, types.TripInProgress,
	)
	trip, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return trip, err
}

type HistoryFilter struct {
	DriverID  uuid.UUID
	Status    *types.TripStatus
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

func (r *TripRepo) History(ctx context.Context, f HistoryFilter) ([]models.Trip, int, error) {
	q := TxorDB(ctx, r.db)

	where := "driver_id = $1"
	args := []any{f.DriverID}
	if f.Status != nil {
		args = append(args, *f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.StartDate != nil {
		args = append(args, *f.StartDate)
		where += fmt.Sprintf(" AND requested_at >= $%d", len(args))
	}
	if f.EndDate != nil {
		args = append(args, *f.EndDate)
		where += fmt.Sprintf(" AND requested_at <= $%d", len(args))
	}

	var total int
	if err := q.QueryRow(ctx, "SELECT count(*) FROM trips WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)
	rows, err := q.Query(ctx, fmt.Sprintf(`
		SELECT id, trip_number, status, dispatcher_id, vehicle_class, passenger_id, passenger_phone, passenger_display_name, trip_kind, payment_method, payment_status,
			pickup_lat, pickup_lng, pickup_address,
			destination_lat, destination_lng, destination_address,
			delivery_recipient, delivery_instructions, delivery_package,
			driver_id, estimated_fare_cents, estimated_duration_min, estimated_distance_km,
			final_fare_cents, driver_earnings_cents, commission_cents,
			actual_distance_km, actual_duration_min,
			cancellation_reason, canceled_by_user_id,
			requested_at, matched_at, started_at, completed_at, canceled_at, is_new_passenger
		FROM trips WHERE %s ORDER BY requested_at DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Trip
	for rows.Next() {
		trip, err := scanTripRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *trip)
	}
	return out, total, rows.Err()
}

// Statistics aggregates trip counts, earnings and distance/duration totals
// for a driver over a window, used by GET /trips/statistics.
type Statistics struct {
	CompletedTrips     int
	CanceledTrips      int
	TotalEarningsCents int64
	TotalDistanceKm    float64
	TotalDurationMin   float64
}

func (r *TripRepo) Statistics(ctx context.Context, driverID uuid.UUID, start, end time.Time) (Statistics, error) {
	q := TxorDB(ctx, r.db)
	var s Statistics
	err := q.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE status = $2),
			count(*) FILTER (WHERE status = $3),
			COALESCE(sum(driver_earnings_cents) FILTER (WHERE status = $2), 0),
			COALESCE(sum(actual_distance_km) FILTER (WHERE status = $2), 0),
			COALESCE(sum(actual_duration_min) FILTER (WHERE status = $2), 0)
		FROM trips
		WHERE driver_id = $1 AND requested_at BETWEEN $4 AND $5`,
		driverID, types.TripCompleted, types.TripCanceled, start, end,
	).Scan(&s.CompletedTrips, &s.CanceledTrips, &s.TotalEarningsCents, &s.TotalDistanceKm, &s.TotalDurationMin)
	return s, err
}

func scanTrip(row pgx.Row) (*models.Trip, error) {
	return scanTripRow(row)
}

// rowScanner is satisfied by both pgx.Row (QueryRow) and pgx.Rows (Query),
// letting single- and multi-row callers share one scan routine.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTripRow(row rowScanner) (*models.Trip, error) {
	var t models.Trip
	var pickupLat, pickupLng, destLat, destLng float64
	var pickupAddr, destAddr string

	err := row.Scan(
		&t.ID, &t.TripNumber, &t.Status, &t.DispatcherID, &t.VehicleClass,
		&t.PassengerID, &t.PassengerPhone, &t.PassengerDisplayName, &t.Kind, &t.PaymentMethod, &t.PaymentStatus,
		&pickupLat, &pickupLng, &pickupAddr,
		&destLat, &destLng, &destAddr,
		&t.DeliveryRecipient, &t.DeliveryInstructions, &t.DeliveryPackage,
		&t.DriverID, &t.EstimatedFareCents, &t.EstimatedDurationMin, &t.EstimatedDistanceKm,
		&t.FinalFareCents, &t.DriverEarningsCents, &t.CommissionCents,
		&t.ActualDistanceKm, &t.ActualDurationMin,
		&t.CancellationReason, &t.CanceledByUserID,
		&t.CreatedAt, &t.MatchedAt, &t.StartedAt, &t.CompletedAt, &t.CanceledAt, &t.IsNewPassenger,
	)
	if err != nil {
		return nil, err
	}
	t.Pickup = models.Location{Latitude: pickupLat, Longitude: pickupLng, Address: pickupAddr}
	t.Destination = models.Location{Latitude: destLat, Longitude: destLng, Address: destAddr}
	return &t, nil
}
