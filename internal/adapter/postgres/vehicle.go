package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/pkg/uuid"
)

// VehicleRepo is the durable vehicles table. A driver has at most one active
// vehicle, which is what class-based dispatch matching derives from.
type VehicleRepo struct {
	db *pgxpool.Pool
}

func NewVehicleRepo(db *pgxpool.Pool) *VehicleRepo {
	return &VehicleRepo{db: db}
}

// SetActive deactivates any existing active vehicle for the driver and
// activates vehicleID, keeping the at-most-one-active invariant.
func (r *VehicleRepo) SetActive(ctx context.Context, driverID, vehicleID uuid.UUID) error {
	q := TxorDB(ctx, r.db)
	_, err := q.Exec(ctx, `UPDATE vehicles SET is_active = false WHERE driver_id = $1`, driverID)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `UPDATE vehicles SET is_active = true WHERE id = $1 AND driver_id = $2`, vehicleID, driverID)
	return err
}

func (r *VehicleRepo) Create(ctx context.Context, driverID uuid.UUID, v models.Vehicle) (uuid.UUID, error) {
	q := TxorDB(ctx, r.db)
	id := uuid.New()
	_, err := q.Exec(ctx, `
		INSERT INTO vehicles (id, driver_id, class, make, model, color, plate, year, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8, false)`,
		id, driverID, v.Class, v.Make, v.Model, v.Color, v.Plate, v.Year,
	)
	return id, err
}

func (r *VehicleRepo) ListForDriver(ctx context.Context, driverID uuid.UUID) ([]models.Vehicle, error) {
	q := TxorDB(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT class, make, model, color, plate, year
		FROM vehicles WHERE driver_id = $1 ORDER BY year DESC`, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		if err := rows.Scan(&v.Class, &v.Make, &v.Model, &v.Color, &v.Plate, &v.Year); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
