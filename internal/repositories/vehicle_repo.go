package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/desmond009/TollCrypt-sub002/internal/models"
)

type VehicleRepo struct {
	pool *pgxpool.Pool
}

func NewVehicleRepo(pool *pgxpool.Pool) *VehicleRepo {
	return &VehicleRepo{pool: pool}
}

// Create registers a vehicle. Повторная регистрация того же номера тем же
// владельцем возвращает существующую строку.
func (r *VehicleRepo) Create(ctx context.Context, v *models.Vehicle) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO vehicles (owner_user_id, plate_number, vehicle_type, vehicle_class)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_user_id, plate_number) DO UPDATE SET
			vehicle_type = EXCLUDED.vehicle_type,
			vehicle_class = EXCLUDED.vehicle_class
		RETURNING id, created_at
	`, v.OwnerUserID, v.PlateNumber, v.VehicleType, v.VehicleClass).Scan(&v.ID, &v.CreatedAt)
}

func (r *VehicleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	var v models.Vehicle
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_user_id, plate_number, vehicle_type, vehicle_class, created_at
		FROM vehicles WHERE id = $1
	`, id).Scan(&v.ID, &v.OwnerUserID, &v.PlateNumber, &v.VehicleType, &v.VehicleClass, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VehicleRepo) GetByPlate(ctx context.Context, plateNumber string) (*models.Vehicle, error) {
	var v models.Vehicle
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_user_id, plate_number, vehicle_type, vehicle_class, created_at
		FROM vehicles WHERE upper(plate_number) = upper($1)
		ORDER BY created_at DESC LIMIT 1
	`, plateNumber).Scan(&v.ID, &v.OwnerUserID, &v.PlateNumber, &v.VehicleType, &v.VehicleClass, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VehicleRepo) ListByOwner(ctx context.Context, ownerUserID uuid.UUID) ([]models.Vehicle, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_user_id, plate_number, vehicle_type, vehicle_class, created_at
		FROM vehicles WHERE owner_user_id = $1
		ORDER BY created_at DESC
	`, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		if err := rows.Scan(&v.ID, &v.OwnerUserID, &v.PlateNumber, &v.VehicleType, &v.VehicleClass, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Delete removes a vehicle, but only for its owner.
func (r *VehicleRepo) Delete(ctx context.Context, id, ownerUserID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM vehicles WHERE id = $1 AND owner_user_id = $2
	`, id, ownerUserID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
