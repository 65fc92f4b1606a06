package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/desmond009/TollCrypt-sub002/internal/models"
)

// ErrPayloadConsumed — принятый payload hash уже записан, это повторное
// предъявление того же QR.
var ErrPayloadConsumed = errors.New("authorization already consumed")

type TransitRepo struct {
	pool *pgxpool.Pool
}

func NewTransitRepo(pool *pgxpool.Pool) *TransitRepo {
	return &TransitRepo{pool: pool}
}

// Record inserts one transit event. The partial unique index on
// payload_hash (accepted rows only) turns a replay into ErrPayloadConsumed.
func (r *TransitRepo) Record(ctx context.Context, e *models.TransitEvent) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO transit_events (
			booth_id, scan_type, payload_hash, wallet_address, plate_number,
			vehicle_class, verdict, reason, toll_rate, lat, lng
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, scanned_at
	`, e.BoothID, e.ScanType, e.PayloadHash, e.WalletAddress, e.PlateNumber,
		e.VehicleClass, e.Verdict, e.Reason, e.TollRate, e.Lat, e.Lng,
	).Scan(&e.ID, &e.ScannedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrPayloadConsumed
	}
	return err
}

func (r *TransitRepo) HasAccepted(ctx context.Context, payloadHash string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transit_events
			WHERE payload_hash = $1 AND verdict = 'accepted'
		)
	`, payloadHash).Scan(&exists)
	return exists, err
}

func (r *TransitRepo) RecentByBooth(ctx context.Context, boothID string, limit int) ([]models.TransitEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, booth_id, scan_type, payload_hash, wallet_address, plate_number,
		       vehicle_class, verdict, reason, toll_rate, lat, lng, scanned_at
		FROM transit_events WHERE booth_id = $1
		ORDER BY scanned_at DESC LIMIT $2
	`, boothID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransitRows(rows)
}

// ListByWallet is the owner's transit history.
func (r *TransitRepo) ListByWallet(ctx context.Context, walletAddress string, limit int) ([]models.TransitEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, booth_id, scan_type, payload_hash, wallet_address, plate_number,
		       vehicle_class, verdict, reason, toll_rate, lat, lng, scanned_at
		FROM transit_events WHERE lower(wallet_address) = lower($1)
		ORDER BY scanned_at DESC LIMIT $2
	`, walletAddress, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransitRows(rows)
}

func scanTransitRows(rows pgx.Rows) ([]models.TransitEvent, error) {
	var out []models.TransitEvent
	for rows.Next() {
		var e models.TransitEvent
		if err := rows.Scan(
			&e.ID, &e.BoothID, &e.ScanType, &e.PayloadHash, &e.WalletAddress, &e.PlateNumber,
			&e.VehicleClass, &e.Verdict, &e.Reason, &e.TollRate, &e.Lat, &e.Lng, &e.ScannedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
