package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/opencampus/registrar/pkg/domain"
)

// TrustedDevicesRepository handles trusted-device persistence.
type TrustedDevicesRepository struct {
	db *sql.DB
}

// NewTrustedDevicesRepository creates a new trusted devices repository.
func NewTrustedDevicesRepository(db *sql.DB) *TrustedDevicesRepository {
	return &TrustedDevicesRepository{db: db}
}

// Upsert inserts or refreshes a trusted-device entry. Uniqueness per
// (account, device) is enforced by the store, so concurrent trust calls
// collapse into one row with the later last_used_at.
func (r *TrustedDevicesRepository) Upsert(ctx context.Context, d *domain.TrustedDevice) error {
	query := `
		INSERT INTO trusted_devices (account_id, device_id, display_name, origin_ip, last_used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id, device_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    origin_ip = EXCLUDED.origin_ip,
		    last_used_at = EXCLUDED.last_used_at
	`
	_, err := r.db.ExecContext(ctx, query,
		d.AccountID, d.DeviceID, d.DisplayName, d.OriginIP, d.LastUsedAt, d.CreatedAt,
	)
	return err
}

// Get retrieves one trusted-device entry.
func (r *TrustedDevicesRepository) Get(ctx context.Context, accountID uuid.UUID, deviceID string) (*domain.TrustedDevice, error) {
	query := `
		SELECT account_id, device_id, display_name, origin_ip, last_used_at, created_at
		FROM trusted_devices
		WHERE account_id = $1 AND device_id = $2
	`
	d := &domain.TrustedDevice{}
	err := r.db.QueryRowContext(ctx, query, accountID, deviceID).Scan(
		&d.AccountID, &d.DeviceID, &d.DisplayName, &d.OriginIP, &d.LastUsedAt, &d.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDeviceNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListByAccountID lists trusted devices in insertion order.
func (r *TrustedDevicesRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*domain.TrustedDevice, error) {
	query := `
		SELECT account_id, device_id, display_name, origin_ip, last_used_at, created_at
		FROM trusted_devices
		WHERE account_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*domain.TrustedDevice
	for rows.Next() {
		d := &domain.TrustedDevice{}
		if err := rows.Scan(&d.AccountID, &d.DeviceID, &d.DisplayName, &d.OriginIP, &d.LastUsedAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// TouchLastUsed refreshes the last used timestamp of an entry.
func (r *TrustedDevicesRepository) TouchLastUsed(ctx context.Context, accountID uuid.UUID, deviceID string, at time.Time) error {
	query := `
		UPDATE trusted_devices
		SET last_used_at = $3
		WHERE account_id = $1 AND device_id = $2
	`
	_, err := r.db.ExecContext(ctx, query, accountID, deviceID, at)
	return err
}

// Delete removes one trusted-device entry.
func (r *TrustedDevicesRepository) Delete(ctx context.Context, accountID uuid.UUID, deviceID string) error {
	query := `DELETE FROM trusted_devices WHERE account_id = $1 AND device_id = $2`
	result, err := r.db.ExecContext(ctx, query, accountID, deviceID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrDeviceNotFound
	}
	return nil
}

// DeleteAllByAccountIDTx removes every trusted device for an account
// within a transaction. Used when the second factor is disabled.
func (r *TrustedDevicesRepository) DeleteAllByAccountIDTx(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) error {
	query := `DELETE FROM trusted_devices WHERE account_id = $1`
	_, err := tx.ExecContext(ctx, query, accountID)
	return err
}
