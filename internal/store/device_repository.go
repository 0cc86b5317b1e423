package store

import (
	"context"
	"database/sql"

	"tindahan-pos/pkg/poserrors"
)

// GetDeviceID reads the persisted device identifier.
func (s *Store) GetDeviceID(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM device_identity WHERE id = 1`).Scan(&value)
	if err == sql.ErrNoRows {
		return "", poserrors.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// PutDeviceID persists the device identifier if none exists yet and returns
// the winning value. ON CONFLICT DO NOTHING makes racing first writers
// converge: whoever persisted first wins, and everyone reads that value back.
func (s *Store) PutDeviceID(ctx context.Context, value string) (string, error) {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO device_identity (id, value) VALUES (1, ?)
        ON CONFLICT(id) DO NOTHING
    `, value)
	if err != nil {
		return "", err
	}
	return s.GetDeviceID(ctx)
}
