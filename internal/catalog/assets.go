package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
)

// UpsertAsset records an asset. Rows are keyed by the content MD5, so
// re-recording an existing asset is a no-op apart from refreshing nothing.
func (db *DB) UpsertAsset(a models.AssetRecord) error {
	_, err := db.conn.Exec(`
		INSERT INTO assets (id, asset_type, data_format, size, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, a.ID, a.Type, a.DataFormat, a.Size, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("catalog: upsert asset: %w", err)
	}
	return nil
}

// GetAsset returns an asset record by id, or apperr.ErrNotFound.
func (db *DB) GetAsset(id string) (*models.AssetRecord, error) {
	var a models.AssetRecord
	err := db.conn.QueryRow(`
		SELECT id, asset_type, data_format, size, created_at FROM assets WHERE id = ?
	`, id).Scan(&a.ID, &a.Type, &a.DataFormat, &a.Size, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("catalog: get asset: %w", err)
	}
	return &a, nil
}

// AllAssetIDs returns every recorded asset id.
func (db *DB) AllAssetIDs() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT id FROM assets`)
	if err != nil {
		return nil, fmt.Errorf("catalog: all asset ids: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// DeleteAsset removes an asset record.
func (db *DB) DeleteAsset(id string) error {
	if _, err := db.conn.Exec(`DELETE FROM assets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("catalog: delete asset: %w", err)
	}
	return nil
}
