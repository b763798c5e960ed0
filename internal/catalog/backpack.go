package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
)

// InsertBackpackItem stores a new backpack item row.
func (db *DB) InsertBackpackItem(item models.BackpackItem) error {
	_, err := db.conn.Exec(`
		INSERT INTO backpack_items (id, type, name, mime, body, thumbnail, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.Type, item.Name, item.Mime, item.Body, item.Thumbnail,
		item.OwnerID, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: insert backpack item: %w", err)
	}
	return nil
}

// GetBackpackItem returns an item owned by ownerID, or apperr.ErrNotFound.
func (db *DB) GetBackpackItem(id, ownerID string) (*models.BackpackItem, error) {
	var item models.BackpackItem
	err := db.conn.QueryRow(`
		SELECT id, type, name, mime, body, thumbnail, owner_id, created_at, updated_at
		FROM backpack_items WHERE id = ? AND owner_id = ?
	`, id, ownerID).Scan(&item.ID, &item.Type, &item.Name, &item.Mime, &item.Body,
		&item.Thumbnail, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("catalog: get backpack item: %w", err)
	}
	return &item, nil
}

// ListBackpackItems returns an owner's items newest-first with the total count.
func (db *DB) ListBackpackItems(ownerID string, limit, offset int) ([]models.BackpackItem, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM backpack_items WHERE owner_id = ?`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("catalog: count backpack items: %w", err)
	}
	rows, err := db.conn.Query(`
		SELECT id, type, name, mime, body, thumbnail, owner_id, created_at, updated_at
		FROM backpack_items WHERE owner_id = ?
		ORDER BY updated_at DESC LIMIT ? OFFSET ?
	`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list backpack items: %w", err)
	}
	defer rows.Close()

	var out []models.BackpackItem
	for rows.Next() {
		var item models.BackpackItem
		if err := rows.Scan(&item.ID, &item.Type, &item.Name, &item.Mime, &item.Body,
			&item.Thumbnail, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("catalog: scan backpack item: %w", err)
		}
		out = append(out, item)
	}
	return out, total, rows.Err()
}

// DeleteBackpackItem removes an item owned by ownerID.
// Returns apperr.ErrNotFound when no matching row exists.
func (db *DB) DeleteBackpackItem(id, ownerID string) error {
	res, err := db.conn.Exec(`DELETE FROM backpack_items WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("catalog: delete backpack item: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
