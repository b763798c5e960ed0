package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
)

// InsertProject stores a new project row.
func (db *DB) InsertProject(p models.Project) error {
	_, err := db.conn.Exec(`
		INSERT INTO projects (id, title, owner_id, original_id, is_copy, is_remix, snapshot_id, checksum, thumbnail, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Title, p.OwnerID, p.OriginalID, boolInt(p.IsCopy), boolInt(p.IsRemix),
		p.SnapshotID, p.Checksum, p.Thumbnail, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: insert project: %w", err)
	}
	return nil
}

// UpdateProject replaces the mutable columns of an existing project.
// Returns apperr.ErrNotFound when the project does not exist.
func (db *DB) UpdateProject(p models.Project) error {
	res, err := db.conn.Exec(`
		UPDATE projects SET title = ?, snapshot_id = ?, checksum = ?, updated_at = ?
		WHERE id = ?
	`, p.Title, p.SnapshotID, p.Checksum, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("catalog: update project: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SetProjectThumbnail records the thumbnail asset id for a project.
func (db *DB) SetProjectThumbnail(projectID, thumbnailID string) error {
	res, err := db.conn.Exec(`
		UPDATE projects SET thumbnail = ?, updated_at = ? WHERE id = ?
	`, thumbnailID, time.Now().UTC(), projectID)
	if err != nil {
		return fmt.Errorf("catalog: set thumbnail: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// GetProject returns a project by id, or apperr.ErrNotFound.
func (db *DB) GetProject(id string) (*models.Project, error) {
	row := db.conn.QueryRow(`
		SELECT id, title, owner_id, original_id, is_copy, is_remix, snapshot_id, checksum, thumbnail, created_at, updated_at
		FROM projects WHERE id = ?
	`, id)
	return scanProject(row)
}

// RecentProject returns the most recently updated project for an owner,
// or apperr.ErrNotFound when the owner has none.
func (db *DB) RecentProject(ownerID string) (*models.Project, error) {
	row := db.conn.QueryRow(`
		SELECT id, title, owner_id, original_id, is_copy, is_remix, snapshot_id, checksum, thumbnail, created_at, updated_at
		FROM projects WHERE owner_id = ?
		ORDER BY updated_at DESC LIMIT 1
	`, ownerID)
	return scanProject(row)
}

// ListProjects returns paginated projects for an owner with the total count.
func (db *DB) ListProjects(ownerID string, limit, offset int) ([]models.Project, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM projects WHERE owner_id = ?`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("catalog: count projects: %w", err)
	}
	rows, err := db.conn.Query(`
		SELECT id, title, owner_id, original_id, is_copy, is_remix, snapshot_id, checksum, thumbnail, created_at, updated_at
		FROM projects WHERE owner_id = ?
		ORDER BY updated_at DESC LIMIT ? OFFSET ?
	`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list projects: %w", err)
	}
	defer rows.Close()

	var out []models.Project
	for rows.Next() {
		p, err := scanProjectRows(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

// DeleteProject removes a project row.
func (db *DB) DeleteProject(id string) error {
	res, err := db.conn.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete project: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row *sql.Row) (*models.Project, error) {
	p, err := scanProjectRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return p, err
}

func scanProjectRows(row rowScanner) (*models.Project, error) {
	var p models.Project
	var isCopy, isRemix int
	err := row.Scan(&p.ID, &p.Title, &p.OwnerID, &p.OriginalID, &isCopy, &isRemix,
		&p.SnapshotID, &p.Checksum, &p.Thumbnail, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("catalog: scan project: %w", err)
	}
	p.IsCopy = isCopy != 0
	p.IsRemix = isRemix != 0
	return &p, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
