package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
)

// UpsertAssignment inserts or replaces an assignment and its user/group
// targets within a transaction.
func (db *DB) UpsertAssignment(a models.Assignment) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var due any
	if !a.DueAt.IsZero() {
		due = a.DueAt
	}
	_, err = tx.Exec(`
		INSERT INTO assignments (id, name, description, creator_id, due_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name        = excluded.name,
			description = excluded.description,
			due_at      = excluded.due_at,
			updated_at  = excluded.updated_at
	`, a.ID, a.Name, a.Description, a.CreatorID, due, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: upsert assignment: %w", err)
	}

	// Replace targets: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM assignment_targets WHERE assignment_id = ?`, a.ID)
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO assignment_targets (assignment_id, kind, target_id) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("catalog: prepare target insert: %w", err)
	}
	defer stmt.Close()
	for _, u := range a.Users {
		if _, err := stmt.Exec(a.ID, "user", u); err != nil {
			return fmt.Errorf("catalog: insert user target: %w", err)
		}
	}
	for _, g := range a.Groups {
		if _, err := stmt.Exec(a.ID, "group", g); err != nil {
			return fmt.Errorf("catalog: insert group target: %w", err)
		}
	}

	return tx.Commit()
}

// GetAssignment returns an assignment with its targets, or apperr.ErrNotFound.
func (db *DB) GetAssignment(id string) (*models.Assignment, error) {
	var a models.Assignment
	var due sql.NullTime
	err := db.conn.QueryRow(`
		SELECT id, name, description, creator_id, due_at, created_at, updated_at
		FROM assignments WHERE id = ?
	`, id).Scan(&a.ID, &a.Name, &a.Description, &a.CreatorID, &due, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("catalog: get assignment: %w", err)
	}
	if due.Valid {
		a.DueAt = due.Time
	}
	if err := db.loadTargets(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAssignments returns all assignments newest-first with targets attached.
func (db *DB) ListAssignments(creatorID string) ([]models.Assignment, error) {
	query := `SELECT id, name, description, creator_id, due_at, created_at, updated_at FROM assignments`
	args := []any{}
	if creatorID != "" {
		query += ` WHERE creator_id = ?`
		args = append(args, creatorID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list assignments: %w", err)
	}
	defer rows.Close()

	var out []models.Assignment
	for rows.Next() {
		var a models.Assignment
		var due sql.NullTime
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.CreatorID, &due, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan assignment: %w", err)
		}
		if due.Valid {
			a.DueAt = due.Time
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := db.loadTargets(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DeleteAssignment removes an assignment, its targets, and its submissions.
func (db *DB) DeleteAssignment(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`DELETE FROM assignments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete assignment: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.ErrNotFound
	}
	_, _ = tx.Exec(`DELETE FROM assignment_targets WHERE assignment_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM submissions WHERE assignment_id = ?`, id)

	return tx.Commit()
}

func (db *DB) loadTargets(a *models.Assignment) error {
	rows, err := db.conn.Query(`SELECT kind, target_id FROM assignment_targets WHERE assignment_id = ?`, a.ID)
	if err != nil {
		return fmt.Errorf("catalog: load targets: %w", err)
	}
	defer rows.Close()
	a.Users = []string{}
	a.Groups = []string{}
	for rows.Next() {
		var kind, target string
		if err := rows.Scan(&kind, &target); err != nil {
			return err
		}
		switch kind {
		case "user":
			a.Users = append(a.Users, target)
		case "group":
			a.Groups = append(a.Groups, target)
		}
	}
	return rows.Err()
}

// InsertSubmission records a submission. Returns apperr.ErrAlreadyExists
// when the project is already submitted to the assignment.
func (db *DB) InsertSubmission(s models.Submission) error {
	_, err := db.conn.Exec(`
		INSERT INTO submissions (id, assignment_id, project_id, owner_id, frozen, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, s.AssignmentID, s.ProjectID, s.OwnerID, boolInt(s.Frozen), s.SubmittedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("catalog: insert submission: %w", err)
	}
	return nil
}

// GetSubmission returns a submission by id, or apperr.ErrNotFound.
func (db *DB) GetSubmission(id string) (*models.Submission, error) {
	var s models.Submission
	var frozen int
	err := db.conn.QueryRow(`
		SELECT id, assignment_id, project_id, owner_id, frozen, submitted_at
		FROM submissions WHERE id = ?
	`, id).Scan(&s.ID, &s.AssignmentID, &s.ProjectID, &s.OwnerID, &frozen, &s.SubmittedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("catalog: get submission: %w", err)
	}
	s.Frozen = frozen != 0
	return &s, nil
}

// ListSubmissions returns all submissions for an assignment.
func (db *DB) ListSubmissions(assignmentID string) ([]models.Submission, error) {
	rows, err := db.conn.Query(`
		SELECT id, assignment_id, project_id, owner_id, frozen, submitted_at
		FROM submissions WHERE assignment_id = ?
		ORDER BY submitted_at DESC
	`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list submissions: %w", err)
	}
	defer rows.Close()

	var out []models.Submission
	for rows.Next() {
		var s models.Submission
		var frozen int
		if err := rows.Scan(&s.ID, &s.AssignmentID, &s.ProjectID, &s.OwnerID, &frozen, &s.SubmittedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan submission: %w", err)
		}
		s.Frozen = frozen != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

// SetSubmissionFrozen flips the frozen flag on one submission.
func (db *DB) SetSubmissionFrozen(id string, frozen bool) error {
	res, err := db.conn.Exec(`UPDATE submissions SET frozen = ? WHERE id = ?`, boolInt(frozen), id)
	if err != nil {
		return fmt.Errorf("catalog: set frozen: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SetAllSubmissionsFrozen flips the frozen flag on every submission of an
// assignment and returns how many rows changed.
func (db *DB) SetAllSubmissionsFrozen(assignmentID string, frozen bool) (int, error) {
	res, err := db.conn.Exec(`UPDATE submissions SET frozen = ? WHERE assignment_id = ?`, boolInt(frozen), assignmentID)
	if err != nil {
		return 0, fmt.Errorf("catalog: freeze all: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteSubmission removes a submission row unless it is frozen.
func (db *DB) DeleteSubmission(id string) error {
	s, err := db.GetSubmission(id)
	if err != nil {
		return err
	}
	if s.Frozen {
		return apperr.ErrConflict
	}
	if _, err := db.conn.Exec(`DELETE FROM submissions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("catalog: delete submission: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
