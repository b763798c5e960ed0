package models

import "time"

// Assignment is a teacher-created task that users or groups can be
// assigned to and submit project snapshots against.
type Assignment struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatorID   string    `json:"creator_id,omitempty"`
	DueAt       time.Time `json:"due_at,omitzero"`
	Users       []string  `json:"users"`
	Groups      []string  `json:"groups"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Submission links a project to an assignment. A frozen submission can no
// longer be withdrawn or replaced by its owner.
type Submission struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id"`
	ProjectID    string    `json:"project_id"`
	OwnerID      string    `json:"owner_id,omitempty"`
	Frozen       bool      `json:"frozen"`
	SubmittedAt  time.Time `json:"submitted_at"`
}
