// Package classroom manages assignments: teacher-created tasks that
// users and groups submit project snapshots against. Frozen submissions
// are locked in place for grading.
package classroom

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/models"
)

// Service wraps the catalog's assignment tables with the domain rules.
type Service struct {
	cat catalog.Store
	log *slog.Logger
}

func NewService(cat catalog.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{cat: cat, log: log}
}

// CreateParams describes a new or updated assignment.
type CreateParams struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	DueAt       time.Time `json:"due_at"`
}

// Create stores a new assignment owned by creatorID.
func (s *Service) Create(creatorID string, p CreateParams) (*models.Assignment, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, fmt.Errorf("classroom: assignment name is required")
	}
	now := time.Now().UTC()
	a := models.Assignment{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(p.Description),
		CreatorID:   creatorID,
		DueAt:       p.DueAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.cat.UpsertAssignment(a); err != nil {
		return nil, fmt.Errorf("classroom: create assignment: %w", err)
	}
	s.log.Info("assignment created",
		slog.String("assignment_id", a.ID),
		slog.String("creator_id", creatorID))
	return &a, nil
}

// Update replaces the mutable fields of an assignment.
func (s *Service) Update(id string, p CreateParams) (*models.Assignment, error) {
	a, err := s.cat.GetAssignment(id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(p.Name); name != "" {
		a.Name = name
	}
	a.Description = strings.TrimSpace(p.Description)
	a.DueAt = p.DueAt
	a.UpdatedAt = time.Now().UTC()
	if err := s.cat.UpsertAssignment(*a); err != nil {
		return nil, fmt.Errorf("classroom: update assignment %s: %w", id, err)
	}
	return a, nil
}

// Get returns one assignment with its targets.
func (s *Service) Get(id string) (*models.Assignment, error) {
	return s.cat.GetAssignment(id)
}

// List returns a creator's assignments.
func (s *Service) List(creatorID string) ([]models.Assignment, error) {
	return s.cat.ListAssignments(creatorID)
}

// Delete removes an assignment and all of its submissions.
func (s *Service) Delete(id string) error {
	return s.cat.DeleteAssignment(id)
}

// AssignUser adds a user target. Already-assigned users are a no-op.
func (s *Service) AssignUser(id, userID string) (*models.Assignment, error) {
	return s.mutateTargets(id, func(a *models.Assignment) {
		a.Users = addTarget(a.Users, userID)
	})
}

// AssignGroup adds a group target.
func (s *Service) AssignGroup(id, groupID string) (*models.Assignment, error) {
	return s.mutateTargets(id, func(a *models.Assignment) {
		a.Groups = addTarget(a.Groups, groupID)
	})
}

// UnassignUser removes a user target.
func (s *Service) UnassignUser(id, userID string) (*models.Assignment, error) {
	return s.mutateTargets(id, func(a *models.Assignment) {
		a.Users = removeTarget(a.Users, userID)
	})
}

// UnassignGroup removes a group target.
func (s *Service) UnassignGroup(id, groupID string) (*models.Assignment, error) {
	return s.mutateTargets(id, func(a *models.Assignment) {
		a.Groups = removeTarget(a.Groups, groupID)
	})
}

func (s *Service) mutateTargets(id string, fn func(*models.Assignment)) (*models.Assignment, error) {
	a, err := s.cat.GetAssignment(id)
	if err != nil {
		return nil, err
	}
	fn(a)
	a.UpdatedAt = time.Now().UTC()
	if err := s.cat.UpsertAssignment(*a); err != nil {
		return nil, fmt.Errorf("classroom: update targets %s: %w", id, err)
	}
	return a, nil
}

// Submit links a project to an assignment. Each project can be submitted
// to an assignment once; resubmitting returns apperr.ErrAlreadyExists.
func (s *Service) Submit(assignmentID, projectID, ownerID string) (*models.Submission, error) {
	if _, err := s.cat.GetAssignment(assignmentID); err != nil {
		return nil, err
	}
	sub := models.Submission{
		ID:           uuid.NewString(),
		AssignmentID: assignmentID,
		ProjectID:    projectID,
		OwnerID:      ownerID,
		SubmittedAt:  time.Now().UTC(),
	}
	if err := s.cat.InsertSubmission(sub); err != nil {
		return nil, err
	}
	s.log.Info("submission created",
		slog.String("assignment_id", assignmentID),
		slog.String("project_id", projectID),
		slog.String("owner_id", ownerID))
	return &sub, nil
}

// Withdraw removes a submission. Frozen submissions cannot be withdrawn
// by their owner.
func (s *Service) Withdraw(submissionID, ownerID string) error {
	sub, err := s.cat.GetSubmission(submissionID)
	if err != nil {
		return err
	}
	if sub.OwnerID != ownerID {
		return fmt.Errorf("classroom: submission %s: %w", submissionID, apperr.ErrNotFound)
	}
	return s.cat.DeleteSubmission(submissionID)
}

// Submissions lists all submissions of one assignment.
func (s *Service) Submissions(assignmentID string) ([]models.Submission, error) {
	return s.cat.ListSubmissions(assignmentID)
}

// Freeze locks or unlocks one submission.
func (s *Service) Freeze(submissionID string, frozen bool) error {
	return s.cat.SetSubmissionFrozen(submissionID, frozen)
}

// FreezeAll locks or unlocks every submission of an assignment and
// returns how many rows changed.
func (s *Service) FreezeAll(assignmentID string, frozen bool) (int, error) {
	if _, err := s.cat.GetAssignment(assignmentID); err != nil {
		return 0, err
	}
	return s.cat.SetAllSubmissionsFrozen(assignmentID, frozen)
}

func addTarget(targets []string, id string) []string {
	for _, t := range targets {
		if t == id {
			return targets
		}
	}
	targets = append(targets, id)
	sort.Strings(targets)
	return targets
}

func removeTarget(targets []string, id string) []string {
	out := targets[:0]
	for _, t := range targets {
		if t != id {
			out = append(out, t)
		}
	}
	return out
}
