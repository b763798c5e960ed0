package catalog

import "github.com/starford/raido/internal/models"

// Store defines the catalog operations consumed by the service layers.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with fakes.
type Store interface {
	InsertProject(p models.Project) error
	UpdateProject(p models.Project) error
	SetProjectThumbnail(projectID, thumbnailID string) error
	GetProject(id string) (*models.Project, error)
	RecentProject(ownerID string) (*models.Project, error)
	ListProjects(ownerID string, limit, offset int) ([]models.Project, int, error)
	DeleteProject(id string) error

	UpsertAsset(a models.AssetRecord) error
	GetAsset(id string) (*models.AssetRecord, error)
	AllAssetIDs() (map[string]struct{}, error)
	DeleteAsset(id string) error

	InsertBackpackItem(item models.BackpackItem) error
	GetBackpackItem(id, ownerID string) (*models.BackpackItem, error)
	ListBackpackItems(ownerID string, limit, offset int) ([]models.BackpackItem, int, error)
	DeleteBackpackItem(id, ownerID string) error

	UpsertAssignment(a models.Assignment) error
	GetAssignment(id string) (*models.Assignment, error)
	ListAssignments(creatorID string) ([]models.Assignment, error)
	DeleteAssignment(id string) error
	InsertSubmission(s models.Submission) error
	GetSubmission(id string) (*models.Submission, error)
	ListSubmissions(assignmentID string) ([]models.Submission, error)
	SetSubmissionFrozen(id string, frozen bool) error
	SetAllSubmissionsFrozen(assignmentID string, frozen bool) (int, error)
	DeleteSubmission(id string) error

	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
