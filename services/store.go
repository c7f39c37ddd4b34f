package services

import (
	"context"

	"editorial-workflow-api/models"
)

// AssignmentFilter narrows FindAssignments. Zero fields are ignored.
type AssignmentFilter struct {
	ManuscriptID string
	ReviewerID   string
	Round        int
	BeforeRound  int
	Statuses     []models.AssignmentStatus
}

// ReviewFilter narrows FindReviews. Zero fields are ignored.
type ReviewFilter struct {
	ManuscriptID string
	ReviewerID   string
	Round        int
	Status       models.ReviewStatus
}

// Store is the persistent store adapter used by the workflow engine.
//
// Lookups return ErrRecordNotFound when the entity is absent.
// TransitionAssignment returns ErrStaleWrite when the stored status no longer
// matches the expected one, and CreateAssignment returns ErrDuplicateKey when
// an open assignment already holds the same slot.
type Store interface {
	// RunInTransaction runs fn against a transactional view of the store.
	// fn's error rolls every write back; a nil return commits.
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	GetUser(ctx context.Context, id string) (*models.User, error)

	GetManuscript(ctx context.Context, id string) (*models.Manuscript, error)
	// LockManuscript loads the manuscript and holds it exclusively until the
	// enclosing transaction ends.
	LockManuscript(ctx context.Context, id string) (*models.Manuscript, error)
	CreateManuscript(ctx context.Context, m *models.Manuscript) error
	// SaveManuscript persists the manuscript together with its revisions and payments.
	SaveManuscript(ctx context.Context, m *models.Manuscript) error

	GetAssignment(ctx context.Context, id string) (*models.Assignment, error)
	FindAssignments(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, error)
	CreateAssignment(ctx context.Context, a *models.Assignment) error
	// TransitionAssignment writes a only if the stored status still equals from.
	TransitionAssignment(ctx context.Context, a *models.Assignment, from models.AssignmentStatus) error

	FindReview(ctx context.Context, manuscriptID, reviewerID string, round int) (*models.Review, error)
	FindReviews(ctx context.Context, filter ReviewFilter) ([]models.Review, error)
	SaveReview(ctx context.Context, r *models.Review) error

	AppendHistory(ctx context.Context, h *models.ManuscriptStatusHistory) error
	FindHistory(ctx context.Context, manuscriptID string) ([]models.ManuscriptStatusHistory, error)
}
