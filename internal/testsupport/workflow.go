package testsupport

import (
	"context"
	"testing"
	"time"

	"editorial-workflow-api/config"
	"editorial-workflow-api/models"
	"editorial-workflow-api/services"
)

// Seeded user ids.
const (
	AuthorID        = "author-1"
	EditorID        = "editor-1"
	EditorInChiefID = "eic-1"
	ReviewerA       = "reviewer-a"
	ReviewerB       = "reviewer-b"
	ReviewerC       = "reviewer-c"
	GatewaySecret   = "test-webhook-secret"
)

// Epoch is the first instant returned by an Env clock.
var Epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// Env bundles a workflow engine with its in-memory collaborators.
type Env struct {
	WF       *services.Workflow
	Store    *MemoryStore
	Notifier *RecordingNotifier
	Gateway  *FakeGateway
	Now      func() time.Time
}

// EnvOption customises NewEnv.
type EnvOption func(*services.Options)

// NewEnv builds an engine over a MemoryStore seeded with one author, two
// editors (one editor-in-chief) and three reviewers.
func NewEnv(t testing.TB, opts ...EnvOption) *Env {
	t.Helper()

	store := NewMemoryStore()
	clock := NewStepClock(Epoch, time.Minute)
	store.Now = clock

	store.AddUser(AuthorID, "Ada Author", "ada@example.org", models.RoleAuthor)
	store.AddUser(EditorID, "Eve Editor", "eve@example.org", models.RoleEditor)
	store.AddUser(EditorInChiefID, "Ian Chief", "ian@example.org", models.RoleEditor)
	store.AddUser(ReviewerA, "Rita Reviewer", "rita@example.org", models.RoleReviewer)
	store.AddUser(ReviewerB, "Ravi Reviewer", "ravi@example.org", models.RoleReviewer)
	store.AddUser(ReviewerC, "Rosa Reviewer", "not-an-email", models.RoleReviewer)

	env := &Env{
		Store:    store,
		Notifier: &RecordingNotifier{},
		Gateway:  NewFakeGateway(GatewaySecret),
		Now:      clock,
	}

	settings := config.DefaultWorkflowSettings()
	settings.EditorsInChief = []string{EditorInChiefID}

	options := services.Options{
		Store:    store,
		Notifier: env.Notifier,
		Gateway:  env.Gateway,
		Settings: settings,
		Clock:    clock,
		NewID:    NewSequence("id"),
	}
	for _, opt := range opts {
		opt(&options)
	}
	env.WF = services.NewWorkflow(options)
	return env
}

// Submit creates a manuscript by the seeded author.
func (e *Env) Submit(t testing.TB, pages int) *models.Manuscript {
	t.Helper()
	m, err := e.WF.Manuscripts.Submit(context.Background(), services.SubmitInput{
		AuthorID: AuthorID,
		Title:    "Consistency in Distributed Review",
		Abstract: "We study editorial workflows.",
		Pages:    pages,
		FileRef:  "manuscripts/draft-v1.pdf",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return m
}

// Assign creates and accepts an assignment for reviewerID.
func (e *Env) Assign(t testing.TB, manuscriptID, reviewerID string) *models.Assignment {
	t.Helper()
	ctx := context.Background()
	a, err := e.WF.Assignments.Create(ctx, services.CreateAssignmentInput{
		ManuscriptID: manuscriptID,
		ReviewerID:   reviewerID,
		EditorID:     EditorID,
	})
	if err != nil {
		t.Fatalf("Create assignment for %s: %v", reviewerID, err)
	}
	a, err = e.WF.Assignments.Accept(ctx, a.ID, reviewerID)
	if err != nil {
		t.Fatalf("Accept assignment for %s: %v", reviewerID, err)
	}
	return a
}

// Review completes an accepted assignment with uniform scores.
func (e *Env) Review(t testing.TB, a *models.Assignment, rec models.Recommendation) *services.CompletionResult {
	t.Helper()
	res, err := e.WF.Assignments.Complete(context.Background(), a.ID, a.ReviewerID, FullReview(rec))
	if err != nil {
		t.Fatalf("Complete %s: %v", a.ID, err)
	}
	return res
}

// FullReview is a complete review input with every score set to 4.
func FullReview(rec models.Recommendation) services.ReviewInput {
	return services.ReviewInput{
		Scores:         models.ReviewScores{Originality: 4, Methodology: 4, Contribution: 4, Clarity: 4, References: 4},
		Recommendation: rec,
		Comments:       "Solid work.",
	}
}

// Manuscript reloads the committed manuscript.
func (e *Env) Manuscript(t testing.TB, id string) *models.Manuscript {
	t.Helper()
	m, err := e.Store.GetManuscript(context.Background(), id)
	if err != nil {
		t.Fatalf("GetManuscript: %v", err)
	}
	return m
}
