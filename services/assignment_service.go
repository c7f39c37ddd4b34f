package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"editorial-workflow-api/models"
	"editorial-workflow-api/utils"
)

// AssignmentService owns reviewer assignments and review submission.
type AssignmentService struct {
	*deps
}

type CreateAssignmentInput struct {
	ManuscriptID string
	ReviewerID   string
	EditorID     string
	// AssignedBy defaults to EditorID.
	AssignedBy string
	// DueDate defaults to the configured review window from now.
	DueDate *time.Time
}

// ReviewInput carries a reviewer's scores and report.
type ReviewInput struct {
	Scores               models.ReviewScores
	Recommendation       models.Recommendation
	Comments             string
	ConfidentialComments string
}

// CompletionResult describes a submitted review and any decision it triggered.
type CompletionResult struct {
	Assignment *models.Assignment
	Review     *models.Review
	Manuscript *models.Manuscript
	Outcome    QuorumOutcome
}

// assignableStates are the manuscript states that accept new reviewers.
var assignableStates = map[models.ManuscriptState]bool{
	models.StateSubmitted:        true,
	models.StateUnderReview:      true,
	models.StateReviewInProgress: true,
}

// Create assigns a reviewer to the manuscript's current round.
func (s *AssignmentService) Create(ctx context.Context, in CreateAssignmentInput) (*models.Assignment, error) {
	assignedBy := in.AssignedBy
	if assignedBy == "" {
		assignedBy = in.EditorID
	}

	var (
		created *models.Assignment
		m       *models.Manuscript
	)
	err := s.store.RunInTransaction(ctx, func(tx Store) error {
		if _, err := s.userWithRole(ctx, tx, in.EditorID, models.RoleEditor, KindForbidden); err != nil {
			return err
		}
		if assignedBy != in.EditorID {
			if _, err := s.userWithRole(ctx, tx, assignedBy, models.RoleEditor, KindForbidden); err != nil {
				return err
			}
		}
		if _, err := s.userWithRole(ctx, tx, in.ReviewerID, models.RoleReviewer, KindNotAReviewer); err != nil {
			return err
		}

		locked, err := s.lockManuscript(ctx, tx, in.ManuscriptID)
		if err != nil {
			return err
		}
		if locked.AuthorID == in.ReviewerID {
			return newError(KindNotAReviewer, "the author cannot review their own manuscript")
		}
		if !assignableStates[locked.State] {
			return newError(KindInvalidState, "cannot assign reviewers while manuscript is %s", locked.State)
		}

		open, err := tx.FindAssignments(ctx, AssignmentFilter{
			ManuscriptID: locked.ID,
			ReviewerID:   in.ReviewerID,
			Round:        locked.CurrentRound,
			Statuses:     []models.AssignmentStatus{models.AssignmentPending, models.AssignmentAccepted},
		})
		if err != nil {
			return wrapStoreErr(err, "assignments")
		}
		if len(open) > 0 {
			return newError(KindDuplicateAssignment, "reviewer %s already holds an open assignment for round %d", in.ReviewerID, locked.CurrentRound)
		}

		now := s.now()
		due := now.Add(s.settings.ReviewDuration())
		if in.DueDate != nil {
			if !in.DueDate.After(now) {
				return newError(KindValidationFailed, "due date must be in the future")
			}
			due = in.DueDate.UTC()
		}

		a := &models.Assignment{
			ID:           s.newID(),
			ManuscriptID: locked.ID,
			ReviewerID:   in.ReviewerID,
			EditorID:     in.EditorID,
			AssignedBy:   assignedBy,
			Round:        locked.CurrentRound,
			Status:       models.AssignmentPending,
			DueDate:      due,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.CreateAssignment(ctx, a); err != nil {
			return wrapStoreErr(err, "assignment")
		}

		if locked.State == models.StateSubmitted {
			if err := applyEvent(ctx, tx, locked, EventAssignFirstReviewer, assignedBy, "", now); err != nil {
				return err
			}
			if err := s.saveManuscript(ctx, tx, locked); err != nil {
				return err
			}
		}

		created = a
		m = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[assignment] %s created: manuscript=%s reviewer=%s round=%d", created.ID, created.ManuscriptID, created.ReviewerID, created.Round)
	s.notifySafe(ctx, NotifyReviewerInvited, s.recipients(ctx, created.ReviewerID),
		withPayload(manuscriptPayload(m), "assignment_id", created.ID, "due_date", created.DueDate.Format("2006-01-02")))
	return created, nil
}

// lockAssignment locks the manuscript owning assignmentID and re-reads the
// assignment under that lock.
func (s *AssignmentService) lockAssignment(ctx context.Context, tx Store, assignmentID, reviewerID string) (*models.Assignment, *models.Manuscript, error) {
	a, err := tx.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, nil, wrapStoreErr(err, "assignment")
	}
	if a.ReviewerID != reviewerID {
		return nil, nil, newError(KindForbidden, "assignment %s belongs to another reviewer", a.ID)
	}
	m, err := s.lockManuscript(ctx, tx, a.ManuscriptID)
	if err != nil {
		return nil, nil, err
	}
	if a, err = tx.GetAssignment(ctx, assignmentID); err != nil {
		return nil, nil, wrapStoreErr(err, "assignment")
	}
	return a, m, nil
}

// respond loads the assignment for reviewerID, locks its manuscript and
// applies mutate to a pending assignment.
func (s *AssignmentService) respond(ctx context.Context, assignmentID, reviewerID string, to models.AssignmentStatus, mutate func(tx Store, a *models.Assignment, m *models.Manuscript, now time.Time) error) (*models.Assignment, *models.Manuscript, error) {
	var (
		out *models.Assignment
		man *models.Manuscript
	)
	err := s.store.RunInTransaction(ctx, func(tx Store) error {
		a, m, err := s.lockAssignment(ctx, tx, assignmentID, reviewerID)
		if err != nil {
			return err
		}
		if a.Status != models.AssignmentPending {
			return newError(KindAlreadyProcessed, "assignment %s is already %s", a.ID, a.Status)
		}

		now := s.now()
		a.Status = to
		a.RespondedAt = timePtr(now)
		if err := mutate(tx, a, m, now); err != nil {
			return err
		}
		if err := tx.TransitionAssignment(ctx, a, models.AssignmentPending); err != nil {
			return wrapStoreErr(err, "assignment")
		}
		out = a
		man = m
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, man, nil
}

// Accept moves a pending assignment to accepted and marks review in progress.
func (s *AssignmentService) Accept(ctx context.Context, assignmentID, reviewerID string) (*models.Assignment, error) {
	a, m, err := s.respond(ctx, assignmentID, reviewerID, models.AssignmentAccepted,
		func(tx Store, a *models.Assignment, m *models.Manuscript, now time.Time) error {
			if m.State == models.StateReviewInProgress || !CanApply(EventReviewerAccepts, m.State) {
				return nil
			}
			if err := applyEvent(ctx, tx, m, EventReviewerAccepts, a.ReviewerID, "", now); err != nil {
				return err
			}
			return s.saveManuscript(ctx, tx, m)
		})
	if err != nil {
		return nil, err
	}

	log.Printf("[assignment] %s accepted by %s", a.ID, a.ReviewerID)
	payload := withPayload(manuscriptPayload(m), "assignment_id", a.ID, "reviewer_name", s.displayName(ctx, a.ReviewerID))
	s.notifySafe(ctx, NotifyAssignmentAccepted, s.recipients(ctx, a.EditorID), payload)
	return a, nil
}

// Decline closes a pending assignment. The manuscript state is untouched.
func (s *AssignmentService) Decline(ctx context.Context, assignmentID, reviewerID, reason string) (*models.Assignment, error) {
	reason = utils.SanitizeInput(reason)
	a, m, err := s.respond(ctx, assignmentID, reviewerID, models.AssignmentDeclined,
		func(tx Store, a *models.Assignment, m *models.Manuscript, now time.Time) error {
			a.DeclineReason = stringPtr(reason)
			return nil
		})
	if err != nil {
		return nil, err
	}

	log.Printf("[assignment] %s declined by %s", a.ID, a.ReviewerID)
	shown := reason
	if shown == "" {
		shown = "-"
	}
	payload := withPayload(manuscriptPayload(m), "assignment_id", a.ID, "reviewer_name", s.displayName(ctx, a.ReviewerID), "reason", shown)
	s.notifySafe(ctx, NotifyAssignmentDeclined, s.recipients(ctx, a.EditorID), payload)
	return a, nil
}

func validateScores(scores models.ReviewScores, partial bool) error {
	for _, v := range scores.Values() {
		if partial && v == 0 {
			continue
		}
		if v < 1 || v > 5 {
			return newError(KindValidationFailed, "scores must be integers between 1 and 5")
		}
	}
	return nil
}

// reviewForSlot returns the stored review for the assignment's slot or a new one.
func (s *AssignmentService) reviewForSlot(ctx context.Context, tx Store, a *models.Assignment, now time.Time) (*models.Review, error) {
	r, err := tx.FindReview(ctx, a.ManuscriptID, a.ReviewerID, a.Round)
	switch {
	case err == nil:
		return r, nil
	case errors.Is(err, ErrRecordNotFound):
		return &models.Review{
			ID:           s.newID(),
			ManuscriptID: a.ManuscriptID,
			ReviewerID:   a.ReviewerID,
			Round:        a.Round,
			Status:       models.ReviewInProgress,
			CreatedAt:    now,
		}, nil
	}
	return nil, wrapStoreErr(err, "review")
}

func fillReview(r *models.Review, a *models.Assignment, in ReviewInput, now time.Time) {
	r.AssignmentID = a.ID
	r.SetScores(in.Scores)
	r.Recommendation = in.Recommendation
	r.Comments = utils.SanitizeInput(in.Comments)
	r.ConfidentialComments = utils.SanitizeInput(in.ConfidentialComments)
	r.UpdatedAt = now
}

// SaveReview stores a draft review for an accepted assignment.
func (s *AssignmentService) SaveReview(ctx context.Context, assignmentID, reviewerID string, in ReviewInput) (*models.Review, error) {
	if err := validateScores(in.Scores, true); err != nil {
		return nil, err
	}
	if in.Recommendation != "" && !in.Recommendation.Valid() {
		return nil, newError(KindValidationFailed, "unknown recommendation %q", in.Recommendation)
	}

	var saved *models.Review
	err := s.store.RunInTransaction(ctx, func(tx Store) error {
		a, err := tx.GetAssignment(ctx, assignmentID)
		if err != nil {
			return wrapStoreErr(err, "assignment")
		}
		if a.ReviewerID != reviewerID {
			return newError(KindForbidden, "assignment %s belongs to another reviewer", a.ID)
		}
		if a.Status != models.AssignmentAccepted {
			return newError(KindInvalidState, "reviews can only be drafted on accepted assignments (assignment is %s)", a.Status)
		}

		now := s.now()
		r, err := s.reviewForSlot(ctx, tx, a, now)
		if err != nil {
			return err
		}
		if r.Status == models.ReviewSubmitted {
			return newError(KindInvalidState, "review %s was already submitted", r.ID)
		}
		fillReview(r, a, in, now)
		if err := tx.SaveReview(ctx, r); err != nil {
			return wrapStoreErr(err, "review")
		}
		saved = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// Complete submits the review, closes the assignment and evaluates the round
// quorum inside the same transaction.
func (s *AssignmentService) Complete(ctx context.Context, assignmentID, reviewerID string, in ReviewInput) (*CompletionResult, error) {
	if err := validateScores(in.Scores, false); err != nil {
		return nil, err
	}
	if !in.Recommendation.Valid() {
		return nil, newError(KindValidationFailed, "a recommendation of accept, minor_revisions, major_revisions or reject is required")
	}

	result := &CompletionResult{Outcome: QuorumNotReached}
	err := s.store.RunInTransaction(ctx, func(tx Store) error {
		a, m, err := s.lockAssignment(ctx, tx, assignmentID, reviewerID)
		if err != nil {
			return err
		}
		switch a.Status {
		case models.AssignmentAccepted:
		case models.AssignmentCompleted:
			return newError(KindAlreadyProcessed, "assignment %s is already completed", a.ID)
		default:
			return newError(KindInvalidState, "assignment %s is %s; only accepted assignments can be completed", a.ID, a.Status)
		}

		now := s.now()
		r, err := s.reviewForSlot(ctx, tx, a, now)
		if err != nil {
			return err
		}
		if r.Status == models.ReviewSubmitted {
			return newError(KindAlreadyProcessed, "review %s was already submitted", r.ID)
		}
		fillReview(r, a, in, now)
		r.Status = models.ReviewSubmitted
		r.SubmittedAt = timePtr(now)
		if err := tx.SaveReview(ctx, r); err != nil {
			return wrapStoreErr(err, "review")
		}

		a.Status = models.AssignmentCompleted
		a.ReviewID = &r.ID
		a.CompletedAt = timePtr(now)
		if err := tx.TransitionAssignment(ctx, a, models.AssignmentAccepted); err != nil {
			return wrapStoreErr(err, "assignment")
		}

		outcome, err := s.evaluateRound(ctx, tx, m, a, now)
		if err != nil {
			return err
		}

		result.Assignment = a
		result.Review = r
		result.Manuscript = m
		result.Outcome = outcome
		return nil
	})
	if err != nil {
		return nil, err
	}

	a, m := result.Assignment, result.Manuscript
	log.Printf("[assignment] %s completed: review=%s recommendation=%s outcome=%s", a.ID, result.Review.ID, result.Review.Recommendation, result.Outcome)
	payload := withPayload(manuscriptPayload(m), "assignment_id", a.ID, "recommendation", string(result.Review.Recommendation))
	s.notifySafe(ctx, NotifyReviewSubmitted, s.recipients(ctx, a.EditorID), payload)
	if result.Outcome != QuorumNotReached {
		ids := append([]string{m.AuthorID, a.EditorID}, s.editorsInChief()...)
		s.notifySafe(ctx, NotifyRoundDecided, s.recipients(ctx, ids...), manuscriptPayload(m))
	}
	return result, nil
}

// evaluateRound applies the quorum rule to the manuscript's current round.
func (s *AssignmentService) evaluateRound(ctx context.Context, tx Store, m *models.Manuscript, a *models.Assignment, now time.Time) (QuorumOutcome, error) {
	if a.Round != m.CurrentRound || !CanApply(EventQuorumAccept, m.State) {
		return QuorumNotReached, nil
	}
	reviews, err := tx.FindReviews(ctx, ReviewFilter{
		ManuscriptID: m.ID,
		Round:        m.CurrentRound,
		Status:       models.ReviewSubmitted,
	})
	if err != nil {
		return QuorumNotReached, wrapStoreErr(err, "reviews")
	}

	outcome := EvaluateQuorum(reviews)
	event, ok := quorumEvent(outcome)
	if !ok {
		return QuorumNotReached, nil
	}
	if err := applyEvent(ctx, tx, m, event, a.ReviewerID, "", now); err != nil {
		return QuorumNotReached, err
	}
	if err := s.saveManuscript(ctx, tx, m); err != nil {
		return QuorumNotReached, err
	}
	return outcome, nil
}

// ListForReviewer returns the reviewer's assignments, newest first, keeping
// only the most recently created assignment per (manuscript, round).
func (s *AssignmentService) ListForReviewer(ctx context.Context, reviewerID string, status *models.AssignmentStatus) ([]models.Assignment, error) {
	filter := AssignmentFilter{ReviewerID: reviewerID}
	if status != nil {
		filter.Statuses = []models.AssignmentStatus{*status}
	}
	items, err := s.store.FindAssignments(ctx, filter)
	if err != nil {
		return nil, wrapStoreErr(err, "assignments")
	}
	return DedupeAssignments(items), nil
}

// DedupeAssignments keeps the newest assignment per (manuscript, round) and
// returns them newest first. Equal creation times keep the later element.
func DedupeAssignments(items []models.Assignment) []models.Assignment {
	type slot struct {
		manuscriptID string
		round        int
	}
	latest := make(map[slot]int, len(items))
	for i, a := range items {
		k := slot{a.ManuscriptID, a.Round}
		if j, ok := latest[k]; ok && items[j].CreatedAt.After(a.CreatedAt) {
			continue
		}
		latest[k] = i
	}

	out := make([]models.Assignment, 0, len(latest))
	for _, i := range latest {
		out = append(out, items[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ListForManuscript returns every assignment of the manuscript, oldest first.
func (s *AssignmentService) ListForManuscript(ctx context.Context, manuscriptID string) ([]models.Assignment, error) {
	items, err := s.store.FindAssignments(ctx, AssignmentFilter{ManuscriptID: manuscriptID})
	if err != nil {
		return nil, wrapStoreErr(err, "assignments")
	}
	return items, nil
}

func (s *AssignmentService) displayName(ctx context.Context, userID string) string {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil || user.Name == "" {
		return "A reviewer"
	}
	return user.Name
}
