package services

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"editorial-workflow-api/models"
	"editorial-workflow-api/utils"
)

// RevisionService runs author resubmissions and reviewer carry-forward.
type RevisionService struct {
	*deps
}

type RevisionInput struct {
	ManuscriptID string
	AuthorID     string
	FileRef      string
	Notes        string
}

// RevisionResult is the manuscript after resubmission with the assignments
// that were opened for the new round.
type RevisionResult struct {
	Manuscript     *models.Manuscript
	Revision       *models.Revision
	NewAssignments []models.Assignment
}

// SubmitRevision starts the next review round with a revised file and
// re-invites every reviewer who completed a review in an earlier round.
func (s *RevisionService) SubmitRevision(ctx context.Context, in RevisionInput) (*RevisionResult, error) {
	if !utils.ValidateFileRef(in.FileRef) {
		return nil, newError(KindValidationFailed, "a valid revised file reference is required")
	}
	fileRef := utils.SanitizeInput(in.FileRef)
	notes := utils.SanitizeInput(in.Notes)

	result := &RevisionResult{}
	err := s.store.RunInTransaction(ctx, func(tx Store) error {
		m, err := s.lockManuscript(ctx, tx, in.ManuscriptID)
		if err != nil {
			return err
		}
		if m.AuthorID != in.AuthorID {
			return newError(KindNotEligibleForRevision, "only the author can submit a revision")
		}
		if m.State != models.StateRevisionsRequired {
			return newError(KindNotEligibleForRevision, "manuscript is %s; revisions are not requested", m.State)
		}

		now := s.now()
		m.CurrentRound++
		m.FileRef = fileRef
		m.Revisions = append(m.Revisions, models.Revision{
			ID:            s.newID(),
			ManuscriptID:  m.ID,
			Round:         m.CurrentRound,
			SubmittedDate: now,
			Notes:         notes,
			FileRef:       fileRef,
		})
		if err := applyEvent(ctx, tx, m, EventAuthorResubmits, in.AuthorID, notes, now); err != nil {
			return err
		}
		if err := s.saveManuscript(ctx, tx, m); err != nil {
			return err
		}

		created, err := s.carryForward(ctx, tx, m, now)
		if err != nil {
			return err
		}
		result.Manuscript = m
		result.Revision = &m.Revisions[len(m.Revisions)-1]
		result.NewAssignments = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	m := result.Manuscript
	log.Printf("[revision] %s resubmitted for round %d; %d reviewer(s) carried forward", m.ID, m.CurrentRound, len(result.NewAssignments))
	s.notifyCarried(ctx, m, result.NewAssignments)
	s.notifySafe(ctx, NotifyRevisionSubmitted, s.recipients(ctx, s.assignmentEditors(ctx, m.ID)...), manuscriptPayload(m))
	return result, nil
}

// CarryForward re-runs the carry-forward step for the current round. It is
// safe to repeat; reviewers already holding a current-round assignment are skipped.
func (s *RevisionService) CarryForward(ctx context.Context, manuscriptID, actorID string) ([]models.Assignment, error) {
	var (
		m       *models.Manuscript
		created []models.Assignment
	)
	err := s.store.RunInTransaction(ctx, func(tx Store) error {
		if _, err := s.userWithRole(ctx, tx, actorID, models.RoleEditor, KindForbidden); err != nil {
			return err
		}
		locked, err := s.lockManuscript(ctx, tx, manuscriptID)
		if err != nil {
			return err
		}
		if locked.CurrentRound < 2 {
			return newError(KindInvalidState, "manuscript has no earlier review round")
		}
		if locked.State != models.StateUnderReview && locked.State != models.StateReviewInProgress {
			return newError(KindInvalidState, "manuscript is %s; the current round is not open for review", locked.State)
		}
		created, err = s.carryForward(ctx, tx, locked, s.now())
		if err != nil {
			return err
		}
		m = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(created) > 0 {
		log.Printf("[revision] %s carry-forward opened %d assignment(s) for round %d", m.ID, len(created), m.CurrentRound)
	}
	s.notifyCarried(ctx, m, created)
	return created, nil
}

// carryForward opens a pending current-round assignment for each distinct
// reviewer with a completed assignment in an earlier round. The latest
// completed assignment per reviewer supplies the editor and assigner.
func (s *RevisionService) carryForward(ctx context.Context, tx Store, m *models.Manuscript, now time.Time) ([]models.Assignment, error) {
	prior, err := tx.FindAssignments(ctx, AssignmentFilter{
		ManuscriptID: m.ID,
		BeforeRound:  m.CurrentRound,
		Statuses:     []models.AssignmentStatus{models.AssignmentCompleted},
	})
	if err != nil {
		return nil, wrapStoreErr(err, "assignments")
	}

	order := make([]string, 0, len(prior))
	latest := make(map[string]models.Assignment, len(prior))
	for _, a := range prior {
		held, seen := latest[a.ReviewerID]
		if !seen {
			order = append(order, a.ReviewerID)
		}
		if !seen || a.Round >= held.Round {
			latest[a.ReviewerID] = a
		}
	}

	var created []models.Assignment
	for _, reviewerID := range order {
		existing, err := tx.FindAssignments(ctx, AssignmentFilter{
			ManuscriptID: m.ID,
			ReviewerID:   reviewerID,
			Round:        m.CurrentRound,
		})
		if err != nil {
			return nil, wrapStoreErr(err, "assignments")
		}
		if len(existing) > 0 {
			continue
		}

		src := latest[reviewerID]
		a := models.Assignment{
			ID:           s.newID(),
			ManuscriptID: m.ID,
			ReviewerID:   reviewerID,
			EditorID:     src.EditorID,
			AssignedBy:   src.AssignedBy,
			Round:        m.CurrentRound,
			Status:       models.AssignmentPending,
			DueDate:      now.Add(s.settings.ReviewDuration()),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.CreateAssignment(ctx, &a); err != nil {
			if errors.Is(err, ErrDuplicateKey) {
				continue
			}
			return nil, wrapStoreErr(err, "assignment")
		}
		created = append(created, a)
	}
	return created, nil
}

func (s *RevisionService) notifyCarried(ctx context.Context, m *models.Manuscript, created []models.Assignment) {
	for _, a := range created {
		payload := withPayload(manuscriptPayload(m),
			"assignment_id", a.ID,
			"due_date", a.DueDate.Format("2006-01-02"),
			"round", strconv.Itoa(a.Round),
		)
		s.notifySafe(ctx, NotifyReviewerInvited, s.recipients(ctx, a.ReviewerID), payload)
	}
}

// assignmentEditors lists the distinct editors across the manuscript's assignments.
func (s *RevisionService) assignmentEditors(ctx context.Context, manuscriptID string) []string {
	items, err := s.store.FindAssignments(ctx, AssignmentFilter{ManuscriptID: manuscriptID})
	if err != nil {
		log.Printf("[revision] editor lookup for %s failed: %v", manuscriptID, err)
		return nil
	}
	ids := make([]string, 0, len(items))
	for _, a := range items {
		ids = append(ids, a.EditorID)
	}
	return ids
}
