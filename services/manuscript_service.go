package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"editorial-workflow-api/models"
	"editorial-workflow-api/utils"
)

// ManuscriptService owns submission and editor decisions.
type ManuscriptService struct {
	*deps
	payments *PaymentService
}

type SubmitInput struct {
	AuthorID string
	Title    string
	Abstract string
	Pages    int
	FileRef  string
}

type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

type EditorDecisionInput struct {
	ManuscriptID string
	EditorID     string
	Decision     Decision
	// Override lets an editor accept before the review round reached an accept quorum.
	Override bool
	Comment  string
}

// EditorDecisionResult carries the manuscript after the decision and, for an
// accept, the pending payment that was opened.
type EditorDecisionResult struct {
	Manuscript *models.Manuscript
	Payment    *models.Payment
}

// DecisionSummary is the editor-facing digest of the current review round.
type DecisionSummary struct {
	ManuscriptID     string                        `json:"manuscript_id"`
	Round            int                           `json:"round"`
	State            models.ManuscriptState        `json:"state"`
	Status           models.ManuscriptStatus       `json:"status"`
	WorkflowStatus   models.WorkflowStatus         `json:"workflow_status"`
	SubmittedReviews int                           `json:"submitted_reviews"`
	Recommendation   models.Recommendation         `json:"recommendation"`
	Quorum           QuorumOutcome                 `json:"quorum"`
	AverageScore     float64                       `json:"average_score"`
	Counts           map[models.Recommendation]int `json:"counts"`
}

// Submit registers a new manuscript in the submitted state.
func (s *ManuscriptService) Submit(ctx context.Context, in SubmitInput) (*models.Manuscript, error) {
	title := utils.SanitizeInput(in.Title)
	if title == "" {
		return nil, newError(KindValidationFailed, "title is required")
	}
	if !utils.ValidateFileRef(in.FileRef) {
		return nil, newError(KindValidationFailed, "a valid manuscript file reference is required")
	}
	charges, err := ComputeCharges(in.Pages)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetUser(ctx, in.AuthorID); err != nil {
		return nil, wrapStoreErr(err, "author "+in.AuthorID)
	}

	now := s.now()
	m := &models.Manuscript{
		ID:                 s.newID(),
		Title:              title,
		Abstract:           utils.SanitizeInput(in.Abstract),
		AuthorID:           in.AuthorID,
		Pages:              in.Pages,
		FileRef:            utils.SanitizeInput(in.FileRef),
		CurrentRound:       1,
		PublicationCharges: charges,
		SubmittedAt:        now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	m.SetState(models.StateSubmitted)

	err = s.store.RunInTransaction(ctx, func(tx Store) error {
		if err := tx.CreateManuscript(ctx, m); err != nil {
			return wrapStoreErr(err, "manuscript")
		}
		h := &models.ManuscriptStatusHistory{
			ManuscriptID: m.ID,
			ToState:      models.StateSubmitted,
			Event:        string(EventSubmit),
			Round:        1,
			ChangedBy:    in.AuthorID,
			CreatedAt:    now,
		}
		return wrapStoreErr(tx.AppendHistory(ctx, h), "status history")
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[manuscript] %s submitted by %s (%d pages, fee %d)", m.ID, m.AuthorID, m.Pages, charges.TotalAmount)
	recipients := s.recipients(ctx, append([]string{m.AuthorID}, s.editorsInChief()...)...)
	s.notifySafe(ctx, NotifyManuscriptSubmitted, recipients, manuscriptPayload(m))
	return m, nil
}

// Get returns the manuscript with its revisions and payments.
func (s *ManuscriptService) Get(ctx context.Context, id string) (*models.Manuscript, error) {
	m, err := s.store.GetManuscript(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "manuscript")
	}
	return m, nil
}

// GetForViewer is Get restricted to users allowed to see the manuscript.
func (s *ManuscriptService) GetForViewer(ctx context.Context, id, viewerID string) (*models.Manuscript, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(ctx, m, viewerID); err != nil {
		return nil, err
	}
	return m, nil
}

// History lists the manuscript's state transitions, oldest first.
func (s *ManuscriptService) History(ctx context.Context, id, viewerID string) ([]models.ManuscriptStatusHistory, error) {
	if _, err := s.GetForViewer(ctx, id, viewerID); err != nil {
		return nil, err
	}
	items, err := s.store.FindHistory(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "status history")
	}
	return items, nil
}

// EditorDecision records an editor's accept or reject. An accept opens a
// payment order; if the gateway is unavailable the decision stays recorded
// and the GatewayUnavailable error is returned together with the result.
func (s *ManuscriptService) EditorDecision(ctx context.Context, in EditorDecisionInput) (*EditorDecisionResult, error) {
	decision := Decision(strings.ToLower(strings.TrimSpace(string(in.Decision))))
	if decision != DecisionAccept && decision != DecisionReject {
		return nil, newError(KindValidationFailed, "decision must be accept or reject")
	}
	comment := utils.SanitizeInput(in.Comment)

	var m *models.Manuscript
	err := s.store.RunInTransaction(ctx, func(tx Store) error {
		if _, err := s.userWithRole(ctx, tx, in.EditorID, models.RoleEditor, KindForbidden); err != nil {
			return err
		}
		locked, err := s.lockManuscript(ctx, tx, in.ManuscriptID)
		if err != nil {
			return err
		}
		now := s.now()

		switch decision {
		case DecisionAccept:
			event := EventEditorAccept
			if in.Override {
				event = EventEditorOverride
			}
			charges, err := ComputeCharges(locked.Pages)
			if err != nil {
				return err
			}
			if err := applyEvent(ctx, tx, locked, event, in.EditorID, comment, now); err != nil {
				return err
			}
			locked.PublicationCharges = charges
		case DecisionReject:
			if err := applyEvent(ctx, tx, locked, EventEditorReject, in.EditorID, comment, now); err != nil {
				return err
			}
			for i := range locked.Payments {
				p := &locked.Payments[i]
				if p.Status != models.PaymentPending {
					continue
				}
				p.Status = models.PaymentFailed
				if p.Metadata == nil {
					p.Metadata = map[string]string{}
				}
				p.Metadata["failure_reason"] = "manuscript rejected"
				p.Metadata["failed_at"] = now.Format(time.RFC3339)
			}
		}

		if err := s.saveManuscript(ctx, tx, locked); err != nil {
			return err
		}
		m = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[manuscript] %s editor %s decision=%s state=%s", m.ID, in.EditorID, decision, m.State)
	recipients := s.recipients(ctx, append([]string{m.AuthorID}, s.editorsInChief()...)...)
	s.notifySafe(ctx, NotifyEditorDecision, recipients, withPayload(manuscriptPayload(m), "decision", string(decision)))

	result := &EditorDecisionResult{Manuscript: m}
	if decision != DecisionAccept {
		return result, nil
	}

	order, err := s.payments.CreateOrder(ctx, m.ID, in.EditorID)
	if err != nil {
		if errors.Is(err, ErrGatewayUnavailable) {
			log.Printf("[manuscript] %s accepted but order creation failed: %v", m.ID, err)
		}
		return result, err
	}
	result.Manuscript = order.Manuscript
	result.Payment = order.Payment
	return result, nil
}

// DecisionSummary aggregates the current round's submitted reviews for display.
func (s *ManuscriptService) DecisionSummary(ctx context.Context, id string) (*DecisionSummary, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	reviews, err := s.store.FindReviews(ctx, ReviewFilter{
		ManuscriptID: id,
		Round:        m.CurrentRound,
		Status:       models.ReviewSubmitted,
	})
	if err != nil {
		return nil, wrapStoreErr(err, "reviews")
	}
	SortBySubmission(reviews)

	summary := &DecisionSummary{
		ManuscriptID:     m.ID,
		Round:            m.CurrentRound,
		State:            m.State,
		Status:           m.Status,
		WorkflowStatus:   m.WorkflowStatus,
		SubmittedReviews: len(reviews),
		Recommendation:   Aggregate(reviews),
		Quorum:           EvaluateQuorum(reviews),
		Counts:           make(map[models.Recommendation]int),
	}
	total := 0.0
	for _, r := range reviews {
		summary.Counts[r.Recommendation]++
		total += r.OverallScore
	}
	if len(reviews) > 0 {
		summary.AverageScore = total / float64(len(reviews))
	}
	return summary, nil
}

func formatAmount(amount int64) string {
	return fmt.Sprintf("%d.00", amount)
}
