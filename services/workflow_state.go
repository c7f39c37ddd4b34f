package services

import (
	"context"
	"strings"
	"time"

	"editorial-workflow-api/models"
)

// Event names a manuscript state transition.
type Event string

const (
	EventSubmit              Event = "submit"
	EventAssignFirstReviewer Event = "assign_first_reviewer"
	EventReviewerAccepts     Event = "reviewer_accepts"
	EventQuorumAccept        Event = "quorum_accept"
	EventQuorumReject        Event = "quorum_reject"
	EventQuorumRevisions     Event = "quorum_revisions"
	EventAuthorResubmits     Event = "author_resubmits"
	EventEditorAccept        Event = "editor_accept"
	EventEditorOverride      Event = "editor_accept_override"
	EventOrderCreated        Event = "order_created"
	EventEditorReject        Event = "editor_reject"
	EventPaymentConfirmed    Event = "payment_confirmed"
	EventPaymentFailed       Event = "payment_failed"
)

type transition struct {
	from []models.ManuscriptState
	to   models.ManuscriptState
}

var reviewOpenStates = []models.ManuscriptState{models.StateUnderReview, models.StateReviewInProgress}

var transitions = map[Event]transition{
	EventAssignFirstReviewer: {from: []models.ManuscriptState{models.StateSubmitted}, to: models.StateUnderReview},
	EventReviewerAccepts:     {from: reviewOpenStates, to: models.StateReviewInProgress},
	EventQuorumAccept:        {from: reviewOpenStates, to: models.StateReviewAccepted},
	EventQuorumReject:        {from: reviewOpenStates, to: models.StateReviewRejected},
	EventQuorumRevisions:     {from: reviewOpenStates, to: models.StateRevisionsRequired},
	EventAuthorResubmits:     {from: []models.ManuscriptState{models.StateRevisionsRequired}, to: models.StateReviewInProgress},
	EventEditorAccept:        {from: []models.ManuscriptState{models.StateReviewAccepted}, to: models.StateEditorAccepted},
	EventEditorOverride: {
		from: []models.ManuscriptState{
			models.StateReviewAccepted,
			models.StateSubmitted,
			models.StateUnderReview,
			models.StateReviewInProgress,
			models.StateRevisionsRequired,
			models.StateReviewRejected,
		},
		to: models.StateEditorAccepted,
	},
	EventOrderCreated:     {from: []models.ManuscriptState{models.StateEditorAccepted, models.StatePaymentPending}, to: models.StatePaymentPending},
	EventEditorReject:     {from: openStates(), to: models.StateEditorRejected},
	EventPaymentConfirmed: {from: []models.ManuscriptState{models.StatePaymentPending}, to: models.StatePublished},
	EventPaymentFailed:    {from: []models.ManuscriptState{models.StatePaymentPending}, to: models.StatePaymentPending},
}

// openStates lists every state that is not Terminal.
func openStates() []models.ManuscriptState {
	var out []models.ManuscriptState
	for _, s := range models.AllStates() {
		if !s.Terminal() {
			out = append(out, s)
		}
	}
	return out
}

// CanApply reports whether event is legal from state.
func CanApply(event Event, state models.ManuscriptState) bool {
	t, ok := transitions[event]
	if !ok {
		return false
	}
	for _, s := range t.from {
		if s == state {
			return true
		}
	}
	return false
}

// NextState returns the target state of event from state, or InvalidState.
func NextState(event Event, state models.ManuscriptState) (models.ManuscriptState, error) {
	if !CanApply(event, state) {
		return state, newError(KindInvalidState, "cannot apply %s while manuscript is %s", event, state)
	}
	return transitions[event].to, nil
}

// applyEvent moves m through event and records the transition in the same
// transaction. m is not modified when the event is illegal.
func applyEvent(ctx context.Context, tx Store, m *models.Manuscript, event Event, actorID, note string, now time.Time) error {
	from := m.State
	to, err := NextState(event, from)
	if err != nil {
		return err
	}
	m.SetState(to)

	h := &models.ManuscriptStatusHistory{
		ManuscriptID: m.ID,
		FromState:    from,
		ToState:      to,
		Event:        string(event),
		Round:        m.CurrentRound,
		ChangedBy:    actorID,
		CreatedAt:    now,
	}
	if note = strings.TrimSpace(note); note != "" {
		h.Notes = &note
	}
	if err := tx.AppendHistory(ctx, h); err != nil {
		m.SetState(from)
		return wrapStoreErr(err, "status history")
	}
	return nil
}
