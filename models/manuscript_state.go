package models

// ManuscriptState is the single authoritative lifecycle state of a manuscript.
// The coarse Status and fine WorkflowStatus fields are projections of it.
type ManuscriptState string

const (
	StateSubmitted         ManuscriptState = "submitted"
	StateUnderReview       ManuscriptState = "under_review"
	StateReviewInProgress  ManuscriptState = "review_in_progress"
	StateRevisionsRequired ManuscriptState = "revisions_required"
	StateReviewRejected    ManuscriptState = "review_rejected"
	StateReviewAccepted    ManuscriptState = "review_accepted"
	StateEditorAccepted    ManuscriptState = "editor_accepted"
	StatePaymentPending    ManuscriptState = "payment_pending"
	StateEditorRejected    ManuscriptState = "editor_rejected"
	StatePublished         ManuscriptState = "published"
)

// ManuscriptStatus is the coarse status shown to authors and editors.
type ManuscriptStatus string

const (
	StatusSubmitted         ManuscriptStatus = "submitted"
	StatusUnderReview       ManuscriptStatus = "under_review"
	StatusRevisionsRequired ManuscriptStatus = "revisions_required"
	StatusAccepted          ManuscriptStatus = "accepted"
	StatusRejected          ManuscriptStatus = "rejected"
	StatusPublished         ManuscriptStatus = "published"
)

// WorkflowStatus is the operational sub-state within a coarse status.
type WorkflowStatus string

const (
	WorkflowSubmitted        WorkflowStatus = "SUBMITTED"
	WorkflowUnderReview      WorkflowStatus = "UNDER_REVIEW"
	WorkflowReviewInProgress WorkflowStatus = "REVIEW_IN_PROGRESS"
	WorkflowReviewAccepted   WorkflowStatus = "REVIEW_ACCEPTED"
	WorkflowEditorAccepted   WorkflowStatus = "EDITOR_ACCEPTED"
	WorkflowPaymentPending   WorkflowStatus = "PAYMENT_PENDING"
	WorkflowRejected         WorkflowStatus = "REJECTED"
	WorkflowPublished        WorkflowStatus = "PUBLISHED"
)

type stateProjection struct {
	status   ManuscriptStatus
	workflow WorkflowStatus
}

var stateProjections = map[ManuscriptState]stateProjection{
	StateSubmitted:         {StatusSubmitted, WorkflowSubmitted},
	StateUnderReview:       {StatusUnderReview, WorkflowUnderReview},
	StateReviewInProgress:  {StatusUnderReview, WorkflowReviewInProgress},
	StateRevisionsRequired: {StatusRevisionsRequired, WorkflowReviewInProgress},
	StateReviewRejected:    {StatusRejected, WorkflowReviewInProgress},
	StateReviewAccepted:    {StatusAccepted, WorkflowReviewAccepted},
	StateEditorAccepted:    {StatusAccepted, WorkflowEditorAccepted},
	StatePaymentPending:    {StatusAccepted, WorkflowPaymentPending},
	StateEditorRejected:    {StatusRejected, WorkflowRejected},
	StatePublished:         {StatusPublished, WorkflowPublished},
}

// AllStates lists every state in lifecycle order.
func AllStates() []ManuscriptState {
	return []ManuscriptState{
		StateSubmitted,
		StateUnderReview,
		StateReviewInProgress,
		StateRevisionsRequired,
		StateReviewRejected,
		StateReviewAccepted,
		StateEditorAccepted,
		StatePaymentPending,
		StateEditorRejected,
		StatePublished,
	}
}

// Valid reports whether s is a known state.
func (s ManuscriptState) Valid() bool {
	_, ok := stateProjections[s]
	return ok
}

// Status projects s onto the coarse status.
func (s ManuscriptState) Status() ManuscriptStatus {
	return stateProjections[s].status
}

// WorkflowStatus projects s onto the workflow sub-state.
func (s ManuscriptState) WorkflowStatus() WorkflowStatus {
	return stateProjections[s].workflow
}

// LegacyWorkflowStatus reproduces the older projection where an editor
// rejection reused the REVIEW_ACCEPTED marker.
func (s ManuscriptState) LegacyWorkflowStatus() WorkflowStatus {
	if s == StateEditorRejected {
		return WorkflowReviewAccepted
	}
	return s.WorkflowStatus()
}

// Terminal reports whether no further editorial transition is expected.
func (s ManuscriptState) Terminal() bool {
	return s == StatePublished || s == StateEditorRejected
}
