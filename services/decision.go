package services

import (
	"sort"

	"editorial-workflow-api/models"
)

// DecisionPending is returned by Aggregate when no submitted review exists.
const DecisionPending models.Recommendation = "pending"

// QuorumSize is the number of submitted reviews needed before a round is decided.
const QuorumSize = 2

// QuorumOutcome is the status-driving result of a review round.
type QuorumOutcome string

const (
	QuorumNotReached QuorumOutcome = "not_reached"
	QuorumAccept     QuorumOutcome = "accept"
	QuorumReject     QuorumOutcome = "reject"
	QuorumRevisions  QuorumOutcome = "revisions"
)

func submittedOnly(reviews []models.Review) []models.Review {
	out := make([]models.Review, 0, len(reviews))
	for _, r := range reviews {
		if r.Status == models.ReviewSubmitted {
			out = append(out, r)
		}
	}
	return out
}

// Aggregate returns the modal recommendation of the submitted reviews, for
// display to editors. Ties go to the recommendation seen first, so callers
// sort by submission time first (see SortBySubmission).
func Aggregate(reviews []models.Review) models.Recommendation {
	submitted := submittedOnly(reviews)
	if len(submitted) == 0 {
		return DecisionPending
	}

	counts := make(map[models.Recommendation]int, 4)
	order := make([]models.Recommendation, 0, 4)
	for _, r := range submitted {
		if _, seen := counts[r.Recommendation]; !seen {
			order = append(order, r.Recommendation)
		}
		counts[r.Recommendation]++
	}

	best := order[0]
	for _, rec := range order[1:] {
		if counts[rec] > counts[best] {
			best = rec
		}
	}
	return best
}

// EvaluateQuorum decides a review round for status purposes. Unanimous accept
// wins over any reject, which wins over any revision request.
func EvaluateQuorum(reviews []models.Review) QuorumOutcome {
	submitted := submittedOnly(reviews)
	if len(submitted) < QuorumSize {
		return QuorumNotReached
	}

	allAccept := true
	anyReject := false
	anyRevision := false
	for _, r := range submitted {
		switch r.Recommendation {
		case models.RecommendAccept:
		case models.RecommendReject:
			allAccept = false
			anyReject = true
		case models.RecommendMinorRevisions, models.RecommendMajorRevisions:
			allAccept = false
			anyRevision = true
		default:
			allAccept = false
		}
	}

	switch {
	case allAccept:
		return QuorumAccept
	case anyReject:
		return QuorumReject
	case anyRevision:
		return QuorumRevisions
	}
	return QuorumNotReached
}

// SortBySubmission orders reviews by submission time ascending, in place.
// Unsubmitted reviews sort last.
func SortBySubmission(reviews []models.Review) {
	sort.SliceStable(reviews, func(i, j int) bool {
		a, b := reviews[i].SubmittedAt, reviews[j].SubmittedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Before(*b)
	})
}

func quorumEvent(outcome QuorumOutcome) (Event, bool) {
	switch outcome {
	case QuorumAccept:
		return EventQuorumAccept, true
	case QuorumReject:
		return EventQuorumReject, true
	case QuorumRevisions:
		return EventQuorumRevisions, true
	}
	return "", false
}
