package models

import "time"

type Recommendation string

const (
	RecommendAccept         Recommendation = "accept"
	RecommendMinorRevisions Recommendation = "minor_revisions"
	RecommendMajorRevisions Recommendation = "major_revisions"
	RecommendReject         Recommendation = "reject"
)

// Valid reports whether r is one of the four reviewer recommendations.
func (r Recommendation) Valid() bool {
	switch r {
	case RecommendAccept, RecommendMinorRevisions, RecommendMajorRevisions, RecommendReject:
		return true
	}
	return false
}

type ReviewStatus string

const (
	ReviewInProgress ReviewStatus = "in_progress"
	ReviewSubmitted  ReviewStatus = "submitted"
)

// ReviewScores holds the five 1-5 criteria. Zero means not scored yet.
type ReviewScores struct {
	Originality  int `gorm:"column:originality" json:"originality"`
	Methodology  int `gorm:"column:methodology" json:"methodology"`
	Contribution int `gorm:"column:contribution" json:"contribution"`
	Clarity      int `gorm:"column:clarity" json:"clarity"`
	References   int `gorm:"column:references" json:"references"`
}

// Values returns the scores in a fixed criteria order.
func (s ReviewScores) Values() []int {
	return []int{s.Originality, s.Methodology, s.Contribution, s.Clarity, s.References}
}

// Mean is the arithmetic mean of the five criteria.
func (s ReviewScores) Mean() float64 {
	total := 0
	for _, v := range s.Values() {
		total += v
	}
	return float64(total) / 5
}

// Review is a reviewer's report for one manuscript round.
type Review struct {
	ID                   string         `gorm:"primaryKey;column:id;size:36" json:"id"`
	ManuscriptID         string         `gorm:"column:manuscript_id;size:36;uniqueIndex:idx_review_slot" json:"manuscript_id"`
	ReviewerID           string         `gorm:"column:reviewer_id;size:36;uniqueIndex:idx_review_slot" json:"reviewer_id"`
	Round                int            `gorm:"column:round;uniqueIndex:idx_review_slot" json:"round"`
	AssignmentID         string         `gorm:"column:assignment_id;size:36" json:"assignment_id"`
	Scores               ReviewScores   `gorm:"embedded;embeddedPrefix:score_" json:"scores"`
	OverallScore         float64        `gorm:"column:overall_score" json:"overall_score"`
	Recommendation       Recommendation `gorm:"column:recommendation;size:24" json:"recommendation"`
	Comments             string         `gorm:"column:comments;type:text" json:"comments"`
	ConfidentialComments string         `gorm:"column:confidential_comments;type:text" json:"confidential_comments,omitempty"`
	Status               ReviewStatus   `gorm:"column:status;size:16" json:"status"`
	SubmittedAt          *time.Time     `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	CreatedAt            time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (Review) TableName() string {
	return "reviews"
}

// SetScores replaces the scores and recomputes the overall score.
func (r *Review) SetScores(s ReviewScores) {
	r.Scores = s
	r.OverallScore = s.Mean()
}
