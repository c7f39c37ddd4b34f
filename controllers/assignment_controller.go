package controllers

import (
	"net/http"
	"strings"
	"time"

	"editorial-workflow-api/models"
	"editorial-workflow-api/services"

	"github.com/gin-gonic/gin"
)

type createAssignmentRequest struct {
	ManuscriptID string     `json:"manuscript_id" binding:"required"`
	ReviewerID   string     `json:"reviewer_id" binding:"required"`
	DueDate      *time.Time `json:"due_date"`
}

func (w *WorkflowController) CreateAssignment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req createAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	a, err := w.wf.Assignments.Create(c.Request.Context(), services.CreateAssignmentInput{
		ManuscriptID: req.ManuscriptID,
		ReviewerID:   req.ReviewerID,
		EditorID:     userID,
		DueDate:      req.DueDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": a})
}

func (w *WorkflowController) AcceptAssignment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	a, err := w.wf.Assignments.Accept(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": a})
}

type declineAssignmentRequest struct {
	Reason string `json:"reason"`
}

func (w *WorkflowController) DeclineAssignment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req declineAssignmentRequest
	_ = c.ShouldBindJSON(&req)

	a, err := w.wf.Assignments.Decline(c.Request.Context(), c.Param("id"), userID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": a})
}

type reviewRequest struct {
	Scores               models.ReviewScores   `json:"scores"`
	Recommendation       models.Recommendation `json:"recommendation"`
	Comments             string                `json:"comments"`
	ConfidentialComments string                `json:"confidential_comments"`
}

func (r reviewRequest) input() services.ReviewInput {
	return services.ReviewInput{
		Scores:               r.Scores,
		Recommendation:       models.Recommendation(strings.ToLower(strings.TrimSpace(string(r.Recommendation)))),
		Comments:             r.Comments,
		ConfidentialComments: r.ConfidentialComments,
	}
}

// SaveReviewDraft stores a partial review.
func (w *WorkflowController) SaveReviewDraft(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := w.wf.Assignments.SaveReview(c.Request.Context(), c.Param("id"), userID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": r})
}

// CompleteAssignment submits the final review.
func (w *WorkflowController) CompleteAssignment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := w.wf.Assignments.Complete(c.Request.Context(), c.Param("id"), userID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       res.Assignment,
		"review":     res.Review,
		"manuscript": res.Manuscript,
		"outcome":    res.Outcome,
	})
}

// ListMyAssignments lists the caller's assignments, optionally by ?status=.
func (w *WorkflowController) ListMyAssignments(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var status *models.AssignmentStatus
	if raw := strings.ToLower(strings.TrimSpace(c.Query("status"))); raw != "" {
		st := models.AssignmentStatus(raw)
		switch st {
		case models.AssignmentPending, models.AssignmentAccepted, models.AssignmentDeclined, models.AssignmentCompleted:
			status = &st
		default:
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown status filter"})
			return
		}
	}

	items, err := w.wf.Assignments.ListForReviewer(c.Request.Context(), userID, status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": items, "total": len(items)})
}

func (w *WorkflowController) ListManuscriptAssignments(c *gin.Context) {
	items, err := w.wf.Assignments.ListForManuscript(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": items, "total": len(items)})
}
