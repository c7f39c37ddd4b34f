package controllers

import (
	"errors"
	"net/http"

	"editorial-workflow-api/services"

	"github.com/gin-gonic/gin"
)

type submitManuscriptRequest struct {
	Title    string `json:"title" binding:"required"`
	Abstract string `json:"abstract"`
	Pages    int    `json:"pages" binding:"required"`
	FileRef  string `json:"file_ref" binding:"required"`
}

// SubmitManuscript registers a manuscript authored by the caller.
func (w *WorkflowController) SubmitManuscript(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req submitManuscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	m, err := w.wf.Manuscripts.Submit(c.Request.Context(), services.SubmitInput{
		AuthorID: userID,
		Title:    req.Title,
		Abstract: req.Abstract,
		Pages:    req.Pages,
		FileRef:  req.FileRef,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": m})
}

func (w *WorkflowController) GetManuscript(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	m, err := w.wf.Manuscripts.GetForViewer(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": m})
}

func (w *WorkflowController) GetManuscriptHistory(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := w.wf.Manuscripts.History(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": items})
}

func (w *WorkflowController) GetDecisionSummary(c *gin.Context) {
	summary, err := w.wf.Manuscripts.DecisionSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}

type editorDecisionRequest struct {
	Decision string `json:"decision" binding:"required"`
	Override bool   `json:"override"`
	Comment  string `json:"comment"`
}

// RecordDecision applies an editor accept or reject. When the gateway is
// down the accepted manuscript is returned with a 502.
func (w *WorkflowController) RecordDecision(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req editorDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := w.wf.Manuscripts.EditorDecision(c.Request.Context(), services.EditorDecisionInput{
		ManuscriptID: c.Param("id"),
		EditorID:     userID,
		Decision:     services.Decision(req.Decision),
		Override:     req.Override,
		Comment:      req.Comment,
	})
	if err != nil {
		if res != nil && errors.Is(err, services.ErrGatewayUnavailable) {
			c.JSON(http.StatusBadGateway, gin.H{
				"success": false,
				"error":   "Decision recorded but the payment order could not be created",
				"code":    string(services.KindGatewayUnavailable),
				"data":    res.Manuscript,
			})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res.Manuscript, "payment": res.Payment})
}

type submitRevisionRequest struct {
	FileRef string `json:"file_ref" binding:"required"`
	Notes   string `json:"notes"`
}

func (w *WorkflowController) SubmitRevision(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req submitRevisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := w.wf.Revisions.SubmitRevision(c.Request.Context(), services.RevisionInput{
		ManuscriptID: c.Param("id"),
		AuthorID:     userID,
		FileRef:      req.FileRef,
		Notes:        req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"data":        res.Manuscript,
		"revision":    res.Revision,
		"assignments": res.NewAssignments,
	})
}

func (w *WorkflowController) CarryForward(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	created, err := w.wf.Revisions.CarryForward(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": created, "created": len(created)})
}
