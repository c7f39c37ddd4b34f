package controllers

import (
	"errors"
	"log"
	"net/http"

	"editorial-workflow-api/middleware"
	"editorial-workflow-api/services"

	"github.com/gin-gonic/gin"
)

// WorkflowController exposes the editorial engine over HTTP.
type WorkflowController struct {
	wf *services.Workflow
}

func NewWorkflowController(wf *services.Workflow) *WorkflowController {
	return &WorkflowController{wf: wf}
}

var errorStatus = map[services.ErrorKind]int{
	services.KindNotFound:               http.StatusNotFound,
	services.KindForbidden:              http.StatusForbidden,
	services.KindInvalidState:           http.StatusConflict,
	services.KindDuplicateAssignment:    http.StatusConflict,
	services.KindAlreadyProcessed:       http.StatusConflict,
	services.KindInvalidSignature:       http.StatusUnauthorized,
	services.KindGatewayUnavailable:     http.StatusBadGateway,
	services.KindValidationFailed:       http.StatusBadRequest,
	services.KindNotAReviewer:           http.StatusUnprocessableEntity,
	services.KindNotEligibleForRevision: http.StatusConflict,
	services.KindOperationFailed:        http.StatusInternalServerError,
}

// StatusForError maps a workflow error onto an HTTP status code.
func StatusForError(err error) int {
	if status, ok := errorStatus[services.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := StatusForError(err)
	kind := services.KindOf(err)

	message := "Failed to process request"
	var wfErr *services.WorkflowError
	if errors.As(err, &wfErr) && wfErr.Message != "" && kind != services.KindOperationFailed {
		message = wfErr.Message
	}
	if status >= http.StatusInternalServerError {
		log.Printf("[http] %s %s: %v", c.Request.Method, c.FullPath(), err)
	}

	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
		"code":    string(kind),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "Invalid request payload",
		"details": err.Error(),
	})
}

func currentUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return "", false
	}
	return userID, true
}

// Health reports liveness.
func (w *WorkflowController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Editorial Workflow API is running",
	})
}
