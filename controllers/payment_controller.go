package controllers

import (
	"net/http"
	"strings"

	"editorial-workflow-api/services"

	"github.com/gin-gonic/gin"
)

// CreatePaymentOrder opens (or returns) the pending publication fee order.
func (w *WorkflowController) CreatePaymentOrder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	res, err := w.wf.Payments.CreateOrder(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if res.Reused {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"success": true, "data": res.Payment, "manuscript": res.Manuscript, "reused": res.Reused})
}

func (w *WorkflowController) ListPayments(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := w.wf.Payments.History(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": items})
}

type paymentWebhookRequest struct {
	ManuscriptID string `json:"manuscript_id" binding:"required"`
	PaymentID    string `json:"payment_id" binding:"required"`
	Amount       int64  `json:"amount"`
	Status       string `json:"status" binding:"required"`
	Signature    string `json:"signature"`
}

// SignatureHeader carries the callback signature when it is not in the body.
const SignatureHeader = "X-Payment-Signature"

// PaymentWebhook settles a gateway callback. Authentication is the HMAC signature.
func (w *WorkflowController) PaymentWebhook(c *gin.Context) {
	var req paymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	signature := strings.TrimSpace(req.Signature)
	if signature == "" {
		signature = strings.TrimSpace(c.GetHeader(SignatureHeader))
	}

	res, err := w.wf.Payments.VerifyPayment(c.Request.Context(), services.VerifyPaymentInput{
		ManuscriptID: req.ManuscriptID,
		PaymentID:    req.PaymentID,
		Amount:       req.Amount,
		Status:       req.Status,
		Signature:    signature,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"outcome":   res.Outcome,
		"duplicate": res.Duplicate,
		"state":     res.Manuscript.State,
	})
}
