package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"editorial-workflow-api/controllers"
	"editorial-workflow-api/internal/testsupport"
	"editorial-workflow-api/middleware"
	"editorial-workflow-api/models"
	"editorial-workflow-api/routes"
	"editorial-workflow-api/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testJWTSecret = "controller-test-secret"

func newRouter(t *testing.T) (*gin.Engine, *testsupport.Env) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := testsupport.NewEnv(t)
	router := gin.New()
	routes.SetupRoutes(router, controllers.NewWorkflowController(env.WF), testJWTSecret)
	return router, env
}

func mintToken(t *testing.T, userID string, roles ...string) string {
	t.Helper()
	claims := middleware.Claims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

type response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var out response
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestHealthIsPublic(t *testing.T) {
	router, _ := newRouter(t)
	rec, _ := do(t, router, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, _ := newRouter(t)

	rec, _ := do(t, router, http.MethodGet, "/api/v1/manuscripts/x", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{UserID: testsupport.AuthorID}).SignedString([]byte("wrong"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rec, _ = do(t, router, http.MethodGet, "/api/v1/manuscripts/x", forged, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", rec.Code)
	}

	rec, _ = do(t, router, http.MethodPost, "/api/v1/assignments", mintToken(t, testsupport.AuthorID, models.RoleAuthor), map[string]string{
		"manuscript_id": "x",
		"reviewer_id":   testsupport.ReviewerA,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for missing role, got %d", rec.Code)
	}
}

func TestSubmitAssignAndReviewOverHTTP(t *testing.T) {
	router, env := newRouter(t)
	author := mintToken(t, testsupport.AuthorID, models.RoleAuthor)
	editor := mintToken(t, testsupport.EditorID, models.RoleEditor)
	reviewer := mintToken(t, testsupport.ReviewerA, models.RoleReviewer)

	rec, out := do(t, router, http.MethodPost, "/api/v1/manuscripts", author, map[string]interface{}{
		"title":    "Graph Partitioning at Scale",
		"pages":    7,
		"file_ref": "uploads/gp.pdf",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var m models.Manuscript
	if err := json.Unmarshal(out.Data, &m); err != nil {
		t.Fatalf("decode manuscript: %v", err)
	}
	if m.PublicationCharges.TotalAmount != 15 || m.State != models.StateSubmitted {
		t.Fatalf("unexpected manuscript %+v", m)
	}

	body := map[string]string{"manuscript_id": m.ID, "reviewer_id": testsupport.ReviewerA}
	rec, out = do(t, router, http.MethodPost, "/api/v1/assignments", editor, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("assign: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var a models.Assignment
	if err := json.Unmarshal(out.Data, &a); err != nil {
		t.Fatalf("decode assignment: %v", err)
	}

	rec, out = do(t, router, http.MethodPost, "/api/v1/assignments", editor, body)
	if rec.Code != http.StatusConflict || out.Code != string(services.KindDuplicateAssignment) {
		t.Fatalf("duplicate assign: expected 409 duplicate_assignment, got %d %s", rec.Code, out.Code)
	}

	rec, _ = do(t, router, http.MethodPost, fmt.Sprintf("/api/v1/assignments/%s/accept", a.ID), reviewer, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec, _ = do(t, router, http.MethodPost, fmt.Sprintf("/api/v1/assignments/%s/complete", a.ID), reviewer, map[string]interface{}{
		"scores":         map[string]int{"originality": 5, "methodology": 4, "contribution": 4, "clarity": 3, "references": 4},
		"recommendation": "Accept",
		"comments":       "Clear and useful.",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec, out = do(t, router, http.MethodGet, "/api/v1/assignments?status=completed", reviewer, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var items []models.Assignment
	if err := json.Unmarshal(out.Data, &items); err != nil || len(items) != 1 {
		t.Fatalf("expected one completed assignment, got %s (%v)", out.Data, err)
	}

	rec, _ = do(t, router, http.MethodGet, "/api/v1/assignments?status=bogus", reviewer, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus status filter: expected 400, got %d", rec.Code)
	}

	if st := env.Manuscript(t, m.ID).State; st != models.StateReviewInProgress {
		t.Fatalf("unexpected state %s", st)
	}

	outsider := mintToken(t, testsupport.ReviewerB, models.RoleReviewer)
	for _, path := range []string{"", "/history", "/payments"} {
		target := fmt.Sprintf("/api/v1/manuscripts/%s%s", m.ID, path)
		rec, out = do(t, router, http.MethodGet, target, outsider, nil)
		if rec.Code != http.StatusForbidden || out.Code != string(services.KindForbidden) {
			t.Fatalf("GET %s by unassigned reviewer: expected 403, got %d", target, rec.Code)
		}
		if rec, _ = do(t, router, http.MethodGet, target, reviewer, nil); rec.Code != http.StatusOK {
			t.Fatalf("GET %s by assigned reviewer: expected 200, got %d", target, rec.Code)
		}
		if rec, _ = do(t, router, http.MethodGet, target, author, nil); rec.Code != http.StatusOK {
			t.Fatalf("GET %s by author: expected 200, got %d", target, rec.Code)
		}
	}
}

func TestPaymentWebhook(t *testing.T) {
	router, env := newRouter(t)
	m := env.Submit(t, 4)
	env.Review(t, env.Assign(t, m.ID, testsupport.ReviewerA), models.RecommendAccept)
	env.Review(t, env.Assign(t, m.ID, testsupport.ReviewerB), models.RecommendAccept)

	editor := mintToken(t, testsupport.EditorID, models.RoleEditor)
	rec, _ := do(t, router, http.MethodPost, fmt.Sprintf("/api/v1/manuscripts/%s/decision", m.ID), editor, map[string]string{"decision": "accept"})
	if rec.Code != http.StatusOK {
		t.Fatalf("decision: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	payment := env.Manuscript(t, m.ID).PendingPayment()
	if payment == nil {
		t.Fatalf("expected pending payment")
	}

	body := map[string]interface{}{
		"manuscript_id": m.ID,
		"payment_id":    payment.PaymentID,
		"amount":        payment.Amount,
		"status":        "confirmed",
		"signature":     "deadbeef",
	}
	rec, out := do(t, router, http.MethodPost, "/api/v1/payments/webhook", "", body)
	if rec.Code != http.StatusUnauthorized || out.Code != string(services.KindInvalidSignature) {
		t.Fatalf("tampered webhook: expected 401 invalid_signature, got %d %s", rec.Code, out.Code)
	}

	body["signature"] = env.Gateway.Sign(m.ID, payment.PaymentID, payment.Amount, "confirmed")
	rec, _ = do(t, router, http.MethodPost, "/api/v1/payments/webhook", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if st := env.Manuscript(t, m.ID).State; st != models.StatePublished {
		t.Fatalf("expected published, got %s", st)
	}
}

func TestStatusForError(t *testing.T) {
	cases := map[error]int{
		services.ErrNotFound:               http.StatusNotFound,
		services.ErrForbidden:              http.StatusForbidden,
		services.ErrInvalidState:           http.StatusConflict,
		services.ErrDuplicateAssignment:    http.StatusConflict,
		services.ErrAlreadyProcessed:       http.StatusConflict,
		services.ErrInvalidSignature:       http.StatusUnauthorized,
		services.ErrGatewayUnavailable:     http.StatusBadGateway,
		services.ErrValidationFailed:       http.StatusBadRequest,
		services.ErrNotAReviewer:           http.StatusUnprocessableEntity,
		services.ErrNotEligibleForRevision: http.StatusConflict,
		services.ErrOperationFailed:        http.StatusInternalServerError,
		fmt.Errorf("plain"):                http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := controllers.StatusForError(err); got != want {
			t.Fatalf("%v: expected %d, got %d", err, want, got)
		}
	}
}
