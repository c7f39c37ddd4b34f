package services_test

import (
	"context"
	"errors"
	"testing"

	"editorial-workflow-api/internal/testsupport"
	"editorial-workflow-api/models"
	"editorial-workflow-api/services"
)

func assertKind(t *testing.T, err error, kind services.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := services.KindOf(err); got != kind {
		t.Fatalf("expected %s, got %s (%v)", kind, got, err)
	}
}

func assertState(t *testing.T, m *models.Manuscript, want models.ManuscriptState) {
	t.Helper()
	if m.State != want {
		t.Fatalf("expected state %s, got %s", want, m.State)
	}
	if m.Status != want.Status() || m.WorkflowStatus != want.WorkflowStatus() {
		t.Fatalf("projections out of sync for %s: status=%s workflow=%s", want, m.Status, m.WorkflowStatus)
	}
}

// acceptAndPay drives a manuscript to payment_pending and returns it.
func acceptAndPay(t *testing.T, env *testsupport.Env) (*models.Manuscript, *models.Payment) {
	t.Helper()
	m := env.Submit(t, 10)
	env.Review(t, env.Assign(t, m.ID, testsupport.ReviewerA), models.RecommendAccept)
	env.Review(t, env.Assign(t, m.ID, testsupport.ReviewerB), models.RecommendAccept)

	res, err := env.WF.Manuscripts.EditorDecision(context.Background(), services.EditorDecisionInput{
		ManuscriptID: m.ID,
		EditorID:     testsupport.EditorID,
		Decision:     services.DecisionAccept,
	})
	if err != nil {
		t.Fatalf("EditorDecision: %v", err)
	}
	if res.Payment == nil {
		t.Fatalf("accept should open a payment")
	}
	return res.Manuscript, res.Payment
}

func TestFullLifecycleToPublication(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()

	m, payment := acceptAndPay(t, env)
	assertState(t, m, models.StatePaymentPending)
	if payment.Amount != 4500 || payment.Currency != "USD" || payment.Status != models.PaymentPending {
		t.Fatalf("unexpected payment %+v", payment)
	}
	if m.PublicationCharges.TotalAmount != 45 {
		t.Fatalf("expected fee 45, got %d", m.PublicationCharges.TotalAmount)
	}

	res, err := env.WF.Payments.VerifyPayment(ctx, services.VerifyPaymentInput{
		ManuscriptID: m.ID,
		PaymentID:    payment.PaymentID,
		Amount:       payment.Amount,
		Status:       "captured",
		Signature:    env.Gateway.Sign(m.ID, payment.PaymentID, payment.Amount, "captured"),
	})
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if res.Duplicate || res.Outcome != models.PaymentConfirmed {
		t.Fatalf("unexpected result %+v", res)
	}

	stored := env.Manuscript(t, m.ID)
	assertState(t, stored, models.StatePublished)
	if !stored.PublicationCharges.IsPaid || stored.PublishedAt == nil {
		t.Fatalf("published manuscript should be paid with a publication date")
	}

	history, err := env.WF.Manuscripts.History(ctx, m.ID, testsupport.EditorID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	wantEvents := []services.Event{
		services.EventSubmit,
		services.EventAssignFirstReviewer,
		services.EventReviewerAccepts,
		services.EventQuorumAccept,
		services.EventEditorAccept,
		services.EventOrderCreated,
		services.EventPaymentConfirmed,
	}
	if len(history) != len(wantEvents) {
		t.Fatalf("expected %d history rows, got %d", len(wantEvents), len(history))
	}
	for i, h := range history {
		if h.Event != string(wantEvents[i]) {
			t.Fatalf("history[%d]: expected %s, got %s", i, wantEvents[i], h.Event)
		}
		if i > 0 && h.FromState != history[i-1].ToState {
			t.Fatalf("history[%d] starts at %s but previous ended at %s", i, h.FromState, history[i-1].ToState)
		}
	}

	if env.Notifier.Count(services.NotifyPaymentConfirmed, testsupport.AuthorID) != 1 {
		t.Fatalf("author should be told about the payment once")
	}
	if env.Notifier.Count(services.NotifyManuscriptSubmitted, testsupport.EditorInChiefID) != 1 {
		t.Fatalf("editor-in-chief should be told about the submission")
	}
}

func TestReviewRoundRejected(t *testing.T) {
	env := testsupport.NewEnv(t)
	m := env.Submit(t, 4)
	env.Review(t, env.Assign(t, m.ID, testsupport.ReviewerA), models.RecommendReject)
	res := env.Review(t, env.Assign(t, m.ID, testsupport.ReviewerB), models.RecommendMinorRevisions)

	if res.Outcome != services.QuorumReject {
		t.Fatalf("expected reject outcome, got %s", res.Outcome)
	}
	stored := env.Manuscript(t, m.ID)
	assertState(t, stored, models.StateReviewRejected)
	if stored.Status != models.StatusRejected {
		t.Fatalf("expected coarse status rejected, got %s", stored.Status)
	}
	if env.Notifier.Count(services.NotifyRoundDecided, testsupport.AuthorID) != 1 {
		t.Fatalf("author should be told about the round decision")
	}
}

func TestFirstReviewDoesNotDecideRound(t *testing.T) {
	env := testsupport.NewEnv(t)
	m := env.Submit(t, 4)
	res := env.Review(t, env.Assign(t, m.ID, testsupport.ReviewerA), models.RecommendAccept)
	if res.Outcome != services.QuorumNotReached {
		t.Fatalf("expected no decision after one review, got %s", res.Outcome)
	}
	assertState(t, env.Manuscript(t, m.ID), models.StateReviewInProgress)
}

func TestEditorDecisionRequiresEditor(t *testing.T) {
	env := testsupport.NewEnv(t)
	m := env.Submit(t, 4)
	_, err := env.WF.Manuscripts.EditorDecision(context.Background(), services.EditorDecisionInput{
		ManuscriptID: m.ID,
		EditorID:     testsupport.AuthorID,
		Decision:     services.DecisionReject,
	})
	assertKind(t, err, services.KindForbidden)
	assertState(t, env.Manuscript(t, m.ID), models.StateSubmitted)
}

func TestEditorAcceptNeedsQuorumOrOverride(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()
	m := env.Submit(t, 4)
	env.Assign(t, m.ID, testsupport.ReviewerA)

	in := services.EditorDecisionInput{ManuscriptID: m.ID, EditorID: testsupport.EditorID, Decision: services.DecisionAccept}
	_, err := env.WF.Manuscripts.EditorDecision(ctx, in)
	assertKind(t, err, services.KindInvalidState)

	in.Override = true
	in.Comment = "Invited contribution"
	res, err := env.WF.Manuscripts.EditorDecision(ctx, in)
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	assertState(t, res.Manuscript, models.StatePaymentPending)

	history := env.Store.History()
	var override *models.ManuscriptStatusHistory
	for i := range history {
		if history[i].Event == string(services.EventEditorOverride) {
			override = &history[i]
		}
	}
	if override == nil || override.Notes == nil || *override.Notes != "Invited contribution" {
		t.Fatalf("override should be recorded with its comment, got %+v", override)
	}
}

func TestEditorRejectFailsPendingPayment(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()
	m, payment := acceptAndPay(t, env)

	res, err := env.WF.Manuscripts.EditorDecision(ctx, services.EditorDecisionInput{
		ManuscriptID: m.ID,
		EditorID:     testsupport.EditorInChiefID,
		Decision:     "REJECT",
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	assertState(t, res.Manuscript, models.StateEditorRejected)
	if p := res.Manuscript.FindPayment(payment.PaymentID); p == nil || p.Status != models.PaymentFailed || p.Metadata["failure_reason"] == "" {
		t.Fatalf("pending payment should be failed on rejection, got %+v", p)
	}

	_, err = env.WF.Payments.VerifyPayment(ctx, services.VerifyPaymentInput{
		ManuscriptID: m.ID,
		PaymentID:    payment.PaymentID,
		Amount:       payment.Amount,
		Status:       "confirmed",
		Signature:    env.Gateway.Sign(m.ID, payment.PaymentID, payment.Amount, "confirmed"),
	})
	assertKind(t, err, services.KindAlreadyProcessed)
	if env.Manuscript(t, m.ID).PublicationCharges.IsPaid {
		t.Fatalf("rejected manuscript must not be marked paid")
	}

	_, err = env.WF.Manuscripts.EditorDecision(ctx, services.EditorDecisionInput{
		ManuscriptID: m.ID,
		EditorID:     testsupport.EditorID,
		Decision:     services.DecisionReject,
	})
	assertKind(t, err, services.KindInvalidState)
}

func TestGatewayFailureKeepsEditorAcceptance(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()
	m := env.Submit(t, 8)
	env.Review(t, env.Assign(t, m.ID, testsupport.ReviewerA), models.RecommendAccept)
	env.Review(t, env.Assign(t, m.ID, testsupport.ReviewerB), models.RecommendAccept)

	env.Gateway.Fail = errors.New("503 service unavailable")
	res, err := env.WF.Manuscripts.EditorDecision(ctx, services.EditorDecisionInput{
		ManuscriptID: m.ID,
		EditorID:     testsupport.EditorID,
		Decision:     services.DecisionAccept,
	})
	if !errors.Is(err, services.ErrGatewayUnavailable) {
		t.Fatalf("expected gateway unavailable, got %v", err)
	}
	if res == nil || res.Payment != nil {
		t.Fatalf("expected decision result without payment, got %+v", res)
	}
	stored := env.Manuscript(t, m.ID)
	assertState(t, stored, models.StateEditorAccepted)
	if len(stored.Payments) != 0 {
		t.Fatalf("no payment should be stored when the gateway fails")
	}

	env.Gateway.Fail = nil
	order, err := env.WF.Payments.CreateOrder(ctx, m.ID, testsupport.AuthorID)
	if err != nil {
		t.Fatalf("retry CreateOrder: %v", err)
	}
	assertState(t, order.Manuscript, models.StatePaymentPending)
	if order.Payment.Amount != 2500 {
		t.Fatalf("expected 2500 minor units for 8 pages, got %d", order.Payment.Amount)
	}
}

func TestNotifierFailureDoesNotFailOperation(t *testing.T) {
	env := testsupport.NewEnv(t)
	env.Notifier.Fail = errors.New("smtp down")

	m := env.Submit(t, 3)
	if m.State != models.StateSubmitted {
		t.Fatalf("unexpected state %s", m.State)
	}
	if len(env.Notifier.Sent()) == 0 {
		t.Fatalf("notifications should still be attempted")
	}
}

func TestSubmitValidatesInput(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()
	base := services.SubmitInput{AuthorID: testsupport.AuthorID, Title: "T", Pages: 3, FileRef: "files/a.pdf"}

	bad := base
	bad.Title = "   "
	_, err := env.WF.Manuscripts.Submit(ctx, bad)
	assertKind(t, err, services.KindValidationFailed)

	bad = base
	bad.FileRef = "../etc/passwd"
	_, err = env.WF.Manuscripts.Submit(ctx, bad)
	assertKind(t, err, services.KindValidationFailed)

	bad = base
	bad.Pages = 0
	_, err = env.WF.Manuscripts.Submit(ctx, bad)
	assertKind(t, err, services.KindValidationFailed)

	bad = base
	bad.AuthorID = "ghost"
	_, err = env.WF.Manuscripts.Submit(ctx, bad)
	assertKind(t, err, services.KindNotFound)
}

func TestDecisionSummary(t *testing.T) {
	env := testsupport.NewEnv(t)
	m := env.Submit(t, 4)
	env.Review(t, env.Assign(t, m.ID, testsupport.ReviewerA), models.RecommendMajorRevisions)
	env.Review(t, env.Assign(t, m.ID, testsupport.ReviewerB), models.RecommendAccept)

	summary, err := env.WF.Manuscripts.DecisionSummary(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("DecisionSummary: %v", err)
	}
	if summary.SubmittedReviews != 2 || summary.Quorum != services.QuorumRevisions {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Recommendation != models.RecommendMajorRevisions {
		t.Fatalf("tie should go to the earliest review, got %s", summary.Recommendation)
	}
	if summary.AverageScore != 4 {
		t.Fatalf("expected average 4, got %v", summary.AverageScore)
	}
	if summary.State != models.StateRevisionsRequired {
		t.Fatalf("unexpected state %s", summary.State)
	}
}

func TestReadAccessIsLimitedToParticipants(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()
	m := env.Submit(t, 4)
	env.Assign(t, m.ID, testsupport.ReviewerA)

	for _, viewer := range []string{testsupport.AuthorID, testsupport.EditorID, testsupport.EditorInChiefID, testsupport.ReviewerA} {
		if _, err := env.WF.Manuscripts.GetForViewer(ctx, m.ID, viewer); err != nil {
			t.Fatalf("%s should see the manuscript: %v", viewer, err)
		}
		if _, err := env.WF.Manuscripts.History(ctx, m.ID, viewer); err != nil {
			t.Fatalf("%s should see the history: %v", viewer, err)
		}
		if _, err := env.WF.Payments.History(ctx, m.ID, viewer); err != nil {
			t.Fatalf("%s should see the payments: %v", viewer, err)
		}
	}

	for _, viewer := range []string{testsupport.ReviewerB, "stranger", ""} {
		_, err := env.WF.Manuscripts.GetForViewer(ctx, m.ID, viewer)
		assertKind(t, err, services.KindForbidden)
		_, err = env.WF.Manuscripts.History(ctx, m.ID, viewer)
		assertKind(t, err, services.KindForbidden)
		_, err = env.WF.Payments.History(ctx, m.ID, viewer)
		assertKind(t, err, services.KindForbidden)
	}

	_, err := env.WF.Manuscripts.GetForViewer(ctx, "missing", testsupport.AuthorID)
	assertKind(t, err, services.KindNotFound)
}
