package services_test

import (
	"context"
	"errors"
	"testing"

	"editorial-workflow-api/internal/testsupport"
	"editorial-workflow-api/models"
	"editorial-workflow-api/services"
)

func verifyInput(env *testsupport.Env, m *models.Manuscript, p *models.Payment, status string) services.VerifyPaymentInput {
	return services.VerifyPaymentInput{
		ManuscriptID: m.ID,
		PaymentID:    p.PaymentID,
		Amount:       p.Amount,
		Status:       status,
		Signature:    env.Gateway.Sign(m.ID, p.PaymentID, p.Amount, status),
	}
}

func TestVerifyPaymentIsIdempotent(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()
	m, p := acceptAndPay(t, env)

	in := verifyInput(env, m, p, "confirmed")
	if _, err := env.WF.Payments.VerifyPayment(ctx, in); err != nil {
		t.Fatalf("first VerifyPayment: %v", err)
	}
	historyLen := len(env.Store.History())
	notified := env.Notifier.Count(services.NotifyPaymentConfirmed, "")

	res, err := env.WF.Payments.VerifyPayment(ctx, in)
	if err != nil {
		t.Fatalf("replayed VerifyPayment: %v", err)
	}
	if !res.Duplicate || res.Payment.Status != models.PaymentConfirmed {
		t.Fatalf("replay should be a duplicate success, got %+v", res)
	}
	if got := len(env.Store.History()); got != historyLen {
		t.Fatalf("replay wrote history: %d -> %d", historyLen, got)
	}
	if got := env.Notifier.Count(services.NotifyPaymentConfirmed, ""); got != notified {
		t.Fatalf("replay sent notifications: %d -> %d", notified, got)
	}

	_, err = env.WF.Payments.VerifyPayment(ctx, verifyInput(env, m, p, "failed"))
	assertKind(t, err, services.KindAlreadyProcessed)
}

func TestVerifyPaymentRejectsTamperedSignature(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()
	m, p := acceptAndPay(t, env)

	in := verifyInput(env, m, p, "confirmed")
	in.Amount = 1
	_, err := env.WF.Payments.VerifyPayment(ctx, in)
	assertKind(t, err, services.KindInvalidSignature)

	in = verifyInput(env, m, p, "confirmed")
	in.Signature = ""
	_, err = env.WF.Payments.VerifyPayment(ctx, in)
	assertKind(t, err, services.KindInvalidSignature)

	stored := env.Manuscript(t, m.ID)
	assertState(t, stored, models.StatePaymentPending)
	if stored.PublicationCharges.IsPaid {
		t.Fatalf("tampered callback must not mark the manuscript paid")
	}
}

func TestVerifyPaymentValidation(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()
	m, p := acceptAndPay(t, env)

	_, err := env.WF.Payments.VerifyPayment(ctx, verifyInput(env, m, p, "pending"))
	assertKind(t, err, services.KindValidationFailed)

	wrongAmount := *p
	wrongAmount.Amount = 100
	_, err = env.WF.Payments.VerifyPayment(ctx, verifyInput(env, m, &wrongAmount, "confirmed"))
	assertKind(t, err, services.KindValidationFailed)

	unknown := *p
	unknown.PaymentID = "order_999"
	_, err = env.WF.Payments.VerifyPayment(ctx, verifyInput(env, m, &unknown, "confirmed"))
	assertKind(t, err, services.KindNotFound)

	_, err = env.WF.Payments.VerifyPayment(ctx, services.VerifyPaymentInput{PaymentID: p.PaymentID})
	assertKind(t, err, services.KindValidationFailed)
}

func TestVerifyPaymentRollsBackOnStoreFailure(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()
	m, p := acceptAndPay(t, env)

	env.Store.FailOn("AppendHistory", errors.New("disk full"))
	_, err := env.WF.Payments.VerifyPayment(ctx, verifyInput(env, m, p, "confirmed"))
	assertKind(t, err, services.KindOperationFailed)

	stored := env.Manuscript(t, m.ID)
	assertState(t, stored, models.StatePaymentPending)
	if stored.PublicationCharges.IsPaid || stored.PublishedAt != nil {
		t.Fatalf("failed settlement must leave no partial effects")
	}
	if got := stored.FindPayment(p.PaymentID); got.Status != models.PaymentPending {
		t.Fatalf("payment should still be pending, got %s", got.Status)
	}

	env.Store.ClearFaults()
	res, err := env.WF.Payments.VerifyPayment(ctx, verifyInput(env, m, p, "confirmed"))
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	assertState(t, res.Manuscript, models.StatePublished)
}

func TestFailedPaymentAllowsNewOrder(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()
	m, p := acceptAndPay(t, env)

	res, err := env.WF.Payments.VerifyPayment(ctx, verifyInput(env, m, p, "declined"))
	if err != nil {
		t.Fatalf("VerifyPayment failed status: %v", err)
	}
	if res.Outcome != models.PaymentFailed || res.Payment.Metadata["failed_at"] == "" {
		t.Fatalf("unexpected result %+v", res.Payment)
	}
	assertState(t, res.Manuscript, models.StatePaymentPending)

	dup, err := env.WF.Payments.VerifyPayment(ctx, verifyInput(env, m, p, "failed"))
	if err != nil || !dup.Duplicate {
		t.Fatalf("replayed failure should be a duplicate success, got %+v, %v", dup, err)
	}

	order, err := env.WF.Payments.CreateOrder(ctx, m.ID, testsupport.AuthorID)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.Reused || order.Payment.PaymentID == p.PaymentID {
		t.Fatalf("expected a fresh order, got %+v", order.Payment)
	}
	orders := env.Gateway.Orders()
	if len(orders) != 2 || orders[1].Receipt != m.ID+"-2" {
		t.Fatalf("unexpected gateway orders %+v", orders)
	}
	if n := len(env.Manuscript(t, m.ID).Payments); n != 2 {
		t.Fatalf("expected payment history of 2, got %d", n)
	}
}

func TestCreateOrderReusesPendingPayment(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()
	m, p := acceptAndPay(t, env)

	order, err := env.WF.Payments.CreateOrder(ctx, m.ID, testsupport.EditorID)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if !order.Reused || order.Payment.PaymentID != p.PaymentID {
		t.Fatalf("expected pending order %s to be reused, got %+v", p.PaymentID, order)
	}
	if len(env.Gateway.Orders()) != 1 {
		t.Fatalf("gateway should not be called again")
	}

	_, err = env.WF.Payments.CreateOrder(ctx, m.ID, testsupport.ReviewerA)
	assertKind(t, err, services.KindForbidden)
}

func TestCreateOrderBeforeAcceptanceIsInvalid(t *testing.T) {
	env := testsupport.NewEnv(t)
	m := env.Submit(t, 4)
	_, err := env.WF.Payments.CreateOrder(context.Background(), m.ID, testsupport.AuthorID)
	assertKind(t, err, services.KindInvalidState)
	if len(env.Gateway.Orders()) != 0 {
		t.Fatalf("gateway should not be called")
	}
}
