package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"editorial-workflow-api/models"
)

// PaymentService opens publication fee orders and settles gateway callbacks.
type PaymentService struct {
	*deps
}

// OrderResult is the manuscript with its pending payment. Reused is set when
// an existing pending order was returned instead of a new one.
type OrderResult struct {
	Manuscript *models.Manuscript
	Payment    *models.Payment
	Reused     bool
}

type VerifyPaymentInput struct {
	ManuscriptID string
	PaymentID    string
	// Amount is in minor units, as signed by the gateway.
	Amount    int64
	Status    string
	Signature string
}

// VerificationResult reports how a callback settled the payment. Duplicate is
// set when the callback repeated an outcome that was already recorded.
type VerificationResult struct {
	Manuscript *models.Manuscript
	Payment    *models.Payment
	Outcome    models.PaymentStatus
	Duplicate  bool
}

var payableStates = map[models.ManuscriptState]bool{
	models.StateEditorAccepted: true,
	models.StatePaymentPending: true,
}

func (s *PaymentService) authorizeOrder(ctx context.Context, m *models.Manuscript, actorID string) error {
	if actorID == "" {
		return newError(KindValidationFailed, "actor id is required")
	}
	if actorID == m.AuthorID {
		return nil
	}
	user, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return wrapStoreErr(err, "user "+actorID)
	}
	if !user.HasRole(models.RoleEditor) {
		return newError(KindForbidden, "only the author or an editor can open a payment order")
	}
	return nil
}

// CreateOrder opens a gateway order for the publication fee and moves the
// manuscript to payment_pending. An existing pending order is returned as is.
// The gateway is called outside the transaction; when it fails nothing is
// recorded and GatewayUnavailable is returned.
func (s *PaymentService) CreateOrder(ctx context.Context, manuscriptID, actorID string) (*OrderResult, error) {
	if s.gateway == nil {
		return nil, newError(KindGatewayUnavailable, "no payment gateway configured")
	}

	m, err := s.store.GetManuscript(ctx, manuscriptID)
	if err != nil {
		return nil, wrapStoreErr(err, "manuscript")
	}
	if err := s.authorizeOrder(ctx, m, actorID); err != nil {
		return nil, err
	}
	if !payableStates[m.State] {
		return nil, newError(KindInvalidState, "manuscript is %s; payment requires an editor acceptance", m.State)
	}
	if p := m.PendingPayment(); p != nil {
		return &OrderResult{Manuscript: m, Payment: p, Reused: true}, nil
	}

	charges, err := ComputeCharges(m.Pages)
	if err != nil {
		return nil, err
	}
	amount := minorUnits(charges.TotalAmount)
	currency := s.settings.Payment.Currency
	receipt := fmt.Sprintf("%s-%d", m.ID, len(m.Payments)+1)

	ref, err := s.gateway.CreateOrder(ctx, amount, currency, receipt)
	if err != nil {
		log.Printf("[payment] order for %s failed: %v", m.ID, err)
		return nil, &WorkflowError{Kind: KindGatewayUnavailable, Message: "payment gateway rejected the order request", Err: err}
	}

	result := &OrderResult{}
	err = s.store.RunInTransaction(ctx, func(tx Store) error {
		locked, err := s.lockManuscript(ctx, tx, manuscriptID)
		if err != nil {
			return err
		}
		if !payableStates[locked.State] {
			return newError(KindInvalidState, "manuscript moved to %s while the order was being created", locked.State)
		}
		if p := locked.PendingPayment(); p != nil {
			// A concurrent request won; the fresh gateway order is abandoned.
			log.Printf("[payment] %s already has pending order %s; dropping %s", locked.ID, p.PaymentID, ref.ExternalOrderID)
			result.Manuscript, result.Payment, result.Reused = locked, p, true
			return nil
		}

		now := s.now()
		locked.Payments = append(locked.Payments, models.Payment{
			ID:           s.newID(),
			ManuscriptID: locked.ID,
			PaymentID:    ref.ExternalOrderID,
			Amount:       amount,
			Currency:     currency,
			Status:       models.PaymentPending,
			Timestamp:    now,
			Metadata: map[string]string{
				"receipt":    receipt,
				"created_by": actorID,
			},
		})
		paid := locked.PublicationCharges.IsPaid
		locked.PublicationCharges = charges
		locked.PublicationCharges.IsPaid = paid

		if locked.State != models.StatePaymentPending {
			if err := applyEvent(ctx, tx, locked, EventOrderCreated, actorID, "order "+ref.ExternalOrderID, now); err != nil {
				return err
			}
		}
		if err := s.saveManuscript(ctx, tx, locked); err != nil {
			return err
		}
		result.Manuscript = locked
		result.Payment = &locked.Payments[len(locked.Payments)-1]
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Reused {
		return result, nil
	}

	m = result.Manuscript
	log.Printf("[payment] order %s opened for %s: %d %s", result.Payment.PaymentID, m.ID, result.Payment.Amount, currency)
	payload := withPayload(manuscriptPayload(m),
		"payment_id", result.Payment.PaymentID,
		"amount", formatAmount(m.PublicationCharges.TotalAmount),
		"currency", currency,
	)
	s.notifySafe(ctx, NotifyPaymentRequested, s.recipients(ctx, m.AuthorID), payload)
	return result, nil
}

// normalizeOutcome maps gateway status words onto a payment outcome.
func normalizeOutcome(status string) (models.PaymentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "confirmed", "success", "succeeded", "paid", "captured":
		return models.PaymentConfirmed, true
	case "failed", "failure", "cancelled", "canceled", "declined":
		return models.PaymentFailed, true
	}
	return "", false
}

// VerifyPayment applies a signed gateway callback. The signature is checked
// before anything is read. Replaying an outcome that is already recorded
// succeeds without changes; a conflicting outcome is AlreadyProcessed.
func (s *PaymentService) VerifyPayment(ctx context.Context, in VerifyPaymentInput) (*VerificationResult, error) {
	manuscriptID := strings.TrimSpace(in.ManuscriptID)
	paymentID := strings.TrimSpace(in.PaymentID)
	if manuscriptID == "" || paymentID == "" {
		return nil, newError(KindValidationFailed, "manuscript id and payment id are required")
	}
	if s.gateway == nil {
		return nil, newError(KindGatewayUnavailable, "no payment gateway configured")
	}
	payload := CanonicalPaymentPayload(manuscriptID, paymentID, in.Amount, in.Status)
	if !s.gateway.VerifySignature(payload, in.Signature) {
		log.Printf("[payment] rejected callback for %s/%s: bad signature", manuscriptID, paymentID)
		return nil, newError(KindInvalidSignature, "payment signature does not match")
	}
	outcome, ok := normalizeOutcome(in.Status)
	if !ok {
		return nil, newError(KindValidationFailed, "unknown payment status %q", in.Status)
	}

	result := &VerificationResult{Outcome: outcome}
	err := s.store.RunInTransaction(ctx, func(tx Store) error {
		m, err := s.lockManuscript(ctx, tx, manuscriptID)
		if err != nil {
			return err
		}
		p := m.FindPayment(paymentID)
		if p == nil {
			return newError(KindNotFound, "payment %s not found on manuscript %s", paymentID, manuscriptID)
		}
		if p.Status != models.PaymentPending {
			if p.Status != outcome {
				return newError(KindAlreadyProcessed, "payment %s was already %s", paymentID, p.Status)
			}
			result.Manuscript, result.Payment, result.Duplicate = m, p, true
			return nil
		}
		if p.Amount != in.Amount {
			return newError(KindValidationFailed, "amount %d does not match order amount %d", in.Amount, p.Amount)
		}

		now := s.now()
		if p.Metadata == nil {
			p.Metadata = map[string]string{}
		}
		switch outcome {
		case models.PaymentConfirmed:
			if !CanApply(EventPaymentConfirmed, m.State) {
				return newError(KindInvalidState, "manuscript is %s; cannot confirm payment", m.State)
			}
			p.Status = models.PaymentConfirmed
			p.Metadata["confirmed_at"] = now.Format(time.RFC3339)
			m.PublicationCharges.IsPaid = true
			m.PublishedAt = timePtr(now)
			if err := applyEvent(ctx, tx, m, EventPaymentConfirmed, m.AuthorID, "payment "+paymentID, now); err != nil {
				return err
			}
		case models.PaymentFailed:
			p.Status = models.PaymentFailed
			p.Metadata["failed_at"] = now.Format(time.RFC3339)
			p.Metadata["failure_reason"] = "gateway reported " + strings.ToLower(strings.TrimSpace(in.Status))
			if CanApply(EventPaymentFailed, m.State) {
				if err := applyEvent(ctx, tx, m, EventPaymentFailed, m.AuthorID, "payment "+paymentID, now); err != nil {
					return err
				}
			}
		}
		if err := s.saveManuscript(ctx, tx, m); err != nil {
			return err
		}
		result.Manuscript, result.Payment = m, p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Duplicate {
		log.Printf("[payment] duplicate callback for %s/%s (%s)", manuscriptID, paymentID, outcome)
		return result, nil
	}

	m := result.Manuscript
	log.Printf("[payment] %s for %s is %s", paymentID, m.ID, outcome)
	event := NotifyPaymentConfirmed
	if outcome == models.PaymentFailed {
		event = NotifyPaymentFailed
	}
	notifyPayload := withPayload(manuscriptPayload(m),
		"payment_id", paymentID,
		"amount", formatAmount(m.PublicationCharges.TotalAmount),
		"currency", result.Payment.Currency,
	)
	s.notifySafe(ctx, event, s.recipients(ctx, append([]string{m.AuthorID}, s.editorsInChief()...)...), notifyPayload)
	return result, nil
}

// History returns the manuscript's payments, oldest first.
func (s *PaymentService) History(ctx context.Context, manuscriptID, viewerID string) ([]models.Payment, error) {
	m, err := s.store.GetManuscript(ctx, manuscriptID)
	if err != nil {
		return nil, wrapStoreErr(err, "manuscript")
	}
	if err := s.authorizeView(ctx, m, viewerID); err != nil {
		return nil, err
	}
	return m.Payments, nil
}
