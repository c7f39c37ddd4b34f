package services

import (
	"context"
	"log"

	"editorial-workflow-api/utils"

	"golang.org/x/sync/errgroup"
)

// Notification event names.
const (
	NotifyManuscriptSubmitted = "manuscript_submitted"
	NotifyReviewerInvited     = "reviewer_invited"
	NotifyAssignmentAccepted  = "assignment_accepted"
	NotifyAssignmentDeclined  = "assignment_declined"
	NotifyReviewSubmitted     = "review_submitted"
	NotifyRoundDecided        = "round_decided"
	NotifyRevisionSubmitted   = "revision_submitted"
	NotifyEditorDecision      = "editor_decision"
	NotifyPaymentRequested    = "payment_requested"
	NotifyPaymentConfirmed    = "payment_confirmed"
	NotifyPaymentFailed       = "payment_failed"
)

// Recipient is a user addressed by a notification.
type Recipient struct {
	UserID string
	Name   string
	Email  string
}

// Notifier is the notification port. Delivery is best-effort: the engine
// logs errors and never fails a workflow operation because of them.
type Notifier interface {
	Notify(ctx context.Context, event string, recipient Recipient, payload map[string]string) error
}

// NoopNotifier drops every notification.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, string, Recipient, map[string]string) error { return nil }

const notifyFanOut = 4

func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}

// notifySafe delivers event to every recipient and swallows failures.
// It must only be called after the transaction that produced the event committed.
func (d *deps) notifySafe(ctx context.Context, event string, recipients []Recipient, payload map[string]string) {
	if d.notifier == nil || len(recipients) == 0 {
		return
	}
	ctx = persistentContext(ctx)

	var g errgroup.Group
	g.SetLimit(notifyFanOut)
	for _, r := range recipients {
		g.Go(func() error {
			if err := d.notifier.Notify(ctx, event, r, payload); err != nil {
				log.Printf("[notify] %s to %s failed: %v", event, r.UserID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// recipients resolves user ids, skipping blanks, duplicates and lookups that fail.
func (d *deps) recipients(ctx context.Context, ids ...string) []Recipient {
	out := make([]Recipient, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		user, err := d.store.GetUser(ctx, id)
		if err != nil {
			log.Printf("[notify] recipient %s unavailable: %v", id, err)
			continue
		}
		r := Recipient{UserID: user.ID, Name: user.Name}
		if utils.ValidateEmail(user.Email) {
			r.Email = user.Email
		}
		out = append(out, r)
	}
	return out
}
