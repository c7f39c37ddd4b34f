package services

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"strings"
	"time"

	"editorial-workflow-api/models"

	"gorm.io/gorm"
)

// MailSender delivers one HTML email. config.MailSettings satisfies it.
type MailSender interface {
	SendMail(to []string, subject, html string) error
}

type messageTemplate struct {
	Title string
	Body  string
	Type  string
}

var messageTemplates = map[string]messageTemplate{
	NotifyManuscriptSubmitted: {"Manuscript received: {{title}}", "The manuscript \"{{title}}\" was submitted and is awaiting reviewer assignment.", "info"},
	NotifyReviewerInvited:     {"Review invitation: {{title}}", "You have been invited to review \"{{title}}\" (round {{round}}). Please respond by {{due_date}}.", "info"},
	NotifyAssignmentAccepted:  {"Reviewer accepted: {{title}}", "{{reviewer_name}} accepted the review of \"{{title}}\" (round {{round}}).", "success"},
	NotifyAssignmentDeclined:  {"Reviewer declined: {{title}}", "{{reviewer_name}} declined the review of \"{{title}}\" (round {{round}}). Reason: {{reason}}", "warning"},
	NotifyReviewSubmitted:     {"Review submitted: {{title}}", "A review for \"{{title}}\" (round {{round}}) was submitted with recommendation {{recommendation}}.", "info"},
	NotifyRoundDecided:        {"Review outcome: {{title}}", "Round {{round}} of \"{{title}}\" concluded. Current status: {{status}}.", "info"},
	NotifyRevisionSubmitted:   {"Revision submitted: {{title}}", "The author submitted a revision of \"{{title}}\". Round {{round}} is now open.", "info"},
	NotifyEditorDecision:      {"Editorial decision: {{title}}", "The editor recorded the decision \"{{decision}}\" for \"{{title}}\".", "info"},
	NotifyPaymentRequested:    {"Publication charges: {{title}}", "Publication charges of {{amount}} {{currency}} are due for \"{{title}}\". Order reference: {{payment_id}}.", "info"},
	NotifyPaymentConfirmed:    {"Payment received: {{title}}", "Payment {{payment_id}} was confirmed and \"{{title}}\" is now published.", "success"},
	NotifyPaymentFailed:       {"Payment failed: {{title}}", "Payment {{payment_id}} for \"{{title}}\" did not complete. A new order can be created.", "error"},
}

// MailNotifier stores an in-app notification row and emails the recipient.
type MailNotifier struct {
	db     *gorm.DB
	mailer MailSender
	now    func() time.Time
}

var _ Notifier = (*MailNotifier)(nil)

func NewMailNotifier(db *gorm.DB, mailer MailSender) *MailNotifier {
	return &MailNotifier{db: db, mailer: mailer, now: time.Now}
}

func applyTemplatePlaceholders(text string, data map[string]string) string {
	result := text
	for key, value := range data {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return result
}

// RenderMessage fills the event's title and body templates.
func RenderMessage(event string, payload map[string]string) (title, body, kind string, err error) {
	tmpl, ok := messageTemplates[event]
	if !ok {
		return "", "", "", fmt.Errorf("no message template for event %s", event)
	}
	return applyTemplatePlaceholders(tmpl.Title, payload), applyTemplatePlaceholders(tmpl.Body, payload), tmpl.Type, nil
}

func (n *MailNotifier) Notify(ctx context.Context, event string, recipient Recipient, payload map[string]string) error {
	title, body, kind, err := RenderMessage(event, payload)
	if err != nil {
		return err
	}

	if n.db != nil {
		row := models.Notification{
			UserID:    recipient.UserID,
			Event:     event,
			Title:     title,
			Message:   body,
			Type:      kind,
			CreatedAt: n.now(),
		}
		if id := payload["manuscript_id"]; id != "" {
			row.RelatedManuscriptID = &id
		}
		if err := n.db.WithContext(ctx).Create(&row).Error; err != nil {
			log.Printf("[notify] store notification %s for %s: %v", event, recipient.UserID, err)
		}
	}

	if n.mailer == nil || strings.TrimSpace(recipient.Email) == "" {
		return nil
	}
	if err := n.mailer.SendMail([]string{recipient.Email}, title, buildFormalEmailHTML(title, recipient.Name, body)); err != nil {
		return fmt.Errorf("send %s email: %w", event, err)
	}
	return nil
}

func buildFormalEmailHTML(subject, recipientName, message string) string {
	name := strings.TrimSpace(recipientName)
	if name == "" {
		name = "colleague"
	}

	escapedSubject := template.HTMLEscapeString(subject)
	escapedGreeting := template.HTMLEscapeString(fmt.Sprintf("Dear %s,", name))
	escapedMessage := template.HTMLEscapeString(strings.TrimSpace(message))
	escapedMessage = strings.ReplaceAll(strings.ReplaceAll(escapedMessage, "\r\n", "\n"), "\r", "\n")
	escapedMessage = strings.ReplaceAll(escapedMessage, "\n", "<br />")

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body style="margin:0;padding:0;background-color:#f9fafb;font-family:'Segoe UI',Tahoma,Arial,sans-serif;">
<div style="max-width:640px;margin:0 auto;padding:24px 20px;">
  <div style="background-color:#ffffff;border:1px solid #e5e7eb;border-radius:12px;padding:24px;">
    <p style="margin:0 0 16px 0;font-size:16px;line-height:1.7;color:#111827;">%s</p>
    <p style="margin:0;font-size:16px;line-height:1.7;color:#111827;word-break:break-word;">%s</p>
  </div>
</div>
</body>
</html>`, escapedSubject, escapedGreeting, escapedMessage)
}
