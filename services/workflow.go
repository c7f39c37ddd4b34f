package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"editorial-workflow-api/config"
	"editorial-workflow-api/models"

	"github.com/google/uuid"
)

// Options wires the engine's collaborators.
type Options struct {
	Store    Store
	Notifier Notifier
	Gateway  PaymentGateway
	Settings config.WorkflowSettings
	// Clock defaults to time.Now in UTC.
	Clock func() time.Time
	// NewID defaults to random UUIDs.
	NewID func() string
}

// Workflow is the editorial engine's public surface, one service per component.
type Workflow struct {
	Manuscripts *ManuscriptService
	Assignments *AssignmentService
	Revisions   *RevisionService
	Payments    *PaymentService
}

type deps struct {
	store    Store
	notifier Notifier
	gateway  PaymentGateway
	settings config.WorkflowSettings
	now      func() time.Time
	newID    func() string
}

func NewWorkflow(opts Options) *Workflow {
	d := &deps{
		store:    opts.Store,
		notifier: opts.Notifier,
		gateway:  opts.Gateway,
		settings: opts.Settings,
		now:      opts.Clock,
		newID:    opts.NewID,
	}
	if d.store == nil {
		d.store = NewGormStore(nil)
	}
	if d.notifier == nil {
		d.notifier = NoopNotifier{}
	}
	if d.now == nil {
		d.now = func() time.Time { return time.Now().UTC() }
	}
	if d.newID == nil {
		d.newID = uuid.NewString
	}
	if d.settings.Payment.Currency == "" {
		d.settings.Payment.Currency = config.DefaultWorkflowSettings().Payment.Currency
	}

	payments := &PaymentService{deps: d}
	return &Workflow{
		Manuscripts: &ManuscriptService{deps: d, payments: payments},
		Assignments: &AssignmentService{deps: d},
		Revisions:   &RevisionService{deps: d},
		Payments:    payments,
	}
}

func (d *deps) lockManuscript(ctx context.Context, tx Store, id string) (*models.Manuscript, error) {
	m, err := tx.LockManuscript(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "manuscript")
	}
	return m, nil
}

func (d *deps) saveManuscript(ctx context.Context, tx Store, m *models.Manuscript) error {
	return wrapStoreErr(tx.SaveManuscript(ctx, m), "manuscript")
}

// userWithRole loads userID and checks it carries role. A missing user is
// NotFound; a user without the role gets ifMissing.
func (d *deps) userWithRole(ctx context.Context, tx Store, userID, role string, ifMissing ErrorKind) (*models.User, error) {
	if userID == "" {
		return nil, newError(KindValidationFailed, "%s id is required", role)
	}
	user, err := tx.GetUser(ctx, userID)
	if err != nil {
		return nil, wrapStoreErr(err, "user "+userID)
	}
	if !user.HasRole(role) {
		return nil, newError(ifMissing, "user %s is not a %s", userID, role)
	}
	return user, nil
}

// authorizeView allows the author, editors, registered editors-in-chief and
// reviewers assigned to m to read it.
func (d *deps) authorizeView(ctx context.Context, m *models.Manuscript, viewerID string) error {
	if viewerID == "" {
		return newError(KindForbidden, "a viewer is required")
	}
	if viewerID == m.AuthorID || d.settings.IsEditorInChief(viewerID) {
		return nil
	}
	user, err := d.store.GetUser(ctx, viewerID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return wrapStoreErr(err, "user "+viewerID)
	}
	if user != nil && user.HasRole(models.RoleEditor) {
		return nil
	}
	assigned, err := d.store.FindAssignments(ctx, AssignmentFilter{ManuscriptID: m.ID, ReviewerID: viewerID})
	if err != nil {
		return wrapStoreErr(err, "assignments")
	}
	if len(assigned) > 0 {
		return nil
	}
	return newError(KindForbidden, "user %s may not view manuscript %s", viewerID, m.ID)
}

func (d *deps) editorsInChief() []string {
	return d.settings.EditorsInChief
}

func manuscriptPayload(m *models.Manuscript) map[string]string {
	return map[string]string{
		"manuscript_id": m.ID,
		"title":         m.Title,
		"round":         strconv.Itoa(m.CurrentRound),
		"status":        string(m.Status),
	}
}

func withPayload(base map[string]string, kv ...string) map[string]string {
	out := make(map[string]string, len(base)+len(kv)/2)
	for k, v := range base {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// NewDefaultWorkflow wires the engine to config.DB, SMTP mail and the HTTP
// payment gateway described by settings. InitDB must have run.
func NewDefaultWorkflow(settings config.WorkflowSettings) *Workflow {
	var mailer MailSender
	if mail := config.LoadMailSettings(); mail.Configured() {
		mailer = mail
	}
	return NewWorkflow(Options{
		Store:    NewGormStore(config.DB),
		Notifier: NewMailNotifier(config.DB, mailer),
		Gateway:  NewHTTPGateway(settings.Payment),
		Settings: settings,
	})
}
