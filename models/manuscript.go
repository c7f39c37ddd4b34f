package models

import (
	"time"

	"gorm.io/gorm"
)

// Manuscript represents the manuscripts table.
type Manuscript struct {
	ID           string `gorm:"primaryKey;column:id;size:36" json:"id"`
	Title        string `gorm:"column:title" json:"title"`
	Abstract     string `gorm:"column:abstract;type:text" json:"abstract"`
	AuthorID     string `gorm:"column:author_id;size:36;index" json:"author_id"`
	Pages        int    `gorm:"column:pages" json:"pages"`
	FileRef      string `gorm:"column:file_ref" json:"file_ref"`
	CurrentRound int    `gorm:"column:current_round" json:"current_round"`

	// State is authoritative; Status and WorkflowStatus are derived from it on save.
	State          ManuscriptState  `gorm:"column:state;size:32;index" json:"state"`
	Status         ManuscriptStatus `gorm:"column:status;size:32;index" json:"status"`
	WorkflowStatus WorkflowStatus   `gorm:"column:workflow_status;size:32" json:"workflow_status"`

	PublicationCharges PublicationCharges `gorm:"embedded;embeddedPrefix:charge_" json:"publication_charges"`

	SubmittedAt time.Time  `gorm:"column:submitted_at" json:"submitted_at"`
	PublishedAt *time.Time `gorm:"column:published_at" json:"published_at,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updated_at"`

	// Relations
	Revisions []Revision `gorm:"foreignKey:ManuscriptID" json:"revisions"`
	Payments  []Payment  `gorm:"foreignKey:ManuscriptID" json:"payments"`
}

// PublicationCharges holds the fee breakdown in major currency units.
type PublicationCharges struct {
	BaseAmount  int64 `gorm:"column:base_amount" json:"base_amount"`
	ExtraPages  int   `gorm:"column:extra_pages" json:"extra_pages"`
	TotalAmount int64 `gorm:"column:total_amount" json:"total_amount"`
	IsPaid      bool  `gorm:"column:is_paid" json:"is_paid"`
}

// Revision is one author resubmission. Rows are never updated.
type Revision struct {
	ID            string    `gorm:"primaryKey;column:id;size:36" json:"id"`
	ManuscriptID  string    `gorm:"column:manuscript_id;size:36;index" json:"manuscript_id"`
	Round         int       `gorm:"column:round" json:"round"`
	SubmittedDate time.Time `gorm:"column:submitted_date" json:"submitted_date"`
	Notes         string    `gorm:"column:notes;type:text" json:"notes"`
	FileRef       string    `gorm:"column:file_ref" json:"file_ref"`
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is one publication fee order. Amount is in minor units.
type Payment struct {
	ID           string            `gorm:"primaryKey;column:id;size:36" json:"-"`
	ManuscriptID string            `gorm:"column:manuscript_id;size:36;index" json:"manuscript_id"`
	PaymentID    string            `gorm:"column:payment_id;size:64;index" json:"payment_id"`
	Amount       int64             `gorm:"column:amount" json:"amount"`
	Currency     string            `gorm:"column:currency;size:8" json:"currency"`
	Status       PaymentStatus     `gorm:"column:status;size:16" json:"status"`
	Timestamp    time.Time         `gorm:"column:timestamp" json:"timestamp"`
	Metadata     map[string]string `gorm:"column:metadata;serializer:json" json:"metadata,omitempty"`
}

// TableName overrides
func (Manuscript) TableName() string {
	return "manuscripts"
}

func (Revision) TableName() string {
	return "manuscript_revisions"
}

func (Payment) TableName() string {
	return "manuscript_payments"
}

// SetState moves the manuscript to s and refreshes both projections.
func (m *Manuscript) SetState(s ManuscriptState) {
	m.State = s
	m.syncStatus()
}

func (m *Manuscript) syncStatus() {
	m.Status = m.State.Status()
	m.WorkflowStatus = m.State.WorkflowStatus()
}

// BeforeSave keeps the persisted projections aligned with State.
func (m *Manuscript) BeforeSave(tx *gorm.DB) error {
	m.syncStatus()
	return nil
}

// PendingPayment returns the active pending payment, if any.
func (m *Manuscript) PendingPayment() *Payment {
	for i := range m.Payments {
		if m.Payments[i].Status == PaymentPending {
			return &m.Payments[i]
		}
	}
	return nil
}

// FindPayment returns the payment entry carrying the external payment id.
// A pending entry wins over settled ones with the same id.
func (m *Manuscript) FindPayment(paymentID string) *Payment {
	var found *Payment
	for i := range m.Payments {
		p := &m.Payments[i]
		if p.PaymentID != paymentID {
			continue
		}
		if p.Status == PaymentPending {
			return p
		}
		if found == nil {
			found = p
		}
	}
	return found
}

// Clone returns a deep copy, used by stores that hand out snapshots.
func (m *Manuscript) Clone() *Manuscript {
	if m == nil {
		return nil
	}
	out := *m
	if m.PublishedAt != nil {
		t := *m.PublishedAt
		out.PublishedAt = &t
	}
	out.Revisions = append([]Revision(nil), m.Revisions...)
	out.Payments = make([]Payment, len(m.Payments))
	for i, p := range m.Payments {
		cp := p
		if p.Metadata != nil {
			cp.Metadata = make(map[string]string, len(p.Metadata))
			for k, v := range p.Metadata {
				cp.Metadata[k] = v
			}
		}
		out.Payments[i] = cp
	}
	return &out
}
