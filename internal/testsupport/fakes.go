package testsupport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"editorial-workflow-api/services"
)

// Sent is one recorded notification.
type Sent struct {
	Event     string
	Recipient services.Recipient
	Payload   map[string]string
}

// RecordingNotifier captures notifications. When Fail is set every call
// returns it after recording.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Sent
	Fail error
}

func (n *RecordingNotifier) Notify(_ context.Context, event string, recipient services.Recipient, payload map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Sent{Event: event, Recipient: recipient, Payload: payload})
	return n.Fail
}

func (n *RecordingNotifier) Sent() []Sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Sent(nil), n.sent...)
}

// Count returns how many notifications of event reached userID. An empty
// userID counts every recipient.
func (n *RecordingNotifier) Count(event, userID string) int {
	total := 0
	for _, s := range n.Sent() {
		if s.Event == event && (userID == "" || s.Recipient.UserID == userID) {
			total++
		}
	}
	return total
}

func (n *RecordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

// Order is a gateway order captured by FakeGateway.
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
}

// FakeGateway issues sequential order ids and verifies HMAC signatures with Secret.
type FakeGateway struct {
	Secret string
	Fail   error

	mu     sync.Mutex
	orders []Order
}

var _ services.PaymentGateway = (*FakeGateway)(nil)

func NewFakeGateway(secret string) *FakeGateway {
	return &FakeGateway{Secret: secret}
}

func (g *FakeGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string) (services.OrderRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail != nil {
		return services.OrderRef{}, g.Fail
	}
	order := Order{
		ID:       fmt.Sprintf("order_%03d", len(g.orders)+1),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	}
	g.orders = append(g.orders, order)
	return services.OrderRef{ExternalOrderID: order.ID}, nil
}

func (g *FakeGateway) VerifySignature(payload, signature string) bool {
	return services.VerifyHMAC(g.Secret, payload, signature)
}

func (g *FakeGateway) Orders() []Order {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Order(nil), g.orders...)
}

// Sign produces the callback signature the real gateway would send.
func (g *FakeGateway) Sign(manuscriptID, paymentID string, amount int64, status string) string {
	return services.SignPayload(g.Secret, services.CanonicalPaymentPayload(manuscriptID, paymentID, amount, status))
}

// NewStepClock returns a clock that starts at start and advances by step on
// every call, so ordering by timestamp is deterministic.
func NewStepClock(start time.Time, step time.Duration) func() time.Time {
	var (
		mu  sync.Mutex
		now = start
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := now
		now = now.Add(step)
		return t
	}
}

// NewSequence returns an id generator yielding prefix-1, prefix-2, ...
func NewSequence(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
