package services_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"editorial-workflow-api/config"
	"editorial-workflow-api/services"
)

func TestCanonicalPaymentPayload(t *testing.T) {
	got := services.CanonicalPaymentPayload(" ms-1 ", "order_1", 4500, " CONFIRMED ")
	if got != "ms-1|order_1|4500|confirmed" {
		t.Fatalf("unexpected payload %q", got)
	}
}

func TestVerifyHMAC(t *testing.T) {
	payload := services.CanonicalPaymentPayload("ms-1", "order_1", 4500, "confirmed")
	sig := services.SignPayload("secret", payload)

	if !services.VerifyHMAC("secret", payload, sig) {
		t.Fatalf("valid signature rejected")
	}
	if !services.VerifyHMAC("secret", payload, strings.ToUpper(sig)) {
		t.Fatalf("hex case should not matter")
	}
	if services.VerifyHMAC("other", payload, sig) {
		t.Fatalf("signature accepted under the wrong secret")
	}
	if services.VerifyHMAC("", payload, services.SignPayload("", payload)) {
		t.Fatalf("empty secret must never verify")
	}
	if services.VerifyHMAC("secret", payload, "zz-not-hex") {
		t.Fatalf("malformed signature accepted")
	}
}

func TestHTTPGatewayCreateOrder(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key-id" || pass != "key-secret" {
			t.Errorf("missing basic auth")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_abc"}`))
	}))
	defer server.Close()

	gw := services.NewHTTPGateway(config.PaymentSettings{
		GatewayURL: server.URL + "/",
		KeyID:      "key-id",
		KeySecret:  "key-secret",
	})
	ref, err := gw.CreateOrder(context.Background(), 4500, "USD", "ms-1-1")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if ref.ExternalOrderID != "order_abc" {
		t.Fatalf("unexpected order id %q", ref.ExternalOrderID)
	}
	if got["amount"] != float64(4500) || got["currency"] != "USD" || got["receipt"] != "ms-1-1" {
		t.Fatalf("unexpected request body %v", got)
	}
}

func TestHTTPGatewayErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	gw := services.NewHTTPGateway(config.PaymentSettings{GatewayURL: server.URL})
	if _, err := gw.CreateOrder(context.Background(), 100, "USD", "r"); err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected 503 error, got %v", err)
	}

	unconfigured := services.NewHTTPGateway(config.PaymentSettings{})
	if _, err := unconfigured.CreateOrder(context.Background(), 100, "USD", "r"); err == nil {
		t.Fatalf("expected error for missing gateway url")
	}
}

func TestRenderMessage(t *testing.T) {
	title, body, kind, err := services.RenderMessage(services.NotifyPaymentRequested, map[string]string{
		"title":      "On Graphs",
		"amount":     "45.00",
		"currency":   "USD",
		"payment_id": "order_1",
	})
	if err != nil {
		t.Fatalf("RenderMessage: %v", err)
	}
	if title != "Publication charges: On Graphs" || kind != "info" {
		t.Fatalf("unexpected title/kind %q %q", title, kind)
	}
	if !strings.Contains(body, "45.00 USD") || !strings.Contains(body, "order_1") {
		t.Fatalf("unexpected body %q", body)
	}
	if _, _, _, err := services.RenderMessage("unknown_event", nil); err == nil {
		t.Fatalf("expected error for unknown event")
	}
}
