package config

import (
	"testing"
	"time"
)

func TestParseWorkflowSettingsKeepsDefaults(t *testing.T) {
	settings := DefaultWorkflowSettings()
	data := []byte(`
editorsInChief: [" eic-1 ", "eic-2", "eic-1", ""]
payment:
  gatewayUrl: https://pay.example.org/v1
  timeoutSeconds: 5
`)
	if err := ParseWorkflowSettings(data, &settings); err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(settings.EditorsInChief) != 2 || settings.EditorsInChief[0] != "eic-1" || settings.EditorsInChief[1] != "eic-2" {
		t.Fatalf("unexpected editors in chief: %#v", settings.EditorsInChief)
	}
	if settings.ReviewDueDays != 14 {
		t.Fatalf("expected default due days, got %d", settings.ReviewDueDays)
	}
	if settings.Payment.Currency != "USD" {
		t.Fatalf("expected default currency, got %q", settings.Payment.Currency)
	}
	if settings.Payment.Timeout() != 5*time.Second {
		t.Fatalf("unexpected timeout %v", settings.Payment.Timeout())
	}
	if !settings.IsEditorInChief("eic-2") || settings.IsEditorInChief("someone") {
		t.Fatalf("role registry lookup mismatch")
	}
}

func TestParseWorkflowSettingsRejectsNegativeDueDays(t *testing.T) {
	settings := DefaultWorkflowSettings()
	if err := ParseWorkflowSettings([]byte("reviewDueDays: -3\n"), &settings); err == nil {
		t.Fatalf("expected error for negative due days")
	}
}

func TestLoadWorkflowSettingsEnvOverrides(t *testing.T) {
	t.Setenv("WORKFLOW_CONFIG", "")
	t.Setenv("EDITORS_IN_CHIEF", "a, b")
	t.Setenv("REVIEW_DUE_DAYS", "21")
	t.Setenv("PAYMENT_CURRENCY", "inr")

	settings, err := LoadWorkflowSettings()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(settings.EditorsInChief) != 2 || settings.EditorsInChief[1] != "b" {
		t.Fatalf("unexpected editors: %#v", settings.EditorsInChief)
	}
	if settings.ReviewDuration() != 21*24*time.Hour {
		t.Fatalf("unexpected review duration %v", settings.ReviewDuration())
	}
	if settings.Payment.Currency != "INR" {
		t.Fatalf("unexpected currency %q", settings.Payment.Currency)
	}
	if settings.Payment.Timeout() != 15*time.Second {
		t.Fatalf("unexpected default timeout %v", settings.Payment.Timeout())
	}
}
