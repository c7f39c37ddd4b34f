package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	workflowConfigEnv     = "WORKFLOW_CONFIG"
	defaultReviewDueDays  = 14
	defaultCurrency       = "USD"
	defaultGatewayTimeout = 15 * time.Second
)

// WorkflowSettings carries the editorial engine's tunables and role registry.
type WorkflowSettings struct {
	// EditorsInChief receive decision and submission notifications.
	EditorsInChief []string        `yaml:"editorsInChief"`
	ReviewDueDays  int             `yaml:"reviewDueDays"`
	Payment        PaymentSettings `yaml:"payment"`
}

// PaymentSettings configures the external payment gateway.
type PaymentSettings struct {
	GatewayURL     string `yaml:"gatewayUrl"`
	KeyID          string `yaml:"keyId"`
	KeySecret      string `yaml:"-"`
	Currency       string `yaml:"currency"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// Timeout returns the HTTP timeout for gateway calls.
func (p PaymentSettings) Timeout() time.Duration {
	if p.TimeoutSeconds > 0 {
		return time.Duration(p.TimeoutSeconds) * time.Second
	}
	return defaultGatewayTimeout
}

// ReviewDuration is the default window between assignment and due date.
func (s WorkflowSettings) ReviewDuration() time.Duration {
	days := s.ReviewDueDays
	if days <= 0 {
		days = defaultReviewDueDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// IsEditorInChief reports whether userID is registered as editor-in-chief.
func (s WorkflowSettings) IsEditorInChief(userID string) bool {
	for _, id := range s.EditorsInChief {
		if id == userID {
			return true
		}
	}
	return false
}

// DefaultWorkflowSettings returns the built-in defaults.
func DefaultWorkflowSettings() WorkflowSettings {
	return WorkflowSettings{
		ReviewDueDays: defaultReviewDueDays,
		Payment: PaymentSettings{
			Currency: defaultCurrency,
		},
	}
}

// LoadWorkflowSettings reads the optional YAML file named by WORKFLOW_CONFIG
// and then applies environment overrides.
func LoadWorkflowSettings() (WorkflowSettings, error) {
	settings := DefaultWorkflowSettings()

	if path := strings.TrimSpace(os.Getenv(workflowConfigEnv)); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return settings, fmt.Errorf("read workflow config %q: %w", path, err)
		}
		if err := ParseWorkflowSettings(data, &settings); err != nil {
			return settings, fmt.Errorf("parse workflow config %q: %w", path, err)
		}
	}

	applyWorkflowEnv(&settings)
	return settings, nil
}

// ParseWorkflowSettings decodes YAML into settings, keeping defaults for absent keys.
func ParseWorkflowSettings(data []byte, settings *WorkflowSettings) error {
	if err := yaml.Unmarshal(data, settings); err != nil {
		return err
	}
	settings.EditorsInChief = cleanIDs(settings.EditorsInChief)
	if settings.ReviewDueDays < 0 {
		return fmt.Errorf("reviewDueDays must not be negative")
	}
	if strings.TrimSpace(settings.Payment.Currency) == "" {
		settings.Payment.Currency = defaultCurrency
	}
	return nil
}

func applyWorkflowEnv(settings *WorkflowSettings) {
	if raw := strings.TrimSpace(os.Getenv("EDITORS_IN_CHIEF")); raw != "" {
		settings.EditorsInChief = cleanIDs(strings.Split(raw, ","))
	}
	if days, err := strconv.Atoi(os.Getenv("REVIEW_DUE_DAYS")); err == nil && days > 0 {
		settings.ReviewDueDays = days
	}
	if v := strings.TrimSpace(os.Getenv("PAYMENT_GATEWAY_URL")); v != "" {
		settings.Payment.GatewayURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PAYMENT_KEY_ID")); v != "" {
		settings.Payment.KeyID = v
	}
	if v := os.Getenv("PAYMENT_KEY_SECRET"); v != "" {
		settings.Payment.KeySecret = v
	}
	if v := strings.TrimSpace(os.Getenv("PAYMENT_CURRENCY")); v != "" {
		settings.Payment.Currency = strings.ToUpper(v)
	}
	if secs, err := strconv.Atoi(os.Getenv("PAYMENT_TIMEOUT_SECONDS")); err == nil && secs > 0 {
		settings.Payment.TimeoutSeconds = secs
	}
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
