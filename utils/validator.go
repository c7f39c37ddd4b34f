// utils/validator.go - Input validation
package utils

import (
	"path"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail checks if email is valid
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// SanitizeInput removes potentially harmful characters
func SanitizeInput(input string) string {
	// Remove leading/trailing spaces
	input = strings.TrimSpace(input)

	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	return input
}

// ValidateFileRef accepts storage keys and URLs produced by the upload layer.
// Relative references must not climb out of the storage root.
func ValidateFileRef(ref string) bool {
	ref = SanitizeInput(ref)
	if ref == "" || len(ref) > 512 {
		return false
	}
	if strings.Contains(ref, "://") {
		return true
	}
	cleaned := path.Clean("/" + ref)
	return !strings.Contains(ref, "..") && cleaned != "/"
}
