package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateDocumentID validates a document identifier for safety.
// Document ids become file names, Redis channel names and NATS subjects,
// so they are held to a conservative character set.
//
// Validation rules:
//   - No empty ids
//   - Maximum length of 128 characters
//   - No control characters or path separators
//   - Only letters, digits, '-', '_' and '.'; no leading '.'
func ValidateDocumentID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "document id cannot be empty")
	}

	if len(id) > 128 {
		return New(ErrCodeInvalidInput, "document id too long (max 128 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "document id contains invalid control characters")
		}
	}

	if strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return New(ErrCodeInvalidPath, "document id cannot contain path components")
	}

	if !documentIDRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid document id: %q", id)
	}

	return nil
}

var documentIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)

// colorRegex matches #rgb, #rrggbb and #rrggbbaa colors.
var colorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// ValidateColor validates a CSS hex color. The empty string is accepted
// and means "inherit".
func ValidateColor(c string) error {
	if c == "" {
		return nil
	}
	if !colorRegex.MatchString(c) {
		return New(ErrCodeInvalidInput, "invalid color %q (want #rgb, #rrggbb or #rrggbbaa)", c)
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
