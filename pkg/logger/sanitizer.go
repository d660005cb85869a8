package logger

import "strings"

// FilteredPassword replaces passwords in logged text.
const FilteredPassword = "[filtered_password]"

type (
	// Sanitizer redacts secrets from a line of text.
	Sanitizer interface {
		Sanitize(string) string
	}

	// PasswordSanitizer replaces every occurrence of a password.
	PasswordSanitizer struct {
		password string
	}
)

// NewPasswordSanitizer returns a sanitizer for password. An empty password leaves text
// unchanged.
func NewPasswordSanitizer(password string) *PasswordSanitizer {
	return &PasswordSanitizer{password: password}
}

func (s *PasswordSanitizer) Sanitize(text string) string {
	if s.password == "" {
		return text
	}

	return strings.ReplaceAll(text, s.password, FilteredPassword)
}
