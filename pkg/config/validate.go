package config

import (
	"fmt"
	"regexp"
)

var (
	usernameRegex = regexp.MustCompile(`^[A-Za-z_-][A-Za-z0-9_-]{2,31}$`)
	emailRegex    = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
)

// ValidationError reports invalid user-supplied input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateUsername enforces 3-32 characters of [A-Za-z0-9_-], not
// starting with a digit.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return &ValidationError{
			Field:  "username",
			Reason: "must be 3-32 characters, only letters, digits, '_' and '-', and may not start with a digit",
		}
	}
	return nil
}

// ValidateEmail enforces a basic RFC-5322-ish address shape.
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return &ValidationError{
			Field:  "email",
			Reason: "must be a valid email address",
		}
	}
	return nil
}

// ValidatePassword enforces a minimum length of 8 characters.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return &ValidationError{
			Field:  "password",
			Reason: "must be at least 8 characters long",
		}
	}
	return nil
}
