package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/diewo77/multifactors/internal/apperr"
)

// Violations maps a form field to the message shown next to it.
// Only the first violation per field is kept.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

func (v Violations) add(field, msg string) {
	if _, exists := v[field]; !exists {
		v[field] = msg
	}
}

// Err returns nil when there are no violations, otherwise an apperr validation error.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return apperr.Invalid(v)
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Basic validators
func Required(field, value, msg string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.add(field, msg)
	}
}

func Email(field, value, msg string, v Violations) {
	if value != "" && !IsEmail(value) {
		v.add(field, msg)
	}
}

// IsEmail reports whether value looks like an email address.
func IsEmail(value string) bool {
	return emailPattern.MatchString(value)
}

func MinLength(field, value string, n int, msg string, v Violations) {
	if utf8.RuneCountInString(value) < n {
		v.add(field, msg)
	}
}

func MaxLength(field, value string, n int, msg string, v Violations) {
	if utf8.RuneCountInString(value) > n {
		v.add(field, msg)
	}
}

func Match(field, value, other, msg string, v Violations) {
	if value != other {
		v.add(field, msg)
	}
}

func OneOf(field, value string, allowed []string, msg string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.add(field, msg)
}
