// Package validation checks stakeholder input at the API and CLI boundary.
// Field checks return nil on success so results can be fed straight into a
// Collector; the exported Validate* entry points return the collected list.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/insurewright/onboarding/internal/catalog"
	"github.com/insurewright/onboarding/internal/types"
)

// Length limits, in runes.
const (
	MaxTextAnswerLength = 20000
	MaxNotesLength      = 10000
	MaxCommentLength    = 5000
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// Text adds the checks every free-form string goes through: valid UTF-8, no
// NUL bytes, at most max runes.
func (c *Collector) Text(field, value string, max int) {
	c.Add(ValidateUTF8(field, value))
	c.Add(ValidateNoNullBytes(field, value))
	c.Add(ValidateMaxLength(field, value, max))
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return invalid(field, "must be valid UTF-8")
	}
	return nil
}

// ValidateNoNullBytes returns an error if the value contains null bytes.
func ValidateNoNullBytes(field, value string) *ValidationError {
	if strings.ContainsRune(value, 0) {
		return invalid(field, "must not contain null bytes")
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return invalid(field, "exceeds maximum length of %d characters", max)
	}
	return nil
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "is required")
	}
	return nil
}

// ValidateKind returns an error unless the answer holds the wanted variant.
func ValidateKind(field string, want types.AnswerKind, got types.Answer) *ValidationError {
	if got.Kind() != want {
		return invalid(field, "must be a %s answer, got %s", want, got.Kind())
	}
	return nil
}

// ValidateOption returns an error unless value is one of the option values.
func ValidateOption(field, value string, options []catalog.SelectOption) *ValidationError {
	values := make([]string, len(options))
	for i, o := range options {
		if o.Value == value {
			return nil
		}
		values[i] = o.Value
	}
	return invalid(field, "must be one of: %s", strings.Join(values, ", "))
}

// ValidateBounds checks value against optional inclusive bounds.
func ValidateBounds(field string, value float64, min, max *float64) *ValidationError {
	switch {
	case min != nil && max != nil && (value < *min || value > *max):
		return invalid(field, "must be between %s and %s", types.FormatNumber(*min), types.FormatNumber(*max))
	case min != nil && max == nil && value < *min:
		return invalid(field, "must be at least %s", types.FormatNumber(*min))
	case max != nil && min == nil && value > *max:
		return invalid(field, "must be at most %s", types.FormatNumber(*max))
	}
	return nil
}

// ValidateRole returns an error unless role is one of the known roles.
func ValidateRole(field string, role types.Role) *ValidationError {
	if !role.Valid() {
		return invalid(field, "must be one of: %s, %s", types.RoleStakeholder, types.RoleTeam)
	}
	return nil
}
