package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Violations flattens the field errors into "field: message" strings.
func (e *ValidationError) Violations() []string {
	out := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		out[i] = fe.Field + ": " + fe.Message
	}
	return out
}

// ValidateEvent checks a CanonicalEvent for structural violations: required
// fields, event-type domain, vote-value domain, and provenance presence.
// It returns a *ValidationError if any rules fail, or nil if the event is valid.
func ValidateEvent(e *CanonicalEvent) error {
	var ve ValidationError

	if strings.TrimSpace(e.ID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "id", Message: "is required"})
	} else if !strings.HasPrefix(e.ID, EventIDPrefix) {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "id",
			Message: fmt.Sprintf("must carry the %q prefix", EventIDPrefix),
		})
	}

	if strings.TrimSpace(e.UserID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "user_id", Message: "is required"})
	}

	if !e.EventType.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "event_type",
			Message: fmt.Sprintf("invalid value %q", e.EventType),
		})
	}

	if e.Timestamp <= 0 {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "timestamp",
			Message: fmt.Sprintf("must be positive, got %d", e.Timestamp),
		})
	}

	// Vote domain: lifted into properties by the converter, enforced on both
	// sides of the migration.
	switch vote := e.Properties["vote"].(type) {
	case nil:
		ve.Errors = append(ve.Errors, FieldError{Field: "properties.vote", Message: "is required"})
	case int:
		if !VoteValue(vote).IsValid() {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   "properties.vote",
				Message: fmt.Sprintf("must be 1 or -1, got %d", vote),
			})
		}
	case float64:
		if !VoteValue(int(vote)).IsValid() {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   "properties.vote",
				Message: fmt.Sprintf("must be 1 or -1, got %v", vote),
			})
		}
	default:
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "properties.vote",
			Message: fmt.Sprintf("must be an integer, got %T", vote),
		})
	}

	for _, key := range []string{PropMigratedFrom, PropMigratedAt, PropEventSource} {
		if _, ok := e.Properties[key]; !ok {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   "properties." + key,
				Message: "provenance marker is missing",
			})
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
