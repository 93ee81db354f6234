// Package types holds the data structures shared across the application.
// Keeping them in one place prevents import cycles: handlers, validation,
// storage and notify all import types without depending on each other.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SubmissionInput is an untrusted contact-form submission, already
// normalized from whatever transport carried it (form body or JSON).
//
// Nothing about it is guaranteed: any field may be blank, overly long or
// malformed. Only validation.Validate turns it into a Record.
type SubmissionInput struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Subject string  `json:"subject"`
	Message string  `json:"message"`
	Privacy Consent `json:"privacy"`
	Terms   Consent `json:"terms"`
}

// Consent is a boolean-ish checkbox value.
//
// HTML forms send "on" for a ticked box and nothing otherwise; JSON clients
// send true, "true", 1 or null. All of those collapse to a plain bool here.
type Consent bool

// ParseConsent interprets a form value. Blank and unrecognised values are false.
func ParseConsent(s string) Consent {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes", "y", "true", "1", "checked", "accepted":
		return true
	}
	return false
}

// UnmarshalJSON accepts booleans, strings, numbers and null.
func (c *Consent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = false
		return nil
	}

	switch data[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("consent: %w", err)
		}
		*c = Consent(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("consent: %w", err)
		}
		*c = ParseConsent(s)
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("consent: unsupported value %s", data)
		}
		*c = f != 0
	}
	return nil
}

// Record is a submission that passed every field rule. Text fields are
// trimmed and HTML-escaped, so a Record is safe to persist and display.
//
// Records are values: the store and the notifier receive copies.
type Record struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Privacy   bool      `json:"privacy"`
	Terms     bool      `json:"terms"`
	CreatedAt time.Time `json:"createdAt"`
}

// Reason says why a field was rejected.
type Reason string

const (
	EmptyField      Reason = "EmptyField"
	InvalidFormat   Reason = "InvalidFormat"
	TooShort        Reason = "TooShort"
	ConsentRequired Reason = "ConsentRequired"
)

// Field names as they appear on the wire.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldSubject = "subject"
	FieldMessage = "message"
	FieldPrivacy = "privacy"
	FieldTerms   = "terms"
)

// FieldError is a single validation failure.
type FieldError struct {
	Field  string `json:"field"`
	Reason Reason `json:"reason"`
}

// Message is the human-readable text shown to whoever filled in the form.
func (e FieldError) Message() string {
	switch e.Field {
	case FieldName:
		return "Name is required"
	case FieldEmail:
		return "A valid email is required"
	case FieldSubject:
		return "Subject is required"
	case FieldMessage:
		return "Message is required (at least 5 characters)"
	case FieldPrivacy:
		return "You must agree to the Privacy Policy"
	case FieldTerms:
		return "You must agree to the Terms & Conditions"
	}
	return fmt.Sprintf("%s is invalid", e.Field)
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// FieldErrors is the ordered list of every failing field in a submission.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, e := range fe {
		parts[i] = e.Error()
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Messages returns the human-readable text of each error, in order.
func (fe FieldErrors) Messages() []string {
	out := make([]string, len(fe))
	for i, e := range fe {
		out[i] = e.Message()
	}
	return out
}
