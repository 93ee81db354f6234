// Package validation turns an untrusted SubmissionInput into a Record.
//
// Rules are declared as go-playground/validator struct tags on an internal
// candidate struct; every failing field is reported, not just the first.
// Validation never touches the network or the disk.
package validation

import (
	"errors"
	"html"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/aanand-mishra/contact-form/internal/types"
	"github.com/go-playground/validator/v10"
)

// MinMessageLength is the minimum message length in characters, after trimming.
const MinMessageLength = 5

// emailPattern is a deliberately small grammar: local-part "@" domain, the
// domain has at least one dot with non-empty labels, and nowhere whitespace.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@.]+(\.[^\s@.]+)+$`)

// candidate carries trimmed, still unescaped values through the rule set.
// Field order here is the order errors are reported in.
type candidate struct {
	Name    string `json:"name"    validate:"required"`
	Email   string `json:"email"   validate:"required,contactemail"`
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required,min=5"`
	Privacy bool   `json:"privacy" validate:"required"`
	Terms   bool   `json:"terms"   validate:"required"`
}

// Validator applies the contact-form rules. It is safe for concurrent use.
type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

// New returns a Validator stamping records with the current UTC time.
func New() *Validator {
	v := validator.New()

	// Report wire names ("email") instead of Go field names ("Email").
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// Only fails on a non-empty value; "required" owns the empty case.
	_ = v.RegisterValidation("contactemail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})

	return &Validator{
		v:   v,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for Record.CreatedAt.
func (val *Validator) WithClock(now func() time.Time) *Validator {
	return &Validator{v: val.v, now: now}
}

// Validate checks in against every rule. On failure the error is a
// types.FieldErrors listing all violated fields in form order.
func (val *Validator) Validate(in types.SubmissionInput) (types.Record, error) {
	c := candidate{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Subject: strings.TrimSpace(in.Subject),
		Message: strings.TrimSpace(in.Message),
		Privacy: bool(in.Privacy),
		Terms:   bool(in.Terms),
	}

	if err := val.v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return types.Record{}, err
		}
		return types.Record{}, toFieldErrors(verrs)
	}

	return types.Record{
		Name:      escapeLine(c.Name),
		Email:     html.EscapeString(c.Email),
		Subject:   escapeLine(c.Subject),
		Message:   html.EscapeString(c.Message),
		Privacy:   c.Privacy,
		Terms:     c.Terms,
		CreatedAt: val.now(),
	}, nil
}

func toFieldErrors(verrs validator.ValidationErrors) types.FieldErrors {
	out := make(types.FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, types.FieldError{
			Field:  fe.Field(),
			Reason: reasonFor(fe),
		})
	}
	return out
}

func reasonFor(fe validator.FieldError) types.Reason {
	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.Bool {
			return types.ConsentRequired
		}
		return types.EmptyField
	case "min":
		return types.TooShort
	default:
		return types.InvalidFormat
	}
}

// escapeLine is for values that end up in mail headers: line breaks are
// dropped before escaping.
func escapeLine(s string) string {
	s = strings.NewReplacer("\r", "", "\n", "").Replace(s)
	return html.EscapeString(s)
}
