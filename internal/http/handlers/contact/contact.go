// Package contact contains the HTTP handler for contact-form submissions.
//
// A submission moves through a short, linear state machine:
//
//	Received → Rejected                      → Responded
//	Received → Validated → Stored → Notified → Responded
//
// Storing and notifying are independent best-effort steps: the archive
// failing does not stop the email, and the email failing only softens the
// reply. The request fails outright only when neither step succeeded.
package contact

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/aanand-mishra/contact-form/internal/http/middleware"
	"github.com/aanand-mishra/contact-form/internal/metrics"
	"github.com/aanand-mishra/contact-form/internal/notify"
	"github.com/aanand-mishra/contact-form/internal/storage"
	"github.com/aanand-mishra/contact-form/internal/types"
	"github.com/aanand-mishra/contact-form/internal/utils/response"
	"github.com/aanand-mishra/contact-form/internal/validation"
)

// Reply texts.
const (
	MsgDelivered         = "Thank you! Your message has been sent."
	MsgStoredNotNotified = "Thank you! Your message has been received, but the notification email could not be sent."
	MsgNotifiedNotStored = "Thank you! Your message has been sent, but it could not be archived."
	MsgNotDelivered      = "Sorry, your message could not be delivered. Please try again later."
	MsgMethodNotAllowed  = "Method not allowed"
	MsgBodyTooLarge      = "Request body too large"
)

const (
	defaultMaxBodyBytes  = 1 << 20
	defaultNotifyTimeout = 10 * time.Second
	maxMultipartMemory   = 1 << 20
)

// Options configures the handler. Zero values select sensible defaults.
type Options struct {
	// OwnerAddress receives the notification email.
	OwnerAddress string
	// MaxBodyBytes caps the request body.
	MaxBodyBytes int64
	// NotifyTimeout bounds the notification attempt.
	NotifyTimeout time.Duration
	// Validator defaults to validation.New().
	Validator *validation.Validator
}

// New handles POST /api/contact.
//
// Request body: JSON object or form fields name, email, subject, message,
// privacy, terms.
//
// Responses:
//
//	200 { "ok": true, "message": "..." }          stored and/or notified
//	400 { "ok": false, "errors": ["...", ...] }   validation failed
//	405 { "ok": false, "error": "..." }           not a POST
//	413 { "ok": false, "error": "..." }           body over the limit
//	500 { "ok": false, "error": "..." }           neither stored nor notified
func New(archive storage.Archive, notifier notify.Notifier, opts Options) http.HandlerFunc {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = defaultNotifyTimeout
	}
	if opts.Validator == nil {
		opts.Validator = validation.New()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		log := middleware.Logger(r.Context())

		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			response.WriteJSON(w, http.StatusMethodNotAllowed, response.Failure(MsgMethodNotAllowed))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, opts.MaxBodyBytes)
		in, err := decodeInput(r)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				log.Warn("contact submission body too large", slog.Int64("limit", tooLarge.Limit))
				response.WriteJSON(w, http.StatusRequestEntityTooLarge, response.Failure(MsgBodyTooLarge))
				return
			}
			// A body we cannot parse is treated as an empty form.
			log.Warn("contact submission body could not be parsed", slog.String("error", err.Error()))
			in = types.SubmissionInput{}
		}

		rec, err := opts.Validator.Validate(in)
		if err != nil {
			var fieldErrs types.FieldErrors
			if !errors.As(err, &fieldErrs) {
				log.Error("contact submission validation crashed", slog.String("error", err.Error()))
				response.WriteJSON(w, http.StatusInternalServerError, response.Failure(MsgNotDelivered))
				return
			}
			log.Info("contact submission rejected", slog.Any("fields", fieldNames(fieldErrs)))
			metrics.RecordSubmission(metrics.OutcomeRejected)
			response.WriteJSON(w, http.StatusBadRequest, response.ValidationFailed(fieldErrs))
			return
		}

		// Requests run to completion even if the client goes away.
		ctx := context.WithoutCancel(r.Context())

		stored := store(ctx, log, archive, rec)
		notified := deliver(ctx, log, notifier, opts, rec)

		switch {
		case stored && notified:
			metrics.RecordSubmission(metrics.OutcomeDelivered)
			response.WriteJSON(w, http.StatusOK, response.Success(MsgDelivered))
		case stored:
			metrics.RecordSubmission(metrics.OutcomeStoredOnly)
			response.WriteJSON(w, http.StatusOK, response.Success(MsgStoredNotNotified))
		case notified:
			metrics.RecordSubmission(metrics.OutcomeNotifiedOnly)
			response.WriteJSON(w, http.StatusOK, response.Success(MsgNotifiedNotStored))
		default:
			metrics.RecordSubmission(metrics.OutcomeFailed)
			log.Error("contact submission lost: not stored and not notified")
			response.WriteJSON(w, http.StatusInternalServerError, response.Failure(MsgNotDelivered))
		}
	}
}

// store appends rec and reports success. Failures are logged, never returned.
func store(ctx context.Context, log *slog.Logger, archive storage.Archive, rec types.Record) bool {
	start := time.Now()
	err := archive.Append(ctx, rec)
	elapsed := time.Since(start)

	if err == nil {
		metrics.RecordAppend("ok", elapsed)
		log.Info("contact submission stored", slog.Duration("took", elapsed))
		return true
	}

	status := "io_failure"
	if errors.Is(err, storage.ErrLockTimeout) {
		status = "lock_timeout"
	}
	metrics.RecordAppend(status, elapsed)
	log.Error("failed to store contact submission",
		slog.String("kind", status),
		slog.String("error", err.Error()))
	return false
}

// deliver notifies the owner. The Result's error is logged and dropped here
// on purpose: a failed email must not fail the submission.
func deliver(ctx context.Context, log *slog.Logger, n notify.Notifier, opts Options, rec types.Record) bool {
	ctx, cancel := context.WithTimeout(ctx, opts.NotifyTimeout)
	defer cancel()

	res := notify.Deliver(ctx, n, notify.ForRecord(opts.OwnerAddress, rec))
	metrics.RecordNotification(res.OK())
	if !res.OK() {
		log.Warn("failed to send notification email", slog.String("error", res.Err.Error()))
		return false
	}
	log.Info("notification email sent")
	return true
}

// decodeInput normalizes a JSON or form body into a SubmissionInput so the
// validator never sees the transport.
func decodeInput(r *http.Request) (types.SubmissionInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
		return decodeJSON(r.Body)
	}

	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(maxMultipartMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return types.SubmissionInput{}, err
	}

	return types.SubmissionInput{
		Name:    r.PostForm.Get(types.FieldName),
		Email:   r.PostForm.Get(types.FieldEmail),
		Subject: r.PostForm.Get(types.FieldSubject),
		Message: r.PostForm.Get(types.FieldMessage),
		Privacy: types.ParseConsent(r.PostForm.Get(types.FieldPrivacy)),
		Terms:   types.ParseConsent(r.PostForm.Get(types.FieldTerms)),
	}, nil
}

// decodeJSON reads a JSON object field by field. A field holding the wrong
// type counts as absent, so it fails validation on its own and the other
// fields are judged on what was actually sent.
func decodeJSON(body io.Reader) (types.SubmissionInput, error) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&fields); err != nil {
		return types.SubmissionInput{}, err
	}
	return types.SubmissionInput{
		Name:    jsonText(fields[types.FieldName]),
		Email:   jsonText(fields[types.FieldEmail]),
		Subject: jsonText(fields[types.FieldSubject]),
		Message: jsonText(fields[types.FieldMessage]),
		Privacy: jsonConsent(fields[types.FieldPrivacy]),
		Terms:   jsonConsent(fields[types.FieldTerms]),
	}, nil
}

// jsonText returns raw as a string, or "" when it is not a JSON string.
func jsonText(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// jsonConsent returns raw as a Consent, or false when it cannot be read as one.
func jsonConsent(raw json.RawMessage) types.Consent {
	var c types.Consent
	if len(raw) == 0 || json.Unmarshal(raw, &c) != nil {
		return false
	}
	return c
}

func fieldNames(errs types.FieldErrors) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Field
	}
	return out
}
