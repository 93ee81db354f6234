// Package response provides helpers for writing consistent JSON HTTP responses.
//
// Every reply from the contact endpoint is JSON. Rather than repeating the
// same three lines (set header, set status, encode JSON) in the handler, we
// centralise them here, and the browser script always knows what shape to
// expect. There are exactly three:
//
//	{ "ok": true,  "message": "Thank you! ..." }
//	{ "ok": false, "errors": ["Name is required", ...] }
//	{ "ok": false, "error": "Method not allowed" }
package response

import (
	"encoding/json"
	"net/http"

	"github.com/aanand-mishra/contact-form/internal/types"
)

// ─────────────────────────────────────────────────────────────────────────────
// Response is the envelope shared by all three shapes.
//
// "ok" is always present so the client can branch on one field. The other
// three carry omitempty, so a success reply has no "errors" key and a
// validation reply has no "message" key.
// ─────────────────────────────────────────────────────────────────────────────
type Response struct {
	OK      bool     `json:"ok"`
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// WriteJSON writes data as JSON with the given HTTP status code.
//
// Parameters:
//
//	w     : the http.ResponseWriter provided to every handler
//	status: HTTP status code (e.g. http.StatusBadRequest = 400)
//	data  : any Go value; usually one of the Response constructors below
//
// IMPORTANT ORDER: Header() → WriteHeader() → body writes.
// Once WriteHeader is called (or the first Write), headers are locked.
// ─────────────────────────────────────────────────────────────────────────────
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// Success is a positive reply.
func Success(message string) Response {
	return Response{OK: true, Message: message}
}

// ValidationFailed lists every rejected field's message, in form order.
//
// Example output:
//
//	{ "ok": false, "errors": ["Name is required", "A valid email is required"] }
func ValidationFailed(errs types.FieldErrors) Response {
	return Response{OK: false, Errors: errs.Messages()}
}

// Failure is a single error reply.
func Failure(message string) Response {
	return Response{OK: false, Error: message}
}
