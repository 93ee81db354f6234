// Package notify sends the site owner an email about each submission.
//
// Delivery is best-effort: callers go through Deliver, which turns a send
// into a Result, log a failed Result and carry on.
package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/aanand-mishra/contact-form/internal/types"
)

// Message is a plain-text email to the site owner.
type Message struct {
	To      string
	Subject string
	Body    string
	ReplyTo string
}

// Notifier delivers messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Result is the outcome of one delivery attempt. A failed Result is
// expected to be logged and then dropped; it never fails a request.
type Result struct {
	Err error
}

// OK reports whether the message was handed off successfully.
func (r Result) OK() bool { return r.Err == nil }

// Deliver sends msg through n and reports the outcome instead of failing.
func Deliver(ctx context.Context, n Notifier, msg Message) Result {
	if n == nil {
		return Result{Err: fmt.Errorf("no notifier configured")}
	}
	return Result{Err: n.Send(ctx, msg)}
}

// ForRecord builds the owner notification for rec. The record is stored
// HTML-escaped; the mail is plain text, so the escaping is undone here.
func ForRecord(owner string, rec types.Record) Message {
	name := html.UnescapeString(rec.Name)
	email := html.UnescapeString(rec.Email)
	subject := html.UnescapeString(rec.Subject)

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", name)
	fmt.Fprintf(&b, "Email: %s\n", email)
	fmt.Fprintf(&b, "Subject: %s\n", subject)
	fmt.Fprintf(&b, "Submitted: %s\n\n", rec.CreatedAt.UTC().Format("January 2, 2006 at 3:04 PM MST"))
	fmt.Fprintf(&b, "Message:\n%s\n", html.UnescapeString(rec.Message))

	return Message{
		To:      owner,
		Subject: "New contact form submission: " + subject,
		Body:    b.String(),
		ReplyTo: email,
	}
}

// Log is the Notifier used when email is disabled. It records what would
// have been sent and always succeeds.
type Log struct{}

func (Log) Send(_ context.Context, msg Message) error {
	slog.Info("email disabled, notification not sent",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("reply_to", msg.ReplyTo))
	return nil
}
