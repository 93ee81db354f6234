package notify

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aanand-mishra/contact-form/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	sendFunc func(ctx context.Context, msg Message) error
}

func (m *mockNotifier) Send(ctx context.Context, msg Message) error {
	if m.sendFunc != nil {
		return m.sendFunc(ctx, msg)
	}
	return nil
}

func sampleRecord() types.Record {
	return types.Record{
		Name:      "Tom &amp; Jerry",
		Email:     "tom@example.com",
		Subject:   "Quote &#34;request&#34;",
		Message:   "1 &lt; 2, right?",
		Privacy:   true,
		Terms:     true,
		CreatedAt: time.Date(2024, 5, 1, 15, 4, 0, 0, time.UTC),
	}
}

func TestForRecord(t *testing.T) {
	msg := ForRecord("owner@example.com", sampleRecord())

	assert.Equal(t, "owner@example.com", msg.To)
	assert.Equal(t, "tom@example.com", msg.ReplyTo)
	assert.Equal(t, `New contact form submission: Quote "request"`, msg.Subject)
	assert.Contains(t, msg.Body, "Name: Tom & Jerry\n")
	assert.Contains(t, msg.Body, "Email: tom@example.com\n")
	assert.Contains(t, msg.Body, "Submitted: May 1, 2024 at 3:04 PM UTC\n")
	assert.Contains(t, msg.Body, "Message:\n1 < 2, right?\n")
}

func TestDeliver(t *testing.T) {
	ok := Deliver(context.Background(), &mockNotifier{}, Message{To: "a@b.com"})
	assert.True(t, ok.OK())

	boom := errors.New("smtp down")
	failed := Deliver(context.Background(), &mockNotifier{
		sendFunc: func(context.Context, Message) error { return boom },
	}, Message{})
	assert.False(t, failed.OK())
	assert.ErrorIs(t, failed.Err, boom)

	assert.False(t, Deliver(context.Background(), nil, Message{}).OK())
}

func TestLog_AlwaysSucceeds(t *testing.T) {
	assert.NoError(t, Log{}.Send(context.Background(), Message{To: "owner@example.com"}))
}

func TestSMTP_NotConfigured(t *testing.T) {
	err := NewSMTP(SMTPConfig{}).Send(context.Background(), Message{To: "a@b.com"})
	assert.ErrorContains(t, err, "not properly configured")
}

func TestSMTP_Send(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan session, 1)
	go serveOnce(ln, received)

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	s := NewSMTP(SMTPConfig{Host: host, Port: port, From: "noreply@example.com", FromName: "Contact Form"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := ForRecord("owner@example.com", sampleRecord())
	require.NoError(t, s.Send(ctx, msg))

	select {
	case got := <-received:
		assert.Equal(t, "<noreply@example.com>", got.from)
		assert.Equal(t, "<owner@example.com>", got.rcpt)
		assert.Contains(t, got.data, "From: \"Contact Form\" <noreply@example.com>\r\n")
		assert.Contains(t, got.data, "To: owner@example.com\r\n")
		assert.Contains(t, got.data, "Reply-To: tom@example.com\r\n")
		assert.Contains(t, got.data, "Content-Type: text/plain; charset=UTF-8\r\n")
		assert.Contains(t, got.data, "Name: Tom & Jerry")
	case <-time.After(5 * time.Second):
		t.Fatal("fake SMTP server received nothing")
	}
}

func TestSMTP_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	s := NewSMTP(SMTPConfig{Host: "127.0.0.1", Port: addr.Port, From: "noreply@example.com"})
	err = s.Send(context.Background(), Message{To: "owner@example.com"})
	assert.ErrorContains(t, err, "dial")
}

type session struct {
	from, rcpt, data string
}

// serveOnce speaks just enough SMTP to accept a single message.
func serveOnce(ln net.Listener, out chan<- session) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }

	var sess session
	reply("220 fake.local ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		verb := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(verb, "EHLO"), strings.HasPrefix(verb, "HELO"):
			reply("250 fake.local")
		case strings.HasPrefix(verb, "MAIL FROM:"):
			sess.from = strings.Fields(line[len("MAIL FROM:"):])[0]
			reply("250 OK")
		case strings.HasPrefix(verb, "RCPT TO:"):
			sess.rcpt = strings.TrimSpace(line[len("RCPT TO:"):])
			reply("250 OK")
		case verb == "DATA":
			reply("354 go ahead")
			var data strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				data.WriteString(l)
			}
			sess.data = data.String()
			reply("250 queued")
		case verb == "QUIT":
			reply("221 bye")
			out <- sess
			return
		default:
			reply("502 not implemented")
		}
	}
}
