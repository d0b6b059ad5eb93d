package notification

import (
	"bufio"
	"context"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRelay accepts a single SMTP session and records the envelope.
type fakeRelay struct {
	ln   net.Listener
	mu   sync.Mutex
	from string
	rcpt string
	data string
	done chan struct{}
}

func startFakeRelay(t *testing.T) *fakeRelay {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	r := &fakeRelay{ln: ln, done: make(chan struct{})}
	go r.serve()
	t.Cleanup(func() { ln.Close() })
	return r
}

func (r *fakeRelay) port() int {
	return r.ln.Addr().(*net.TCPAddr).Port
}

func (r *fakeRelay) serve() {
	defer close(r.done)
	conn, err := r.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 localhost ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		cmd := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			_ = tp.PrintfLine("250 localhost")
		case strings.HasPrefix(cmd, "MAIL FROM:"):
			r.mu.Lock()
			r.from = strings.Trim(line[len("MAIL FROM:"):], "<> ")
			r.mu.Unlock()
			_ = tp.PrintfLine("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO:"):
			r.mu.Lock()
			r.rcpt = strings.Trim(line[len("RCPT TO:"):], "<> ")
			r.mu.Unlock()
			_ = tp.PrintfLine("250 OK")
		case cmd == "DATA":
			_ = tp.PrintfLine("354 go ahead")
			body, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			r.mu.Lock()
			r.data = string(body)
			r.mu.Unlock()
			_ = tp.PrintfLine("250 queued")
		case cmd == "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("502 not implemented")
		}
	}
}

func TestSMTPMailer_Send(t *testing.T) {
	relay := startFakeRelay(t)
	mailer, err := NewSMTPMailer(SMTPConfig{
		Host:    "127.0.0.1",
		Port:    relay.port(),
		From:    "noreply@eventoh.in",
		ReplyTo: "support@eventoh.in",
		Timeout: 5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)

	err = mailer.Send(context.Background(), "asha@example.com", "Payment reminder", "Hi Asha, please pay.")
	require.NoError(t, err)

	select {
	case <-relay.done:
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not finish")
	}

	relay.mu.Lock()
	defer relay.mu.Unlock()
	assert.Equal(t, "noreply@eventoh.in", relay.from)
	assert.Equal(t, "asha@example.com", relay.rcpt)

	msg, err := textproto.NewReader(bufio.NewReader(strings.NewReader(relay.data))).ReadMIMEHeader()
	require.NoError(t, err)
	assert.Equal(t, "Payment reminder", msg.Get("Subject"))
	assert.Equal(t, "support@eventoh.in", msg.Get("Reply-To"))
	assert.Contains(t, msg.Get("Content-Type"), "text/plain")
	assert.Contains(t, relay.data, "Hi Asha, please pay.")
}

func TestSMTPMailer_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	mailer, err := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: port, From: "a@b.c", Timeout: time.Second}, zap.NewNop())
	require.NoError(t, err)

	err = mailer.Send(context.Background(), "x@y.z", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp dial")
}

func TestNewSMTPMailer_RequiresConfig(t *testing.T) {
	_, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/html", contentType("<!DOCTYPE html><html></html>"))
	assert.Equal(t, "text/plain", contentType("pay ₹900"))
}

func TestBuildMessage_Headers(t *testing.T) {
	m := &SMTPMailer{cfg: SMTPConfig{From: "noreply@eventoh.in"}}
	msg := string(m.buildMessage("a@b.c", "Hello", "body"))
	assert.True(t, strings.HasPrefix(msg, "From: noreply@eventoh.in\r\nTo: a@b.c\r\nSubject: Hello\r\n"))
	assert.NotContains(t, msg, "Reply-To")
	assert.Equal(t, 1, strings.Count(msg, "MIME-Version"))
}
