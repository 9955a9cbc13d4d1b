// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package delivery

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeSMTP is a minimal SMTP server speaking just enough of RFC 5321 for
// net/smtp: EHLO, AUTH PLAIN, MAIL, RCPT, DATA, QUIT.
type fakeSMTP struct {
	ln net.Listener

	advertiseStartTLS bool
	rejectRcpt        string
	failQuit          bool

	mu       sync.Mutex
	messages []string
	authSeen bool
}

func newFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeSMTP{ln: ln}
	t.Cleanup(func() { _ = ln.Close() })
	go s.serve()
	return s
}

func (s *fakeSMTP) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeSMTP) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeSMTP) handle(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	reply := func(line string) {
		_, _ = w.WriteString(line + "\r\n")
		_ = w.Flush()
	}

	reply("220 localhost ESMTP fake")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])

		switch verb {
		case "EHLO", "HELO":
			if s.advertiseStartTLS {
				reply("250-localhost")
				reply("250-STARTTLS")
				reply("250 AUTH PLAIN")
			} else {
				reply("250-localhost")
				reply("250 AUTH PLAIN")
			}
		case "AUTH":
			s.mu.Lock()
			s.authSeen = true
			s.mu.Unlock()
			reply("235 2.7.0 Authentication successful")
		case "MAIL":
			reply("250 2.1.0 OK")
		case "RCPT":
			if s.rejectRcpt != "" && strings.Contains(line, s.rejectRcpt) {
				reply("550 5.1.1 No such user")
				continue
			}
			reply("250 2.1.5 OK")
		case "DATA":
			reply("354 End data with <CR><LF>.<CR><LF>")
			var sb strings.Builder
			for {
				dl, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if dl == ".\r\n" {
					break
				}
				sb.WriteString(dl)
			}
			s.mu.Lock()
			s.messages = append(s.messages, sb.String())
			s.mu.Unlock()
			reply("250 2.0.0 queued")
		case "QUIT":
			if s.failQuit {
				return
			}
			reply("221 2.0.0 Bye")
			return
		case "RSET", "NOOP":
			reply("250 OK")
		default:
			reply("502 5.5.2 Command not recognized")
		}
	}
}

func (s *fakeSMTP) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

func testEmailChannel(t *testing.T, srv *fakeSMTP, tlsMode string) *EmailChannel {
	t.Helper()
	ch, err := NewEmailChannel(SMTPConfig{
		Host:     "127.0.0.1",
		Port:     srv.port(),
		Username: "notifier",
		Password: "secret",
		From:     "noreply@releasewatch.test",
		TLSMode:  tlsMode,
		Timeout:  5 * time.Second,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEmailChannel: %v", err)
	}
	return ch
}

func TestEmailChannel_Send(t *testing.T) {
	t.Parallel()

	srv := newFakeSMTP(t)
	ch := testEmailChannel(t, srv, SMTPTLSNone)

	res, err := ch.Send(context.Background(), &Message{
		To:        "alice@example.com",
		Subject:   "🎵 New Release: The Weeknd just dropped Dawn FM!",
		Text:      "Hi there! 🎵",
		HTML:      "<p>Hi there!</p>",
		ReleaseID: "4uLU6hMCjMI75M1A2tKUQC",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if !strings.HasPrefix(res.ExternalID, "<") || !strings.HasSuffix(res.ExternalID, "@releasewatch.test>") {
		t.Errorf("unexpected message id %q", res.ExternalID)
	}

	msgs := srv.received()
	if len(msgs) != 1 {
		t.Fatalf("server received %d messages, want 1", len(msgs))
	}
	raw := msgs[0]
	for _, want := range []string{
		"To: alice@example.com",
		"Subject: =?utf-8?q?",
		"multipart/alternative",
		"text/plain; charset=UTF-8",
		"text/html; charset=UTF-8",
		"X-Releasewatch-Release: 4uLU6hMCjMI75M1A2tKUQC",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing %q", want)
		}
	}

	srv.mu.Lock()
	authSeen := srv.authSeen
	srv.mu.Unlock()
	if !authSeen {
		t.Error("expected AUTH before MAIL")
	}
}

func TestEmailChannel_RejectedRecipient(t *testing.T) {
	t.Parallel()

	srv := newFakeSMTP(t)
	srv.rejectRcpt = "ghost@example.com"
	ch := testEmailChannel(t, srv, SMTPTLSNone)

	res, err := ch.Send(context.Background(), &Message{To: "ghost@example.com", Subject: "s", Text: "t"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ErrorCode != ErrorCodeRecipientNotFound {
		t.Errorf("ErrorCode = %s, want %s", res.ErrorCode, ErrorCodeRecipientNotFound)
	}
	if res.ResponseCode != 550 {
		t.Errorf("ResponseCode = %d, want 550", res.ResponseCode)
	}
	if len(srv.received()) != 0 {
		t.Error("no message should have been accepted")
	}
}

func TestEmailChannel_QuitFailureStillDelivered(t *testing.T) {
	t.Parallel()

	srv := newFakeSMTP(t)
	srv.failQuit = true
	ch := testEmailChannel(t, srv, SMTPTLSNone)

	res, err := ch.Send(context.Background(), &Message{To: "alice@example.com", Subject: "s", Text: "t"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !res.Success {
		t.Fatalf("accepted DATA must count as delivered, got %+v", res)
	}
}

func TestEmailChannel_StartTLSRequired(t *testing.T) {
	t.Parallel()

	srv := newFakeSMTP(t)
	ch := testEmailChannel(t, srv, SMTPTLSStartTLS)

	res, err := ch.Send(context.Background(), &Message{To: "alice@example.com", Subject: "s", Text: "t"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure when STARTTLS is not offered")
	}
	if len(srv.received()) != 0 {
		t.Error("nothing should be sent in clear text")
	}
}

func TestEmailChannel_ConnectionRefused(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	ch, err := NewEmailChannel(SMTPConfig{
		Host:    "127.0.0.1",
		Port:    port,
		From:    "noreply@releasewatch.test",
		TLSMode: SMTPTLSNone,
		Timeout: 2 * time.Second,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEmailChannel: %v", err)
	}

	res, err := ch.Send(context.Background(), &Message{To: "alice@example.com", Subject: "s", Text: "t"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ErrorCode != ErrorCodeConnectionFailed {
		t.Errorf("ErrorCode = %s, want %s", res.ErrorCode, ErrorCodeConnectionFailed)
	}
	if !res.IsTransient {
		t.Error("connection failures are transient")
	}
}

func TestSMTPConfig_Validate(t *testing.T) {
	t.Parallel()

	base := SMTPConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"}
	tests := []struct {
		name    string
		mutate  func(c *SMTPConfig)
		wantErr bool
	}{
		{"valid", func(c *SMTPConfig) {}, false},
		{"missing host", func(c *SMTPConfig) { c.Host = "" }, true},
		{"bad port", func(c *SMTPConfig) { c.Port = 0 }, true},
		{"bad from", func(c *SMTPConfig) { c.From = "nobody" }, true},
		{"unknown tls", func(c *SMTPConfig) { c.TLSMode = "ssl3" }, true},
		{"username without password", func(c *SMTPConfig) { c.Username = "u" }, true},
		{"implicit tls", func(c *SMTPConfig) { c.TLSMode = SMTPTLSImplicit; c.Port = 465 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClassifySMTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		msg  string
		want string
	}{
		{"SMTP authentication failed: 535 bad credentials", ErrorCodeAuthFailed},
		{"connect to SMTP server: refused", ErrorCodeConnectionFailed},
		{"start TLS: handshake failure", ErrorCodeInvalidConfig},
		{"something else", ErrorCodeUnknown},
	}
	for _, tt := range tests {
		if got := classifySMTPError(errString(tt.msg)); got != tt.want {
			t.Errorf("classifySMTPError(%q) = %s, want %s", tt.msg, got, tt.want)
		}
	}
}

type errString string

func (e errString) Error() string { return string(e) }
