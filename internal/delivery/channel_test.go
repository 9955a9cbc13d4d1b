// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package delivery

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/releasewatch/internal/models"
)

const testBotToken = "123456:ABC-secret"

func newTelegram(t *testing.T, handler http.HandlerFunc) (*TelegramChannel, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	ch, err := NewTelegramChannel(TelegramConfig{BotToken: testBotToken, BaseURL: srv.URL}, srv.Client(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTelegramChannel: %v", err)
	}
	return ch, srv
}

func TestTelegramChannel_Send(t *testing.T) {
	t.Parallel()

	var got telegramSendMessageRequest
	ch, _ := newTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot"+testBotToken+"/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":42}}`)
	})

	res, err := ch.Send(context.Background(), &Message{
		To:      "987654",
		Subject: "New Release: <Dawn FM>",
		Short:   "The Weeknd & friends",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !res.Success || res.ExternalID != "42" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got.ChatID != "987654" || got.ParseMode != "HTML" {
		t.Errorf("unexpected request %+v", got)
	}
	if !strings.Contains(got.Text, "<b>New Release: &lt;Dawn FM&gt;</b>") {
		t.Errorf("subject not escaped in bold: %q", got.Text)
	}
	if !strings.Contains(got.Text, "The Weeknd &amp; friends") {
		t.Errorf("body not escaped: %q", got.Text)
	}
}

func TestTelegramChannel_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        int
		body          string
		wantCode      string
		wantTransient bool
		wantRetry     time.Duration
	}{
		{
			name:     "chat not found",
			status:   http.StatusBadRequest,
			body:     `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`,
			wantCode: ErrorCodeRecipientNotFound,
		},
		{
			name:     "bot blocked",
			status:   http.StatusForbidden,
			body:     `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`,
			wantCode: ErrorCodeRecipientOptedOut,
		},
		{
			name:          "rate limited",
			status:        http.StatusTooManyRequests,
			body:          `{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":7}}`,
			wantCode:      ErrorCodeRateLimited,
			wantTransient: true,
			wantRetry:     7 * time.Second,
		},
		{
			name:          "unparseable gateway error",
			status:        http.StatusBadGateway,
			body:          `<html>bad gateway</html>`,
			wantCode:      ErrorCodeServerError,
			wantTransient: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ch, _ := newTelegram(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			res, err := ch.Send(context.Background(), &Message{To: "1", Text: "hi"})
			if err != nil {
				t.Fatalf("Send: %v", err)
			}
			if res.Success {
				t.Fatal("expected failure")
			}
			if res.ErrorCode != tt.wantCode {
				t.Errorf("ErrorCode = %s, want %s", res.ErrorCode, tt.wantCode)
			}
			if res.IsTransient != tt.wantTransient {
				t.Errorf("IsTransient = %v, want %v", res.IsTransient, tt.wantTransient)
			}
			if res.RetryAfter != tt.wantRetry {
				t.Errorf("RetryAfter = %v, want %v", res.RetryAfter, tt.wantRetry)
			}
			if res.ResponseCode != tt.status {
				t.Errorf("ResponseCode = %d, want %d", res.ResponseCode, tt.status)
			}
		})
	}
}

func TestTelegramChannel_TransportErrorHidesToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	ch, err := NewTelegramChannel(TelegramConfig{BotToken: testBotToken, BaseURL: base}, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTelegramChannel: %v", err)
	}
	res, err := ch.Send(context.Background(), &Message{To: "1", Text: "hi"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure")
	}
	if strings.Contains(res.ErrorMessage, "ABC-secret") {
		t.Errorf("error message leaks bot token: %s", res.ErrorMessage)
	}
	if res.ErrorCode != ErrorCodeConnectionFailed {
		t.Errorf("ErrorCode = %s, want %s", res.ErrorCode, ErrorCodeConnectionFailed)
	}
}

func TestTelegramChannel_TruncatesBeforeEscaping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		subject string
		body    string
	}{
		{name: "ampersands at the cut", body: strings.Repeat("a", 4090) + "&&&&&&&&"},
		{name: "angle brackets at the cut", body: strings.Repeat("b", 4091) + "<<<<>>>>"},
		{name: "all entities", body: strings.Repeat("&", 2000)},
		{name: "with subject", subject: "New Release: <Dawn FM>", body: strings.Repeat("c", 4060) + "&&&&&&&&&&&&"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got telegramSendMessageRequest
			ch, _ := newTelegram(t, func(w http.ResponseWriter, r *http.Request) {
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					t.Errorf("decode body: %v", err)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1}}`)
			})

			if _, err := ch.Send(context.Background(), &Message{To: "1", Subject: tt.subject, Text: tt.body}); err != nil {
				t.Fatalf("Send: %v", err)
			}
			if n := utf8.RuneCountInString(got.Text); n > ch.MaxContentLength() {
				t.Errorf("text is %d runes, limit %d", n, ch.MaxContentLength())
			}
			if !strings.HasSuffix(got.Text, "...") {
				t.Errorf("text not marked as truncated: %q", got.Text[len(got.Text)-20:])
			}
			body := strings.TrimSuffix(got.Text, "...")
			if i := strings.LastIndex(body, "&"); i >= 0 {
				if tail := body[i:]; tail != "&amp;" && tail != "&lt;" && tail != "&gt;" {
					t.Errorf("entity split at the cut: tail %q", tail)
				}
			}
		})
	}
}

func TestTruncateEscaped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{in: "a&b", limit: 7, want: "a&amp;b"},
		{in: "a&b", limit: 6, want: "a..."},
		{in: "ab&", limit: 6, want: "ab..."},
		{in: "<x>", limit: 9, want: "&lt;x&gt;"},
		{in: "<x>", limit: 8, want: "&lt;x..."},
		{in: "&&&&", limit: 3, want: ""},
		{in: "héllo wörld", limit: 8, want: "héllo..."},
	}

	for _, tt := range tests {
		if got := truncateEscaped(tt.in, tt.limit); got != tt.want {
			t.Errorf("truncateEscaped(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

func TestTelegramConfig_Validate(t *testing.T) {
	t.Parallel()

	for token, wantErr := range map[string]bool{
		"":             true,
		"nocolon":      true,
		":secret":      true,
		"123:":         true,
		testBotToken:   false,
		"1:2:3":        true,
		"42:abcdefghi": false,
	} {
		cfg := TelegramConfig{BotToken: token}
		if err := cfg.Validate(); (err != nil) != wantErr {
			t.Errorf("Validate(%q) error = %v, wantErr %v", token, err, wantErr)
		}
	}
}

func newSMS(t *testing.T, handler http.HandlerFunc) *SMSChannel {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	ch, err := NewSMSChannel(SMSConfig{
		AccountSID: "AC123",
		AuthToken:  "token",
		FromNumber: "+15005550006",
		BaseURL:    srv.URL,
	}, srv.Client(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSMSChannel: %v", err)
	}
	return ch
}

func TestSMSChannel_Send(t *testing.T) {
	t.Parallel()

	var form url.Values
	ch := newSMS(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC123/Messages.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "token" {
			t.Errorf("unexpected basic auth %q %q", user, pass)
		}
		_ = r.ParseForm()
		form = r.PostForm
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"sid":"SM0001","status":"queued"}`)
	})

	res, err := ch.Send(context.Background(), &Message{To: "+14155550100", Text: "long text", Short: "short text"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !res.Success || res.Unconfirmed || res.ExternalID != "SM0001" {
		t.Fatalf("unexpected result %+v", res)
	}
	if form.Get("To") != "+14155550100" || form.Get("From") != "+15005550006" || form.Get("Body") != "short text" {
		t.Errorf("unexpected form %v", form)
	}
}

func TestSMSChannel_AcceptedWithoutConfirmation(t *testing.T) {
	t.Parallel()

	ch := newSMS(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `not json`)
	})

	res, err := ch.Send(context.Background(), &Message{To: "+14155550100", Text: "hi"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !res.Success || !res.Unconfirmed {
		t.Fatalf("2xx without a readable body must be sent but unconfirmed, got %+v", res)
	}
}

func TestSMSChannel_Rejected(t *testing.T) {
	t.Parallel()

	ch := newSMS(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"code":21211,"message":"The 'To' number is not a valid phone number.","status":400}`)
	})

	res, err := ch.Send(context.Background(), &Message{To: "+14155550100", Text: "hi"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ErrorCode != ErrorCodeInvalidRecipient {
		t.Errorf("ErrorCode = %s, want %s", res.ErrorCode, ErrorCodeInvalidRecipient)
	}
	if !strings.Contains(res.ErrorMessage, "21211") {
		t.Errorf("error message should carry the provider code: %s", res.ErrorMessage)
	}
}

func TestSMSChannel_InvalidRecipientNotSent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ch := newSMS(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	})

	res, err := ch.Send(context.Background(), &Message{To: "555-0100", Text: "hi"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Success || res.ErrorCode != ErrorCodeInvalidRecipient {
		t.Fatalf("unexpected result %+v", res)
	}
	if calls.Load() != 0 {
		t.Error("provider must not be called for a malformed number")
	}
}

// recordingChannel counts sends.
type recordingChannel struct {
	name  models.Channel
	sends atomic.Int32
}

func (c *recordingChannel) Name() models.Channel  { return c.name }
func (c *recordingChannel) MaxContentLength() int { return 0 }
func (c *recordingChannel) Send(_ context.Context, msg *Message) (*Result, error) {
	c.sends.Add(1)
	return delivered(msg.To, ""), nil
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	email := &recordingChannel{name: models.ChannelEmail}
	sms := &recordingChannel{name: models.ChannelSMS}
	reg := NewRegistry(sms, email, nil)

	if got := reg.Names(); len(got) != 2 || got[0] != models.ChannelEmail || got[1] != models.ChannelSMS {
		t.Errorf("Names() = %v", got)
	}
	if _, ok := reg.Get(models.ChannelChat); ok {
		t.Error("chat was never registered")
	}
	if ch, ok := reg.Get(models.ChannelSMS); !ok || ch != sms {
		t.Error("expected sms channel")
	}
}

func TestRateLimited(t *testing.T) {
	t.Parallel()

	inner := &recordingChannel{name: models.ChannelEmail}
	if got := NewRateLimited(inner, 0, 1); got != Channel(inner) {
		t.Error("a non-positive rate returns the inner channel")
	}

	limited := NewRateLimited(inner, 0.001, 1)
	if limited.Name() != models.ChannelEmail {
		t.Errorf("Name() = %s", limited.Name())
	}

	// The first send consumes the burst.
	res, err := limited.Send(context.Background(), &Message{To: "a@example.com", Text: "x"})
	if err != nil || !res.Success {
		t.Fatalf("first send: %+v, %v", res, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err = limited.Send(ctx, &Message{To: "a@example.com", Text: "x"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Success || res.ErrorCode != ErrorCodeTimeout {
		t.Errorf("expected limiter timeout, got %+v", res)
	}
	if inner.sends.Load() != 1 {
		t.Errorf("inner sends = %d, want 1", inner.sends.Load())
	}
}

func TestTruncateContent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"hello", 0, "hello"},
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"🎵🎵🎵🎵🎵", 4, "🎵..."},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		if got := TruncateContent(tt.in, tt.limit); got != tt.want {
			t.Errorf("TruncateContent(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

func TestMessageValidate(t *testing.T) {
	t.Parallel()

	ch := &EmailChannel{}
	if _, err := ch.Send(context.Background(), &Message{To: "", Text: "x"}); err != ErrEmptyMessage {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := ch.Send(context.Background(), &Message{To: "a@example.com"}); err != ErrEmptyMessage {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
}
