// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

// Package delivery implements the outbound notification channels: SMTP
// email, Telegram bot messages and Twilio SMS.
//
// Each channel performs one send per call and never retries internally; the
// reconciliation loop's ledger decides whether a failed send is attempted
// again on the next cycle. Send reports failures through Result rather than
// the error return, which is reserved for invalid input.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tomtom215/releasewatch/internal/models"
)

// Channel is an outbound transport.
type Channel interface {
	// Name returns the models.Channel this transport serves.
	Name() models.Channel

	// Send delivers one message. Delivery failures are reported in the
	// Result; a non-nil error means the message itself was unusable.
	Send(ctx context.Context, msg *Message) (*Result, error)

	// MaxContentLength is the body limit in characters (0 = unlimited).
	MaxContentLength() int
}

// Message is a rendered notification addressed to one destination.
type Message struct {
	// To is the channel-specific address: email, chat ID or E.164 phone number.
	To string

	Subject string

	// Text is the plain-text body.
	Text string

	// HTML is an optional HTML alternative, used by email.
	HTML string

	// Short is a compact body for length-limited transports. Falls back to Text.
	Short string

	// ReleaseID and CycleID are carried into transport metadata where supported.
	ReleaseID string
	CycleID   string
}

// Result describes the outcome of one send.
type Result struct {
	// Success means the transport accepted the message and the ledger may
	// record it.
	Success bool

	// Unconfirmed is set when the provider accepted the request but its
	// confirmation could not be read. Success is still true.
	Unconfirmed bool

	Recipient    string
	DeliveredAt  time.Time
	ErrorMessage string
	ErrorCode    string

	// IsTransient marks failures likely to clear on a later cycle.
	IsTransient bool

	// RetryAfter is the provider's back-off hint, when given.
	RetryAfter time.Duration

	// ExternalID is the provider message identifier (Telegram message_id, Twilio SID).
	ExternalID string

	// ResponseCode is the HTTP or SMTP status, when one was received.
	ResponseCode int
}

// Error codes for failed deliveries.
const (
	ErrorCodeInvalidConfig     = "INVALID_CONFIG"
	ErrorCodeInvalidRecipient  = "INVALID_RECIPIENT"
	ErrorCodeConnectionFailed  = "CONNECTION_FAILED"
	ErrorCodeAuthFailed        = "AUTH_FAILED"
	ErrorCodeRateLimited       = "RATE_LIMITED"
	ErrorCodeContentTooLarge   = "CONTENT_TOO_LARGE"
	ErrorCodeRecipientNotFound = "RECIPIENT_NOT_FOUND"
	ErrorCodeRecipientOptedOut = "RECIPIENT_OPTED_OUT"
	ErrorCodeServerError       = "SERVER_ERROR"
	ErrorCodeTimeout           = "TIMEOUT"
	ErrorCodeUnknown           = "UNKNOWN"
)

// ErrEmptyMessage is returned by Send for a message without destination or body.
var ErrEmptyMessage = errors.New("message has no destination or body")

func (m *Message) validate() error {
	if m == nil || strings.TrimSpace(m.To) == "" || (m.Text == "" && m.HTML == "" && m.Short == "") {
		return ErrEmptyMessage
	}
	return nil
}

func failed(to, code, msg string) *Result {
	return &Result{
		Recipient:    to,
		ErrorCode:    code,
		ErrorMessage: msg,
		IsTransient:  isTransientCode(code),
	}
}

func delivered(to, externalID string) *Result {
	return &Result{Success: true, Recipient: to, DeliveredAt: time.Now().UTC(), ExternalID: externalID}
}

// ============================================================================
// Registry
// ============================================================================

// Registry maps channel names to configured transports. Only channels with
// credentials are registered, so a lookup miss means "not enabled".
type Registry struct {
	channels map[models.Channel]Channel
}

// NewRegistry builds a registry from the given channels.
func NewRegistry(channels ...Channel) *Registry {
	r := &Registry{channels: make(map[models.Channel]Channel, len(channels))}
	for _, ch := range channels {
		r.Register(ch)
	}
	return r
}

// Register adds or replaces ch.
func (r *Registry) Register(ch Channel) {
	if ch != nil {
		r.channels[ch.Name()] = ch
	}
}

// Get returns the transport for name.
func (r *Registry) Get(name models.Channel) (Channel, bool) {
	ch, ok := r.channels[name]
	return ch, ok
}

// Names lists the enabled channels, sorted.
func (r *Registry) Names() []models.Channel {
	names := make([]models.Channel, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// ============================================================================
// Helpers
// ============================================================================

// ValidateEmail performs a light syntactic check of an email address.
func ValidateEmail(email string) error {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("invalid email address: %q", email)
	}
	if strings.ContainsAny(email, " \r\n<>") {
		return fmt.Errorf("invalid email address: %q", email)
	}
	if !strings.Contains(email[at+1:], ".") && email[at+1:] != "localhost" {
		return fmt.Errorf("invalid email domain: %q", email)
	}
	return nil
}

// TruncateContent shortens s to at most limit characters, ending with "...".
func TruncateContent(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= 3 {
		return string([]rune(s)[:limit])
	}
	return string([]rune(s)[:limit-3]) + "..."
}

// classifyHTTPError maps a transport-level HTTP client error to an error code.
func classifyHTTPError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorCodeTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrorCodeConnectionFailed
	}
	return ErrorCodeUnknown
}

// classifyHTTPStatus maps a provider HTTP status to an error code.
func classifyHTTPStatus(status int) string {
	switch {
	case status == 401 || status == 403:
		return ErrorCodeAuthFailed
	case status == 404:
		return ErrorCodeRecipientNotFound
	case status == 413:
		return ErrorCodeContentTooLarge
	case status == 429:
		return ErrorCodeRateLimited
	case status >= 500:
		return ErrorCodeServerError
	case status >= 400:
		return ErrorCodeInvalidConfig
	default:
		return ErrorCodeUnknown
	}
}

func isTransientCode(code string) bool {
	switch code {
	case ErrorCodeConnectionFailed, ErrorCodeTimeout, ErrorCodeRateLimited, ErrorCodeServerError:
		return true
	default:
		return false
	}
}
