// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/releasewatch/internal/models"
)

// TLS modes for SMTP connections.
const (
	// SMTPTLSStartTLS connects in plain text and upgrades with STARTTLS (port 587).
	SMTPTLSStartTLS = "starttls"

	// SMTPTLSImplicit connects over TLS from the first byte (port 465).
	SMTPTLSImplicit = "implicit"

	// SMTPTLSNone never encrypts. Only for local relays and tests.
	SMTPTLSNone = "none"
)

// SMTPConfig configures the email channel.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string

	// TLSMode is starttls (default), implicit or none.
	TLSMode string

	// Timeout bounds connect plus the whole SMTP conversation.
	Timeout time.Duration

	// TLSConfig overrides the TLS client configuration. Tests use it to trust
	// a self-signed server.
	TLSConfig *tls.Config
}

// Validate checks the SMTP configuration.
func (c *SMTPConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("SMTP port must be between 1 and 65535")
	}
	if err := ValidateEmail(c.From); err != nil {
		return fmt.Errorf("SMTP from address: %w", err)
	}
	switch c.TLSMode {
	case "", SMTPTLSStartTLS, SMTPTLSImplicit, SMTPTLSNone:
	default:
		return fmt.Errorf("unknown SMTP TLS mode %q", c.TLSMode)
	}
	if (c.Username == "") != (c.Password == "") {
		return fmt.Errorf("SMTP username and password must be set together")
	}
	return nil
}

// EmailChannel sends notifications over SMTP.
type EmailChannel struct {
	cfg    SMTPConfig
	logger zerolog.Logger
}

// NewEmailChannel creates an email channel from cfg.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewEmailChannel(cfg SMTPConfig, logger zerolog.Logger) (*EmailChannel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TLSMode == "" {
		cfg.TLSMode = SMTPTLSStartTLS
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &EmailChannel{cfg: cfg, logger: logger.With().Str("channel", "email").Logger()}, nil
}

// Name implements Channel.
func (c *EmailChannel) Name() models.Channel { return models.ChannelEmail }

// MaxContentLength implements Channel. Email has no practical limit.
func (c *EmailChannel) MaxContentLength() int { return 0 }

// Send implements Channel.
func (c *EmailChannel) Send(ctx context.Context, msg *Message) (*Result, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}
	if err := ValidateEmail(msg.To); err != nil {
		return failed(msg.To, ErrorCodeInvalidRecipient, err.Error()), nil
	}

	raw, messageID, err := c.buildMessage(msg)
	if err != nil {
		return failed(msg.To, ErrorCodeUnknown, err.Error()), nil
	}

	if err := c.sendSMTP(ctx, msg.To, raw); err != nil {
		res := failed(msg.To, classifySMTPError(err), err.Error())
		var tpErr *textproto.Error
		if errors.As(err, &tpErr) {
			res.ResponseCode = tpErr.Code
		}
		return res, nil
	}

	return delivered(msg.To, messageID), nil
}

// buildMessage renders an RFC 5322 message with a text part and, when
// present, an HTML alternative. Bodies are quoted-printable encoded.
func (c *EmailChannel) buildMessage(msg *Message) ([]byte, string, error) {
	var buf bytes.Buffer

	fromName := c.cfg.FromName
	if fromName == "" {
		fromName = "Releasewatch"
	}
	domain := c.cfg.From[strings.LastIndex(c.cfg.From, "@")+1:]
	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), domain)

	headers := []struct{ k, v string }{
		{"From", fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", fromName), c.cfg.From)},
		{"To", msg.To},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"Date", time.Now().UTC().Format(time.RFC1123Z)},
		{"Message-ID", messageID},
		{"MIME-Version", "1.0"},
	}
	if msg.ReleaseID != "" {
		headers = append(headers, struct{ k, v string }{"X-Releasewatch-Release", msg.ReleaseID})
	}
	for _, h := range headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h.k, h.v)
	}

	text := msg.Text
	if text == "" {
		text = msg.Short
	}

	if msg.HTML == "" {
		buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
		if err := writeQP(&buf, text); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), messageID, nil
	}

	boundary := "rw-" + strings.ReplaceAll(uuid.New().String(), "-", "")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	parts := []struct{ ctype, body string }{
		{"text/plain", text},
		{"text/html", msg.HTML},
	}
	for _, p := range parts {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		fmt.Fprintf(&buf, "Content-Type: %s; charset=UTF-8\r\n", p.ctype)
		buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
		if err := writeQP(&buf, p.body); err != nil {
			return nil, "", err
		}
		buf.WriteString("\r\n")
	}
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes(), messageID, nil
}

func writeQP(buf *bytes.Buffer, body string) error {
	w := quotedprintable.NewWriter(buf)
	if _, err := w.Write([]byte(body)); err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	return w.Close()
}

func (c *EmailChannel) sendSMTP(ctx context.Context, to string, raw []byte) error {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	tlsCfg := c.cfg.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{ServerName: c.cfg.Host, MinVersion: tls.VersionTLS12}
	}

	var (
		conn net.Conn
		err  error
	)
	dialer := &net.Dialer{Timeout: c.cfg.Timeout}
	if c.cfg.TLSMode == SMTPTLSImplicit {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsCfg}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }() //nolint:errcheck // best effort cleanup

	// net/smtp has no context support; the deadline bounds the conversation.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, c.cfg.Host)
	if err != nil {
		return fmt.Errorf("SMTP greeting: %w", err)
	}
	defer func() { _ = client.Close() }() //nolint:errcheck // best effort cleanup

	if c.cfg.TLSMode == SMTPTLSStartTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return fmt.Errorf("SMTP server does not support STARTTLS")
		}
		if err := client.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("start TLS: %w", err)
		}
	}

	if c.cfg.Username != "" {
		auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(c.cfg.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("start message data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	// The server accepted DATA; a failed QUIT does not undo delivery.
	if err := client.Quit(); err != nil {
		c.logger.Debug().Err(err).Str("to", to).Msg("SMTP QUIT failed after accepted message")
	}
	return nil
}

func classifySMTPError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorCodeTimeout
	}

	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch {
		case tpErr.Code == 421 || tpErr.Code == 450 || tpErr.Code == 451 || tpErr.Code == 452:
			return ErrorCodeServerError
		case tpErr.Code == 535 || tpErr.Code == 530 || tpErr.Code == 534:
			return ErrorCodeAuthFailed
		case tpErr.Code == 550 || tpErr.Code == 551 || tpErr.Code == 553:
			return ErrorCodeRecipientNotFound
		case tpErr.Code == 552:
			return ErrorCodeContentTooLarge
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "authentication"):
		return ErrorCodeAuthFailed
	case strings.Contains(msg, "connect"), strings.Contains(msg, "greeting"):
		return ErrorCodeConnectionFailed
	case strings.Contains(msg, "TLS"):
		return ErrorCodeInvalidConfig
	}
	return ErrorCodeUnknown
}
