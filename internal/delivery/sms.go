// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package delivery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/releasewatch/internal/models"
)

// DefaultTwilioBaseURL is the Twilio REST API root.
const DefaultTwilioBaseURL = "https://api.twilio.com"

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// SMSConfig configures the Twilio SMS channel.
type SMSConfig struct {
	AccountSID string
	AuthToken  string

	// FromNumber is the sending number in E.164 form.
	FromNumber string

	BaseURL string
	Timeout time.Duration
}

// Validate checks the SMS configuration.
func (c *SMSConfig) Validate() error {
	if c.AccountSID == "" || c.AuthToken == "" {
		return fmt.Errorf("twilio account SID and auth token are required")
	}
	if err := ValidatePhoneNumber(c.FromNumber); err != nil {
		return fmt.Errorf("twilio from number: %w", err)
	}
	return nil
}

// ValidatePhoneNumber checks that n is an E.164 number.
func ValidatePhoneNumber(n string) error {
	if !e164Pattern.MatchString(n) {
		return fmt.Errorf("phone number %q is not in E.164 format", n)
	}
	return nil
}

// SMSChannel sends text messages through Twilio's Messages resource.
//
// Twilio queues messages asynchronously, so the synchronous create call is the
// only signal available. Any 2xx is treated as sent, including a 2xx whose body
// cannot be decoded (reported as Unconfirmed). Transport errors and non-2xx
// responses are not sent and remain eligible on the next cycle.
type SMSChannel struct {
	cfg    SMSConfig
	client *http.Client
	logger zerolog.Logger
}

// NewSMSChannel creates an SMS channel. httpClient may be nil.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSMSChannel(cfg SMSConfig, httpClient *http.Client, logger zerolog.Logger) (*SMSChannel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTwilioBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &SMSChannel{
		cfg:    cfg,
		client: httpClient,
		logger: logger.With().Str("channel", "sms").Logger(),
	}, nil
}

// Name implements Channel.
func (c *SMSChannel) Name() models.Channel { return models.ChannelSMS }

// MaxContentLength implements Channel. Twilio rejects bodies above 1600 characters.
func (c *SMSChannel) MaxContentLength() int { return 1600 }

type twilioMessageResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type twilioErrorResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

// Send implements Channel.
func (c *SMSChannel) Send(ctx context.Context, msg *Message) (*Result, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}
	if err := ValidatePhoneNumber(msg.To); err != nil {
		return failed(msg.To, ErrorCodeInvalidRecipient, err.Error()), nil
	}

	body := msg.Short
	if body == "" {
		body = msg.Text
	}

	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("From", c.cfg.FromNumber)
	form.Set("Body", TruncateContent(body, c.MaxContentLength()))

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.cfg.BaseURL, url.PathEscape(c.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return failed(msg.To, ErrorCodeUnknown, fmt.Sprintf("create request: %v", err)), nil
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return failed(msg.To, classifyHTTPError(err), fmt.Sprintf("send message: %v", err)), nil
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 16<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		res := delivered(msg.To, "")
		res.ResponseCode = resp.StatusCode
		var out twilioMessageResponse
		if readErr != nil || json.Unmarshal(raw, &out) != nil || out.SID == "" {
			res.Unconfirmed = true
			c.logger.Warn().Int("status", resp.StatusCode).Msg("SMS accepted without a readable confirmation")
			return res, nil
		}
		res.ExternalID = out.SID
		return res, nil
	}

	var apiErr twilioErrorResponse
	message := fmt.Sprintf("HTTP %d", resp.StatusCode)
	code := classifyHTTPStatus(resp.StatusCode)
	if readErr == nil && json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
		message = apiErr.Message
		if apiErr.Code != 0 {
			message += " (twilio " + strconv.Itoa(apiErr.Code) + ")"
			code = classifyTwilioError(apiErr.Code, code)
		}
	}

	res := failed(msg.To, code, message)
	res.ResponseCode = resp.StatusCode
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			res.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return res, nil
}

// classifyTwilioError refines an HTTP-derived code using Twilio's error catalog.
func classifyTwilioError(twilioCode int, fallback string) string {
	switch twilioCode {
	case 21211, 21614, 21217:
		return ErrorCodeInvalidRecipient
	case 21610:
		return ErrorCodeRecipientOptedOut
	case 20003:
		return ErrorCodeAuthFailed
	case 20429:
		return ErrorCodeRateLimited
	case 21617:
		return ErrorCodeContentTooLarge
	}
	return fallback
}
