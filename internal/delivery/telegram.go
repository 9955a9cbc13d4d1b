// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/releasewatch/internal/models"
)

// DefaultTelegramBaseURL is the Telegram Bot API root.
const DefaultTelegramBaseURL = "https://api.telegram.org"

// TelegramConfig configures the chat channel.
type TelegramConfig struct {
	BotToken string
	BaseURL  string
	Timeout  time.Duration
}

// Validate checks the bot token shape (<numeric id>:<secret>).
func (c *TelegramConfig) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("telegram bot token is required")
	}
	parts := strings.Split(c.BotToken, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid telegram bot token format")
	}
	return nil
}

// TelegramChannel delivers messages through the Telegram Bot API.
type TelegramChannel struct {
	cfg    TelegramConfig
	client *http.Client
	logger zerolog.Logger
}

// NewTelegramChannel creates a chat channel. httpClient may be nil.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewTelegramChannel(cfg TelegramConfig, httpClient *http.Client, logger zerolog.Logger) (*TelegramChannel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTelegramBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &TelegramChannel{
		cfg:    cfg,
		client: httpClient,
		logger: logger.With().Str("channel", "chat").Logger(),
	}, nil
}

// Name implements Channel.
func (c *TelegramChannel) Name() models.Channel { return models.ChannelChat }

// MaxContentLength implements Channel.
func (c *TelegramChannel) MaxContentLength() int { return 4096 }

type telegramSendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type telegramAPIResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
	Result      *struct {
		MessageID int64 `json:"message_id"`
	} `json:"result,omitempty"`
	Parameters *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// Send implements Channel. Only an ok:true response counts as delivered.
func (c *TelegramChannel) Send(ctx context.Context, msg *Message) (*Result, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(telegramSendMessageRequest{
		ChatID:    msg.To,
		Text:      c.renderHTML(msg, c.MaxContentLength()),
		ParseMode: "HTML",
	})
	if err != nil {
		return failed(msg.To, ErrorCodeUnknown, fmt.Sprintf("marshal payload: %v", err)), nil
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.cfg.BaseURL, c.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return failed(msg.To, ErrorCodeUnknown, fmt.Sprintf("create request: %v", err)), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// The URL carries the bot token; never surface it.
		return failed(msg.To, classifyHTTPError(err), "send message: "+redactToken(err.Error(), c.cfg.BotToken)), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
	if err != nil {
		res := failed(msg.To, ErrorCodeUnknown, fmt.Sprintf("read response: %v", err))
		res.ResponseCode = resp.StatusCode
		return res, nil
	}

	var apiResp telegramAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		res := failed(msg.To, classifyHTTPStatus(resp.StatusCode), fmt.Sprintf("parse response: %v", err))
		res.ResponseCode = resp.StatusCode
		return res, nil
	}

	if apiResp.OK {
		res := delivered(msg.To, "")
		res.ResponseCode = resp.StatusCode
		if apiResp.Result != nil {
			res.ExternalID = strconv.FormatInt(apiResp.Result.MessageID, 10)
		}
		return res, nil
	}

	code := apiResp.ErrorCode
	if code == 0 {
		code = resp.StatusCode
	}
	res := failed(msg.To, classifyTelegramError(code, apiResp.Description), apiResp.Description)
	res.ResponseCode = resp.StatusCode
	if apiResp.Parameters != nil && apiResp.Parameters.RetryAfter > 0 {
		res.RetryAfter = time.Duration(apiResp.Parameters.RetryAfter) * time.Second
	}
	return res, nil
}

// renderHTML builds Telegram HTML: bold subject, then the escaped text body
// (or short body). The body is cut on raw text so an entity is never split,
// and the escaped result stays within limit runes.
func (c *TelegramChannel) renderHTML(msg *Message, limit int) string {
	body := msg.Text
	if body == "" {
		body = msg.Short
	}
	head := ""
	if msg.Subject != "" {
		head = "<b>" + escapeHTML(msg.Subject) + "</b>\n\n"
	}
	return head + truncateEscaped(body, limit-utf8.RuneCountInString(head))
}

// truncateEscaped escapes s and, when the escaped form exceeds limit runes,
// keeps the longest raw prefix whose escaped form plus "..." fits.
func truncateEscaped(s string, limit int) string {
	escaped := escapeHTML(s)
	if utf8.RuneCountInString(escaped) <= limit {
		return escaped
	}
	if limit <= 3 {
		return ""
	}
	budget := limit - 3
	width := 0
	cut := 0
	for i, r := range s {
		w := 1
		switch r {
		case '&':
			w = len("&amp;")
		case '<', '>':
			w = len("&lt;")
		}
		if width+w > budget {
			break
		}
		width += w
		cut = i + utf8.RuneLen(r)
	}
	return escapeHTML(s[:cut]) + "..."
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func redactToken(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "<redacted>")
}

func classifyTelegramError(code int, description string) string {
	switch code {
	case 401:
		return ErrorCodeAuthFailed
	case 400:
		if strings.Contains(description, "chat not found") {
			return ErrorCodeRecipientNotFound
		}
		if strings.Contains(description, "blocked") || strings.Contains(description, "deactivated") {
			return ErrorCodeRecipientOptedOut
		}
		return ErrorCodeInvalidRecipient
	case 403:
		return ErrorCodeRecipientOptedOut
	case 429:
		return ErrorCodeRateLimited
	default:
		if code >= 500 {
			return ErrorCodeServerError
		}
		return ErrorCodeUnknown
	}
}
