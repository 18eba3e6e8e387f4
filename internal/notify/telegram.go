package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
)

const telegramAPI = "https://api.telegram.org"

// TelegramSender delivers messages through the Telegram Bot API.
type TelegramSender struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewTelegram creates a TelegramSender authenticated with the bot token.
func NewTelegram(token string) *TelegramSender {
	return NewTelegramWithBaseURL(token, telegramAPI)
}

// NewTelegramWithBaseURL creates a TelegramSender against a custom API root (for testing).
func NewTelegramWithBaseURL(token, baseURL string) *TelegramSender {
	return &TelegramSender{
		token:   token,
		baseURL: baseURL,
		client:  &http.Client{Timeout: sendTimeout},
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts msg to chat channel with HTML parse mode.
func (t *TelegramSender) Send(ctx context.Context, channel string, msg Message) error {
	text := msg.HTML
	if text == "" {
		text = html.EscapeString(msg.Text)
	}
	return t.call(ctx, "sendMessage", map[string]any{
		"chat_id":    channel,
		"text":       text,
		"parse_mode": "HTML",
	})
}

// SetDescription updates the bot's profile description.
func (t *TelegramSender) SetDescription(ctx context.Context, description string) error {
	return t.call(ctx, "setMyDescription", map[string]any{
		"description": description,
	})
}

func (t *TelegramSender) call(ctx context.Context, method string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram %s: marshal payload: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: create request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The URL embeds the token; drop it from the error.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("telegram %s: send request: %w", method, err)
	}
	defer resp.Body.Close()

	var result telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("telegram %s: unexpected status %d", method, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || !result.OK {
		return fmt.Errorf("telegram %s: status %d: %s", method, resp.StatusCode, result.Description)
	}
	return nil
}
