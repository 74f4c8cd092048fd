// Package notify delivers summaries to Telegram users.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"tubedigest/model"
)

const (
	telegramAPIBase = "https://api.telegram.org/bot"

	// Telegram caps messages at 4096 chars; we split a bit below that so
	// the part label always fits.
	maxMessageLength = 4000
)

// Telegram is a minimal Bot API client covering what the bot needs:
// sending messages and long-polling for updates.
type Telegram struct {
	token      string
	baseURL    string
	httpClient *http.Client
	partDelay  time.Duration
}

func NewTelegram(token string) *Telegram {
	return &Telegram{
		token:   token,
		baseURL: telegramAPIBase,
		// long polls run up to 30s, leave headroom
		httpClient: &http.Client{Timeout: 35 * time.Second},
		partDelay:  2 * time.Second,
	}
}

type apiResponse struct {
	Ok          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// Update is one item from getUpdates.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	Text string `json:"text"`
	Chat Chat   `json:"chat"`
	From *Chat  `json:"from"`
}

type Chat struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// SendMessage delivers text to the user, splitting it into numbered
// parts when it exceeds the Telegram limit.
func (t *Telegram) SendMessage(ctx context.Context, userID model.UserID, text string) error {
	parts := splitMessage(text, maxMessageLength)
	for i, part := range parts {
		if len(parts) > 1 {
			part = fmt.Sprintf("Parte %d/%d\n\n%s", i+1, len(parts), part)
		}
		payload := map[string]any{
			"chat_id": string(userID),
			"text":    part,
		}
		if _, err := t.call(ctx, "sendMessage", payload); err != nil {
			return fmt.Errorf("send message to %s: %w", userID, err)
		}
		if i < len(parts)-1 {
			select {
			case <-time.After(t.partDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return nil
}

// GetUpdates long-polls for new updates starting at offset.
func (t *Telegram) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	payload := map[string]any{
		"offset":  offset,
		"timeout": timeout,
	}
	result, err := t.call(ctx, "getUpdates", payload)
	if err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}

	return updates, nil
}

func (t *Telegram) call(ctx context.Context, method string, payload map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s%s/%s", t.baseURL, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed apiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("telegram returned HTTP %d: %w", resp.StatusCode, err)
	}
	if !parsed.Ok {
		return nil, fmt.Errorf("telegram: %s", parsed.Description)
	}

	return parsed.Result, nil
}

// splitMessage cuts text into chunks of at most limit bytes, preferring
// to break at the last newline of each chunk. A hard cut never lands
// inside a multi-byte rune.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var parts []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		parts = append(parts, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		parts = append(parts, text)
	}

	return parts
}
