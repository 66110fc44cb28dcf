package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/amirphl/simple-backtester/internal/utils"
)

const (
	telegramAPI = "https://api.telegram.org"
	// maxMessageLen is Telegram's limit for one text message.
	maxMessageLen = 4096
)

type TelegramNotifier struct {
	Token   string
	ChatID  string
	BaseURL string
	Retries int
	Delay   time.Duration

	client *http.Client
}

func NewTelegramNotifier(token, chatID string, retries int, delay time.Duration) *TelegramNotifier {
	if retries <= 0 {
		retries = 1
	}
	return &TelegramNotifier{
		Token:   token,
		ChatID:  chatID,
		BaseURL: telegramAPI,
		Retries: retries,
		Delay:   delay,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// New returns a Telegram notifier, or Nop when token or chat is missing.
func New(token, chatID string, retries int, delay time.Duration) Notifier {
	if token == "" || chatID == "" {
		return Nop{}
	}
	return NewTelegramNotifier(token, chatID, retries, delay)
}

func (t *TelegramNotifier) Send(ctx context.Context, message string) error {
	message = truncateMessage(message, maxMessageLen)
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.BaseURL, "/"), t.Token)
	form := url.Values{
		"chat_id": {t.ChatID},
		"text":    {message},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram send failed: %s", resp.Status)
	}
	return nil
}

// truncateMessage cuts message to at most limit characters, ending in "..."
// when it was cut. Characters are counted in UTF-16 code units as Telegram
// does, and a UTF-8 sequence is never split.
func truncateMessage(message string, limit int) string {
	if utf16Len(message) <= limit {
		return message
	}
	units := 0
	for i, r := range message {
		units += utf16.RuneLen(r)
		if units > limit-3 {
			return message[:i] + "..."
		}
	}
	return message
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// SendWithRetry tries Send up to Retries times, Delay apart.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, message string) error {
	var err error
	for attempt := 1; attempt <= t.Retries; attempt++ {
		if err = t.Send(ctx, message); err == nil {
			return nil
		}
		utils.GetLogger().Warnf("Notifier | Telegram send failed (attempt %d/%d): %v", attempt, t.Retries, err)
		if attempt == t.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.Delay):
		}
	}
	return fmt.Errorf("telegram: all %d attempts failed: %w", t.Retries, err)
}
