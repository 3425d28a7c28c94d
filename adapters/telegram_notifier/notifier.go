package telegram_notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jdelaire/annoyray/core"
)

// maxMessageLen is Telegram's sendMessage text limit.
const maxMessageLen = 4096

// Notifier sends replies via the Telegram Bot API.
type Notifier struct {
	botToken string
	client   *http.Client
	baseURL  string
}

// New creates a Telegram notifier with the given bot token.
func New(botToken string) *Notifier {
	return &Notifier{
		botToken: botToken,
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  "https://api.telegram.org",
	}
}

// Send posts r.Text to r.ChatID, split into several messages when it
// exceeds Telegram's length limit. The first part is threaded as a reply
// to r.ReplyToMessageID when it is set.
func (n *Notifier) Send(ctx context.Context, r core.Reply) error {
	for i, part := range splitText(r.Text, maxMessageLen) {
		form := url.Values{
			"chat_id": {strconv.FormatInt(r.ChatID, 10)},
			"text":    {part},
		}
		if i == 0 && r.ReplyToMessageID != 0 {
			params, err := json.Marshal(replyParameters{
				MessageID:                r.ReplyToMessageID,
				AllowSendingWithoutReply: true,
			})
			if err != nil {
				return fmt.Errorf("encode reply parameters: %w", err)
			}
			form.Set("reply_parameters", string(params))
		}
		if err := n.post(ctx, form); err != nil {
			return err
		}
	}
	return nil
}

type replyParameters struct {
	MessageID                int64 `json:"message_id"`
	AllowSendingWithoutReply bool  `json:"allow_sending_without_reply"`
}

func (n *Notifier) post(ctx context.Context, form url.Values) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			OK          bool   `json:"ok"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Description == "" {
			return fmt.Errorf("telegram API error %d: %s", resp.StatusCode, resp.Status)
		}
		return fmt.Errorf("telegram API error %d: %s", resp.StatusCode, body.Description)
	}

	return nil
}

// WithBaseURL sets a custom base URL (for testing).
func (n *Notifier) WithBaseURL(baseURL string) *Notifier {
	n.baseURL = baseURL
	return n
}

// splitText cuts text into parts of at most limit runes, preferring to break
// after a newline.
func splitText(text string, limit int) []string {
	runes := []rune(text)
	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	return append(parts, string(runes))
}
