package telegram_receiver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/jdelaire/annoyray/core"
)

const (
	defaultBaseURL  = "https://api.telegram.org"
	longPollTimeout = 30
	httpTimeout     = 35 * time.Second
	errorBackoff    = 5 * time.Second
)

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

var _ core.Receiver = (*Receiver)(nil)

// Receiver long-polls Telegram for inbound messages.
type Receiver struct {
	botToken string
	handler  core.MessageHandler
	logger   *slog.Logger
	client   *http.Client
	baseURL  string
	offset   int64
}

// New creates a Telegram receiver.
func New(botToken string, handler core.MessageHandler, logger *slog.Logger) *Receiver {
	return &Receiver{
		botToken: botToken,
		handler:  handler,
		logger:   logger,
		client:   &http.Client{Timeout: httpTimeout},
		baseURL:  defaultBaseURL,
	}
}

// WithBaseURL overrides the Telegram API base URL (for testing).
func (r *Receiver) WithBaseURL(baseURL string) *Receiver {
	r.baseURL = baseURL
	return r
}

// Start begins the long-poll loop. Blocks until ctx is cancelled.
func (r *Receiver) Start(ctx context.Context) error {
	r.logger.Info("telegram receiver started")
	for {
		if err := ctx.Err(); err != nil {
			r.logger.Info("telegram receiver stopped")
			return nil
		}

		updates, err := r.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("telegram receiver stopped")
				return nil
			}
			r.logger.Error("poll error", "error", err)
			select {
			case <-time.After(errorBackoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		for _, u := range updates {
			r.offset = u.ID + 1
			if msg, ok := toInbound(u); ok {
				r.handler(msg)
			}
		}
	}
}

// Username returns the bot's @username via getMe.
func (r *Receiver) Username(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/bot%s/getMe", r.baseURL, r.botToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w (status %s)", err, resp.Status)
	}
	if !apiResp.OK {
		return "", fmt.Errorf("getMe failed: %d %s", resp.StatusCode, apiResp.Description)
	}

	var me models.User
	if err := json.Unmarshal(apiResp.Result, &me); err != nil {
		return "", fmt.Errorf("decode user: %w", err)
	}
	if me.Username == "" {
		return "", fmt.Errorf("getMe returned no username")
	}
	return me.Username, nil
}

// toInbound converts a text message update. Other update kinds and messages
// without text are skipped.
func toInbound(u models.Update) (core.InboundMessage, bool) {
	m := u.Message
	if m == nil || m.Text == "" {
		return core.InboundMessage{}, false
	}

	msg := core.InboundMessage{
		UpdateID:  u.ID,
		MessageID: int64(m.ID),
		ChatID:    m.Chat.ID,
		Private:   m.Chat.Type == models.ChatTypePrivate,
		Text:      m.Text,
		Timestamp: time.Unix(int64(m.Date), 0),
	}
	if m.From != nil {
		msg.UserID = m.From.ID
	}
	if m.ReplyToMessage != nil {
		text := m.ReplyToMessage.Text
		msg.ReplyTo = &text
	}
	return msg, true
}

func (r *Receiver) poll(ctx context.Context) ([]models.Update, error) {
	query := url.Values{
		"offset":          {strconv.FormatInt(r.offset, 10)},
		"timeout":         {strconv.Itoa(longPollTimeout)},
		"allowed_updates": {`["message"]`},
	}
	endpoint := fmt.Sprintf("%s/bot%s/getUpdates?%s", r.baseURL, r.botToken, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api status: %d", resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if !apiResp.OK {
		return nil, fmt.Errorf("api returned ok=false: %s", apiResp.Description)
	}

	var updates []models.Update
	if err := json.Unmarshal(apiResp.Result, &updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}

	return updates, nil
}
