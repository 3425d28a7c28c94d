package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jdelaire/annoyray/core/analysis"
	"github.com/jdelaire/annoyray/core/policy"
)

const sendTimeout = 10 * time.Second

// Analyzer runs one analysis of a piece of text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) analysis.Result
}

// Dispatcher maps each inbound message to at most one reply. It keeps no
// state between messages.
type Dispatcher struct {
	policy      *policy.Policy
	analyzer    Analyzer
	notifier    Notifier
	logger      *slog.Logger
	botUsername string
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(pol *policy.Policy, analyzer Analyzer, notifier Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		policy:   pol,
		analyzer: analyzer,
		notifier: notifier,
		logger:   logger,
	}
}

// WithBotUsername makes the dispatcher ignore commands addressed to other
// bots ("/analyze@otherbot").
func (d *Dispatcher) WithBotUsername(username string) *Dispatcher {
	d.botUsername = username
	return d
}

// Handle processes an inbound message: authorize, classify, dispatch, respond.
func (d *Dispatcher) Handle(ctx context.Context, msg InboundMessage) {
	if err := d.policy.Authorize(msg.ChatID, msg.UpdateID, msg.Timestamp); err != nil {
		d.logger.Debug("message rejected by policy", "chat_id", msg.ChatID, "error", err)
		return
	}

	ev := Classify(msg, d.botUsername)
	if ev == nil {
		return
	}

	id := uuid.NewString()
	logger := d.logger.With("request_id", id, "chat_id", msg.ChatID)
	logger.Debug("dispatching", "event", fmt.Sprintf("%T", ev))

	text, ok := d.Dispatch(ctx, ev)
	if !ok {
		return
	}

	d.respond(ctx, logger, Reply{
		ID:               id,
		ChatID:           msg.ChatID,
		ReplyToMessageID: msg.MessageID,
		Text:             text,
		CreatedAt:        time.Now(),
	})
}

// Dispatch returns the reply text for an event. ok is false when the event
// gets no reply at all.
func (d *Dispatcher) Dispatch(ctx context.Context, ev InboundEvent) (reply string, ok bool) {
	switch ev.(type) {
	case StartCommand:
		return Greeting, true
	case AnalyzeCommand:
		text, found := ResolveTarget(ev)
		if !found {
			return UsageHint, true
		}
		return d.analyze(ctx, text), true
	case PlainMessage:
		text, found := ResolveTarget(ev)
		if !found {
			return "", false
		}
		return d.analyze(ctx, text), true
	default:
		return "", false
	}
}

func (d *Dispatcher) analyze(ctx context.Context, text string) string {
	res := d.analyzer.Analyze(ctx, text)
	if !res.OK() {
		d.logger.Error("analysis failed", "error", res.Err)
		return fmt.Sprintf(apologyFormat, res.Err)
	}
	return res.Text
}

func (d *Dispatcher) respond(ctx context.Context, logger *slog.Logger, r Reply) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := d.notifier.Send(ctx, r); err != nil {
		logger.Error("failed to send response", "error", err)
		return
	}
	logger.Info("reply sent", "chars", len(r.Text))
}
