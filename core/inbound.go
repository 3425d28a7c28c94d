package core

import "time"

// InboundMessage represents a text message received from Telegram.
type InboundMessage struct {
	UpdateID  int64
	MessageID int64
	ChatID    int64
	// Private is true for one-to-one chats with the bot.
	Private bool
	UserID  int64
	Text    string
	// ReplyTo holds the text of the message being replied to, nil when the
	// message is not a reply. A reply to a message without text is non-nil
	// and empty.
	ReplyTo   *string
	Timestamp time.Time
}

// MessageHandler processes an inbound message.
type MessageHandler func(msg InboundMessage)
