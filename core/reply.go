package core

import "time"

// Reply is an outbound text message sent back into a conversation.
type Reply struct {
	// ID correlates the reply with the request that produced it in logs.
	ID               string
	ChatID           int64
	ReplyToMessageID int64
	Text             string
	CreatedAt        time.Time
}
