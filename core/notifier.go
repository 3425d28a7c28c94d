package core

import "context"

// Notifier delivers replies to the messaging platform.
type Notifier interface {
	Send(ctx context.Context, r Reply) error
}
