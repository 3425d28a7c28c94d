package core

import (
	"context"
	"sync"
	"time"
)

// Lanes runs a handler for inbound messages with one goroutine per active
// chat. Messages of the same chat are handled in arrival order; different
// chats proceed independently. A lane goroutine exits once its queue is
// empty.
//
// Handlers get a context that keeps the values of the one passed to
// NewLanes but is never cancelled: an accepted message runs to completion
// or failure even after shutdown begins, since its update has already been
// acknowledged to Telegram.
type Lanes struct {
	ctx    context.Context
	handle func(ctx context.Context, msg InboundMessage)

	mu     sync.Mutex
	queues map[int64][]InboundMessage
	wg     sync.WaitGroup
}

// NewLanes creates Lanes that call handle for every submitted message.
func NewLanes(ctx context.Context, handle func(ctx context.Context, msg InboundMessage)) *Lanes {
	return &Lanes{
		ctx:    context.WithoutCancel(ctx),
		handle: handle,
		queues: make(map[int64][]InboundMessage),
	}
}

// Submit queues msg on its chat's lane. It never blocks on the handler and
// can be used as a MessageHandler.
func (l *Lanes) Submit(msg InboundMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	q, active := l.queues[msg.ChatID]
	l.queues[msg.ChatID] = append(q, msg)
	if active {
		return
	}

	l.wg.Add(1)
	go l.run(msg.ChatID)
}

// Wait blocks until every queued message has been handled.
func (l *Lanes) Wait() {
	l.wg.Wait()
}

// WaitTimeout is Wait bounded by d. It reports whether all lanes drained;
// on false, the messages still running are abandoned.
func (l *Lanes) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

// Pending returns the number of messages queued or running.
func (l *Lanes) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, q := range l.queues {
		n += len(q) + 1
	}
	return n
}

func (l *Lanes) run(chatID int64) {
	defer l.wg.Done()

	for {
		l.mu.Lock()
		q := l.queues[chatID]
		if len(q) == 0 {
			delete(l.queues, chatID)
			l.mu.Unlock()
			return
		}
		msg := q[0]
		l.queues[chatID] = q[1:]
		l.mu.Unlock()

		l.handle(l.ctx, msg)
	}
}
