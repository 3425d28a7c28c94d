package policy

import (
	"fmt"
	"sync"
	"time"
)

const (
	freshnessWindow = 5 * time.Minute
	maxSeenIDs      = 10000
	pruneCount      = 1000
)

// Policy filters inbound updates before they reach the dispatcher: an
// optional chat allowlist, a freshness window that drops the backlog left
// over from downtime, and update_id deduplication.
type Policy struct {
	mu        sync.Mutex
	allowed   map[int64]bool
	seen      map[int64]bool
	seenOrder []int64
	now       func() time.Time
}

// New creates a Policy. An empty chatIDs list allows every chat.
func New(chatIDs []int64) *Policy {
	var allowed map[int64]bool
	if len(chatIDs) > 0 {
		allowed = make(map[int64]bool, len(chatIDs))
		for _, id := range chatIDs {
			allowed[id] = true
		}
	}
	return &Policy{
		allowed: allowed,
		seen:    make(map[int64]bool),
		now:     time.Now,
	}
}

// WithClock replaces the clock used for the freshness check.
func (p *Policy) WithClock(now func() time.Time) *Policy {
	if now != nil {
		p.now = now
	}
	return p
}

// Authorize checks whether an update should be processed.
func (p *Policy) Authorize(chatID int64, updateID int64, timestamp time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.allowed != nil && !p.allowed[chatID] {
		return fmt.Errorf("unauthorized chat: %d", chatID)
	}

	if age := p.now().Sub(timestamp); age > freshnessWindow {
		return fmt.Errorf("stale message: %v old", age.Truncate(time.Second))
	}

	if p.seen[updateID] {
		return fmt.Errorf("duplicate update: %d", updateID)
	}

	// Prune oldest entries if at capacity.
	if len(p.seen) >= maxSeenIDs {
		n := min(pruneCount, len(p.seenOrder))
		for _, id := range p.seenOrder[:n] {
			delete(p.seen, id)
		}
		p.seenOrder = p.seenOrder[n:]
	}

	p.seen[updateID] = true
	p.seenOrder = append(p.seenOrder, updateID)

	return nil
}
