package interaction

import (
	"context"
	"sync"
	"time"

	"github.com/slideforge/slideforge-backend/internal/logging"
	"github.com/slideforge/slideforge-backend/internal/stream"
)

// Kind classifies what the pipeline is asking the user to pick.
type Kind string

const (
	KindTheme  Kind = "theme"
	KindLayout Kind = "layout"
)

// Gate suspends a generating task on an optional, time-boxed human choice.
// Every wait resolves exactly once: first matching response wins, the
// deadline substitutes the default. A deck can always finish unanswered.
type Gate struct {
	mu      sync.Mutex
	waiters map[string]chan string
	events  stream.Publisher
}

func NewGate(events stream.Publisher) *Gate {
	if events == nil {
		events = stream.Nop{}
	}
	return &Gate{waiters: make(map[string]chan string), events: events}
}

// WaitForResponse publishes an action event for the deck and blocks until a
// matching Respond arrives or the timeout elapses.
func (g *Gate) WaitForResponse(ctx context.Context, deckID string, kind Kind, contextID string, options []string, defaultValue string, timeout time.Duration) string {
	ch := make(chan string, 1)

	g.mu.Lock()
	g.waiters[contextID] = ch
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		if g.waiters[contextID] == ch {
			delete(g.waiters, contextID)
		}
		g.mu.Unlock()
	}()

	ev := stream.NewEvent(stream.EventAction, stream.StageInteraction, "", map[string]any{
		"kind":       string(kind),
		"context_id": contextID,
		"options":    options,
		"default":    defaultValue,
		"timeout_ms": timeout.Milliseconds(),
	})
	if err := g.events.Publish(ctx, deckID, ev); err != nil {
		logging.NewLogger(ctx).LogWarnf("interaction_wait", "publish failed deck_id=%s error=%v", deckID, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-ch:
		return v
	case <-timer.C:
		return defaultValue
	case <-ctx.Done():
		return defaultValue
	}
}

// Respond resolves a pending wait. Returns false when no wait matches the
// context id, including responses that arrive after the deadline.
func (g *Gate) Respond(contextID, value string) bool {
	g.mu.Lock()
	ch, ok := g.waiters[contextID]
	if ok {
		delete(g.waiters, contextID)
	}
	g.mu.Unlock()

	if !ok {
		return false
	}
	ch <- value
	return true
}
