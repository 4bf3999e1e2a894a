package interaction

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slideforge/slideforge-backend/internal/stream"
)

type captureEvents struct {
	mu     sync.Mutex
	events []stream.Event
}

func (c *captureEvents) Publish(_ context.Context, _ string, ev stream.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func TestGate_ResponseBeforeDeadline(t *testing.T) {
	events := &captureEvents{}
	g := NewGate(events)

	done := make(chan string, 1)
	go func() {
		done <- g.WaitForResponse(context.Background(), "deck-1", KindTheme, "theme:deck-1",
			[]string{"minimal", "bold"}, "minimal", time.Second)
	}()

	// Let the waiter register before responding.
	require.Eventually(t, func() bool {
		return g.Respond("theme:deck-1", "bold")
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "bold", <-done)

	events.mu.Lock()
	defer events.mu.Unlock()
	require.Len(t, events.events, 1)
	assert.Equal(t, stream.EventAction, events.events[0].Type)
	assert.Equal(t, stream.StageInteraction, events.events[0].Stage)
	assert.Equal(t, "theme", events.events[0].Data["kind"])
}

func TestGate_TimeoutUsesDefault(t *testing.T) {
	g := NewGate(nil)

	got := g.WaitForResponse(context.Background(), "deck-1", KindLayout, "layout:deck-1:3",
		nil, "two-column", 30*time.Millisecond)

	assert.Equal(t, "two-column", got)
}

func TestGate_LateResponseDropped(t *testing.T) {
	g := NewGate(nil)

	got := g.WaitForResponse(context.Background(), "deck-1", KindTheme, "theme:deck-1",
		nil, "minimal", 20*time.Millisecond)
	assert.Equal(t, "minimal", got)

	// The wait already resolved with the default; nothing matches now.
	assert.False(t, g.Respond("theme:deck-1", "bold"))
}

func TestGate_ResolvedExactlyOnce(t *testing.T) {
	g := NewGate(nil)

	done := make(chan string, 1)
	go func() {
		done <- g.WaitForResponse(context.Background(), "deck-1", KindTheme, "ctx-1",
			nil, "d", time.Second)
	}()

	require.Eventually(t, func() bool { return g.Respond("ctx-1", "first") }, time.Second, 10*time.Millisecond)
	assert.False(t, g.Respond("ctx-1", "second"))
	assert.Equal(t, "first", <-done)
}

func TestGate_ContextCancelled(t *testing.T) {
	g := NewGate(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := g.WaitForResponse(ctx, "deck-1", KindTheme, "ctx-c", nil, "fallback", time.Second)
	assert.Equal(t, "fallback", got)
}
