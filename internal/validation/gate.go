package validation

import (
	"errors"
	"sync"
	"time"
)

// Item states.
type State string

const (
	StatePending  State = "PENDING"
	StateAccepted State = "ACCEPTED"
	StateEdited   State = "EDITED"
	StateRejected State = "REJECTED"
)

// Decision is a user verdict on a pending item.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionEdit   Decision = "edit"
	DecisionReject Decision = "reject"
)

var (
	ErrNoPendingItem = errors.New("no pending validation item")
	ErrItemNotFound  = errors.New("validation item not found")
)

// exemptTypes never require human confirmation. Matches the decorative
// slide types the generation reviewer skips.
var exemptTypes = map[string]bool{
	"title":    true,
	"section":  true,
	"quote":    true,
	"thankyou": true,
}

// Exempt reports whether a slide type skips validation entirely.
func Exempt(slideType string) bool { return exemptTypes[slideType] }

// Item is one slide awaiting accept/edit/reject.
type Item struct {
	SlideID      string    `json:"slide_id"`
	Number       int       `json:"number"`
	Content      string    `json:"content"`
	SlideType    string    `json:"slide_type"`
	ReviewPassed bool      `json:"review_passed"`
	State        State     `json:"state"`
	QueuedAt     time.Time `json:"queued_at"`
}

// Gate keeps a FIFO validation queue per deck. Exactly one PENDING item is
// "next" at any time.
type Gate struct {
	mu     sync.Mutex
	queues map[string][]*Item
}

func NewGate() *Gate {
	return &Gate{queues: make(map[string][]*Item)}
}

// Queue enqueues a produced slide and reports whether human confirmation is
// required: false when auto-approve is on and review passed, or the slide
// type is exempt.
func (g *Gate) Queue(deckID string, item Item, autoApprove bool) bool {
	item.QueuedAt = time.Now()

	if Exempt(item.SlideType) || (autoApprove && item.ReviewPassed) {
		item.State = StateAccepted
		g.append(deckID, &item)
		return false
	}

	item.State = StatePending
	g.append(deckID, &item)
	return true
}

func (g *Gate) append(deckID string, item *Item) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queues[deckID] = append(g.queues[deckID], item)
}

// Next returns the oldest PENDING item for the deck, or ErrNoPendingItem.
func (g *Gate) Next(deckID string) (*Item, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, it := range g.queues[deckID] {
		if it.State == StatePending {
			cp := *it
			return &cp, nil
		}
	}
	return nil, ErrNoPendingItem
}

// Process applies a decision to a pending item and returns its final state.
// For edits the replacement content is recorded on the item; persisting it to
// the slide row is the caller's job.
func (g *Gate) Process(deckID, slideID string, decision Decision, editedContent string) (*Item, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, it := range g.queues[deckID] {
		if it.SlideID != slideID {
			continue
		}
		if it.State != StatePending {
			return nil, ErrNoPendingItem
		}
		switch decision {
		case DecisionAccept:
			it.State = StateAccepted
		case DecisionEdit:
			it.State = StateEdited
			it.Content = editedContent
		case DecisionReject:
			it.State = StateRejected
		default:
			return nil, errors.New("unknown decision: " + string(decision))
		}
		cp := *it
		return &cp, nil
	}
	return nil, ErrItemNotFound
}

// PendingCount reports how many items still await a decision.
func (g *Gate) PendingCount(deckID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, it := range g.queues[deckID] {
		if it.State == StatePending {
			n++
		}
	}
	return n
}

// Clear drops the deck's queue, used when slides are regenerated wholesale.
func (g *Gate) Clear(deckID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.queues, deckID)
}
