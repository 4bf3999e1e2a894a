package outline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/slideforge/slideforge-backend/internal/decks"
)

// Message kinds used for the durable recovery artifact.
const (
	kindProposal = "outline_proposal"
	kindConsumed = "outline_consumed"
)

// DurableStore is the recovery copy of the pending outline, surviving cache
// eviction and process restarts.
type DurableStore interface {
	SaveProposal(ctx context.Context, deckID string, o *Outline) error
	LoadProposal(ctx context.Context, deckID string) (*Outline, error)
	MarkConsumed(ctx context.Context, deckID, outcome string) error
}

// MessageStore persists outlines as structured deck messages, so the chat
// history doubles as the recovery artifact.
type MessageStore struct {
	repo *decks.Repo
}

func NewMessageStore(repo *decks.Repo) *MessageStore {
	return &MessageStore{repo: repo}
}

func (s *MessageStore) SaveProposal(ctx context.Context, deckID string, o *Outline) error {
	content := fmt.Sprintf("Proposed outline: %s (%d slides)", o.Title, len(o.Slides))
	_, err := s.repo.InsertMessage(ctx, deckID, "assistant", content, kindProposal, o)
	return err
}

func (s *MessageStore) LoadProposal(ctx context.Context, deckID string) (*Outline, error) {
	payload, proposedAt, err := s.repo.LatestPayload(ctx, deckID, kindProposal)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoPending
	}
	if err != nil {
		return nil, err
	}

	// A newer consumed marker means the proposal was already executed or
	// discarded.
	if _, consumedAt, err := s.repo.LatestPayload(ctx, deckID, kindConsumed); err == nil {
		if consumedAt.After(proposedAt) {
			return nil, ErrNoPending
		}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var o Outline
	if err := json.Unmarshal(payload, &o); err != nil {
		return nil, fmt.Errorf("unmarshal durable outline: %w", err)
	}
	return &o, nil
}

func (s *MessageStore) MarkConsumed(ctx context.Context, deckID, outcome string) error {
	_, err := s.repo.InsertMessage(ctx, deckID, "system", "outline "+outcome, kindConsumed,
		map[string]string{"outcome": outcome})
	return err
}
