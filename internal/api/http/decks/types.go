package decks

import (
	"context"

	"github.com/slideforge/slideforge-backend/internal/chat"
	"github.com/slideforge/slideforge-backend/internal/decks"
	"github.com/slideforge/slideforge-backend/internal/outline"
	"github.com/slideforge/slideforge-backend/internal/profiles"
)

// Repo is the deck storage surface the handlers read and write.
type Repo interface {
	Create(ctx context.Context, d *decks.Deck) error
	Get(ctx context.Context, userID, deckID string) (*decks.Deck, error)
	List(ctx context.Context, userID string) ([]decks.Deck, error)
	ListSlides(ctx context.Context, deckID string) ([]decks.Slide, error)
	ListMessages(ctx context.Context, deckID string, limit int) ([]decks.Message, error)
	UpdateSlideContent(ctx context.Context, slideID, title, body, notes, hash string) error
}

// ProfileRepo resolves the strategy profile attached to a deck.
type ProfileRepo interface {
	Get(ctx context.Context, userID, profileID string) (*profiles.Profile, error)
}

// Chat handles one inbound message end to end.
type Chat interface {
	Handle(ctx context.Context, deck *decks.Deck, profile *profiles.Profile, text string) (string, error)
}

// Outlines and Generator mirror the chat layer's collaborator contracts.
type Outlines = chat.OutlineService

// OutlineEditor edits single slides of the pending outline.
type OutlineEditor interface {
	EditSlide(ctx context.Context, deckID, userID string, number int, title string, bullets []string) (*outline.Outline, error)
}

type Generator = chat.DeckGenerator

type createDeckReq struct {
	Topic     string `json:"topic"`
	Title     string `json:"title"`
	ProfileID string `json:"profile_id"`
	ThemeID   string `json:"theme_id"`
	Tier      int    `json:"tier"`
}

type postMessageReq struct {
	Content string `json:"content"`
}

type validationReq struct {
	SlideID  string `json:"slide_id"`
	Decision string `json:"decision"`
	Content  string `json:"content"`
}

type editOutlineSlideReq struct {
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
}

type interactionReq struct {
	ContextID string `json:"context_id"`
	Value     string `json:"value"`
}
