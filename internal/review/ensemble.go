package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/slideforge/slideforge-backend/internal/decks"
	"github.com/slideforge/slideforge-backend/internal/llm"
)

// Fix kinds produced by the whole-deck pass.
const (
	FixStyle     = "style"
	FixNarrative = "narrative"
	FixFact      = "fact"
)

// Fix is one in-place correction from the whole-deck review.
type Fix struct {
	Number       int    `json:"number"`
	Kind         string `json:"kind"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	SpeakerNotes string `json:"speaker_notes"`
	Reason       string `json:"reason"`
}

type deckReview struct {
	Fixes []Fix `json:"fixes"`
}

// DeckReviewer is the whole-deck style/narrative/fact pass.
type DeckReviewer interface {
	ReviewDeck(ctx context.Context, title string, slides []decks.Slide) ([]Fix, error)
}

const ensembleSystemPrompt = `You are a deck quality reviewer running three
passes over a finished deck: style consistency, narrative flow, and factual
soundness. Only report slides that need changing. Reply as JSON:
{"fixes": [{"number": int, "kind": "style"|"narrative"|"fact",
 "title": string, "body": string, "speaker_notes": string, "reason": string}]}
Each fix carries the full replacement title and body for that slide.`

// Ensemble runs the whole-deck quality pass through the model.
type Ensemble struct {
	client     llm.Client
	model      string
	maxRetries int
}

func NewEnsemble(client llm.Client, model string, maxRetries int) *Ensemble {
	return &Ensemble{client: client, model: model, maxRetries: maxRetries}
}

func (e *Ensemble) ReviewDeck(ctx context.Context, title string, slides []decks.Slide) ([]Fix, error) {
	var user strings.Builder
	fmt.Fprintf(&user, "Deck: %s\n\n", title)
	for _, s := range slides {
		fmt.Fprintf(&user, "--- Slide %d: %s\n%s\n\n", s.Number, s.Title, s.Body)
	}

	maxNumber := 0
	if len(slides) > 0 {
		maxNumber = slides[len(slides)-1].Number
	}

	res, err := llm.CompleteStructured(ctx, e.client, llm.Params[deckReview]{
		Model: e.model,
		Messages: []llm.Message{
			llm.SystemMessage(ensembleSystemPrompt),
			llm.UserMessage(user.String()),
		},
		Validate: func(r deckReview) error {
			for _, f := range r.Fixes {
				if f.Number < 1 || f.Number > maxNumber {
					return fmt.Errorf("fix targets slide %d, deck has %d", f.Number, maxNumber)
				}
				switch f.Kind {
				case FixStyle, FixNarrative, FixFact:
				default:
					return fmt.Errorf("unknown fix kind %q", f.Kind)
				}
			}
			return nil
		},
		MaxRetries: e.maxRetries,
		CacheHint:  "deck-quality",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReviewerFailure, err)
	}
	return res.Fixes, nil
}
