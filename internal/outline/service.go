package outline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slideforge/slideforge-backend/internal/credits"
	"github.com/slideforge/slideforge-backend/internal/knowledge"
	"github.com/slideforge/slideforge-backend/internal/llm"
	"github.com/slideforge/slideforge-backend/internal/logging"
	"github.com/slideforge/slideforge-backend/internal/profiles"
)

const plannerSystemPrompt = `You are a presentation planner. Given a topic and
strategy context, plan a slide deck outline. Each slide gets a number, title,
3-5 bullet points, a type tag (title, content, section, quote, chart, table,
thankyou), and optionally a section label. Reply as JSON:
{"title": string, "slides": [{"number": int, "title": string, "bullets": [string], "type": string, "section": string}]}`

// Options wires the outline service.
type Options struct {
	Client      llm.Client
	Model       string
	MaxRetries  int
	Retriever   knowledge.Retriever
	Ledger      credits.Ledger
	Cache       *Cache
	Durable     DurableStore
	Cost        int64
	EditCost    int64
	MinSlides   int
	MaxSlides   int
}

// Service owns the NONE → PENDING → {EXECUTED, DISCARDED} outline lifecycle
// for each deck.
type Service struct {
	opt Options
}

func NewService(opt Options) *Service {
	if opt.MinSlides <= 0 {
		opt.MinSlides = 8
	}
	if opt.MaxSlides <= 0 {
		opt.MaxSlides = 12
	}
	return &Service{opt: opt}
}

// Generate plans an outline for the topic, bills it, and stores it as the
// deck's pending proposal (cache plus durable recovery copy).
func (s *Service) Generate(ctx context.Context, deckID, userID, topic string, profile *profiles.Profile) (*Outline, error) {
	logger := logging.NewLogger(ctx)

	resID, err := s.opt.Ledger.Reserve(ctx, userID, s.opt.Cost, credits.ReasonOutline, deckID)
	if err != nil {
		return nil, err
	}

	o, err := s.plan(ctx, topic, profile)
	if err == nil {
		if cerr := s.opt.Cache.Put(ctx, deckID, o); cerr != nil {
			err = cerr
		} else if derr := s.opt.Durable.SaveProposal(ctx, deckID, o); derr != nil {
			err = derr
		}
	}
	if err != nil {
		if rerr := s.opt.Ledger.Release(ctx, resID); rerr != nil {
			logger.LogErrorf("outline_generate", "release failed reservation=%s error=%v", resID, rerr)
		}
		return nil, err
	}

	if err := s.opt.Ledger.Commit(ctx, resID); err != nil {
		logger.LogErrorf("outline_generate", "commit failed reservation=%s error=%v", resID, err)
	}

	logger.LogInfof("outline_generate", "deck_id=%s slides=%d", deckID, len(o.Slides))
	return o, nil
}

func (s *Service) plan(ctx context.Context, topic string, profile *profiles.Profile) (*Outline, error) {
	var contextBlock strings.Builder
	if s.opt.Retriever != nil {
		snippets, err := s.opt.Retriever.Retrieve(ctx, topic, 3)
		if err != nil {
			// Retrieval is best-effort context, not a hard dependency.
			logging.NewLogger(ctx).LogWarnf("outline_plan", "retrieval failed: %v", err)
		}
		for _, sn := range snippets {
			fmt.Fprintf(&contextBlock, "- [%s] %s\n", sn.Title, sn.Text)
		}
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Topic: %s\n", topic)
	fmt.Fprintf(&user, "Plan between %d and %d slides.\n", s.opt.MinSlides, s.opt.MaxSlides)
	if inj := profile.PromptInjection(); inj != "" {
		fmt.Fprintf(&user, "%s\n", inj)
	}
	if contextBlock.Len() > 0 {
		fmt.Fprintf(&user, "Relevant context:\n%s", contextBlock.String())
	}

	o, err := llm.CompleteStructured(ctx, s.opt.Client, llm.Params[Outline]{
		Model: s.opt.Model,
		Messages: []llm.Message{
			llm.SystemMessage(plannerSystemPrompt),
			llm.UserMessage(user.String()),
		},
		Validate: func(o Outline) error {
			return o.Validate(s.opt.MinSlides, s.opt.MaxSlides)
		},
		MaxRetries: s.opt.MaxRetries,
		CacheHint:  "outline-planner",
	})
	if err != nil {
		return nil, err
	}

	for i := range o.Slides {
		if o.Slides[i].Type == "" {
			o.Slides[i].Type = "content"
		}
	}
	return &o, nil
}

// EditSlide replaces one slide of the pending outline and re-stores the
// proposal. Billed per edited slide.
func (s *Service) EditSlide(ctx context.Context, deckID, userID string, number int, title string, bullets []string) (*Outline, error) {
	logger := logging.NewLogger(ctx)

	o, err := s.Pending(ctx, deckID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range o.Slides {
		if o.Slides[i].Number == number {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("outline has no slide %d", number)
	}

	resID, err := s.opt.Ledger.Reserve(ctx, userID, s.opt.EditCost, credits.ReasonSlideEdit, deckID)
	if err != nil {
		return nil, err
	}

	if title != "" {
		o.Slides[idx].Title = title
	}
	if len(bullets) > 0 {
		o.Slides[idx].Bullets = bullets
	}

	err = s.opt.Cache.Put(ctx, deckID, o)
	if err == nil {
		err = s.opt.Durable.SaveProposal(ctx, deckID, o)
	}
	if err != nil {
		if rerr := s.opt.Ledger.Release(ctx, resID); rerr != nil {
			logger.LogErrorf("outline_edit", "release failed reservation=%s error=%v", resID, rerr)
		}
		return nil, err
	}

	if err := s.opt.Ledger.Commit(ctx, resID); err != nil {
		logger.LogErrorf("outline_edit", "commit failed reservation=%s error=%v", resID, err)
	}
	logger.LogInfof("outline_edit", "deck_id=%s slide=%d", deckID, number)
	return o, nil
}

// Execute consumes the pending outline. The cache entry is deleted before the
// EXECUTED transition; under concurrent approvals exactly one caller gets the
// outline, the rest see ErrNoPending.
func (s *Service) Execute(ctx context.Context, deckID string) (*Outline, error) {
	o, err := s.Pending(ctx, deckID)
	if err != nil {
		return nil, err
	}

	deleted, err := s.opt.Cache.Delete(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, ErrNoPending
	}

	if err := s.opt.Durable.MarkConsumed(ctx, deckID, OutcomeExecuted); err != nil {
		logging.NewLogger(ctx).LogErrorf("outline_execute", "mark consumed deck_id=%s error=%v", deckID, err)
	}
	return o, nil
}

// Pending loads the deck's pending outline, recovering the cache entry from
// the durable copy when it expired.
func (s *Service) Pending(ctx context.Context, deckID string) (*Outline, error) {
	o, err := s.opt.Cache.Get(ctx, deckID)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, ErrNoPending) {
		return nil, err
	}

	o, err = s.opt.Durable.LoadProposal(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if err := s.opt.Cache.Put(ctx, deckID, o); err != nil {
		return nil, err
	}
	return o, nil
}

// HasPending reports whether the deck has an unexecuted outline.
func (s *Service) HasPending(ctx context.Context, deckID string) bool {
	_, err := s.Pending(ctx, deckID)
	return err == nil
}

// ClearPending discards the pending outline without executing it.
func (s *Service) ClearPending(ctx context.Context, deckID string) error {
	if _, err := s.opt.Cache.Delete(ctx, deckID); err != nil {
		return err
	}
	return s.opt.Durable.MarkConsumed(ctx, deckID, OutcomeDiscarded)
}
