package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slideforge/slideforge-backend/internal/credits"
	"github.com/slideforge/slideforge-backend/internal/decks"
	"github.com/slideforge/slideforge-backend/internal/export"
	"github.com/slideforge/slideforge-backend/internal/generation"
	"github.com/slideforge/slideforge-backend/internal/llm"
	"github.com/slideforge/slideforge-backend/internal/logging"
	"github.com/slideforge/slideforge-backend/internal/outline"
	"github.com/slideforge/slideforge-backend/internal/profiles"
	"github.com/slideforge/slideforge-backend/internal/stream"
	"github.com/slideforge/slideforge-backend/internal/themes"
)

// Store is the slice of the deck repository the chat layer writes through.
type Store interface {
	InsertMessage(ctx context.Context, deckID, role, content, kind string, payload any) (*decks.Message, error)
	CountUserMessages(ctx context.Context, deckID string) (int, error)
	ListMessages(ctx context.Context, deckID string, limit int) ([]decks.Message, error)
	ListSlides(ctx context.Context, deckID string) ([]decks.Slide, error)
	UpdateTheme(ctx context.Context, deckID, themeID string) error
	UpdateTitle(ctx context.Context, deckID, title string) error
	SetAutoApprove(ctx context.Context, deckID string, on bool) error
}

// OutlineService is the pending-outline lifecycle the dispatcher drives.
type OutlineService interface {
	Generate(ctx context.Context, deckID, userID, topic string, profile *profiles.Profile) (*outline.Outline, error)
	Execute(ctx context.Context, deckID string) (*outline.Outline, error)
	Pending(ctx context.Context, deckID string) (*outline.Outline, error)
	ClearPending(ctx context.Context, deckID string) error
}

// DeckGenerator runs a full generation pipeline for an approved outline.
type DeckGenerator interface {
	GenerateDeck(ctx context.Context, job generation.Job) error
}

// Exporter hands a finished deck to the render service.
type Exporter interface {
	Submit(ctx context.Context, req export.Request) (*export.JobStatus, error)
}

// Options wires the dispatcher's collaborators.
type Options struct {
	Store     Store
	Outlines  OutlineService
	Generator DeckGenerator
	Exporter  Exporter
	Client    llm.Client
	Model     string
	Ledger    credits.Ledger
	Themes    *themes.Catalog
	Events    stream.Publisher

	ChatMessageCost   int64
	FreeChatAllowance int
}

// Dispatcher turns deck chat messages into pipeline actions: outline
// commands, approval heuristics, exports, config changes, and plain
// conversation.
type Dispatcher struct {
	opt Options
}

func NewDispatcher(opt Options) *Dispatcher {
	if opt.Events == nil {
		opt.Events = stream.Nop{}
	}
	if opt.Themes == nil {
		opt.Themes = themes.NewCatalog()
	}
	return &Dispatcher{opt: opt}
}

// Handle processes one user chat message and returns the assistant reply.
// Both sides of the exchange are persisted as deck messages; pipeline
// progress goes out on the deck's event channel.
func (d *Dispatcher) Handle(ctx context.Context, deck *decks.Deck, profile *profiles.Profile, text string) (string, error) {
	if _, err := d.opt.Store.InsertMessage(ctx, deck.ID, "user", text, "", nil); err != nil {
		return "", fmt.Errorf("store user message: %w", err)
	}

	cmd, err := Parse(text)
	if err != nil {
		// Bad commands are conversation, not failures.
		return d.reply(ctx, deck.ID, err.Error())
	}

	switch cmd.Kind {
	case CmdOutline:
		return d.handleOutline(ctx, deck, profile, cmd.Args[0])
	case CmdExport:
		return d.handleExport(ctx, deck, cmd.Args[0])
	case CmdConfig:
		return d.handleConfig(ctx, deck, cmd.Args[0], cmd.Args[1])
	case CmdAutoApprove:
		return d.handleAutoApprove(ctx, deck, cmd.Args[0] == "on")
	default:
		return d.handleFreeText(ctx, deck, profile, cmd.Args[0])
	}
}

func (d *Dispatcher) handleOutline(ctx context.Context, deck *decks.Deck, profile *profiles.Profile, topic string) (string, error) {
	proposed, err := d.opt.Outlines.Generate(ctx, deck.ID, deck.UserID, topic, profile)
	if err != nil {
		if errors.Is(err, credits.ErrInsufficientCredit) {
			return d.reply(ctx, deck.ID, "Not enough credits to plan an outline.")
		}
		return "", fmt.Errorf("generate outline: %w", err)
	}

	d.notify(ctx, deck.ID, stream.NewEvent(stream.EventAction, stream.StageOutlineReady,
		"outline ready for review", map[string]any{"outline": proposed}))

	var b strings.Builder
	fmt.Fprintf(&b, "Here is a %d-slide outline for %q:\n", len(proposed.Slides), proposed.Title)
	for _, s := range proposed.Slides {
		fmt.Fprintf(&b, "%d. %s\n", s.Number, s.Title)
	}
	b.WriteString("Reply with an approval to generate the deck, or ask for another take.")
	return d.reply(ctx, deck.ID, b.String())
}

func (d *Dispatcher) handleExport(ctx context.Context, deck *decks.Deck, format string) (string, error) {
	if deck.Status != decks.StatusCompleted {
		return d.reply(ctx, deck.ID, "The deck is not finished yet; export once generation completes.")
	}
	if !export.SupportedFormats[format] {
		return d.reply(ctx, deck.ID, fmt.Sprintf("Unsupported format %q; use pptx, pdf, or html.", format))
	}
	if d.opt.Exporter == nil {
		return d.reply(ctx, deck.ID, "Export is not configured on this deployment.")
	}

	slides, err := d.opt.Store.ListSlides(ctx, deck.ID)
	if err != nil {
		return "", fmt.Errorf("list slides for export: %w", err)
	}
	theme, err := d.opt.Themes.Get(deck.ThemeID)
	if err != nil {
		theme, _ = d.opt.Themes.Get(themes.DefaultID)
	}
	job, err := d.opt.Exporter.Submit(ctx, export.Request{
		DeckID: deck.ID,
		Title:  deck.Title,
		Format: format,
		Theme:  theme,
		Slides: slides,
	})
	if err != nil {
		return "", fmt.Errorf("submit export: %w", err)
	}

	d.notify(ctx, deck.ID, stream.NewEvent(stream.EventProgress, stream.StageExportReady,
		"export submitted", map[string]any{"export_id": job.ID, "format": format}))
	return d.reply(ctx, deck.ID, fmt.Sprintf("Export started (%s); job %s.", format, job.ID))
}

func (d *Dispatcher) handleConfig(ctx context.Context, deck *decks.Deck, key, value string) (string, error) {
	switch key {
	case "theme":
		if _, err := d.opt.Themes.Get(value); err != nil {
			return d.reply(ctx, deck.ID, fmt.Sprintf("Unknown theme %q; available: %s.",
				value, strings.Join(d.opt.Themes.IDs(), ", ")))
		}
		if err := d.opt.Store.UpdateTheme(ctx, deck.ID, value); err != nil {
			return "", fmt.Errorf("update theme: %w", err)
		}
		deck.ThemeID = value
		return d.reply(ctx, deck.ID, fmt.Sprintf("Theme set to %s.", value))
	case "title":
		if err := d.opt.Store.UpdateTitle(ctx, deck.ID, value); err != nil {
			return "", fmt.Errorf("update title: %w", err)
		}
		deck.Title = value
		return d.reply(ctx, deck.ID, fmt.Sprintf("Title set to %q.", value))
	default:
		return d.reply(ctx, deck.ID, fmt.Sprintf("Unknown setting %q; supported: theme, title.", key))
	}
}

func (d *Dispatcher) handleAutoApprove(ctx context.Context, deck *decks.Deck, on bool) (string, error) {
	if err := d.opt.Store.SetAutoApprove(ctx, deck.ID, on); err != nil {
		return "", fmt.Errorf("set auto-approve: %w", err)
	}
	deck.AutoApprove = on
	if on {
		return d.reply(ctx, deck.ID, "Auto-approve is on; clean slides skip confirmation.")
	}
	return d.reply(ctx, deck.ID, "Auto-approve is off; every content slide waits for you.")
}

func (d *Dispatcher) handleFreeText(ctx context.Context, deck *decks.Deck, profile *profiles.Profile, text string) (string, error) {
	if pending, err := d.opt.Outlines.Pending(ctx, deck.ID); err == nil {
		switch {
		case outline.IsApproval(text):
			return d.executeOutline(ctx, deck, profile)
		case outline.IsRetryRequest(text):
			if err := d.opt.Outlines.ClearPending(ctx, deck.ID); err != nil {
				return "", fmt.Errorf("discard outline: %w", err)
			}
			topic := deck.Topic
			if topic == "" {
				topic = pending.Title
			}
			return d.handleOutline(ctx, deck, profile, topic)
		}
	}
	return d.converse(ctx, deck, text)
}

func (d *Dispatcher) executeOutline(ctx context.Context, deck *decks.Deck, profile *profiles.Profile) (string, error) {
	approved, err := d.opt.Outlines.Execute(ctx, deck.ID)
	if err != nil {
		if errors.Is(err, outline.ErrNoPending) {
			return d.reply(ctx, deck.ID, "There is no outline waiting for approval.")
		}
		return "", fmt.Errorf("execute outline: %w", err)
	}
	if err := d.opt.Generator.GenerateDeck(ctx, generation.Job{Deck: deck, Outline: approved, Profile: profile}); err != nil {
		return "", fmt.Errorf("generate deck: %w", err)
	}
	return d.reply(ctx, deck.ID, fmt.Sprintf("Deck generated from the approved outline (%d slides planned).", len(approved.Slides)))
}

const assistantPrompt = `You are a presentation assistant for a slide deck
tool. Answer briefly and practically. You can plan outlines (/outline),
export decks (/export), and tweak settings (/config); suggest these when
they fit the question.`

// converse is the plain-chat path: bill past the free allowance, then answer
// with recent deck history as context.
func (d *Dispatcher) converse(ctx context.Context, deck *decks.Deck, text string) (reply string, err error) {
	logger := logging.NewLogger(ctx)

	used, err := d.opt.Store.CountUserMessages(ctx, deck.ID)
	if err != nil {
		return "", fmt.Errorf("count chat messages: %w", err)
	}
	if used > d.opt.FreeChatAllowance {
		resID, rerr := d.opt.Ledger.Reserve(ctx, deck.UserID, d.opt.ChatMessageCost, credits.ReasonChatMessage, deck.ID)
		if rerr != nil {
			if errors.Is(rerr, credits.ErrInsufficientCredit) {
				return d.reply(ctx, deck.ID, "You are out of credits for chat messages.")
			}
			return "", fmt.Errorf("reserve chat credits: %w", rerr)
		}
		// Charge only for completions that actually reach the user.
		defer func() {
			if err != nil {
				if lerr := d.opt.Ledger.Release(ctx, resID); lerr != nil {
					logger.LogErrorf("chat", "release chat reservation %s: %v", resID, lerr)
				}
				return
			}
			if cerr := d.opt.Ledger.Commit(ctx, resID); cerr != nil {
				logger.LogErrorf("chat", "commit chat reservation %s: %v", resID, cerr)
			}
		}()
	}

	history, err := d.opt.Store.ListMessages(ctx, deck.ID, 10)
	if err != nil {
		return "", fmt.Errorf("load chat history: %w", err)
	}
	msgs := []llm.Message{llm.SystemMessage(assistantPrompt)}
	for _, m := range history {
		switch m.Role {
		case "user":
			msgs = append(msgs, llm.UserMessage(m.Content))
		case "assistant":
			msgs = append(msgs, llm.AssistantMessage(m.Content))
		}
	}

	answer, err := d.opt.Client.Complete(ctx, llm.Request{Model: d.opt.Model, Messages: msgs, CacheHint: "deck-chat:" + deck.ID})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	d.notify(ctx, deck.ID, stream.NewEvent(stream.EventToken, "", answer, nil))
	return d.reply(ctx, deck.ID, answer)
}

// reply persists the assistant message and closes the exchange with a done
// event.
func (d *Dispatcher) reply(ctx context.Context, deckID, text string) (string, error) {
	if _, err := d.opt.Store.InsertMessage(ctx, deckID, "assistant", text, "", nil); err != nil {
		return "", fmt.Errorf("store assistant message: %w", err)
	}
	d.notify(ctx, deckID, stream.NewEvent(stream.EventDone, "", text, nil))
	return text, nil
}

func (d *Dispatcher) notify(ctx context.Context, deckID string, ev stream.Event) {
	if err := d.opt.Events.Publish(ctx, deckID, ev); err != nil {
		logging.NewLogger(ctx).LogErrorf("chat", "publish %s event: %v", ev.Type, err)
	}
}
