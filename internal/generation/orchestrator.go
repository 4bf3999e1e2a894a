package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slideforge/slideforge-backend/config"
	"github.com/slideforge/slideforge-backend/internal/credits"
	"github.com/slideforge/slideforge-backend/internal/decks"
	"github.com/slideforge/slideforge-backend/internal/images"
	"github.com/slideforge/slideforge-backend/internal/interaction"
	"github.com/slideforge/slideforge-backend/internal/llm"
	"github.com/slideforge/slideforge-backend/internal/logging"
	"github.com/slideforge/slideforge-backend/internal/metrics"
	"github.com/slideforge/slideforge-backend/internal/outline"
	"github.com/slideforge/slideforge-backend/internal/profiles"
	"github.com/slideforge/slideforge-backend/internal/review"
	"github.com/slideforge/slideforge-backend/internal/stream"
	"github.com/slideforge/slideforge-backend/internal/themes"
	"github.com/slideforge/slideforge-backend/internal/validation"
)

// DeckStore is the slice of the deck repository the pipeline writes through.
type DeckStore interface {
	UpdateStatus(ctx context.Context, deckID string, status decks.Status) error
	UpdateTitle(ctx context.Context, deckID, title string) error
	UpdateTheme(ctx context.Context, deckID, themeID string) error
	DeleteSlides(ctx context.Context, deckID string) error
	InsertSlide(ctx context.Context, s *decks.Slide) error
	InsertSlideAt(ctx context.Context, s *decks.Slide, position int) error
	UpdateSlideContent(ctx context.Context, slideID, title, body, notes, hash string) error
	ListSlides(ctx context.Context, deckID string) ([]decks.Slide, error)
}

// Job is one deck-generation run over an approved outline.
type Job struct {
	Deck    *decks.Deck
	Outline *outline.Outline
	Profile *profiles.Profile
}

// Options wires the pipeline's collaborators.
type Options struct {
	Store        DeckStore
	Client       llm.Client
	Model        string
	MaxRetries   int
	Ledger       credits.Ledger
	Interactions *interaction.Gate
	Validations  *validation.Gate
	Reviewer     review.SlideReviewer
	Ensemble     review.DeckReviewer
	Themes       *themes.Catalog
	Images       images.Enqueuer
	Events       stream.Publisher
	Generation   config.GenerationConfig
	DeckCost     int64
}

// Orchestrator drives deck generation: theme resolution, wave-parallel slide
// completion, per-slide review and splitting, validation queueing, the
// whole-deck quality pass, and credit settlement.
type Orchestrator struct {
	store        DeckStore
	client       llm.Client
	model        string
	maxRetries   int
	ledger       credits.Ledger
	interactions *interaction.Gate
	validations  *validation.Gate
	reviewer     review.SlideReviewer
	ensemble     review.DeckReviewer
	themes       *themes.Catalog
	images       images.Enqueuer
	events       stream.Publisher
	cfg          config.GenerationConfig
	deckCost     int64
}

func NewOrchestrator(opts Options) *Orchestrator {
	events := opts.Events
	if events == nil {
		events = stream.Nop{}
	}
	catalog := opts.Themes
	if catalog == nil {
		catalog = themes.NewCatalog()
	}
	if opts.Generation.WaveSize < 1 {
		opts.Generation.WaveSize = 4
	}
	return &Orchestrator{
		store:        opts.Store,
		client:       opts.Client,
		model:        opts.Model,
		maxRetries:   opts.MaxRetries,
		ledger:       opts.Ledger,
		interactions: opts.Interactions,
		validations:  opts.Validations,
		reviewer:     opts.Reviewer,
		ensemble:     opts.Ensemble,
		themes:       catalog,
		images:       opts.Images,
		events:       events,
		cfg:          opts.Generation,
		deckCost:     opts.DeckCost,
	}
}

// slideContent is the model's reply shape for one slide.
type slideContent struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	SpeakerNotes string `json:"speaker_notes"`
	ImagePrompt  string `json:"image_prompt,omitempty"`
}

// priorSlide is the immutable cross-wave context: slides finished in earlier
// waves, visible to every completion in the current wave.
type priorSlide struct {
	Number int
	Title  string
	Body   string
}

type waveResult struct {
	content slideContent
	err     error
}

// GenerateDeck runs the full pipeline for one approved outline. Slides are
// replaced wholesale; on failure the reservation is released and the deck is
// marked FAILED with whatever slides were persisted left in place.
func (o *Orchestrator) GenerateDeck(ctx context.Context, job Job) (err error) {
	logger := logging.NewLogger(ctx)
	deck := job.Deck

	if job.Outline == nil || len(job.Outline.Slides) == 0 {
		o.notify(ctx, deck.ID, stream.NewEvent(stream.EventError, "", "no outline to execute", nil))
		return errors.New("no outline to execute")
	}

	if _, err = o.resolveTheme(ctx, deck); err != nil {
		return err
	}

	reservationID, err := o.ledger.Reserve(ctx, deck.UserID, o.deckCost, credits.ReasonDeck, deck.ID)
	if err != nil {
		if errors.Is(err, credits.ErrInsufficientCredit) {
			o.notify(ctx, deck.ID, stream.NewEvent(stream.EventError, "", "not enough credits for deck generation", nil))
		}
		return fmt.Errorf("reserve deck credits: %w", err)
	}

	defer func() {
		if err == nil {
			return
		}
		if rerr := o.ledger.Release(ctx, reservationID); rerr != nil {
			logger.LogErrorf("generate_deck", "release reservation %s: %v", reservationID, rerr)
		}
		if serr := o.store.UpdateStatus(ctx, deck.ID, decks.StatusFailed); serr != nil {
			logger.LogErrorf("generate_deck", "mark deck failed: %v", serr)
		}
		o.notify(ctx, deck.ID, stream.NewEvent(stream.EventError, "", err.Error(), nil))
	}()

	if err = o.store.UpdateStatus(ctx, deck.ID, decks.StatusProcessing); err != nil {
		return fmt.Errorf("mark deck processing: %w", err)
	}
	if err = o.store.DeleteSlides(ctx, deck.ID); err != nil {
		return fmt.Errorf("clear old slides: %w", err)
	}
	o.validations.Clear(deck.ID)
	if job.Outline.Title != "" {
		if uerr := o.store.UpdateTitle(ctx, deck.ID, job.Outline.Title); uerr != nil {
			logger.LogErrorf("generate_deck", "update deck title: %v", uerr)
		}
	}

	planned := len(job.Outline.Slides)
	ceiling := slideCeiling(planned, o.cfg.CeilingFactor, o.cfg.MaxSlides(deck.Tier))
	limits := job.Profile.Limits()

	o.notify(ctx, deck.ID, stream.NewEvent(stream.EventThinking, "",
		fmt.Sprintf("writing %d slides in waves of %d", planned, o.cfg.WaveSize), nil))

	total := 0  // slides persisted so far, splits included
	offset := 0 // running shift from accepted splits
	var prior []priorSlide

	for start := 0; start < planned; start += o.cfg.WaveSize {
		end := start + o.cfg.WaveSize
		if end > planned {
			end = planned
		}
		wave := job.Outline.Slides[start:end]

		layouts := o.resolveLayouts(ctx, deck.ID, wave)

		// Completions within a wave run concurrently over the same
		// snapshot of earlier waves; wave i+1 only starts once every
		// result of wave i is post-processed.
		snapshot := append([]priorSlide(nil), prior...)
		results := make([]waveResult, len(wave))
		var wg sync.WaitGroup
		for i := range wave {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				content, gerr := o.generateSlide(ctx, job, wave[i], layouts[i], snapshot, limits)
				results[i] = waveResult{content: content, err: gerr}
			}(i)
		}
		wg.Wait()

		for i, item := range wave {
			if results[i].err != nil {
				err = fmt.Errorf("slide %d: %w", item.Number, results[i].err)
				return err
			}
			// Deck size if every remaining planned slide lands without
			// further splits; splits must fit under the ceiling on top
			// of this.
			projected := total + 1 + (planned - item.Number)
			added, inserted, perr := o.postProcess(ctx, job, item, results[i].content, offset, projected, ceiling, limits)
			if perr != nil {
				err = perr
				return err
			}
			prior = append(prior, added...)
			total += len(added)
			if inserted {
				offset++
			}
		}
		metrics.RecordWaveCompleted()
		o.notify(ctx, deck.ID, stream.NewEvent(stream.EventProgress, "",
			fmt.Sprintf("%d of %d slides ready", total, planned+offset), map[string]any{"completed": total}))
	}

	o.qualityPass(ctx, job)

	if err = o.store.UpdateStatus(ctx, deck.ID, decks.StatusCompleted); err != nil {
		return fmt.Errorf("mark deck completed: %w", err)
	}
	if cerr := o.ledger.Commit(ctx, reservationID); cerr != nil {
		logger.LogErrorf("generate_deck", "commit reservation %s: %v", reservationID, cerr)
	}
	o.enqueueImages(ctx, deck)

	o.notify(ctx, deck.ID, stream.NewEvent(stream.EventDone, "",
		fmt.Sprintf("deck ready with %d slides", total), map[string]any{"slides": total}))
	return nil
}

// resolveTheme asks the user when the deck has no theme yet; silence falls
// back to the default theme.
func (o *Orchestrator) resolveTheme(ctx context.Context, deck *decks.Deck) (string, error) {
	if deck.ThemeID != "" {
		return deck.ThemeID, nil
	}
	themeID := themes.DefaultID
	if o.interactions != nil {
		themeID = o.interactions.WaitForResponse(ctx, deck.ID, interaction.KindTheme,
			"theme:"+deck.ID, o.themes.IDs(), themes.DefaultID, o.cfg.ThemeTimeout)
	}
	if _, err := o.themes.Get(themeID); err != nil {
		themeID = themes.DefaultID
	}
	if err := o.store.UpdateTheme(ctx, deck.ID, themeID); err != nil {
		return "", fmt.Errorf("store theme choice: %w", err)
	}
	deck.ThemeID = themeID
	return themeID, nil
}

// resolveLayouts collects layout choices for the wave sequentially, before
// any completion starts. Most slide types are exempt and resolve to "".
func (o *Orchestrator) resolveLayouts(ctx context.Context, deckID string, wave []outline.Slide) []string {
	layouts := make([]string, len(wave))
	if o.interactions == nil {
		for i, s := range wave {
			layouts[i] = defaultLayout(s.Type)
		}
		return layouts
	}
	for i, s := range wave {
		if !needsLayoutChoice(s.Type) {
			continue
		}
		contextID := fmt.Sprintf("layout:%s:%d", deckID, s.Number)
		layouts[i] = o.interactions.WaitForResponse(ctx, deckID, interaction.KindLayout,
			contextID, layoutOptions(s.Type), defaultLayout(s.Type), o.cfg.LayoutTimeout)
	}
	return layouts
}

const slideWriterPrompt = `You are a presentation slide writer. Produce one
slide as JSON: {"title": string, "body": string, "speaker_notes": string,
"image_prompt": string}. The body is newline-separated bullet lines. Keep
bullets short and concrete. Set "image_prompt" to a one-sentence visual
description when an illustration would help, otherwise omit it.`

func (o *Orchestrator) generateSlide(ctx context.Context, job Job, planned outline.Slide, layout string, prior []priorSlide, limits profiles.DensityLimits) (slideContent, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Deck: %s\n", job.Outline.Title)
	if inj := job.Profile.PromptInjection(); inj != "" {
		b.WriteString(inj)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Density: at most %d bullets, %d characters each.\n", limits.MaxBullets, limits.MaxCharsPerBullet)
	if len(prior) > 0 {
		b.WriteString("Slides so far:\n")
		for _, p := range prior {
			fmt.Fprintf(&b, "%d. %s\n", p.Number, p.Title)
		}
	}
	fmt.Fprintf(&b, "\nWrite slide %d (%s): %q", planned.Number, planned.Type, planned.Title)
	if planned.Section != "" {
		fmt.Fprintf(&b, " in section %q", planned.Section)
	}
	if layout != "" {
		fmt.Fprintf(&b, " using the %s layout", layout)
	}
	if len(planned.Bullets) > 0 {
		b.WriteString("\nCover these points:\n")
		for _, p := range planned.Bullets {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	return llm.CompleteStructured(ctx, o.client, llm.Params[slideContent]{
		Model: o.model,
		Messages: []llm.Message{
			llm.SystemMessage(slideWriterPrompt),
			llm.UserMessage(b.String()),
		},
		Validate: func(c slideContent) error {
			if strings.TrimSpace(c.Title) == "" {
				return errors.New("slide title is empty")
			}
			if !decorative(planned.Type) && strings.TrimSpace(c.Body) == "" {
				return errors.New("slide body is empty")
			}
			return nil
		},
		MaxRetries: o.maxRetries,
		CacheHint:  "slide-writer:" + job.Deck.ID,
	})
}

// postProcess persists one completed slide in order: truncate to density,
// insert, review, maybe split, then queue validation. It returns the slides
// it added to the deck and whether a split inserted an extra one.
func (o *Orchestrator) postProcess(ctx context.Context, job Job, planned outline.Slide, content slideContent, offset, projected, ceiling int, limits profiles.DensityLimits) ([]priorSlide, bool, error) {
	logger := logging.NewLogger(ctx)
	deck := job.Deck

	// Density is enforced by truncation; a slide that needed truncating lost
	// content, so it goes to the reviewer, which may recover it as a split.
	withinDensity := review.PassesDensity(content.Body, limits)
	content.Body = review.TruncateToDensity(content.Body, limits)
	slide := &decks.Slide{
		DeckID:       deck.ID,
		Number:       planned.Number + offset,
		Title:        content.Title,
		Body:         content.Body,
		SpeakerNotes: content.SpeakerNotes,
		ImagePrompt:  content.ImagePrompt,
		ContentHash:  decks.HashContent(content.Title, content.Body),
		Section:      planned.Section,
		SlideType:    planned.Type,
	}
	if err := o.store.InsertSlide(ctx, slide); err != nil {
		return nil, false, fmt.Errorf("persist slide %d: %w", slide.Number, err)
	}
	o.notify(ctx, deck.ID, stream.NewEvent(stream.EventProgress, stream.StageSlideAdded, slide.Title,
		map[string]any{"slide_id": slide.ID, "number": slide.Number}))

	added := []priorSlide{{Number: slide.Number, Title: slide.Title, Body: slide.Body}}
	inserted := false
	reviewPassed := true
	var extra *decks.Slide

	if o.reviewer != nil && !decorative(slide.SlideType) && !withinDensity {
		res, rerr := o.reviewer.ReviewSlide(ctx, *slide, limits)
		switch {
		case rerr != nil:
			// Reviewer trouble never sinks the deck; the slide ships as written.
			logger.LogWarnf("slide_review", "slide %d review skipped: %v", slide.Number, rerr)
		case res.Verdict == review.VerdictNeedsSplit:
			reviewPassed = false
			split, serr := o.applySplit(ctx, deck, slide, res.Parts, projected, ceiling, limits)
			if serr != nil {
				return nil, false, serr
			}
			added[0] = priorSlide{Number: slide.Number, Title: slide.Title, Body: slide.Body}
			if split != nil {
				added = append(added, priorSlide{Number: split.Number, Title: split.Title, Body: split.Body})
				inserted = true
				reviewPassed = true
				extra = split
			}
		default:
			reviewPassed = res.Verdict == review.VerdictPass
		}
	}

	o.queueValidation(ctx, deck, slide, reviewPassed)
	if extra != nil {
		// Both halves of a split go through the gate.
		o.queueValidation(ctx, deck, extra, true)
	}

	return added, inserted, nil
}

// queueValidation enqueues a produced slide on the validation gate and emits
// a validation_request event when the item needs a human decision.
func (o *Orchestrator) queueValidation(ctx context.Context, deck *decks.Deck, slide *decks.Slide, reviewPassed bool) {
	if o.validations == nil {
		return
	}
	if o.validations.Queue(deck.ID, validation.Item{
		SlideID:      slide.ID,
		Number:       slide.Number,
		Content:      slide.Body,
		SlideType:    slide.SlideType,
		ReviewPassed: reviewPassed,
	}, deck.AutoApprove) {
		o.notify(ctx, deck.ID, stream.NewEvent(stream.EventAction, stream.StageValidationRequest,
			"confirm slide content", map[string]any{"slide_id": slide.ID, "number": slide.Number}))
	}
}

// applySplit replaces the slide with the first reviewer part and inserts the
// second right after it, shifting later numbers. It returns the inserted
// slide, or nil when the split was dropped. At most one extra slide per
// split; when the deck is already at its ceiling the split is dropped and the
// original content stands.
func (o *Orchestrator) applySplit(ctx context.Context, deck *decks.Deck, slide *decks.Slide, parts []review.Part, projected, ceiling int, limits profiles.DensityLimits) (*decks.Slide, error) {
	logger := logging.NewLogger(ctx)

	if len(parts) < 2 {
		return nil, nil
	}
	if projected+1 > ceiling {
		logger.LogWarnf("slide_review", "split budget exhausted for deck %s at slide %d (%d/%d)",
			deck.ID, slide.Number, projected, ceiling)
		metrics.RecordSplitDropped()
		return nil, nil
	}

	first, second := parts[0], parts[1]
	first.Body = review.TruncateToDensity(first.Body, limits)
	second.Body = review.TruncateToDensity(second.Body, limits)

	if err := o.store.UpdateSlideContent(ctx, slide.ID, first.Title, first.Body, first.SpeakerNotes,
		decks.HashContent(first.Title, first.Body)); err != nil {
		return nil, fmt.Errorf("rewrite split slide %d: %w", slide.Number, err)
	}
	slide.Title, slide.Body, slide.SpeakerNotes = first.Title, first.Body, first.SpeakerNotes

	extra := &decks.Slide{
		DeckID:       deck.ID,
		Title:        second.Title,
		Body:         second.Body,
		SpeakerNotes: second.SpeakerNotes,
		ContentHash:  decks.HashContent(second.Title, second.Body),
		Section:      slide.Section,
		SlideType:    slide.SlideType,
	}
	if err := o.store.InsertSlideAt(ctx, extra, slide.Number+1); err != nil {
		return nil, fmt.Errorf("insert split slide after %d: %w", slide.Number, err)
	}
	metrics.RecordSplitAccepted()

	o.notify(ctx, deck.ID, stream.NewEvent(stream.EventProgress, stream.StageSlideUpdated, slide.Title,
		map[string]any{"slide_id": slide.ID, "number": slide.Number}))
	o.notify(ctx, deck.ID, stream.NewEvent(stream.EventProgress, stream.StageSlideAdded, extra.Title,
		map[string]any{"slide_id": extra.ID, "number": extra.Number}))

	return extra, nil
}

// qualityPass runs the whole-deck review and applies its fixes in place.
// Failures here degrade to the deck as generated.
func (o *Orchestrator) qualityPass(ctx context.Context, job Job) {
	if o.ensemble == nil {
		return
	}
	logger := logging.NewLogger(ctx)
	deck := job.Deck

	slides, err := o.store.ListSlides(ctx, deck.ID)
	if err != nil {
		logger.LogErrorf("quality_pass", "list slides: %v", err)
		return
	}
	fixes, err := o.ensemble.ReviewDeck(ctx, job.Outline.Title, slides)
	if err != nil {
		logger.LogWarnf("quality_pass", "deck review skipped: %v", err)
		return
	}

	byNumber := make(map[int]*decks.Slide, len(slides))
	for i := range slides {
		byNumber[slides[i].Number] = &slides[i]
	}
	applied := 0
	for _, fix := range fixes {
		s, ok := byNumber[fix.Number]
		if !ok {
			continue
		}
		if err := o.store.UpdateSlideContent(ctx, s.ID, fix.Title, fix.Body, fix.SpeakerNotes,
			decks.HashContent(fix.Title, fix.Body)); err != nil {
			logger.LogErrorf("quality_pass", "apply %s fix to slide %d: %v", fix.Kind, fix.Number, err)
			continue
		}
		applied++
		o.notify(ctx, deck.ID, stream.NewEvent(stream.EventProgress, stream.StageSlideUpdated, fix.Title,
			map[string]any{"slide_id": s.ID, "number": s.Number, "reason": fix.Reason}))
	}
	o.notify(ctx, deck.ID, stream.NewEvent(stream.EventProgress, stream.StageQualityPass,
		fmt.Sprintf("quality pass applied %d fixes", applied), nil))
}

// enqueueImages queues background image jobs for every slide that came back
// with an image prompt. Free-tier decks and deployments without an image
// service skip this.
func (o *Orchestrator) enqueueImages(ctx context.Context, deck *decks.Deck) {
	if o.images == nil || deck.Tier < o.cfg.ImageTierThreshold {
		return
	}
	logger := logging.NewLogger(ctx)
	slides, err := o.store.ListSlides(ctx, deck.ID)
	if err != nil {
		logger.LogErrorf("enqueue_images", "list slides: %v", err)
		return
	}
	for _, s := range slides {
		if s.ImagePrompt == "" {
			continue
		}
		job := images.Job{
			ID:         uuid.NewString(),
			DeckID:     deck.ID,
			SlideID:    s.ID,
			Prompt:     s.ImagePrompt,
			EnqueuedAt: time.Now(),
		}
		if err := o.images.Enqueue(ctx, job); err != nil {
			logger.LogErrorf("enqueue_images", "slide %d: %v", s.Number, err)
		}
	}
}

func (o *Orchestrator) notify(ctx context.Context, deckID string, ev stream.Event) {
	if err := o.events.Publish(ctx, deckID, ev); err != nil {
		logging.NewLogger(ctx).LogErrorf("notify", "publish %s event: %v", ev.Type, err)
	}
}
