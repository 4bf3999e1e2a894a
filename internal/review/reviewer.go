package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slideforge/slideforge-backend/internal/decks"
	"github.com/slideforge/slideforge-backend/internal/llm"
	"github.com/slideforge/slideforge-backend/internal/metrics"
	"github.com/slideforge/slideforge-backend/internal/profiles"
)

// Verdicts on a single slide.
type Verdict string

const (
	VerdictPass       Verdict = "PASS"
	VerdictNeedsSplit Verdict = "NEEDS_SPLIT"
)

// ErrReviewerFailure tags reviewer errors for callers that degrade
// gracefully instead of failing the pipeline.
var ErrReviewerFailure = errors.New("reviewer failure")

// Issue is one flagged problem on a slide.
type Issue struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Part is replacement content for one half of a split slide.
type Part struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	SpeakerNotes string `json:"speaker_notes"`
}

// Result is the reviewer's verdict for one slide.
type Result struct {
	Verdict Verdict `json:"verdict"`
	Score   float64 `json:"score"`
	Issues  []Issue `json:"issues"`
	Parts   []Part  `json:"parts,omitempty"`
}

// SlideReviewer is the per-slide density/quality check.
type SlideReviewer interface {
	ReviewSlide(ctx context.Context, slide decks.Slide, limits profiles.DensityLimits) (*Result, error)
}

const reviewerSystemPrompt = `You are a slide content reviewer. Judge whether
the slide is clear and within density limits. Reply as JSON:
{"verdict": "PASS" | "NEEDS_SPLIT", "score": number 0..1,
 "issues": [{"rule": string, "severity": "info"|"warn"|"error", "message": string}],
 "parts": [{"title": string, "body": string, "speaker_notes": string}]}
When the verdict is NEEDS_SPLIT, "parts" must hold exactly two slides that
together replace the original. Otherwise omit "parts".`

// Reviewer asks the model for a structured verdict per slide.
type Reviewer struct {
	client     llm.Client
	model      string
	maxRetries int
}

func NewReviewer(client llm.Client, model string, maxRetries int) *Reviewer {
	return &Reviewer{client: client, model: model, maxRetries: maxRetries}
}

func (r *Reviewer) ReviewSlide(ctx context.Context, slide decks.Slide, limits profiles.DensityLimits) (*Result, error) {
	metrics.RecordReviewerCall()

	var user strings.Builder
	fmt.Fprintf(&user, "Slide %d: %s\n\n%s\n\n", slide.Number, slide.Title, slide.Body)
	fmt.Fprintf(&user, "Density limits: at most %d bullets, %d characters per bullet.",
		limits.MaxBullets, limits.MaxCharsPerBullet)

	res, err := llm.CompleteStructured(ctx, r.client, llm.Params[Result]{
		Model: r.model,
		Messages: []llm.Message{
			llm.SystemMessage(reviewerSystemPrompt),
			llm.UserMessage(user.String()),
		},
		Validate:   validateResult,
		MaxRetries: r.maxRetries,
		CacheHint:  "slide-reviewer",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReviewerFailure, err)
	}
	return &res, nil
}

func validateResult(res Result) error {
	switch res.Verdict {
	case VerdictPass, VerdictNeedsSplit:
	default:
		return fmt.Errorf("unknown verdict %q", res.Verdict)
	}
	if res.Score < 0 || res.Score > 1 {
		return fmt.Errorf("score %v out of [0,1]", res.Score)
	}
	if res.Verdict == VerdictNeedsSplit && len(res.Parts) < 2 {
		return fmt.Errorf("NEEDS_SPLIT verdict carries %d parts, want 2", len(res.Parts))
	}
	return nil
}
