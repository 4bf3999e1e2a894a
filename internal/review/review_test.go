package review

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slideforge/slideforge-backend/internal/decks"
	"github.com/slideforge/slideforge-backend/internal/llm"
	"github.com/slideforge/slideforge-backend/internal/profiles"
)

type scriptedClient struct {
	replies []string
	calls   int
}

func (s *scriptedClient) Complete(context.Context, llm.Request) (string, error) {
	i := s.calls
	s.calls++
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	return s.replies[i], nil
}

var balanced = profiles.DensityLimits{MaxBullets: 5, MaxCharsPerBullet: 140}

func TestReviewer_Pass(t *testing.T) {
	c := &scriptedClient{replies: []string{
		`{"verdict":"PASS","score":0.9,"issues":[]}`,
	}}
	r := NewReviewer(c, "m", 1)

	res, err := r.ReviewSlide(context.Background(), decks.Slide{Number: 1, Title: "T", Body: "one\ntwo"}, balanced)
	require.NoError(t, err)
	assert.Equal(t, VerdictPass, res.Verdict)
	assert.InDelta(t, 0.9, res.Score, 1e-9)
}

func TestReviewer_NeedsSplitRequiresTwoParts(t *testing.T) {
	c := &scriptedClient{replies: []string{
		`{"verdict":"NEEDS_SPLIT","score":0.4,"issues":[],"parts":[{"title":"only one","body":"b"}]}`,
		`{"verdict":"NEEDS_SPLIT","score":0.4,"issues":[{"rule":"density","severity":"warn","message":"too dense"}],"parts":[{"title":"a","body":"b1"},{"title":"b","body":"b2"}]}`,
	}}
	r := NewReviewer(c, "m", 2)

	res, err := r.ReviewSlide(context.Background(), decks.Slide{Number: 2, Title: "Dense", Body: "x"}, balanced)
	require.NoError(t, err)
	assert.Equal(t, VerdictNeedsSplit, res.Verdict)
	require.Len(t, res.Parts, 2)
	assert.Equal(t, 2, c.calls, "single-part reply must be corrected")
}

func TestReviewer_FailureIsTagged(t *testing.T) {
	c := &scriptedClient{replies: []string{`not json at all`}}
	r := NewReviewer(c, "m", 0)

	_, err := r.ReviewSlide(context.Background(), decks.Slide{Number: 1}, balanced)
	assert.ErrorIs(t, err, ErrReviewerFailure)
}

func TestPassesDensity(t *testing.T) {
	limits := profiles.DensityLimits{MaxBullets: 3, MaxCharsPerBullet: 20}

	assert.True(t, PassesDensity("short\nlines\nhere", limits))
	assert.False(t, PassesDensity("a\nb\nc\nd", limits), "too many bullets")
	assert.False(t, PassesDensity("this single bullet is far too long to pass", limits))
	assert.True(t, PassesDensity("", limits))
}

func TestTruncateToDensity(t *testing.T) {
	limits := profiles.DensityLimits{MaxBullets: 2, MaxCharsPerBullet: 10}

	got := TruncateToDensity("first bullet is long\nsecond\nthird", limits)
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, 10, utf8.RuneCountInString(lines[0])) // 9 runes + ellipsis
	assert.Equal(t, "second", lines[1])
}

func TestTruncateToDensityKeepsRunesWhole(t *testing.T) {
	limits := profiles.DensityLimits{MaxBullets: 2, MaxCharsPerBullet: 10}

	got := TruncateToDensity("- überlange Stichpunkte überall", limits)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "- überlan…", got)
	assert.Equal(t, 10, utf8.RuneCountInString(got))

	// Rune counting also means non-ASCII text of legal length passes intact.
	assert.True(t, PassesDensity("- übermaß", limits))
	assert.Equal(t, "- übermaß", TruncateToDensity("- übermaß", limits))
}

func TestEnsemble_ReviewDeck(t *testing.T) {
	c := &scriptedClient{replies: []string{
		`{"fixes":[{"number":2,"kind":"narrative","title":"Better title","body":"tightened body","speaker_notes":"","reason":"flow"}]}`,
	}}
	e := NewEnsemble(c, "m", 1)

	slides := []decks.Slide{
		{Number: 1, Title: "Intro", Body: "a"},
		{Number: 2, Title: "Middle", Body: "b"},
	}
	fixes, err := e.ReviewDeck(context.Background(), "Deck", slides)
	require.NoError(t, err)
	require.Len(t, fixes, 1)
	assert.Equal(t, 2, fixes[0].Number)
	assert.Equal(t, FixNarrative, fixes[0].Kind)
}

func TestEnsemble_RejectsOutOfRangeFix(t *testing.T) {
	c := &scriptedClient{replies: []string{
		`{"fixes":[{"number":9,"kind":"style","title":"t","body":"b","speaker_notes":"","reason":"r"}]}`,
	}}
	e := NewEnsemble(c, "m", 0)

	_, err := e.ReviewDeck(context.Background(), "Deck", []decks.Slide{{Number: 1}})
	assert.ErrorIs(t, err, ErrReviewerFailure)
}
