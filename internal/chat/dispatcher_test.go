package chat

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slideforge/slideforge-backend/internal/credits"
	"github.com/slideforge/slideforge-backend/internal/decks"
	"github.com/slideforge/slideforge-backend/internal/export"
	"github.com/slideforge/slideforge-backend/internal/generation"
	"github.com/slideforge/slideforge-backend/internal/llm"
	"github.com/slideforge/slideforge-backend/internal/outline"
	"github.com/slideforge/slideforge-backend/internal/profiles"
	"github.com/slideforge/slideforge-backend/internal/stream"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name  string
		input string
		kind  CommandKind
		args  []string
		fails bool
	}{
		{name: "free text", input: "looks great", kind: CmdNone, args: []string{"looks great"}},
		{name: "outline", input: "/outline Q3 sales review", kind: CmdOutline, args: []string{"Q3 sales review"}},
		{name: "outline without topic", input: "/outline", fails: true},
		{name: "export", input: "/export PDF", kind: CmdExport, args: []string{"pdf"}},
		{name: "export extra args", input: "/export pdf now", fails: true},
		{name: "config", input: "/config theme noir", kind: CmdConfig, args: []string{"theme", "noir"}},
		{name: "auto approve", input: "/auto-approve on", kind: CmdAutoApprove, args: []string{"on"}},
		{name: "auto approve bad value", input: "/auto-approve maybe", fails: true},
		{name: "unknown", input: "/frobnicate", fails: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := Parse(tc.input)
			if tc.fails {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.kind, cmd.Kind)
			assert.Equal(t, tc.args, cmd.Args)
		})
	}
}

type memChatStore struct {
	messages    []decks.Message
	slides      []decks.Slide
	themeID     string
	title       string
	autoApprove bool
}

func (m *memChatStore) InsertMessage(_ context.Context, deckID, role, content, kind string, _ any) (*decks.Message, error) {
	msg := decks.Message{ID: fmt.Sprintf("msg-%d", len(m.messages)+1), DeckID: deckID, Role: role, Content: content, Kind: kind}
	m.messages = append(m.messages, msg)
	return &msg, nil
}

func (m *memChatStore) CountUserMessages(context.Context, string) (int, error) {
	n := 0
	for _, msg := range m.messages {
		if msg.Role == "user" {
			n++
		}
	}
	return n, nil
}

func (m *memChatStore) ListMessages(_ context.Context, _ string, limit int) ([]decks.Message, error) {
	if len(m.messages) <= limit {
		return m.messages, nil
	}
	return m.messages[len(m.messages)-limit:], nil
}

func (m *memChatStore) ListSlides(context.Context, string) ([]decks.Slide, error) {
	return m.slides, nil
}

func (m *memChatStore) UpdateTheme(_ context.Context, _ string, themeID string) error {
	m.themeID = themeID
	return nil
}

func (m *memChatStore) UpdateTitle(_ context.Context, _ string, title string) error {
	m.title = title
	return nil
}

func (m *memChatStore) SetAutoApprove(_ context.Context, _ string, on bool) error {
	m.autoApprove = on
	return nil
}

func (m *memChatStore) lastByRole(role string) string {
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Role == role {
			return m.messages[i].Content
		}
	}
	return ""
}

type stubOutlines struct {
	pending      *outline.Outline
	generated    *outline.Outline
	generateErr  error
	generateHits int
	executeHits  int
	clearHits    int
}

func (s *stubOutlines) Generate(_ context.Context, _, _, _ string, _ *profiles.Profile) (*outline.Outline, error) {
	s.generateHits++
	if s.generateErr != nil {
		return nil, s.generateErr
	}
	s.pending = s.generated
	return s.generated, nil
}

func (s *stubOutlines) Execute(context.Context, string) (*outline.Outline, error) {
	s.executeHits++
	if s.pending == nil {
		return nil, outline.ErrNoPending
	}
	o := s.pending
	s.pending = nil
	return o, nil
}

func (s *stubOutlines) Pending(context.Context, string) (*outline.Outline, error) {
	if s.pending == nil {
		return nil, outline.ErrNoPending
	}
	return s.pending, nil
}

func (s *stubOutlines) ClearPending(context.Context, string) error {
	s.clearHits++
	s.pending = nil
	return nil
}

type stubGenerator struct {
	jobs []generation.Job
	err  error
}

func (s *stubGenerator) GenerateDeck(_ context.Context, job generation.Job) error {
	s.jobs = append(s.jobs, job)
	return s.err
}

type stubExporter struct {
	requests []export.Request
	err      error
}

func (s *stubExporter) Submit(_ context.Context, req export.Request) (*export.JobStatus, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &export.JobStatus{ID: "exp-1", Status: "queued"}, nil
}

type stubLedger struct {
	reserveErr error
	reserved   int
	committed  int
	released   int
}

func (s *stubLedger) Reserve(context.Context, string, int64, credits.Reason, string) (string, error) {
	if s.reserveErr != nil {
		return "", s.reserveErr
	}
	s.reserved++
	return "res-1", nil
}

func (s *stubLedger) Commit(context.Context, string) error { s.committed++; return nil }
func (s *stubLedger) Release(context.Context, string) error { s.released++; return nil }

type echoClient struct {
	reply string
	err   error
}

func (e *echoClient) Complete(context.Context, llm.Request) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return e.reply, nil
}

type testDispatcher struct {
	*Dispatcher
	store     *memChatStore
	outlines  *stubOutlines
	generator *stubGenerator
	exporter  *stubExporter
	ledger    *stubLedger
	client    *echoClient
}

func newTestDispatcher() *testDispatcher {
	td := &testDispatcher{
		store:     &memChatStore{},
		outlines:  &stubOutlines{},
		generator: &stubGenerator{},
		exporter:  &stubExporter{},
		ledger:    &stubLedger{},
		client:    &echoClient{reply: "happy to help"},
	}
	td.Dispatcher = NewDispatcher(Options{
		Store:             td.store,
		Outlines:          td.outlines,
		Generator:         td.generator,
		Exporter:          td.exporter,
		Client:            td.client,
		Model:             "test-model",
		Ledger:            td.ledger,
		Events:            stream.Nop{},
		ChatMessageCost:   1,
		FreeChatAllowance: 20,
	})
	return td
}

func pitchOutline() *outline.Outline {
	return &outline.Outline{Title: "Series A Pitch", Slides: []outline.Slide{
		{Number: 1, Title: "Series A Pitch", Type: decks.TypeTitle},
		{Number: 2, Title: "Problem", Type: decks.TypeContent},
		{Number: 3, Title: "Solution", Type: decks.TypeContent},
	}}
}

func chatDeck() *decks.Deck {
	return &decks.Deck{ID: "deck-1", UserID: "user-1", Topic: "series a pitch", Status: decks.StatusEmpty}
}

func TestHandleOutlineCommand(t *testing.T) {
	td := newTestDispatcher()
	td.outlines.generated = pitchOutline()

	reply, err := td.Handle(context.Background(), chatDeck(), nil, "/outline series a pitch")
	require.NoError(t, err)
	assert.Contains(t, reply, "3-slide outline")
	assert.Contains(t, reply, "Series A Pitch")
	assert.Equal(t, 1, td.outlines.generateHits)
	assert.Equal(t, reply, td.store.lastByRole("assistant"))
	assert.Equal(t, "/outline series a pitch", td.store.lastByRole("user"))
}

func TestHandleOutlineInsufficientCredit(t *testing.T) {
	td := newTestDispatcher()
	td.outlines.generateErr = credits.ErrInsufficientCredit

	reply, err := td.Handle(context.Background(), chatDeck(), nil, "/outline anything")
	require.NoError(t, err)
	assert.Contains(t, reply, "Not enough credits")
}

func TestApprovalExecutesPendingOutline(t *testing.T) {
	td := newTestDispatcher()
	td.outlines.pending = pitchOutline()

	deck := chatDeck()
	reply, err := td.Handle(context.Background(), deck, nil, "yes, go ahead")
	require.NoError(t, err)
	assert.Contains(t, reply, "Deck generated")
	require.Len(t, td.generator.jobs, 1)
	assert.Equal(t, deck, td.generator.jobs[0].Deck)
	assert.Equal(t, "Series A Pitch", td.generator.jobs[0].Outline.Title)
	assert.Equal(t, 1, td.outlines.executeHits)
}

func TestApprovalWithoutPendingFallsThroughToChat(t *testing.T) {
	td := newTestDispatcher()

	reply, err := td.Handle(context.Background(), chatDeck(), nil, "yes")
	require.NoError(t, err)
	assert.Equal(t, "happy to help", reply)
	assert.Empty(t, td.generator.jobs)
}

func TestRetryRegeneratesOutline(t *testing.T) {
	td := newTestDispatcher()
	td.outlines.pending = pitchOutline()
	td.outlines.generated = pitchOutline()

	reply, err := td.Handle(context.Background(), chatDeck(), nil, "try again with different framing")
	require.NoError(t, err)
	assert.Contains(t, reply, "outline")
	assert.Equal(t, 1, td.outlines.clearHits)
	assert.Equal(t, 1, td.outlines.generateHits)
	assert.Empty(t, td.generator.jobs)
}

func TestExportRequiresCompletedDeck(t *testing.T) {
	td := newTestDispatcher()

	reply, err := td.Handle(context.Background(), chatDeck(), nil, "/export pdf")
	require.NoError(t, err)
	assert.Contains(t, reply, "not finished")
	assert.Empty(t, td.exporter.requests)
}

func TestExportSubmitsCompletedDeck(t *testing.T) {
	td := newTestDispatcher()
	td.store.slides = []decks.Slide{{Number: 1, Title: "Series A Pitch"}}

	deck := chatDeck()
	deck.Status = decks.StatusCompleted
	deck.Title = "Series A Pitch"
	deck.ThemeID = "minimal"

	reply, err := td.Handle(context.Background(), deck, nil, "/export pptx")
	require.NoError(t, err)
	assert.Contains(t, reply, "exp-1")
	require.Len(t, td.exporter.requests, 1)
	req := td.exporter.requests[0]
	assert.Equal(t, "pptx", req.Format)
	assert.Equal(t, "minimal", req.Theme.ID)
	assert.Len(t, req.Slides, 1)
}

func TestConfigThemeValidatesCatalog(t *testing.T) {
	td := newTestDispatcher()
	deck := chatDeck()

	reply, err := td.Handle(context.Background(), deck, nil, "/config theme bold")
	require.NoError(t, err)
	assert.Contains(t, reply, "Theme set to bold")
	assert.Equal(t, "bold", td.store.themeID)
	assert.Equal(t, "bold", deck.ThemeID)

	reply, err = td.Handle(context.Background(), deck, nil, "/config theme neon")
	require.NoError(t, err)
	assert.Contains(t, reply, "Unknown theme")
	assert.Equal(t, "bold", td.store.themeID)
}

func TestAutoApproveToggle(t *testing.T) {
	td := newTestDispatcher()
	deck := chatDeck()

	_, err := td.Handle(context.Background(), deck, nil, "/auto-approve on")
	require.NoError(t, err)
	assert.True(t, td.store.autoApprove)
	assert.True(t, deck.AutoApprove)

	_, err = td.Handle(context.Background(), deck, nil, "/auto-approve off")
	require.NoError(t, err)
	assert.False(t, td.store.autoApprove)
}

func TestChatBillingPastAllowance(t *testing.T) {
	td := newTestDispatcher()
	// Backfill past the free allowance.
	for i := 0; i < 25; i++ {
		_, _ = td.store.InsertMessage(context.Background(), "deck-1", "user", "hi", "", nil)
	}

	reply, err := td.Handle(context.Background(), chatDeck(), nil, "what themes are there?")
	require.NoError(t, err)
	assert.Equal(t, "happy to help", reply)
	assert.Equal(t, 1, td.ledger.reserved)
	assert.Equal(t, 1, td.ledger.committed)
}

func TestChatBillingReleasedOnFailedCompletion(t *testing.T) {
	td := newTestDispatcher()
	td.client.err = fmt.Errorf("model unavailable")
	for i := 0; i < 25; i++ {
		_, _ = td.store.InsertMessage(context.Background(), "deck-1", "user", "hi", "", nil)
	}

	_, err := td.Handle(context.Background(), chatDeck(), nil, "what themes are there?")
	require.Error(t, err)
	assert.Equal(t, 1, td.ledger.reserved)
	assert.Equal(t, 0, td.ledger.committed)
	assert.Equal(t, 1, td.ledger.released)
}

func TestChatWithinAllowanceIsFree(t *testing.T) {
	td := newTestDispatcher()

	_, err := td.Handle(context.Background(), chatDeck(), nil, "hello there")
	require.NoError(t, err)
	assert.Zero(t, td.ledger.reserved)
}

func TestChatOutOfCredits(t *testing.T) {
	td := newTestDispatcher()
	td.ledger.reserveErr = credits.ErrInsufficientCredit
	for i := 0; i < 25; i++ {
		_, _ = td.store.InsertMessage(context.Background(), "deck-1", "user", "hi", "", nil)
	}

	reply, err := td.Handle(context.Background(), chatDeck(), nil, "one more question")
	require.NoError(t, err)
	assert.Contains(t, reply, "out of credits")
}

func TestUnknownCommandBecomesUsageReply(t *testing.T) {
	td := newTestDispatcher()

	reply, err := td.Handle(context.Background(), chatDeck(), nil, "/frobnicate now")
	require.NoError(t, err)
	assert.Contains(t, reply, "unknown command")
}
