package decks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deckstore "github.com/slideforge/slideforge-backend/internal/decks"
	"github.com/slideforge/slideforge-backend/internal/generation"
	"github.com/slideforge/slideforge-backend/internal/interaction"
	"github.com/slideforge/slideforge-backend/internal/outline"
	"github.com/slideforge/slideforge-backend/internal/profiles"
	"github.com/slideforge/slideforge-backend/internal/stream"
	"github.com/slideforge/slideforge-backend/internal/validation"
)

type stubRepo struct {
	decks   map[string]*deckstore.Deck
	slides  []deckstore.Slide
	updated map[string]string // slide id -> new body
	nextID  int
}

func newStubRepo() *stubRepo {
	return &stubRepo{decks: map[string]*deckstore.Deck{}, updated: map[string]string{}}
}

func (s *stubRepo) Create(_ context.Context, d *deckstore.Deck) error {
	s.nextID++
	d.ID = fmt.Sprintf("deck-%d", s.nextID)
	d.Status = deckstore.StatusEmpty
	s.decks[d.ID] = d
	return nil
}

func (s *stubRepo) Get(_ context.Context, userID, deckID string) (*deckstore.Deck, error) {
	d, ok := s.decks[deckID]
	if !ok || d.UserID != userID {
		return nil, deckstore.ErrDeckNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *stubRepo) List(_ context.Context, userID string) ([]deckstore.Deck, error) {
	var out []deckstore.Deck
	for _, d := range s.decks {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *stubRepo) ListSlides(context.Context, string) ([]deckstore.Slide, error) {
	return s.slides, nil
}

func (s *stubRepo) ListMessages(context.Context, string, int) ([]deckstore.Message, error) {
	return nil, nil
}

func (s *stubRepo) UpdateSlideContent(_ context.Context, slideID, _, body, _, _ string) error {
	s.updated[slideID] = body
	return nil
}

type stubChat struct{ handled chan string }

func (s *stubChat) Handle(_ context.Context, _ *deckstore.Deck, _ *profiles.Profile, text string) (string, error) {
	s.handled <- text
	return "ok", nil
}

type stubOutlines struct{ pending *outline.Outline }

func (s *stubOutlines) Generate(_ context.Context, _, _, _ string, _ *profiles.Profile) (*outline.Outline, error) {
	return s.pending, nil
}

func (s *stubOutlines) Execute(context.Context, string) (*outline.Outline, error) {
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
	s.pending = nil
	return nil
}

type stubEditor struct {
	edited *outline.Outline
	err    error
	number int
}

func (s *stubEditor) EditSlide(_ context.Context, _, _ string, number int, _ string, _ []string) (*outline.Outline, error) {
	s.number = number
	if s.err != nil {
		return nil, s.err
	}
	return s.edited, nil
}

type stubGenerator struct{ jobs chan generation.Job }

func (s *stubGenerator) GenerateDeck(_ context.Context, job generation.Job) error {
	s.jobs <- job
	return nil
}

type testAPI struct {
	router      *gin.Engine
	repo        *stubRepo
	chat        *stubChat
	outlines    *stubOutlines
	editor      *stubEditor
	generator   *stubGenerator
	validations *validation.Gate
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := &testAPI{
		repo:        newStubRepo(),
		chat:        &stubChat{handled: make(chan string, 1)},
		outlines:    &stubOutlines{},
		editor:      &stubEditor{},
		generator:   &stubGenerator{jobs: make(chan generation.Job, 1)},
		validations: validation.NewGate(),
	}
	h := New(Deps{
		Repo:         api.repo,
		Chat:         api.chat,
		Outlines:     api.outlines,
		Editor:       api.editor,
		Generator:    api.generator,
		Validations:  api.validations,
		Interactions: interaction.NewGate(stream.Nop{}),
	})

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("user_id", "user-1") })
	h.Register(r.Group("/decks"))
	api.router = r
	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) seedDeck() *deckstore.Deck {
	d := &deckstore.Deck{UserID: "user-1", Topic: "q3 review", Title: "Q3 Review"}
	_ = a.repo.Create(context.Background(), d)
	return d
}

func TestCreateDeck(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/decks", gin.H{"topic": "q3 review"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		OK   bool           `json:"ok"`
		Deck deckstore.Deck `json:"deck"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "user-1", resp.Deck.UserID)
	assert.Equal(t, "q3 review", resp.Deck.Topic)
	assert.Equal(t, "q3 review", resp.Deck.Title)
}

func TestCreateDeckRequiresTopic(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodPost, "/decks", gin.H{"title": "no topic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetDeckNotFound(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodGet, "/decks/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetDeckHidesOtherUsers(t *testing.T) {
	api := newTestAPI(t)
	other := &deckstore.Deck{UserID: "user-2", Topic: "secret"}
	_ = api.repo.Create(context.Background(), other)

	w := api.do(t, http.MethodGet, "/decks/"+other.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostMessageDispatchesInBackground(t *testing.T) {
	api := newTestAPI(t)
	d := api.seedDeck()

	w := api.do(t, http.MethodPost, "/decks/"+d.ID+"/messages", gin.H{"content": "/outline q3 review"})
	require.Equal(t, http.StatusAccepted, w.Code)

	select {
	case text := <-api.chat.handled:
		assert.Equal(t, "/outline q3 review", text)
	case <-time.After(time.Second):
		t.Fatal("chat handler was never invoked")
	}
}

func TestApproveOutlineStartsGeneration(t *testing.T) {
	api := newTestAPI(t)
	d := api.seedDeck()
	api.outlines.pending = &outline.Outline{Title: "Q3 Review", Slides: []outline.Slide{
		{Number: 1, Title: "Q3 Review", Type: deckstore.TypeTitle},
		{Number: 2, Title: "Wins", Type: deckstore.TypeContent},
	}}

	w := api.do(t, http.MethodPost, "/decks/"+d.ID+"/outline/approve", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	select {
	case job := <-api.generator.jobs:
		assert.Equal(t, d.ID, job.Deck.ID)
		assert.Len(t, job.Outline.Slides, 2)
	case <-time.After(time.Second):
		t.Fatal("generator was never invoked")
	}
}

func TestApproveOutlineConflictsWhenNonePending(t *testing.T) {
	api := newTestAPI(t)
	d := api.seedDeck()

	w := api.do(t, http.MethodPost, "/decks/"+d.ID+"/outline/approve", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPendingOutlineRoundTrip(t *testing.T) {
	api := newTestAPI(t)
	d := api.seedDeck()

	w := api.do(t, http.MethodGet, "/decks/"+d.ID+"/outline", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	api.outlines.pending = &outline.Outline{Title: "Q3 Review"}
	w = api.do(t, http.MethodGet, "/decks/"+d.ID+"/outline", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodDelete, "/decks/"+d.ID+"/outline", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, api.outlines.pending)
}

func TestEditOutlineSlide(t *testing.T) {
	api := newTestAPI(t)
	d := api.seedDeck()
	api.editor.edited = &outline.Outline{Title: "Q3 Review"}

	w := api.do(t, http.MethodPut, "/decks/"+d.ID+"/outline/slides/2", gin.H{"title": "Sharper Wins"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, api.editor.number)

	w = api.do(t, http.MethodPut, "/decks/"+d.ID+"/outline/slides/zero", gin.H{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	api.editor.err = outline.ErrNoPending
	w = api.do(t, http.MethodPut, "/decks/"+d.ID+"/outline/slides/2", gin.H{"title": "x"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestValidationEditPersistsContent(t *testing.T) {
	api := newTestAPI(t)
	d := api.seedDeck()
	api.repo.slides = []deckstore.Slide{{ID: "slide-9", Number: 2, Title: "Wins", Body: "- old"}}
	api.validations.Queue(d.ID, validation.Item{SlideID: "slide-9", Number: 2, Content: "- old", SlideType: deckstore.TypeContent}, false)

	w := api.do(t, http.MethodPost, "/decks/"+d.ID+"/validation", gin.H{
		"slide_id": "slide-9",
		"decision": "edit",
		"content":  "- sharper point",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "- sharper point", api.repo.updated["slide-9"])
}

func TestValidationNext(t *testing.T) {
	api := newTestAPI(t)
	d := api.seedDeck()

	w := api.do(t, http.MethodGet, "/decks/"+d.ID+"/validation/next", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	api.validations.Queue(d.ID, validation.Item{SlideID: "slide-1", Number: 1, SlideType: deckstore.TypeContent}, false)
	w = api.do(t, http.MethodGet, "/decks/"+d.ID+"/validation/next", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Item    validation.Item `json:"item"`
		Pending int             `json:"pending"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "slide-1", resp.Item.SlideID)
	assert.Equal(t, 1, resp.Pending)
}

func TestInteractionRespond(t *testing.T) {
	api := newTestAPI(t)
	d := api.seedDeck()

	w := api.do(t, http.MethodPost, "/decks/"+d.ID+"/interactions", gin.H{
		"context_id": "theme:" + d.ID,
		"value":      "bold",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Accepted bool `json:"accepted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// Nothing is waiting on this context, so the response is dropped.
	assert.False(t, resp.Accepted)
}
