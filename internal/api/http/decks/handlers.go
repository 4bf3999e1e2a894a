package decks

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/slideforge/slideforge-backend/internal/credits"
	deckstore "github.com/slideforge/slideforge-backend/internal/decks"
	"github.com/slideforge/slideforge-backend/internal/generation"
	"github.com/slideforge/slideforge-backend/internal/interaction"
	"github.com/slideforge/slideforge-backend/internal/logging"
	"github.com/slideforge/slideforge-backend/internal/outline"
	"github.com/slideforge/slideforge-backend/internal/profiles"
	"github.com/slideforge/slideforge-backend/internal/validation"
)

// Handler serves the deck API: CRUD, chat messages, the pending outline,
// validation decisions, and interaction responses.
type Handler struct {
	repo         Repo
	profileRepo  ProfileRepo
	chat         Chat
	outlines     Outlines
	editor       OutlineEditor
	generator    Generator
	validations  *validation.Gate
	interactions *interaction.Gate
	events       gin.HandlerFunc
}

type Deps struct {
	Repo         Repo
	ProfileRepo  ProfileRepo
	Chat         Chat
	Outlines     Outlines
	Editor       OutlineEditor
	Generator    Generator
	Validations  *validation.Gate
	Interactions *interaction.Gate
	Events       gin.HandlerFunc
}

func New(d Deps) *Handler {
	return &Handler{
		repo:         d.Repo,
		profileRepo:  d.ProfileRepo,
		chat:         d.Chat,
		outlines:     d.Outlines,
		editor:       d.Editor,
		generator:    d.Generator,
		validations:  d.Validations,
		interactions: d.Interactions,
		events:       d.Events,
	}
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("", h.create)
	r.GET("", h.list)
	r.GET("/:id", h.get)
	r.GET("/:id/slides", h.slides)
	r.GET("/:id/messages", h.messages)
	r.POST("/:id/messages", h.postMessage)
	r.GET("/:id/outline", h.pendingOutline)
	r.POST("/:id/outline/approve", h.approveOutline)
	r.PUT("/:id/outline/slides/:number", h.editOutlineSlide)
	r.DELETE("/:id/outline", h.discardOutline)
	r.GET("/:id/validation/next", h.validationNext)
	r.POST("/:id/validation", h.validate)
	r.POST("/:id/interactions", h.respondInteraction)
	if h.events != nil {
		r.GET("/:id/events", h.events)
	}
}

func (h *Handler) create(c *gin.Context) {
	var req createDeckReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Topic) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "topic is required"})
		return
	}

	d := &deckstore.Deck{
		UserID:  c.GetString("user_id"),
		Title:   strings.TrimSpace(req.Title),
		Topic:   strings.TrimSpace(req.Topic),
		ThemeID: req.ThemeID,
		Tier:    req.Tier,
	}
	if req.ProfileID != "" {
		d.ProfileID = &req.ProfileID
	}
	if d.Title == "" {
		d.Title = d.Topic
	}
	if err := h.repo.Create(c.Request.Context(), d); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "deck": d})
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.repo.List(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "decks": items})
}

func (h *Handler) get(c *gin.Context) {
	deck, ok := h.loadDeck(c)
	if !ok {
		return
	}
	slides, err := h.repo.ListSlides(c.Request.Context(), deck.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "deck": deck, "slides": slides})
}

func (h *Handler) slides(c *gin.Context) {
	deck, ok := h.loadDeck(c)
	if !ok {
		return
	}
	slides, err := h.repo.ListSlides(c.Request.Context(), deck.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "slides": slides})
}

func (h *Handler) messages(c *gin.Context) {
	deck, ok := h.loadDeck(c)
	if !ok {
		return
	}
	msgs, err := h.repo.ListMessages(c.Request.Context(), deck.ID, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "messages": msgs})
}

// postMessage accepts one chat message and processes it in the background;
// replies and pipeline progress arrive over the deck's event channel.
func (h *Handler) postMessage(c *gin.Context) {
	var req postMessageReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "content is required"})
		return
	}
	deck, ok := h.loadDeck(c)
	if !ok {
		return
	}
	profile := h.loadProfile(c, deck)

	ctx := detach(c)
	go func() {
		if _, err := h.chat.Handle(ctx, deck, profile, req.Content); err != nil {
			logging.NewLogger(ctx).LogErrorf("deck_chat", "deck_id=%s %v", deck.ID, err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}

func (h *Handler) pendingOutline(c *gin.Context) {
	deck, ok := h.loadDeck(c)
	if !ok {
		return
	}
	pending, err := h.outlines.Pending(c.Request.Context(), deck.ID)
	if err != nil {
		if errors.Is(err, outline.ErrNoPending) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "no pending outline"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "outline": pending})
}

// approveOutline consumes the pending outline and starts generation in the
// background.
func (h *Handler) approveOutline(c *gin.Context) {
	deck, ok := h.loadDeck(c)
	if !ok {
		return
	}
	approved, err := h.outlines.Execute(c.Request.Context(), deck.ID)
	if err != nil {
		if errors.Is(err, outline.ErrNoPending) {
			c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "no pending outline"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	profile := h.loadProfile(c, deck)

	ctx := detach(c)
	go func() {
		if err := h.generator.GenerateDeck(ctx, generation.Job{Deck: deck, Outline: approved, Profile: profile}); err != nil {
			logging.NewLogger(ctx).LogErrorf("deck_generation", "deck_id=%s %v", deck.ID, err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"ok": true, "planned_slides": len(approved.Slides)})
}

// editOutlineSlide tweaks one slide of the pending outline; billed per edit.
func (h *Handler) editOutlineSlide(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid slide number"})
		return
	}
	var req editOutlineSlideReq
	if err := c.ShouldBindJSON(&req); err != nil || (req.Title == "" && len(req.Bullets) == 0) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "title or bullets required"})
		return
	}
	deck, ok := h.loadDeck(c)
	if !ok {
		return
	}

	updated, err := h.editor.EditSlide(c.Request.Context(), deck.ID, deck.UserID, number, req.Title, req.Bullets)
	if err != nil {
		switch {
		case errors.Is(err, outline.ErrNoPending):
			c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "no pending outline"})
		case errors.Is(err, credits.ErrInsufficientCredit):
			c.JSON(http.StatusPaymentRequired, gin.H{"ok": false, "error": "not enough credits"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "outline": updated})
}

func (h *Handler) discardOutline(c *gin.Context) {
	deck, ok := h.loadDeck(c)
	if !ok {
		return
	}
	if err := h.outlines.ClearPending(c.Request.Context(), deck.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) validationNext(c *gin.Context) {
	deck, ok := h.loadDeck(c)
	if !ok {
		return
	}
	item, err := h.validations.Next(deck.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "nothing awaiting validation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "item": item, "pending": h.validations.PendingCount(deck.ID)})
}

func (h *Handler) validate(c *gin.Context) {
	var req validationReq
	if err := c.ShouldBindJSON(&req); err != nil || req.SlideID == "" || req.Decision == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "slide_id and decision are required"})
		return
	}
	deck, ok := h.loadDeck(c)
	if !ok {
		return
	}

	item, err := h.validations.Process(deck.ID, req.SlideID, validation.Decision(req.Decision), req.Content)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
		return
	}

	if item.State == validation.StateEdited {
		if err := h.persistEdit(c.Request.Context(), deck.ID, req.SlideID, item.Content); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "item": item, "pending": h.validations.PendingCount(deck.ID)})
}

// persistEdit writes edited validation content back onto the slide row,
// keeping the title and recomputing the hash.
func (h *Handler) persistEdit(ctx context.Context, deckID, slideID, content string) error {
	slides, err := h.repo.ListSlides(ctx, deckID)
	if err != nil {
		return err
	}
	for _, s := range slides {
		if s.ID == slideID {
			return h.repo.UpdateSlideContent(ctx, s.ID, s.Title, content, s.SpeakerNotes,
				deckstore.HashContent(s.Title, content))
		}
	}
	return deckstore.ErrSlideNotFound
}

func (h *Handler) respondInteraction(c *gin.Context) {
	var req interactionReq
	if err := c.ShouldBindJSON(&req); err != nil || req.ContextID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "context_id is required"})
		return
	}
	if _, ok := h.loadDeck(c); !ok {
		return
	}
	accepted := h.interactions.Respond(req.ContextID, req.Value)
	c.JSON(http.StatusOK, gin.H{"ok": true, "accepted": accepted})
}

func (h *Handler) loadDeck(c *gin.Context) (*deckstore.Deck, bool) {
	deck, err := h.repo.Get(c.Request.Context(), c.GetString("user_id"), c.Param("id"))
	if err != nil {
		if errors.Is(err, deckstore.ErrDeckNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "deck not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		}
		return nil, false
	}
	return deck, true
}

func (h *Handler) loadProfile(c *gin.Context, deck *deckstore.Deck) *profiles.Profile {
	if deck.ProfileID == nil || h.profileRepo == nil {
		return nil
	}
	profile, err := h.profileRepo.Get(c.Request.Context(), deck.UserID, *deck.ProfileID)
	if err != nil {
		logging.NewLogger(c.Request.Context()).LogWarnf("deck_profile", "deck_id=%s profile_id=%s %v",
			deck.ID, *deck.ProfileID, err)
		return nil
	}
	return profile
}

// detach carries the request ID into background work that outlives the
// request.
func detach(c *gin.Context) context.Context {
	return logging.WithRequestID(context.Background(), c.GetString("request_id"))
}
