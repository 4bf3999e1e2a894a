package profiles

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/slideforge/slideforge-backend/internal/profiles"
)

// Repo is the strategy profile storage surface.
type Repo interface {
	Create(ctx context.Context, p *profiles.Profile) error
	Get(ctx context.Context, userID, profileID string) (*profiles.Profile, error)
	List(ctx context.Context, userID string) ([]profiles.Profile, error)
}

type Handler struct {
	repo Repo
}

func New(repo Repo) *Handler { return &Handler{repo: repo} }

func (h *Handler) Register(r gin.IRouter) {
	r.POST("", h.create)
	r.GET("", h.list)
	r.GET("/:id", h.get)
}

type createReq struct {
	Name           string `json:"name"`
	Audience       string `json:"audience"`
	Goal           string `json:"goal"`
	Tone           string `json:"tone"`
	Framework      string `json:"framework"`
	Density        string `json:"density"`
	ImageFrequency string `json:"image_frequency"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "name is required"})
		return
	}

	p := &profiles.Profile{
		UserID:         c.GetString("user_id"),
		Name:           strings.TrimSpace(req.Name),
		Audience:       req.Audience,
		Goal:           req.Goal,
		Tone:           req.Tone,
		Framework:      req.Framework,
		Density:        req.Density,
		ImageFrequency: req.ImageFrequency,
	}
	if err := h.repo.Create(c.Request.Context(), p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "profile": p})
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.repo.List(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "profiles": items})
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.repo.Get(c.Request.Context(), c.GetString("user_id"), c.Param("id"))
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "profile not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "profile": p})
}
