package bootstrap

import (
	"database/sql"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/slideforge/slideforge-backend/config"
	httpapi "github.com/slideforge/slideforge-backend/internal/api/http"
	deckapi "github.com/slideforge/slideforge-backend/internal/api/http/decks"
	"github.com/slideforge/slideforge-backend/internal/api/http/middleware"
	profileapi "github.com/slideforge/slideforge-backend/internal/api/http/profiles"
	"github.com/slideforge/slideforge-backend/internal/chat"
	"github.com/slideforge/slideforge-backend/internal/credits"
	"github.com/slideforge/slideforge-backend/internal/decks"
	"github.com/slideforge/slideforge-backend/internal/export"
	"github.com/slideforge/slideforge-backend/internal/generation"
	"github.com/slideforge/slideforge-backend/internal/images"
	"github.com/slideforge/slideforge-backend/internal/interaction"
	"github.com/slideforge/slideforge-backend/internal/knowledge"
	"github.com/slideforge/slideforge-backend/internal/llm"
	"github.com/slideforge/slideforge-backend/internal/metrics"
	"github.com/slideforge/slideforge-backend/internal/outline"
	"github.com/slideforge/slideforge-backend/internal/profiles"
	"github.com/slideforge/slideforge-backend/internal/review"
	"github.com/slideforge/slideforge-backend/internal/stream"
	"github.com/slideforge/slideforge-backend/internal/themes"
	"github.com/slideforge/slideforge-backend/internal/validation"
)

type RouterDeps struct {
	Cfg       *config.Config
	DB        *pgxpool.Pool
	CreditsDB *sql.DB
	Redis     *redis.Client
	LLM       llm.Client
	Knowledge *knowledge.Store
}

// BuildRouter wires the whole pipeline behind the HTTP surface.
func BuildRouter(dep RouterDeps) *gin.Engine {
	cfg := dep.Cfg

	r := gin.Default()
	r.Use(cors.Default())

	healthHandler := httpapi.NewHealthHandler("slideforge-backend", cfg.App.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)
	r.GET("/internal/metrics", func(c *gin.Context) { c.JSON(200, metrics.Get().Snapshot()) })

	deckRepo := decks.NewRepo(dep.DB)
	profileRepo := profiles.NewRepo(dep.DB)
	ledger := credits.NewRepo(dep.CreditsDB)

	broker := stream.NewBroker(dep.Redis)
	interactions := interaction.NewGate(broker)
	validations := validation.NewGate()
	catalog := themes.NewCatalog()

	var retriever knowledge.Retriever
	if dep.Knowledge != nil {
		retriever = dep.Knowledge
	}
	outlines := outline.NewService(outline.Options{
		Client:     dep.LLM,
		Model:      cfg.LLM.Model,
		MaxRetries: cfg.LLM.MaxRetries,
		Retriever:  retriever,
		Ledger:     ledger,
		Cache:      outline.NewCache(dep.Redis, cfg.Outline.TTL, cfg.Outline.MaxEntries),
		Durable:    outline.NewMessageStore(deckRepo),
		Cost:       cfg.Credits.OutlineCost,
		EditCost:   cfg.Credits.SlideEditCost,
		MinSlides:  cfg.Outline.MinSlides,
		MaxSlides:  cfg.Outline.MaxSlides,
	})

	var imageQueue images.Enqueuer
	if cfg.Generation.ImageServiceURL != "" {
		imageQueue = images.NewQueue(dep.Redis)
	}

	orchestrator := generation.NewOrchestrator(generation.Options{
		Store:        deckRepo,
		Client:       dep.LLM,
		Model:        cfg.LLM.Model,
		MaxRetries:   cfg.LLM.MaxRetries,
		Ledger:       ledger,
		Interactions: interactions,
		Validations:  validations,
		Reviewer:     review.NewReviewer(dep.LLM, cfg.LLM.ReviewModel, cfg.LLM.MaxRetries),
		Ensemble:     review.NewEnsemble(dep.LLM, cfg.LLM.ReviewModel, cfg.LLM.MaxRetries),
		Themes:       catalog,
		Images:       imageQueue,
		Events:       broker,
		Generation:   cfg.Generation,
		DeckCost:     cfg.Credits.DeckCost,
	})

	var exporter chat.Exporter
	if cfg.Generation.ExportURL != "" {
		exporter = export.NewClient(cfg.Generation.ExportURL)
	}
	dispatcher := chat.NewDispatcher(chat.Options{
		Store:             deckRepo,
		Outlines:          outlines,
		Generator:         orchestrator,
		Exporter:          exporter,
		Client:            dep.LLM,
		Model:             cfg.LLM.Model,
		Ledger:            ledger,
		Themes:            catalog,
		Events:            broker,
		ChatMessageCost:   cfg.Credits.ChatMessageCost,
		FreeChatAllowance: cfg.Credits.FreeChatAllowance,
	})

	api := r.Group("/api/v1")
	api.Use(middleware.APIKeyMiddleware(cfg.Server.APIKey))
	api.Use(middleware.RequestIDMiddleware())
	api.Use(middleware.UserMiddleware())

	deckHandler := deckapi.New(deckapi.Deps{
		Repo:         deckRepo,
		ProfileRepo:  profileRepo,
		Chat:         dispatcher,
		Outlines:     outlines,
		Editor:       outlines,
		Generator:    orchestrator,
		Validations:  validations,
		Interactions: interactions,
		Events:       stream.SSEHandler(broker),
	})
	deckHandler.Register(api.Group("/decks"))
	profileapi.New(profileRepo).Register(api.Group("/profiles"))

	return r
}
