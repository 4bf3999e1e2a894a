package main

import (
	"context"
	"database/sql"
	"log"

	_ "github.com/lib/pq"

	"github.com/slideforge/slideforge-backend/config"
	"github.com/slideforge/slideforge-backend/internal/bootstrap"
	"github.com/slideforge/slideforge-backend/internal/llm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[fatal] config: %v", err)
	}
	bootstrap.SetGinMode(cfg.App.Environment)

	ctx := context.Background()

	db, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{DSN: cfg.Database.DSN()})
	if err != nil {
		log.Fatalf("[fatal] postgres: %v", err)
	}
	defer db.Close()

	// The credit ledger runs on database/sql for its transaction flow.
	creditsDB, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("[fatal] credits db: %v", err)
	}
	defer creditsDB.Close()
	if err := creditsDB.PingContext(ctx); err != nil {
		log.Fatalf("[fatal] credits db ping: %v", err)
	}

	rdb, err := bootstrap.OpenRedis(ctx, bootstrap.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatalf("[fatal] redis: %v", err)
	}
	defer rdb.Close()

	client, err := llm.NewOpenAIClient(llm.Options{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		RequestTimeout: cfg.LLM.RequestTimeout,
		RequestsPerSec: cfg.LLM.RequestsPerSec,
	})
	if err != nil {
		log.Fatalf("[fatal] llm client: %v", err)
	}

	store, err := bootstrap.LoadKnowledge(cfg.App.SnippetsDir)
	if err != nil {
		log.Printf("[warn] knowledge snippets: %v", err)
	}

	r := bootstrap.BuildRouter(bootstrap.RouterDeps{
		Cfg:       cfg,
		DB:        db,
		CreditsDB: creditsDB,
		Redis:     rdb,
		LLM:       client,
		Knowledge: store,
	})

	log.Printf("[info] listening on :%s env=%s", cfg.Server.Port, cfg.App.Environment)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("[fatal] server: %v", err)
	}
}
