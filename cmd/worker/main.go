package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/slideforge/slideforge-backend/config"
	"github.com/slideforge/slideforge-backend/internal/bootstrap"
	"github.com/slideforge/slideforge-backend/internal/decks"
	"github.com/slideforge/slideforge-backend/internal/images"
)

// The worker process drains the image job queue and runs the retry janitor.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[fatal] config: %v", err)
	}
	if cfg.Generation.ImageServiceURL == "" {
		log.Fatal("[fatal] IMAGE_SERVICE_URL is not set; nothing to do")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{DSN: cfg.Database.DSN()})
	if err != nil {
		log.Fatalf("[fatal] postgres: %v", err)
	}
	defer db.Close()

	rdb, err := bootstrap.OpenRedis(ctx, bootstrap.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatalf("[fatal] redis: %v", err)
	}
	defer rdb.Close()

	queue := images.NewQueue(rdb)
	janitor := images.StartJanitor(queue)
	defer janitor.Stop()

	worker := images.NewWorker(queue, images.NewHTTPGenerator(cfg.Generation.ImageServiceURL), decks.NewRepo(db))

	log.Printf("[info] image worker running env=%s", cfg.App.Environment)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("[fatal] worker: %v", err)
	}
	log.Print("[info] image worker stopped")
}
