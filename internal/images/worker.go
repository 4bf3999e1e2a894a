package images

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
)

// Generator turns an image prompt into a hosted image URL.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SlideImageStore persists generated image URLs onto slides.
type SlideImageStore interface {
	UpdateSlideImage(ctx context.Context, slideID, imageURL string) error
}

// HTTPGenerator calls the external image service.
type HTTPGenerator struct {
	baseURL string
	client  *http.Client
}

func NewHTTPGenerator(baseURL string) *HTTPGenerator {
	return &HTTPGenerator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (g *HTTPGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	body, _ := json.Marshal(map[string]string{"prompt": prompt})
	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/images", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("image service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("image service returned status %d", resp.StatusCode)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode image response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("image service returned empty url")
	}
	return out.URL, nil
}

// Worker drains the image queue and writes results back onto slides.
type Worker struct {
	queue *Queue
	gen   Generator
	store SlideImageStore
}

func NewWorker(queue *Queue, gen Generator, store SlideImageStore) *Worker {
	return &Worker{queue: queue, gen: gen, store: store}
}

// Run processes jobs until the context ends.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := w.queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[error] operation=image_dequeue error=%v", err)
			continue
		}
		if job == nil {
			continue
		}

		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *Job) {
	url, err := w.gen.Generate(ctx, job.Prompt)
	if err != nil {
		log.Printf("[warn] operation=image_generate job_id=%s attempts=%d error=%v", job.ID, job.Attempts, err)
		if job.Attempts < 3 {
			if qerr := w.queue.MarkFailed(ctx, job); qerr != nil {
				log.Printf("[error] operation=image_park job_id=%s error=%v", job.ID, qerr)
			}
		}
		return
	}

	if err := w.store.UpdateSlideImage(ctx, job.SlideID, url); err != nil {
		log.Printf("[error] operation=image_persist job_id=%s slide_id=%s error=%v", job.ID, job.SlideID, err)
		return
	}
	log.Printf("[info] operation=image_done job_id=%s slide_id=%s", job.ID, job.SlideID)
}

// StartJanitor schedules the failed-job requeue pass. Returns the cron so the
// caller can Stop it on shutdown.
func StartJanitor(queue *Queue) *cron.Cron {
	c := cron.New()

	_, err := c.AddFunc("@every 5m", func() {
		n, err := queue.RequeueFailed(context.Background())
		if err != nil {
			log.Printf("[error] operation=image_janitor error=%v", err)
			return
		}
		if n > 0 {
			log.Printf("[info] operation=image_janitor requeued=%d", n)
		}
	})
	if err != nil {
		log.Printf("Failed to create cron job: %v", err)
		return c
	}

	c.Start()
	return c
}
