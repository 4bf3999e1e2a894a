package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/slideforge/slideforge-backend/internal/decks"
	"github.com/slideforge/slideforge-backend/internal/logging"
	"github.com/slideforge/slideforge-backend/internal/themes"
)

// Formats the render service accepts.
var SupportedFormats = map[string]bool{
	"pptx": true,
	"pdf":  true,
	"html": true,
}

// Request is what the render service needs to produce a document.
type Request struct {
	DeckID string        `json:"deck_id"`
	Title  string        `json:"title"`
	Format string        `json:"format"`
	Theme  themes.Theme  `json:"theme"`
	Slides []decks.Slide `json:"slides"`
}

// JobStatus reports one export job.
type JobStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}

// Client talks to the export/render service. Rendering fidelity is that
// service's problem; this side only submits and polls.
type Client struct {
	baseURL       string
	defaultClient *http.Client
	renderClient  *http.Client // render submissions allow a longer timeout
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		defaultClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		renderClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Submit sends a deck off to be rendered.
func (c *Client) Submit(ctx context.Context, req Request) (*JobStatus, error) {
	logger := logging.NewLogger(ctx)

	if !SupportedFormats[req.Format] {
		return nil, fmt.Errorf("unsupported export format %q", req.Format)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal export request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/exports", bytes.NewReader(body))
	if err != nil {
		logger.LogError("export_submit", err)
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.renderClient.Do(httpReq)
	if err != nil {
		logger.LogError("export_submit", err)
		return nil, fmt.Errorf("export request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		logger.LogWarnf("export_submit", "render service returned status %d", resp.StatusCode)
		return nil, fmt.Errorf("render service status %d", resp.StatusCode)
	}

	var status JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode export response: %w", err)
	}
	return &status, nil
}

// Status polls one export job.
func (c *Client) Status(ctx context.Context, exportID string) (*JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/exports/"+exportID, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.defaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("export status failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("render service status %d", resp.StatusCode)
	}

	var status JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode export status: %w", err)
	}
	return &status, nil
}
