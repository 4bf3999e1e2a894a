package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/slideforge/slideforge-backend/internal/metrics"
)

// Options configures the OpenAI-backed client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	RequestTimeout time.Duration
	RequestsPerSec float64
}

// OpenAIClient implements Client using the official openai-go SDK
// (chat completions).
type OpenAIClient struct {
	opts    []option.RequestOption
	model   string
	timeout time.Duration
	limiter *rate.Limiter
}

func NewOpenAIClient(o Options) (*OpenAIClient, error) {
	if o.APIKey == "" {
		return nil, errors.New("openai api key missing; set LLM_API_KEY")
	}
	if o.Model == "" {
		return nil, errors.New("llm model is required")
	}
	if o.RequestTimeout == 0 {
		o.RequestTimeout = 120 * time.Second
	}
	if o.RequestsPerSec <= 0 {
		o.RequestsPerSec = 4
	}

	opts := []option.RequestOption{option.WithAPIKey(o.APIKey)}
	if o.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(o.BaseURL))
	}

	return &OpenAIClient{
		opts:    opts,
		model:   o.Model,
		timeout: o.RequestTimeout,
		limiter: rate.NewLimiter(rate.Limit(o.RequestsPerSec), 1),
	}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = c.model
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	callOpts := c.opts
	if req.CacheHint != "" {
		callOpts = append(append([]option.RequestOption{}, c.opts...),
			option.WithHeaderAdd("X-Prompt-Cache-Key", req.CacheHint))
	}

	client := openai.NewClient(callOpts...)

	start := time.Now()
	resp, err := client.Chat.Completions.New(cctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	})
	metrics.RecordProviderCall(time.Since(start), err)
	if err != nil {
		return "", classifyProviderError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Op: "chat.completions", Err: errors.New("empty choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyProviderError maps transport and rate-limit failures onto
// ProviderError; other API errors surface as-is.
func classifyProviderError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == 429 || apierr.StatusCode == 408 || apierr.StatusCode >= 500 {
			return &ProviderError{Op: "chat.completions", StatusCode: apierr.StatusCode, Err: err}
		}
		return fmt.Errorf("chat.completions: %w", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Op: "chat.completions", Err: err}
	}

	return fmt.Errorf("chat.completions: %w", err)
}
