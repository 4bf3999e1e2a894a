package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const structuredInstruction = `Respond with the requested JSON object only. ` +
	`No prose, no markdown fences, no commentary before or after the JSON.`

const parseCorrection = `Your previous reply was not valid JSON (%v). ` +
	`Reply again with only the corrected JSON object.`

const validateCorrection = `Your previous reply parsed but failed validation: %v. ` +
	`Reply again with only the corrected JSON object.`

// Params configures one structured completion.
type Params[T any] struct {
	Model      string
	Messages   []Message
	Validate   func(T) error
	MaxRetries int
	CacheHint  string
}

// CompleteStructured asks the model for a JSON-shaped reply and decodes it
// into T. Parse or validation failures re-prompt with the faulty reply plus a
// corrective instruction, sharing a single retry budget; the budget exhausted
// means ContractViolation. Provider failures retry with exponential backoff
// instead of content correction.
func CompleteStructured[T any](ctx context.Context, c Client, p Params[T]) (T, error) {
	var zero T

	msgs := make([]Message, 0, len(p.Messages)+1)
	msgs = append(msgs, p.Messages...)
	msgs = append(msgs, SystemMessage(structuredInstruction))

	maxAttempts := p.MaxRetries + 1
	backoff := time.Second
	providerTries := 0

	var lastRaw string
	var lastReason string

	for attempt := 0; attempt < maxAttempts; {
		raw, err := c.Complete(ctx, Request{Model: p.Model, Messages: msgs, CacheHint: p.CacheHint})
		if err != nil {
			var perr *ProviderError
			if errors.As(err, &perr) && providerTries < p.MaxRetries {
				providerTries++
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return zero, ctx.Err()
				}
				backoff *= 2
				continue
			}
			return zero, err
		}

		attempt++
		lastRaw = raw

		var out T
		if err := json.Unmarshal([]byte(StripFences(raw)), &out); err != nil {
			lastReason = fmt.Sprintf("invalid JSON: %v", err)
			msgs = append(msgs, AssistantMessage(raw), UserMessage(fmt.Sprintf(parseCorrection, err)))
			continue
		}

		if p.Validate != nil {
			if err := p.Validate(out); err != nil {
				lastReason = fmt.Sprintf("validation failed: %v", err)
				msgs = append(msgs, AssistantMessage(raw), UserMessage(fmt.Sprintf(validateCorrection, err)))
				continue
			}
		}

		return out, nil
	}

	return zero, &ContractViolation{Attempts: maxAttempts, LastOutput: lastRaw, Reason: lastReason}
}

// StripFences removes incidental markdown code-fence wrapping around a JSON
// payload. Models add it despite instructions often enough to handle here.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
