package llm

import "fmt"

// ProviderError marks failures at the provider level (timeout, rate limit,
// upstream outage). Callers retry these with backoff rather than with a
// content correction.
type ProviderError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ContractViolation means the model never produced output that parsed and
// validated within the retry budget.
type ContractViolation struct {
	Attempts   int
	LastOutput string
	Reason     string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("structured output contract violated after %d attempts: %s", e.Attempts, e.Reason)
}
