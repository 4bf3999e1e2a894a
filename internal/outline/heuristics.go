package outline

import "strings"

var approvalPhrases = []string{
	"yes", "yep", "yeah", "ok", "okay", "sure",
	"approve", "approved", "looks good", "lgtm", "love it",
	"go ahead", "proceed", "do it", "ship it", "let's go", "confirm",
	"generate", "build it", "make it",
}

var retryPhrases = []string{
	"try again", "retry", "regenerate", "redo", "another one",
	"different", "not quite", "change it", "new outline", "start over",
}

func normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	return strings.Trim(s, " .!?")
}

// IsApproval reports whether the utterance reads as approving the pending
// outline. Phrase heuristics, deliberately permissive.
func IsApproval(text string) bool {
	s := normalize(text)
	if s == "" {
		return false
	}
	for _, p := range approvalPhrases {
		if s == p || strings.HasPrefix(s, p+" ") || strings.HasPrefix(s, p+",") {
			return true
		}
	}
	return false
}

// IsRetryRequest reports whether the utterance asks for a fresh outline.
func IsRetryRequest(text string) bool {
	s := normalize(text)
	if s == "" {
		return false
	}
	for _, p := range retryPhrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
