package review

import (
	"strings"
	"unicode/utf8"

	"github.com/slideforge/slideforge-backend/internal/profiles"
)

// bulletLines splits a slide body into its non-empty lines; each line is one
// bullet for density purposes.
func bulletLines(body string) []string {
	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

// PassesDensity is the programmatic precheck that lets the pipeline skip a
// model review when the slide is plainly within limits.
func PassesDensity(body string, limits profiles.DensityLimits) bool {
	lines := bulletLines(body)
	if len(lines) > limits.MaxBullets {
		return false
	}
	for _, l := range lines {
		if utf8.RuneCountInString(strings.TrimSpace(l)) > limits.MaxCharsPerBullet {
			return false
		}
	}
	return true
}

// TruncateToDensity trims a slide body down to its density limits: excess
// bullets are dropped, over-long bullets are cut with an ellipsis. Limits
// count runes, so multi-byte text is never cut mid-character.
func TruncateToDensity(body string, limits profiles.DensityLimits) string {
	lines := bulletLines(body)
	if len(lines) > limits.MaxBullets {
		lines = lines[:limits.MaxBullets]
	}
	for i, l := range lines {
		trimmed := strings.TrimSpace(l)
		if runes := []rune(trimmed); len(runes) > limits.MaxCharsPerBullet {
			lines[i] = string(runes[:limits.MaxCharsPerBullet-1]) + "…"
		} else {
			lines[i] = trimmed
		}
	}
	return strings.Join(lines, "\n")
}
