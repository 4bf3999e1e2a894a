package profiles

import (
	"fmt"
	"strings"
	"time"
)

// Density policy names as stored on a profile.
const (
	DensityConcise  = "concise"
	DensityBalanced = "balanced"
	DensityDetailed = "detailed"
)

// Profile is a strategy profile: how a deck should be pitched, not what it
// says. Injected into every generation prompt.
type Profile struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	Audience       string    `json:"audience"`
	Goal           string    `json:"goal"`
	Tone           string    `json:"tone"`
	Framework      string    `json:"framework"`
	Density        string    `json:"density"`
	ImageFrequency string    `json:"image_frequency"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PromptInjection renders the profile as prompt text for the model.
func (p *Profile) PromptInjection() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	if p.Audience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", p.Audience)
	}
	if p.Goal != "" {
		fmt.Fprintf(&b, "Goal: %s\n", p.Goal)
	}
	if p.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n", p.Tone)
	}
	if p.Framework != "" {
		fmt.Fprintf(&b, "Narrative framework: %s\n", p.Framework)
	}
	return strings.TrimRight(b.String(), "\n")
}

// DensityLimits are the per-slide content caps for a density policy.
type DensityLimits struct {
	MaxBullets        int
	MaxCharsPerBullet int
}

// Limits maps the profile density setting onto concrete caps.
func (p *Profile) Limits() DensityLimits {
	density := DensityBalanced
	if p != nil && p.Density != "" {
		density = p.Density
	}
	switch density {
	case DensityConcise:
		return DensityLimits{MaxBullets: 4, MaxCharsPerBullet: 90}
	case DensityDetailed:
		return DensityLimits{MaxBullets: 7, MaxCharsPerBullet: 180}
	default:
		return DensityLimits{MaxBullets: 5, MaxCharsPerBullet: 140}
	}
}
