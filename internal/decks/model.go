package decks

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

// Deck statuses.
type Status string

const (
	StatusEmpty      Status = "EMPTY"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Slide type tags produced by outline planning.
const (
	TypeTitle    = "title"
	TypeContent  = "content"
	TypeSection  = "section"
	TypeQuote    = "quote"
	TypeChart    = "chart"
	TypeTable    = "table"
	TypeThankYou = "thankyou"
)

var (
	ErrDeckNotFound  = errors.New("deck not found")
	ErrSlideNotFound = errors.New("slide not found")
)

// Deck owns an ordered set of slides; slides are replaced wholesale on
// regeneration.
type Deck struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Topic       string    `json:"topic"`
	Status      Status    `json:"status"`
	ProfileID   *string   `json:"profile_id,omitempty"`
	ThemeID     string    `json:"theme_id,omitempty"`
	Tier        int       `json:"tier"`
	AutoApprove bool      `json:"auto_approve"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Slide is one realized content unit, numbered 1..N contiguously.
type Slide struct {
	ID           string    `json:"id"`
	DeckID       string    `json:"deck_id"`
	Number       int       `json:"number"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	SpeakerNotes string    `json:"speaker_notes,omitempty"`
	ImagePrompt  string    `json:"image_prompt,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	ContentHash  string    `json:"content_hash"`
	Section      string    `json:"section,omitempty"`
	SlideType    string    `json:"slide_type"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is one deck chat turn; structured payloads ride along for
// recovery artifacts such as pending outlines.
type Message struct {
	ID        string          `json:"id"`
	DeckID    string          `json:"deck_id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Kind      string          `json:"kind,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// HashContent fingerprints slide content for change detection.
func HashContent(title, body string) string {
	sum := sha256.Sum256([]byte(title + "\n" + body))
	return hex.EncodeToString(sum[:])
}
