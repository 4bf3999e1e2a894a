package credits

import (
	"context"
	"errors"
	"time"
)

// Reason tags why credits were held.
type Reason string

const (
	ReasonOutline     Reason = "outline_generation"
	ReasonDeck        Reason = "deck_generation"
	ReasonSlideEdit   Reason = "slide_outline_edit"
	ReasonChatMessage Reason = "chat_message"
)

// Reservation states. A reservation reaches exactly one terminal state.
const (
	StateReserved  = "RESERVED"
	StateCommitted = "COMMITTED"
	StateReleased  = "RELEASED"
)

var (
	ErrInsufficientCredit  = errors.New("insufficient credit")
	ErrReservationNotFound = errors.New("reservation not found or already finalized")
)

// Reservation is a two-phase hold against a user's balance.
type Reservation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Reason    Reason    `json:"reason"`
	SubjectID string    `json:"subject_id"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ledger is what billable operations program against: reserve before the
// work, commit on success, release on every failure path.
type Ledger interface {
	Reserve(ctx context.Context, userID string, amount int64, reason Reason, subjectID string) (string, error)
	Commit(ctx context.Context, reservationID string) error
	Release(ctx context.Context, reservationID string) error
}
