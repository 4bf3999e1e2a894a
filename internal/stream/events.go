package stream

import (
	"context"
	"time"
)

// Type is the event-typed notification protocol spoken on a deck's channel.
type Type string

const (
	EventToken    Type = "token"
	EventDone     Type = "done"
	EventError    Type = "error"
	EventAction   Type = "action"
	EventThinking Type = "thinking"
	EventProgress Type = "progress"
)

// Well-known stages carried on progress/action events.
const (
	StageOutlineReady      = "outline_ready"
	StageSlideAdded        = "slide_added"
	StageSlideUpdated      = "slide_updated"
	StageValidationRequest = "validation_request"
	StageInteraction       = "interaction_request"
	StageQualityPass       = "quality_pass"
	StageExportReady       = "export_ready"
)

// Event is one frame on a deck's notification channel.
type Event struct {
	Type    Type           `json:"type"`
	Stage   string         `json:"stage,omitempty"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Ts      int64          `json:"ts"`
}

// NewEvent stamps an event with the current time.
func NewEvent(t Type, stage, message string, data map[string]any) Event {
	return Event{Type: t, Stage: stage, Message: message, Data: data, Ts: time.Now().Unix()}
}

// Publisher is the write side of the notification protocol.
type Publisher interface {
	Publish(ctx context.Context, deckID string, ev Event) error
}

// Nop is a Publisher that drops everything; handy for tests and workers.
type Nop struct{}

func (Nop) Publish(context.Context, string, Event) error { return nil }
