package outline

import (
	"errors"
	"fmt"
)

// Slide is one planned slide in a proposed outline.
type Slide struct {
	Number  int      `json:"number"`
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
	Type    string   `json:"type"`
	Section string   `json:"section,omitempty"`
}

// Outline is a proposed, unexecuted slide plan awaiting approval. At most one
// pending outline exists per deck; execution consumes it.
type Outline struct {
	Title  string  `json:"title"`
	Slides []Slide `json:"slides"`
}

// Consumption outcomes recorded on the durable copy.
const (
	OutcomeExecuted  = "executed"
	OutcomeDiscarded = "discarded"
)

var ErrNoPending = errors.New("no pending outline")

// Validate checks the structural contract on a model-produced outline:
// non-empty title, slide count within [min,max], numbers contiguous from 1.
func (o Outline) Validate(minSlides, maxSlides int) error {
	if o.Title == "" {
		return errors.New("outline title is empty")
	}
	if len(o.Slides) < minSlides || len(o.Slides) > maxSlides {
		return fmt.Errorf("outline has %d slides, want between %d and %d", len(o.Slides), minSlides, maxSlides)
	}
	for i, s := range o.Slides {
		if s.Number != i+1 {
			return fmt.Errorf("slide %d numbered %d, want contiguous numbering from 1", i, s.Number)
		}
		if s.Title == "" {
			return fmt.Errorf("slide %d has no title", s.Number)
		}
	}
	return nil
}
