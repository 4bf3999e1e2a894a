package generation

import (
	"math"

	"github.com/slideforge/slideforge-backend/internal/decks"
)

// Slide types whose layout the user may pick; everything else is exempt from
// the layout interaction.
var layoutChoiceTypes = map[string]bool{
	decks.TypeChart: true,
	decks.TypeTable: true,
}

func needsLayoutChoice(slideType string) bool { return layoutChoiceTypes[slideType] }

func layoutOptions(slideType string) []string {
	switch slideType {
	case decks.TypeChart:
		return []string{"bar", "line", "pie"}
	case decks.TypeTable:
		return []string{"comparison", "matrix", "two-column"}
	default:
		return nil
	}
}

func defaultLayout(slideType string) string {
	switch slideType {
	case decks.TypeChart:
		return "bar"
	case decks.TypeTable:
		return "comparison"
	default:
		return ""
	}
}

// Decorative slide types skip the content review entirely.
var decorativeTypes = map[string]bool{
	decks.TypeTitle:    true,
	decks.TypeSection:  true,
	decks.TypeQuote:    true,
	decks.TypeThankYou: true,
}

func decorative(slideType string) bool { return decorativeTypes[slideType] }

// slideCeiling bounds total slide count: planned count with split headroom,
// capped by the tier maximum. Floored, so the total never exceeds
// factor×planned.
func slideCeiling(planned int, factor float64, tierMax int) int {
	ceil := int(math.Floor(float64(planned) * factor))
	if ceil > tierMax {
		return tierMax
	}
	return ceil
}
