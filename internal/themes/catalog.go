package themes

import "errors"

// Theme pairs a palette with fonts. The visual asset catalog proper lives in
// another service; the pipeline only needs ids resolved to palettes.
type Theme struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Palette     []string `json:"palette"`
	HeadingFont string   `json:"heading_font"`
	BodyFont    string   `json:"body_font"`
}

var ErrUnknownTheme = errors.New("unknown theme")

// DefaultID is used when neither the deck nor the user picked a theme.
const DefaultID = "minimal"

var catalog = []Theme{
	{ID: "minimal", Name: "Minimal", Palette: []string{"#111827", "#6B7280", "#F9FAFB"}, HeadingFont: "Inter", BodyFont: "Inter"},
	{ID: "bold", Name: "Bold", Palette: []string{"#0F172A", "#F59E0B", "#FFFFFF"}, HeadingFont: "Archivo Black", BodyFont: "Inter"},
	{ID: "corporate", Name: "Corporate", Palette: []string{"#1E3A5F", "#2E86AB", "#F0F4F8"}, HeadingFont: "IBM Plex Sans", BodyFont: "IBM Plex Sans"},
	{ID: "warm", Name: "Warm", Palette: []string{"#7C2D12", "#EA580C", "#FFF7ED"}, HeadingFont: "Fraunces", BodyFont: "Source Sans Pro"},
}

// Catalog resolves theme ids for the pipeline.
type Catalog struct{}

func NewCatalog() *Catalog { return &Catalog{} }

// Get returns the theme for id, or ErrUnknownTheme.
func (c *Catalog) Get(id string) (Theme, error) {
	for _, t := range catalog {
		if t.ID == id {
			return t, nil
		}
	}
	return Theme{}, ErrUnknownTheme
}

// IDs lists the selectable theme ids, default first.
func (c *Catalog) IDs() []string {
	out := make([]string, 0, len(catalog))
	for _, t := range catalog {
		out = append(out, t.ID)
	}
	return out
}
