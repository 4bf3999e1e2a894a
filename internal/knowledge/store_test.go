package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSnippet(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestStore_Retrieve(t *testing.T) {
	dir := t.TempDir()
	writeSnippet(t, dir, "fundraising.md", "Series A fundraising decks lead with traction and market size.")
	writeSnippet(t, dir, "design.md", "Slide design basics: one idea per slide.")
	writeSnippet(t, dir, "ignored.json", `{"not": "indexed"}`)

	s, err := Load(dir)
	require.NoError(t, err)

	got, err := s.Retrieve(context.Background(), "series a fundraising traction", 3)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "fundraising", got[0].Title)
	assert.Greater(t, got[0].Score, 0.0)
}

func TestStore_RetrieveNoMatch(t *testing.T) {
	dir := t.TempDir()
	writeSnippet(t, dir, "design.md", "Slide design basics.")

	s, err := Load(dir)
	require.NoError(t, err)

	got, err := s.Retrieve(context.Background(), "quantum chromodynamics", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_RetrieveLimit(t *testing.T) {
	dir := t.TempDir()
	writeSnippet(t, dir, "a.md", "pitch pitch pitch")
	writeSnippet(t, dir, "b.md", "pitch pitch")
	writeSnippet(t, dir, "c.md", "pitch")

	s, err := Load(dir)
	require.NoError(t, err)

	got, err := s.Retrieve(context.Background(), "pitch", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
