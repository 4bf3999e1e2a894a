package knowledge

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Snippet is one ranked piece of retrieved context.
type Snippet struct {
	SourceID string  `json:"source_id"`
	Title    string  `json:"title"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

// Retriever is the knowledge collaborator: topic text in, ranked snippets
// out. The real service lives elsewhere; this is its interface.
type Retriever interface {
	Retrieve(ctx context.Context, topic string, limit int) ([]Snippet, error)
}

type doc struct {
	id      string
	title   string
	content string
}

// Store is an in-process keyword-scored retriever over a snippets directory.
type Store struct {
	docs []doc
}

// Load reads .md and .txt files under dir into a Store.
func Load(dir string) (*Store, error) {
	s := &Store{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if ext := strings.ToLower(filepath.Ext(path)); ext != ".md" && ext != ".txt" {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		s.docs = append(s.docs, doc{id: path, title: title, content: string(b)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Retrieve scores documents by query-token hits and returns the top matches.
func (s *Store) Retrieve(_ context.Context, topic string, limit int) ([]Snippet, error) {
	if limit <= 0 {
		limit = 3
	}
	q := strings.ToLower(topic)

	out := make([]Snippet, 0, len(s.docs))
	for _, d := range s.docs {
		text := strings.ToLower(d.title + "\n" + d.content)
		hits := 0
		for _, tok := range strings.Fields(q) {
			if strings.Contains(text, tok) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		snip := d.content
		if len(snip) > 240 {
			snip = snip[:240] + "..."
		}
		out = append(out, Snippet{SourceID: d.id, Title: d.title, Text: snip, Score: float64(hits)})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
