package bootstrap

import "github.com/slideforge/slideforge-backend/internal/knowledge"

// LoadKnowledge reads the snippet corpus used to ground outline planning.
// An empty dir disables retrieval.
func LoadKnowledge(snippetsDir string) (*knowledge.Store, error) {
	if snippetsDir == "" {
		return nil, nil
	}
	return knowledge.Load(snippetsDir)
}
