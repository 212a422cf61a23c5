// Package knowledge abstracts the retrieval-augmented knowledge search
// collaborator the Planner consults when synthesizing a plan (spec §3
// external collaborators). InMemory provides a small deterministic
// implementation suitable for tests and demos.
package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type (
	// Document is one retrievable unit of knowledge.
	Document struct {
		ID      string
		Title   string
		Content string
		Score   float64
	}

	// Searcher is the interface the Planner node depends on.
	Searcher interface {
		Search(ctx context.Context, query string, k int) ([]Document, error)
	}
)

// InMemory is a naive term-overlap Searcher backed by an in-process corpus.
// It exists for tests and local demos; production deployments are expected
// to supply a Searcher backed by a real vector or full-text index.
type InMemory struct {
	mu   sync.RWMutex
	docs []Document
}

// NewInMemory returns an empty InMemory searcher.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// Add appends a document to the corpus.
func (m *InMemory) Add(doc Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, doc)
}

// Search scores every document by the fraction of query terms it contains
// and returns the top k by score, descending.
func (m *InMemory) Search(_ context.Context, query string, k int) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))
	scored := make([]Document, 0, len(m.docs))
	for _, d := range m.docs {
		hay := strings.ToLower(d.Title + " " + d.Content)
		var hits int
		for _, term := range terms {
			if strings.Contains(hay, term) {
				hits++
			}
		}
		if hits == 0 || len(terms) == 0 {
			continue
		}
		d.Score = float64(hits) / float64(len(terms))
		scored = append(scored, d)
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}
