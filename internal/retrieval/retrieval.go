package retrieval

import "context"

// Candidate is one knowledge-base snippet returned by a similarity search.
// Distance is dissimilarity in [0,1]: 0 means an exact semantic match.
type Candidate struct {
	SnippetID string
	Title     string
	Text      string
	Tags      []string
	Distance  float64
}

// Retriever is the knowledge-base gateway consumed by the answer pipeline.
// Implementations own their timeouts via ctx; the pipeline never retries.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Candidate, error)
}

func Distances(candidates []Candidate) []float64 {
	if len(candidates) == 0 {
		return nil
	}
	distances := make([]float64, len(candidates))
	for i, c := range candidates {
		distances[i] = c.Distance
	}
	return distances
}
