package docs

import (
	"context"
	"math"
	"sort"
)

// SearchResult is one retrieved chunk with its similarity score.
type SearchResult struct {
	Text  string
	Score float64
}

// Search embeds the query and ranks the user's chunks by cosine
// similarity, returning at most topK results at or above minScore.
// Without an embedder there is nothing to rank and the result is empty.
func (m *Manager) Search(ctx context.Context, userID, query string, topK int, minScore float64) ([]SearchResult, error) {
	if m.embedder == nil || query == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = 6
	}

	vectors, err := m.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	queryVec := vectors[0]

	chunks, err := m.store.ChunksByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		score := CosineSimilarity(queryVec, c.Embedding)
		if score >= minScore {
			results = append(results, SearchResult{Text: c.Text, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
