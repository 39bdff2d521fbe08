package sessions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/yaya56vv/cortex/internal/rag/embeddings"
	"github.com/yaya56vv/cortex/pkg/models"
)

// Search ranks stored messages against the query. Case-insensitive substring
// matches always qualify; with an embedding provider configured every
// candidate is also scored by cosine similarity and similarity hits qualify
// on their own. Results order by similarity, then recency, capped at topK.
// A provider outage degrades the search to substring matching.
func (s *FileStore) Search(ctx context.Context, query, sessionID string, topK int) ([]models.MemorySearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("sessions: query is required")
	}
	if topK <= 0 {
		topK = defaultSearchTopK
	}

	candidates, err := s.candidates(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []models.MemorySearchResult{}, nil
	}

	needle := strings.ToLower(query)
	sims := s.similarities(ctx, query, candidates)

	results := make([]models.MemorySearchResult, 0, len(candidates))
	for i, cand := range candidates {
		substring := strings.Contains(strings.ToLower(cand.message.Content), needle)
		sim := 0.0
		if sims != nil {
			sim = sims[i]
		}
		if !substring && sim <= 0 {
			continue
		}
		results = append(results, models.MemorySearchResult{
			SessionID:  cand.sessionID,
			Message:    cand.message,
			Similarity: sim,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Message.Timestamp.After(results[j].Message.Timestamp)
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

type candidate struct {
	sessionID string
	message   models.SessionMessage
}

// candidates flattens the messages under search: one session's when an id is
// given, every session's otherwise.
func (s *FileStore) candidates(ctx context.Context, sessionID string) ([]candidate, error) {
	if strings.TrimSpace(sessionID) != "" {
		id := SanitizeID(sessionID)
		session, err := s.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, nil
		}
		out := make([]candidate, len(session.Messages))
		for i, m := range session.Messages {
			out[i] = candidate{sessionID: id, message: m}
		}
		return out, nil
	}
	var out []candidate
	s.walk(func(path, location string) {
		session, err := s.load(path)
		if err != nil {
			return
		}
		for _, m := range session.Messages {
			out = append(out, candidate{sessionID: session.SessionID, message: m})
		}
	})
	return out, nil
}

// similarities embeds the query and the uncached candidate texts, batched up
// to the provider's limit, and returns one cosine score per candidate. It
// returns nil when no provider is configured or the provider fails, which
// callers treat as "substring matching only".
func (s *FileStore) similarities(ctx context.Context, query string, candidates []candidate) []float64 {
	if s.embedder == nil {
		return nil
	}

	queryVec, err := s.embedText(ctx, query)
	if err != nil {
		s.logger.Warn("similarity ranking unavailable", "error", err)
		return nil
	}

	var missing []string
	seen := map[string]bool{}
	for _, cand := range candidates {
		text := cand.message.Content
		if _, ok := s.vectors.Get(text); !ok && !seen[text] {
			seen[text] = true
			missing = append(missing, text)
		}
	}
	batchSize := s.embedder.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = 1
	}
	for start := 0; start < len(missing); start += batchSize {
		end := start + batchSize
		if end > len(missing) {
			end = len(missing)
		}
		vectors, err := s.embedder.EmbedBatch(ctx, missing[start:end])
		if err != nil {
			s.logger.Warn("similarity ranking unavailable", "error", err)
			return nil
		}
		for i, vec := range vectors {
			s.vectors.Put(missing[start+i], vec)
		}
	}

	sims := make([]float64, len(candidates))
	for i, cand := range candidates {
		if vec, ok := s.vectors.Get(cand.message.Content); ok {
			if sim := embeddings.Cosine(queryVec, vec); sim > 0 {
				sims[i] = sim
			}
		}
	}
	return sims
}

func (s *FileStore) embedText(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := s.vectors.Get(text); ok {
		return vec, nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.vectors.Put(text, vec)
	return vec, nil
}
