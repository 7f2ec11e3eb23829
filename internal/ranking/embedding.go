// internal/ranking/embedding.go
package ranking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"querydesk/internal/common/httpclient"
	"querydesk/internal/models"
)

var (
	ErrEmbeddingAPITimeout = errors.New("EMBEDDING_API_TIMEOUT")
	ErrEmbeddingAPIFailed  = errors.New("EMBEDDING_API_FAILED")
)

// EmbeddingScorer scores documents by cosine similarity between the query
// embedding and each document embedding, fetched from an HTTP embedding
// service in a single batch call.
type EmbeddingScorer struct {
	baseURL    string
	apiKey     string
	client     *httpclient.Client
	maxRetries int
}

type embeddingRequest struct {
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func NewEmbeddingScorer(baseURL, apiKey string, timeout time.Duration, maxRetries int) *EmbeddingScorer {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &EmbeddingScorer{
		baseURL:    baseURL,
		apiKey:     apiKey,
		client:     httpclient.NewClient(timeout),
		maxRetries: maxRetries,
	}
}

func (s *EmbeddingScorer) Score(ctx context.Context, query string, docs []models.Document) ([]float64, error) {
	input := make([]string, 0, len(docs)+1)
	input = append(input, query)
	for _, doc := range docs {
		text := doc.Title()
		if body := doc.Body(); body != "" {
			if text != "" {
				text += " "
			}
			text += body
		}
		input = append(input, text)
	}

	embeddings, err := s.fetchEmbeddings(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(input) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingAPIFailed, len(input), len(embeddings))
	}

	queryVec := embeddings[0]
	scores := make([]float64, len(docs))
	for i := range docs {
		scores[i] = cosineSimilarity(queryVec, embeddings[i+1])
	}
	return scores, nil
}

func (s *EmbeddingScorer) fetchEmbeddings(ctx context.Context, input []string) ([][]float64, error) {
	body, err := json.Marshal(embeddingRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ErrEmbeddingAPITimeout
			case <-time.After(time.Duration(100*(1<<attempt)) * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/embeddings", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if s.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+s.apiKey)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrEmbeddingAPITimeout
			}
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: status %d", ErrEmbeddingAPIFailed, resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, lastErr
			}
			continue
		}

		var parsed embeddingResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrEmbeddingAPIFailed, err)
			continue
		}
		return parsed.Embeddings, nil
	}

	return nil, lastErr
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
