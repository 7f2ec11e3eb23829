// internal/ranking/lexical.go
package ranking

import (
	"context"
	"strings"

	"querydesk/internal/models"
)

// LexicalScorer is a deterministic token-overlap scorer used as the
// fallback when no embedding service is reachable. Score is the fraction
// of query tokens present in the document's title or body, with a small
// boost for title hits.
type LexicalScorer struct{}

func NewLexicalScorer() *LexicalScorer {
	return &LexicalScorer{}
}

func (s *LexicalScorer) Score(_ context.Context, query string, docs []models.Document) ([]float64, error) {
	queryTokens := tokenize(query)
	scores := make([]float64, len(docs))
	if len(queryTokens) == 0 {
		return scores, nil
	}

	for i, doc := range docs {
		title := tokenSet(tokenize(doc.Title()))
		body := tokenSet(tokenize(doc.Body()))

		var hits, titleHits int
		for _, tok := range queryTokens {
			if _, ok := title[tok]; ok {
				hits++
				titleHits++
				continue
			}
			if _, ok := body[tok]; ok {
				hits++
			}
		}

		score := float64(hits) / float64(len(queryTokens))
		score += 0.1 * float64(titleHits) / float64(len(queryTokens))
		if score > 1.0 {
			score = 1.0
		}
		scores[i] = score
	}

	return scores, nil
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
