// internal/ranking/ranker.go
package ranking

import (
	"context"
	"sort"

	"querydesk/internal/common/logger"
	"querydesk/internal/models"
)

// RelevanceScorer scores documents against a query. Scores are in [0, 1].
type RelevanceScorer interface {
	Score(ctx context.Context, query string, docs []models.Document) ([]float64, error)
}

// Config holds ranking thresholds.
type Config struct {
	Threshold  float64
	MinResults int
	Limit      int
}

// Ranker orders documents by relevance, keeps those above the threshold,
// and backfills up to MinResults from below the threshold so a thin result
// set still gives the user something to look at.
type Ranker struct {
	scorer   RelevanceScorer
	fallback RelevanceScorer
	cfg      Config
	log      logger.Logger
}

func New(scorer RelevanceScorer, cfg Config, log logger.Logger) *Ranker {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.MinResults <= 0 {
		cfg.MinResults = 2
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	lex := NewLexicalScorer()
	if scorer == nil {
		scorer = lex
	}
	return &Ranker{scorer: scorer, fallback: lex, cfg: cfg, log: log}
}

// Rank scores, filters, and orders docs for a query, tagging each result
// with source. Empty input yields an empty (non-nil) slice. Scorer failures
// degrade to the deterministic lexical scorer.
func (r *Ranker) Rank(ctx context.Context, docs []models.Document, query string, source models.SourceTag) []models.RankedDocument {
	if len(docs) == 0 {
		return []models.RankedDocument{}
	}

	scores, err := r.scorer.Score(ctx, query, docs)
	if err != nil || len(scores) != len(docs) {
		r.log.Warn("relevance scorer failed, using lexical fallback", map[string]interface{}{
			"error": errString(err),
			"docs":  len(docs),
		})
		scores, err = r.fallback.Score(ctx, query, docs)
		if err != nil || len(scores) != len(docs) {
			return []models.RankedDocument{}
		}
	}

	ranked := make([]models.RankedDocument, len(docs))
	for i, doc := range docs {
		ranked[i] = models.RankedDocument{Document: doc, Score: scores[i], Source: source}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	cut := len(ranked)
	for i, rd := range ranked {
		if rd.Score < r.cfg.Threshold {
			cut = i
			break
		}
	}

	// Backfill below-threshold results up to the floor.
	floor := r.cfg.MinResults
	if floor > len(ranked) {
		floor = len(ranked)
	}
	if cut < floor {
		cut = floor
	}
	if cut > r.cfg.Limit {
		cut = r.cfg.Limit
	}

	return ranked[:cut]
}

func errString(err error) string {
	if err == nil {
		return "short score vector"
	}
	return err.Error()
}
