package search

import (
	"math"

	"github.com/hyperjump/rankd/internal/models"
)

// Blend merges ranked lexical results with semantic-only results.
// The top ceil(limit*(1-blendFactor)) lexical results are kept verbatim, then up to
// floor(limit*blendFactor) semantic results are appended, skipping ids already present
// and those scoring below minSemanticScore. Semantic input is assumed sorted best first.
func Blend(lexical, semantic []*models.ScoredResult, limit int, blendFactor, minSemanticScore float64) []*models.ScoredResult {
	if limit <= 0 {
		return nil
	}
	blendFactor = math.Max(0, math.Min(1, blendFactor))
	keep := int(math.Ceil(float64(limit) * (1 - blendFactor)))
	add := int(math.Floor(float64(limit) * blendFactor))

	out := make([]*models.ScoredResult, 0, limit)
	seen := make(map[string]bool, limit)
	for _, r := range lexical {
		if len(out) >= keep {
			break
		}
		if seen[r.Document.ID] {
			continue
		}
		seen[r.Document.ID] = true
		out = append(out, r)
	}

	added := 0
	for _, r := range semantic {
		if added >= add || len(out) >= limit {
			break
		}
		if seen[r.Document.ID] || r.SemanticScore < minSemanticScore {
			continue
		}
		seen[r.Document.ID] = true
		out = append(out, r)
		added++
	}
	return out
}

// backfill fills slots Blend left empty with the remaining lexical results,
// keeping every lexical result ahead of the semantic-only ones.
func backfill(blended, lexical []*models.ScoredResult, limit int) []*models.ScoredResult {
	if len(blended) >= limit {
		return blended
	}
	fromLexical := make(map[string]bool, len(lexical))
	for _, r := range lexical {
		fromLexical[r.Document.ID] = true
	}
	var lex, sem []*models.ScoredResult
	present := make(map[string]bool, limit)
	for _, r := range blended {
		present[r.Document.ID] = true
		if fromLexical[r.Document.ID] {
			lex = append(lex, r)
		} else {
			sem = append(sem, r)
		}
	}
	for _, r := range lexical {
		if len(lex)+len(sem) >= limit {
			break
		}
		if !present[r.Document.ID] {
			present[r.Document.ID] = true
			lex = append(lex, r)
		}
	}
	return append(lex, sem...)
}
