package search

import (
	"fmt"
	"testing"

	"github.com/hyperjump/rankd/internal/models"
)

func results(prefix string, n int, semantic float64) []*models.ScoredResult {
	out := make([]*models.ScoredResult, n)
	for i := range out {
		out[i] = &models.ScoredResult{
			Document:      &models.Document{ID: fmt.Sprintf("%s%d", prefix, i)},
			FinalScore:    float64(n - i),
			SemanticScore: semantic,
		}
	}
	return out
}

func TestBlend_Proportions(t *testing.T) {
	lex := results("l", 20, 0)
	sem := results("s", 20, 0.9)

	got := Blend(lex, sem, 10, 0.3, 0.3)
	if len(got) != 10 {
		t.Fatalf("len = %d, want 10", len(got))
	}
	for i := 0; i < 7; i++ {
		if got[i].Document.ID != fmt.Sprintf("l%d", i) {
			t.Errorf("position %d = %s, want lexical l%d", i, got[i].Document.ID, i)
		}
	}
	for i := 7; i < 10; i++ {
		if got[i].SemanticScore == 0 {
			t.Errorf("position %d should be semantic", i)
		}
	}
}

func TestBlend_Dedup(t *testing.T) {
	lex := results("x", 5, 0)
	sem := []*models.ScoredResult{
		{Document: &models.Document{ID: "x0"}, SemanticScore: 0.9},
		{Document: &models.Document{ID: "new"}, SemanticScore: 0.8},
	}
	got := Blend(lex, sem, 10, 0.5, 0.1)
	ids := make(map[string]int)
	for _, r := range got {
		ids[r.Document.ID]++
	}
	if ids["x0"] != 1 {
		t.Errorf("x0 appears %d times", ids["x0"])
	}
	if ids["new"] != 1 {
		t.Error("expected semantic-only result")
	}
}

func TestBlend_Threshold(t *testing.T) {
	sem := []*models.ScoredResult{
		{Document: &models.Document{ID: "low"}, SemanticScore: 0.2},
		{Document: &models.Document{ID: "high"}, SemanticScore: 0.6},
	}
	got := Blend(nil, sem, 10, 0.5, 0.5)
	if len(got) != 1 || got[0].Document.ID != "high" {
		t.Errorf("got %v", got)
	}
}

func TestBlend_LengthNeverExceedsLimit(t *testing.T) {
	for _, limit := range []int{1, 3, 7, 10, 25} {
		for _, bf := range []float64{0, 0.1, 0.3, 0.5, 0.99, 1} {
			got := Blend(results("l", 30, 0), results("s", 30, 1), limit, bf, 0)
			if len(got) > limit {
				t.Errorf("limit=%d bf=%v: len=%d", limit, bf, len(got))
			}
			// Lexical results always precede semantic-only ones.
			sawSemantic := false
			for _, r := range got {
				if r.SemanticScore > 0 {
					sawSemantic = true
				} else if sawSemantic {
					t.Fatalf("limit=%d bf=%v: lexical after semantic", limit, bf)
				}
			}
		}
	}
	if Blend(results("l", 3, 0), nil, 0, 0.3, 0) != nil {
		t.Error("zero limit should return nil")
	}
}

func TestBackfill(t *testing.T) {
	lex := results("l", 10, 0)
	blended := Blend(lex, results("s", 1, 0.9), 10, 0.3, 0.3)
	if len(blended) != 8 {
		t.Fatalf("Blend len = %d, want 8", len(blended))
	}
	got := backfill(blended, lex, 10)
	if len(got) != 10 {
		t.Fatalf("len = %d, want 10", len(got))
	}
	for i := 0; i < 9; i++ {
		if got[i].Document.ID != fmt.Sprintf("l%d", i) {
			t.Errorf("position %d = %s, want l%d", i, got[i].Document.ID, i)
		}
	}
	if got[9].Document.ID != "s0" {
		t.Errorf("semantic result should close the page, got %s", got[9].Document.ID)
	}

	short := results("l", 2, 0)
	if got := backfill(Blend(short, nil, 10, 0.3, 0), short, 10); len(got) != 2 {
		t.Errorf("nothing left to backfill, got %d", len(got))
	}
}
