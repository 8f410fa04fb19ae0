package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/rankd/internal/cache"
	"github.com/hyperjump/rankd/internal/config"
	"github.com/hyperjump/rankd/internal/embedding"
	"github.com/hyperjump/rankd/internal/lexical"
	"github.com/hyperjump/rankd/internal/models"
	"github.com/hyperjump/rankd/internal/ranking"
	"github.com/hyperjump/rankd/internal/storage"
)

// Runs the engine against a real SQLite file instead of the memory store.
func TestEngine_SQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "rankd.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.AddDocuments(ctx, catalogue()...); err != nil {
		t.Fatal(err)
	}

	emb, err := embedding.NewEngine()
	if err != nil {
		t.Fatal(err)
	}
	orch := cache.NewOrchestrator(cache.NewMemoryKV(), cache.WithDebounce(0))
	e := NewEngine(store, lexical.NewExpander(&lexical.Lexicon{}), emb, ranking.NewRanker(nil), orch,
		&config.SearchConfig{CandidatePool: 100, CacheTTLSeconds: 60, MaxSuggestions: 3}, nil)
	e.now = func() time.Time { return now }
	if err := e.HarvestTerms(ctx, 0); err != nil {
		t.Fatal(err)
	}

	resp, err := e.Search(ctx, &models.SearchRequest{Query: "React", Kinds: []models.Kind{models.KindProducts, models.KindJobs}})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Degraded) != 0 {
		t.Fatalf("degraded kinds: %v", resp.Degraded)
	}
	products := resp.Results[models.KindProducts]
	if products.Total != 2 || len(products.Results) < 2 || products.Results[0].Document.ID != "p-exact" {
		t.Errorf("products = %v (total %d)", resultIDs(products.Results), products.Total)
	}
	jobs := resp.Results[models.KindJobs]
	if jobs.Total != 1 || jobs.Results[0].Document.ID != "j-1" {
		t.Errorf("jobs = %v (total %d)", resultIDs(jobs.Results), jobs.Total)
	}

	resp, err = e.Search(ctx, &models.SearchRequest{Query: "reactt", Kinds: []models.Kind{models.KindProducts}})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range resp.Results[models.KindProducts].Results {
		found = found || r.Document.ID == "p-pop"
	}
	if !found {
		t.Errorf("fuzzy query missed React Dashboard: %v", resultIDs(resp.Results[models.KindProducts].Results))
	}
}
