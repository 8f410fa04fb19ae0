package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/rankd/internal/cache"
	"github.com/hyperjump/rankd/internal/config"
	"github.com/hyperjump/rankd/internal/criteria"
	"github.com/hyperjump/rankd/internal/embedding"
	"github.com/hyperjump/rankd/internal/lexical"
	"github.com/hyperjump/rankd/internal/models"
	"github.com/hyperjump/rankd/internal/ranking"
	"github.com/hyperjump/rankd/internal/storage"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// countingStore counts Find calls per kind and fails kinds listed in fail.
// The next failPool finds without query clauses fail too.
type countingStore struct {
	storage.DocumentStore
	mu       sync.Mutex
	finds    map[models.Kind]int
	fail     map[models.Kind]bool
	failPool int
}

func (s *countingStore) Find(ctx context.Context, c *criteria.Criteria, page storage.Page) ([]*models.Document, error) {
	s.mu.Lock()
	s.finds[c.Kind]++
	fail := s.fail[c.Kind]
	if len(c.Any) == 0 && s.failPool > 0 {
		s.failPool--
		fail = true
	}
	s.mu.Unlock()
	if fail {
		return nil, errors.New("store down")
	}
	return s.DocumentStore.Find(ctx, c, page)
}

func (s *countingStore) findCount(kind models.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finds[kind]
}

func catalogue() []*models.Document {
	return []*models.Document{
		{
			ID: "p-exact", Kind: models.KindProducts, Name: "React", Status: "published",
			CreatedAt: now.Add(-300 * 24 * time.Hour),
		},
		{
			ID: "p-pop", Kind: models.KindProducts, Name: "React Dashboard", Tags: []string{"react", "dashboard"},
			Description: "An admin dashboard built with react, with charts, tables and a lot of components for every need",
			Image:       "dash.png", Verified: true, Status: "published",
			Upvotes: 5000, Views: 50000, Comments: 900, CreatedAt: now.Add(-time.Hour),
		},
		{
			ID: "p-other", Kind: models.KindProducts, Name: "Recipe Box", Tags: []string{"food"},
			Status: "published", CreatedAt: now.Add(-2 * time.Hour),
		},
		{
			ID: "j-1", Kind: models.KindJobs, Name: "React Engineer", Company: "Acme",
			Status: "active", CreatedAt: now.Add(-time.Hour),
		},
		{
			ID: "u-ada", Kind: models.KindUsers, Name: "Ada", Category: "robotics",
			Status: "active", CreatedAt: now.Add(-time.Hour),
		},
	}
}

func newTestEngine(t testing.TB, fail ...models.Kind) (*Engine, *countingStore) {
	t.Helper()
	mem := storage.NewMemoryStore()
	if err := mem.AddDocuments(context.Background(), catalogue()...); err != nil {
		t.Fatal(err)
	}
	store := &countingStore{DocumentStore: mem, finds: map[models.Kind]int{}, fail: map[models.Kind]bool{}}
	for _, k := range fail {
		store.fail[k] = true
	}
	emb, err := embedding.NewEngine()
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.SearchConfig{CandidatePool: 100, CacheTTLSeconds: 60, MaxSuggestions: 3}
	orch := cache.NewOrchestrator(cache.NewMemoryKV(), cache.WithDebounce(0))
	e := NewEngine(store, lexical.NewExpander(&lexical.Lexicon{}), emb, ranking.NewRanker(nil), orch, cfg, nil)
	e.now = func() time.Time { return now }
	if err := e.HarvestTerms(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	return e, store
}

func resultIDs(rs []*models.ScoredResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Document.ID
	}
	return out
}

func TestEngine_ExactNameFirst(t *testing.T) {
	e, _ := newTestEngine(t)
	resp, err := e.Search(context.Background(), &models.SearchRequest{Query: "React", Kinds: []models.Kind{models.KindProducts}})
	if err != nil {
		t.Fatal(err)
	}
	got := resp.Results[models.KindProducts]
	if len(got.Results) < 2 {
		t.Fatalf("results = %v", resultIDs(got.Results))
	}
	if got.Results[0].Document.ID != "p-exact" {
		t.Errorf("exact name match should rank first despite low engagement, got %v", resultIDs(got.Results))
	}
	if got.Total != 2 {
		t.Errorf("Total = %d, want 2", got.Total)
	}
	if resp.RequestID == "" || resp.Query != "react" {
		t.Errorf("response metadata: %+v", resp)
	}
}

func TestEngine_FuzzyQuery(t *testing.T) {
	e, _ := newTestEngine(t)
	resp, err := e.Search(context.Background(), &models.SearchRequest{Query: "reactt", Kinds: []models.Kind{models.KindProducts}})
	if err != nil {
		t.Fatal(err)
	}
	var found *models.ScoredResult
	for _, r := range resp.Results[models.KindProducts].Results {
		if r.Document.ID == "p-pop" {
			found = r
		}
	}
	if found == nil {
		t.Fatalf("React Dashboard should be found via fuzzy expansion, got %v", resultIDs(resp.Results[models.KindProducts].Results))
	}
	if !found.Explanation.Fuzzy {
		t.Errorf("explanation should flag the fuzzy match: %+v", found.Explanation)
	}
}

func TestEngine_Suggestions(t *testing.T) {
	e, _ := newTestEngine(t)
	resp, err := e.Search(context.Background(), &models.SearchRequest{Query: "dashbord"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Suggestions) == 0 || resp.Suggestions[0] != "dashboard" {
		t.Errorf("Suggestions = %v", resp.Suggestions)
	}
	if len(resp.Results) != len(models.AllKinds) {
		t.Errorf("every kind should be reported, got %d", len(resp.Results))
	}
}

func TestEngine_SemanticOnlyResult(t *testing.T) {
	e, _ := newTestEngine(t)
	resp, err := e.Search(context.Background(), &models.SearchRequest{Query: "robotics", Kinds: []models.Kind{models.KindUsers}})
	if err != nil {
		t.Fatal(err)
	}
	got := resp.Results[models.KindUsers]
	if len(got.Results) != 1 || got.Results[0].Document.ID != "u-ada" {
		t.Fatalf("results = %v", resultIDs(got.Results))
	}
	r := got.Results[0]
	if r.SemanticScore < models.KindUsers.Profile().SemanticThreshold || !r.Explanation.Semantic {
		t.Errorf("semantic result = %+v", r)
	}
	if got.Total != 0 {
		t.Errorf("Total counts lexical matches only, got %d", got.Total)
	}
}

func TestEngine_CachesPerKind(t *testing.T) {
	e, store := newTestEngine(t)
	req := func() *models.SearchRequest {
		return &models.SearchRequest{Query: "react", Kinds: []models.Kind{models.KindProducts, models.KindJobs}}
	}
	first, err := e.Search(context.Background(), req())
	if err != nil {
		t.Fatal(err)
	}
	before := store.findCount(models.KindProducts)

	second, err := e.Search(context.Background(), req())
	if err != nil {
		t.Fatal(err)
	}
	if store.findCount(models.KindProducts) != before {
		t.Error("identical search should be served from cache")
	}
	if a, b := resultIDs(first.Results[models.KindProducts].Results), resultIDs(second.Results[models.KindProducts].Results); len(a) != len(b) || a[0] != b[0] {
		t.Errorf("cached results differ: %v vs %v", a, b)
	}
}

func TestEngine_DegradesFailingKind(t *testing.T) {
	e, store := newTestEngine(t, models.KindJobs)
	req := func() *models.SearchRequest {
		return &models.SearchRequest{Query: "react", Kinds: []models.Kind{models.KindProducts, models.KindJobs}}
	}
	resp, err := e.Search(context.Background(), req())
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Degraded) != 1 || resp.Degraded[0] != models.KindJobs {
		t.Errorf("Degraded = %v", resp.Degraded)
	}
	if jobs, ok := resp.Results[models.KindJobs]; !ok || len(jobs.Results) != 0 {
		t.Errorf("failed kind should be reported empty, got %+v", jobs)
	}
	if len(resp.Results[models.KindProducts].Results) == 0 {
		t.Error("healthy kinds should still return results")
	}

	if _, err := e.Search(context.Background(), req()); err != nil {
		t.Fatal(err)
	}
	if store.findCount(models.KindJobs) != 2 {
		t.Errorf("failed kind must not be cached; jobs finds = %d", store.findCount(models.KindJobs))
	}
}

func TestEngine_Cancelled(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Search(ctx, &models.SearchRequest{Query: "react"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestEngine_InvalidRequest(t *testing.T) {
	e, _ := newTestEngine(t)
	for _, req := range []*models.SearchRequest{
		{Query: "react", Limit: 500},
		{Query: "react", Page: -1},
		{Query: "react", Kinds: []models.Kind{"widgets"}},
		{Query: "react", Filters: map[string]string{"min_price": "cheap"}, Kinds: []models.Kind{models.KindProducts}},
	} {
		_, err := e.Search(context.Background(), req)
		if !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("%+v: expected ErrInvalidInput, got %v", req, err)
		}
	}
}

func TestEngine_Pagination(t *testing.T) {
	e, _ := newTestEngine(t)
	resp, err := e.Search(context.Background(), &models.SearchRequest{Kinds: []models.Kind{models.KindProducts}, Limit: 2, Page: 2})
	if err != nil {
		t.Fatal(err)
	}
	got := resp.Results[models.KindProducts]
	if got.Total != 3 || len(got.Results) != 1 {
		t.Errorf("page 2 = %v (total %d)", resultIDs(got.Results), got.Total)
	}
}

func TestPaginate(t *testing.T) {
	rs := results("r", 5, 0)
	if got := paginate(rs, 4, 3); len(got) != 1 {
		t.Errorf("tail page = %d", len(got))
	}
	if got := paginate(rs, 5, 3); got == nil || len(got) != 0 {
		t.Errorf("past the end should be empty and non-nil, got %v", got)
	}
}

func TestEngine_SemanticFailureNotCached(t *testing.T) {
	e, store := newTestEngine(t)
	store.failPool = 1
	req := func() *models.SearchRequest {
		return &models.SearchRequest{Query: "react", Kinds: []models.Kind{models.KindProducts}}
	}
	resp, err := e.Search(context.Background(), req())
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Degraded) != 1 || resp.Degraded[0] != models.KindProducts {
		t.Errorf("Degraded = %v, want the kind served without its semantic pass", resp.Degraded)
	}
	if len(resp.Results[models.KindProducts].Results) == 0 {
		t.Error("lexical results should still be served")
	}

	resp, err = e.Search(context.Background(), req())
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Degraded) != 0 {
		t.Errorf("partial page was cached: Degraded = %v", resp.Degraded)
	}
	finds := store.findCount(models.KindProducts)
	if _, err := e.Search(context.Background(), req()); err != nil {
		t.Fatal(err)
	}
	if store.findCount(models.KindProducts) != finds {
		t.Error("complete page should be cached")
	}
}

func TestEngine_CandidatePoolKeepsBestMatches(t *testing.T) {
	mem := storage.NewMemoryStore()
	docs := []*models.Document{{
		ID: "p-old", Kind: models.KindProducts, Name: "React", Status: "published",
		CreatedAt: now.Add(-400 * 24 * time.Hour),
	}}
	for i := 0; i < 8; i++ {
		docs = append(docs, &models.Document{
			ID: fmt.Sprintf("p-%d", i), Kind: models.KindProducts, Name: fmt.Sprintf("Widget %d", i),
			Description: "made for react apps", Status: "published",
			CreatedAt: now.Add(-time.Duration(i+1) * time.Hour),
		})
	}
	if err := mem.AddDocuments(context.Background(), docs...); err != nil {
		t.Fatal(err)
	}
	emb, err := embedding.NewEngine()
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.SearchConfig{CandidatePool: 5, CacheTTLSeconds: 60}
	e := NewEngine(mem, lexical.NewExpander(&lexical.Lexicon{}), emb, ranking.NewRanker(nil), nil, cfg, nil)
	e.now = func() time.Time { return now }

	search := func(page int) models.KindResults {
		t.Helper()
		resp, err := e.Search(context.Background(), &models.SearchRequest{
			Query: "react", Kinds: []models.Kind{models.KindProducts}, Limit: 2, Page: page,
		})
		if err != nil {
			t.Fatal(err)
		}
		return resp.Results[models.KindProducts]
	}

	first := search(1)
	if len(first.Results) == 0 || first.Results[0].Document.ID != "p-old" {
		t.Errorf("exact name match outside the newest candidates was dropped: %v", resultIDs(first.Results))
	}
	if first.Total != 5 || !first.Truncated {
		t.Errorf("Total = %d truncated = %v, want the pool size", first.Total, first.Truncated)
	}
	if last := search(3); len(last.Results) != 1 {
		t.Errorf("last page implied by Total = %v", resultIDs(last.Results))
	}
	if past := search(4); len(past.Results) != 0 {
		t.Errorf("page past Total = %v", resultIDs(past.Results))
	}
}

func TestEngine_DoesNotMutateRequest(t *testing.T) {
	e, _ := newTestEngine(t)
	req := &models.SearchRequest{Query: "  React ", Kinds: []models.Kind{models.KindJobs, models.KindProducts, models.KindJobs}}
	if _, err := e.Search(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if req.Query != "  React " || req.Limit != 0 || req.Page != 0 {
		t.Errorf("request changed: %+v", req)
	}
	want := []models.Kind{models.KindJobs, models.KindProducts, models.KindJobs}
	if len(req.Kinds) != len(want) {
		t.Fatalf("kinds changed: %v", req.Kinds)
	}
	for i := range want {
		if req.Kinds[i] != want[i] {
			t.Errorf("kinds changed: %v", req.Kinds)
		}
	}
}
