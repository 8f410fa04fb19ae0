package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hyperjump/rankd/internal/criteria"
	"github.com/hyperjump/rankd/internal/models"
)

// MemoryStore is an in-process Store that evaluates criteria with
// criteria.Match. Returned documents are copies.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[models.Kind]map[string]*models.Document
	events []models.EngagementEvent
	scores map[models.Kind]map[string]models.TrendingScoreRecord
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[models.Kind]map[string]*models.Document),
		scores: make(map[models.Kind]map[string]models.TrendingScoreRecord),
	}
}

// AddDocuments upserts documents.
func (m *MemoryStore) AddDocuments(_ context.Context, docs ...*models.Document) error {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		if err := validateDocument(doc); err != nil {
			return err
		}
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		if m.docs[doc.Kind] == nil {
			m.docs[doc.Kind] = make(map[string]*models.Document)
		}
		cp := *doc
		m.docs[doc.Kind][doc.ID] = &cp
	}
	return nil
}

func (m *MemoryStore) matching(c *criteria.Criteria) []*models.Document {
	var out []*models.Document
	rank := make(map[string]int)
	for _, d := range m.docs[c.Kind] {
		if c.Match(d) {
			cp := *d
			out = append(out, &cp)
			rank[d.ID] = c.Rank(d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if ri, rj := rank[out[i].ID], rank[out[j].ID]; ri != rj {
			return ri < rj
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Find returns documents matching c in store order.
func (m *MemoryStore) Find(ctx context.Context, c *criteria.Criteria, page Page) ([]*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: nil criteria", models.ErrInvalidInput)
	}
	m.mu.RLock()
	docs := m.matching(c)
	m.mu.RUnlock()

	skip := max(page.Skip, 0)
	if skip >= len(docs) {
		return nil, nil
	}
	docs = docs[skip:]
	if page.Limit > 0 && page.Limit < len(docs) {
		docs = docs[:page.Limit]
	}
	return docs, nil
}

// Count returns the number of documents matching c.
func (m *MemoryStore) Count(ctx context.Context, c *criteria.Criteria) (int, error) {
	docs, err := m.Find(ctx, c, Page{})
	return len(docs), err
}

// Get returns a document by kind and id.
func (m *MemoryStore) Get(_ context.Context, kind models.Kind, id string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[kind][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", models.ErrNotFound, kind, id)
	}
	cp := *d
	return &cp, nil
}

// Terms returns names and distinct tags of the newest visible documents of kind.
func (m *MemoryStore) Terms(ctx context.Context, kind models.Kind, limit int) ([]string, []string, error) {
	c := &criteria.Criteria{
		Kind: kind,
		Base: []criteria.Clause{{Field: models.FieldStatus, Op: criteria.OpEquals, Value: kind.Profile().Status}},
	}
	docs, err := m.Find(ctx, c, Page{Limit: limit})
	if err != nil {
		return nil, nil, err
	}
	names, tags := collectTerms(docs)
	return names, tags, nil
}

// AddEvents records engagement facts.
func (m *MemoryStore) AddEvents(_ context.Context, events ...*models.EngagementEvent) error {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range events {
		if err := prepareEvent(ev, now); err != nil {
			return err
		}
		m.events = append(m.events, *ev)
	}
	return nil
}

// Engagement aggregates events per entity since the given time.
func (m *MemoryStore) Engagement(ctx context.Context, kind models.Kind, ids []string, since time.Time) (map[string]models.EngagementCounts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var want map[string]bool
	if ids != nil {
		want = make(map[string]bool, len(ids))
		for _, id := range ids {
			want[id] = true
		}
	}
	out := make(map[string]models.EngagementCounts)
	users := make(map[string]map[string]bool)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ev := range m.events {
		if ev.Kind != kind || ev.CreatedAt.Before(since) || (want != nil && !want[ev.EntityID]) {
			continue
		}
		c := out[ev.EntityID]
		switch ev.Type {
		case models.EventUpvote:
			c.Upvotes++
		case models.EventComment:
			c.Comments++
		case models.EventView:
			c.Views++
		case models.EventBookmark:
			c.Bookmarks++
		}
		if ev.UserID != "" {
			if users[ev.EntityID] == nil {
				users[ev.EntityID] = make(map[string]bool)
			}
			users[ev.EntityID][ev.UserID] = true
		}
		c.UniqueUsers = len(users[ev.EntityID])
		out[ev.EntityID] = c
	}
	return out, nil
}

// SaveTrendingScore upserts the score record and mirrors the score onto the document.
func (m *MemoryStore) SaveTrendingScore(ctx context.Context, rec *models.TrendingScoreRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[rec.Kind][rec.EntityID]
	if !ok {
		return fmt.Errorf("%w: document %s %s", models.ErrNotFound, rec.Kind, rec.EntityID)
	}
	d.TrendingScore = rec.Score
	if m.scores[rec.Kind] == nil {
		m.scores[rec.Kind] = make(map[string]models.TrendingScoreRecord)
	}
	m.scores[rec.Kind][rec.EntityID] = *rec
	return nil
}

// TrendingScore returns the last persisted score record of an entity.
func (m *MemoryStore) TrendingScore(_ context.Context, kind models.Kind, id string) (*models.TrendingScoreRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.scores[kind][id]
	if !ok {
		return nil, fmt.Errorf("%w: trending score %s %s", models.ErrNotFound, kind, id)
	}
	return &rec, nil
}

// Stats returns row counts.
func (m *MemoryStore) Stats(context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := &Stats{Events: int64(len(m.events))}
	for _, docs := range m.docs {
		st.Documents += int64(len(docs))
	}
	for _, scores := range m.scores {
		st.TrendingScores += int64(len(scores))
	}
	return st, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
