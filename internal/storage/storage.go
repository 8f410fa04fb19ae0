// Package storage defines the persistence contracts for documents, engagement
// events and trending scores, with SQLite and in-memory implementations.
package storage

import (
	"context"
	"time"

	"github.com/hyperjump/rankd/internal/criteria"
	"github.com/hyperjump/rankd/internal/models"
)

// Page selects a window of an ordered result. A non-positive Limit means no limit.
type Page struct {
	Skip  int
	Limit int
}

// DocumentStore finds documents matching criteria. Results are ordered by the
// priority of the best clause they match (criteria.Criteria.Rank), then by
// creation time, newest first, ties broken by id.
type DocumentStore interface {
	Find(ctx context.Context, c *criteria.Criteria, page Page) ([]*models.Document, error)
	Count(ctx context.Context, c *criteria.Criteria) (int, error)
	// Get returns a document by id, wrapping models.ErrNotFound when missing.
	Get(ctx context.Context, kind models.Kind, id string) (*models.Document, error)
	// Terms returns up to limit names and the distinct tags of visible documents,
	// used to seed the lexical dictionary.
	Terms(ctx context.Context, kind models.Kind, limit int) (names, tags []string, err error)
}

// EventStore aggregates engagement facts.
type EventStore interface {
	// Engagement returns counts per entity id for events at or after since.
	// A nil ids slice aggregates every entity of the kind.
	Engagement(ctx context.Context, kind models.Kind, ids []string, since time.Time) (map[string]models.EngagementCounts, error)
}

// ScoreWriter persists trending computations.
type ScoreWriter interface {
	SaveTrendingScore(ctx context.Context, rec *models.TrendingScoreRecord) error
}

// Store is the full persistence surface used by the binary.
type Store interface {
	DocumentStore
	EventStore
	ScoreWriter
	// AddDocuments upserts documents.
	AddDocuments(ctx context.Context, docs ...*models.Document) error
	// AddEvents records engagement facts. Events without an id get one.
	AddEvents(ctx context.Context, events ...*models.EngagementEvent) error
	// TrendingScore returns the last saved record, wrapping models.ErrNotFound.
	TrendingScore(ctx context.Context, kind models.Kind, id string) (*models.TrendingScoreRecord, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Stats summarizes store contents.
type Stats struct {
	Documents      int64 `json:"documents"`
	Events         int64 `json:"events"`
	TrendingScores int64 `json:"trending_scores"`
	SizeBytes      int64 `json:"size_bytes"`
}
