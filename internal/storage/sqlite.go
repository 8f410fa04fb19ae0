package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/rankd/internal/criteria"
	"github.com/hyperjump/rankd/internal/models"
)

const memoryDSN = ":memory:"

// SQLiteStore implements Store using SQLite. Documents are kept as JSON with
// their kind, status and creation time lifted into columns.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" opens a private
// in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != memoryDSN {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == memoryDSN {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (kind, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_kind_status ON documents(kind, status, created_at);

	CREATE TABLE IF NOT EXISTS engagement_events (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		user_id TEXT,
		type TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_entity ON engagement_events(kind, entity_id, created_at);

	CREATE TABLE IF NOT EXISTS trending_scores (
		kind TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		upvotes INTEGER NOT NULL,
		comments INTEGER NOT NULL,
		views INTEGER NOT NULL,
		bookmarks INTEGER NOT NULL,
		unique_users INTEGER NOT NULL,
		age_hours REAL NOT NULL,
		score REAL NOT NULL,
		computed_at INTEGER NOT NULL,
		PRIMARY KEY (kind, entity_id)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// AddDocuments upserts documents in a single transaction.
func (s *SQLiteStore) AddDocuments(ctx context.Context, docs ...*models.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (id, kind, status, data, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(kind, id) DO UPDATE SET
		   status = excluded.status, data = excluded.data, created_at = excluded.created_at`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, doc := range docs {
		if err := validateDocument(doc); err != nil {
			return err
		}
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal document %s: %w", doc.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, doc.ID, string(doc.Kind), doc.Status, string(data), doc.CreatedAt.UnixMilli()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func validateDocument(doc *models.Document) error {
	if !doc.Kind.Valid() {
		return fmt.Errorf("%w: document %q has unknown kind %q", models.ErrInvalidInput, doc.ID, doc.Kind)
	}
	if !models.ValidID(doc.ID) {
		return fmt.Errorf("%w: malformed document id %q", models.ErrInvalidInput, doc.ID)
	}
	return nil
}

// Find returns documents matching c in store order.
func (s *SQLiteStore) Find(ctx context.Context, c *criteria.Criteria, page Page) ([]*models.Document, error) {
	where, args, err := compile(c)
	if err != nil {
		return nil, err
	}
	order, orderArgs, err := compileOrder(c)
	if err != nil {
		return nil, err
	}
	limit := page.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, orderArgs...)
	args = append(args, limit, max(page.Skip, 0))
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM documents WHERE `+where+`
		 ORDER BY `+order+` LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

// Count returns the number of documents matching c.
func (s *SQLiteStore) Count(ctx context.Context, c *criteria.Criteria) (int, error) {
	where, args, err := compile(c)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE `+where, args...).Scan(&n)
	return n, err
}

// Get returns a document by kind and id.
func (s *SQLiteStore) Get(ctx context.Context, kind models.Kind, id string) (*models.Document, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE kind = ? AND id = ?`, string(kind), id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", models.ErrNotFound, kind, id)
	}
	if err != nil {
		return nil, err
	}
	var doc models.Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s: %w", id, err)
	}
	return &doc, nil
}

// Terms returns names and distinct tags of the newest visible documents of kind.
func (s *SQLiteStore) Terms(ctx context.Context, kind models.Kind, limit int) ([]string, []string, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM documents WHERE kind = ? AND status = ?
		 ORDER BY created_at DESC, id ASC LIMIT ?`,
		string(kind), kind.Profile().Status, limit,
	)
	if err != nil {
		return nil, nil, err
	}
	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, nil, err
	}
	names, tags := collectTerms(docs)
	return names, tags, nil
}

func scanDocuments(rows *sql.Rows) ([]*models.Document, error) {
	defer rows.Close()
	var docs []*models.Document
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var doc models.Document
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document: %w", err)
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// AddEvents records engagement facts in a single transaction.
func (s *SQLiteStore) AddEvents(ctx context.Context, events ...*models.EngagementEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO engagement_events (id, kind, entity_id, user_id, type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, ev := range events {
		if err := prepareEvent(ev, now); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, ev.ID, string(ev.Kind), ev.EntityID, ev.UserID, string(ev.Type), ev.CreatedAt.UnixMilli()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func prepareEvent(ev *models.EngagementEvent, now time.Time) error {
	if !ev.Kind.Valid() {
		return fmt.Errorf("%w: event has unknown kind %q", models.ErrInvalidInput, ev.Kind)
	}
	if !ev.Type.Valid() {
		return fmt.Errorf("%w: unknown event type %q", models.ErrInvalidInput, ev.Type)
	}
	if !models.ValidID(ev.EntityID) {
		return fmt.Errorf("%w: malformed entity id %q", models.ErrInvalidInput, ev.EntityID)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = now
	}
	return nil
}

// engagementBatch bounds the ids bound into one query, well under SQLite's
// host parameter limit.
const engagementBatch = 500

// Engagement aggregates events per entity since the given time. Ids are
// queried in batches.
func (s *SQLiteStore) Engagement(ctx context.Context, kind models.Kind, ids []string, since time.Time) (map[string]models.EngagementCounts, error) {
	out := make(map[string]models.EngagementCounts)
	if ids == nil {
		return out, s.engagement(ctx, out, kind, nil, since)
	}
	for start := 0; start < len(ids); start += engagementBatch {
		batch := ids[start:min(start+engagementBatch, len(ids))]
		if err := s.engagement(ctx, out, kind, batch, since); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteStore) engagement(ctx context.Context, out map[string]models.EngagementCounts, kind models.Kind, ids []string, since time.Time) error {
	query := `SELECT entity_id,
		SUM(CASE WHEN type = 'upvote' THEN 1 ELSE 0 END),
		SUM(CASE WHEN type = 'comment' THEN 1 ELSE 0 END),
		SUM(CASE WHEN type = 'view' THEN 1 ELSE 0 END),
		SUM(CASE WHEN type = 'bookmark' THEN 1 ELSE 0 END),
		COUNT(DISTINCT NULLIF(user_id, ''))
		FROM engagement_events WHERE kind = ? AND created_at >= ?`
	args := []any{string(kind), since.UnixMilli()}
	if ids != nil {
		query += ` AND entity_id IN (` + placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += ` GROUP BY entity_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var c models.EngagementCounts
		if err := rows.Scan(&id, &c.Upvotes, &c.Comments, &c.Views, &c.Bookmarks, &c.UniqueUsers); err != nil {
			return err
		}
		out[id] = c
	}
	return rows.Err()
}

// SaveTrendingScore mirrors the score onto the document and upserts the score
// record. A missing document wraps models.ErrNotFound.
func (s *SQLiteStore) SaveTrendingScore(ctx context.Context, rec *models.TrendingScoreRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE documents SET data = json_set(data, '$.trending_score', ?) WHERE kind = ? AND id = ?`,
		rec.Score, string(rec.Kind), rec.EntityID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: document %s %s", models.ErrNotFound, rec.Kind, rec.EntityID)
	}

	m := rec.Metrics
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO trending_scores
		   (kind, entity_id, upvotes, comments, views, bookmarks, unique_users, age_hours, score, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(kind, entity_id) DO UPDATE SET
		   upvotes = excluded.upvotes, comments = excluded.comments, views = excluded.views,
		   bookmarks = excluded.bookmarks, unique_users = excluded.unique_users,
		   age_hours = excluded.age_hours, score = excluded.score, computed_at = excluded.computed_at`,
		string(rec.Kind), rec.EntityID, m.Upvotes, m.Comments, m.Views, m.Bookmarks, m.UniqueUsers,
		rec.AgeHours, rec.Score, rec.ComputedAt.UnixMilli(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// TrendingScore returns the last persisted score record of an entity.
func (s *SQLiteStore) TrendingScore(ctx context.Context, kind models.Kind, id string) (*models.TrendingScoreRecord, error) {
	rec := models.TrendingScoreRecord{Kind: kind, EntityID: id}
	var computed int64
	m := &rec.Metrics
	err := s.db.QueryRowContext(ctx,
		`SELECT upvotes, comments, views, bookmarks, unique_users, age_hours, score, computed_at
		 FROM trending_scores WHERE kind = ? AND entity_id = ?`, string(kind), id,
	).Scan(&m.Upvotes, &m.Comments, &m.Views, &m.Bookmarks, &m.UniqueUsers, &rec.AgeHours, &rec.Score, &computed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: trending score %s %s", models.ErrNotFound, kind, id)
	}
	if err != nil {
		return nil, err
	}
	rec.ComputedAt = time.UnixMilli(computed).UTC()
	return &rec, nil
}

// Stats returns row counts and the on-disk size of the database.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	for _, q := range []struct {
		table string
		dst   *int64
	}{
		{"documents", &st.Documents},
		{"engagement_events", &st.Events},
		{"trending_scores", &st.TrendingScores},
	} {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+q.table).Scan(q.dst); err != nil {
			return nil, err
		}
	}
	size, err := fileSizes(sqliteFiles(s.path)...)
	if err != nil {
		return nil, err
	}
	st.SizeBytes = size
	return &st, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
