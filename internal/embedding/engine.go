// Package embedding turns text into fixed-size hashed bag-of-words vectors and compares them.
package embedding

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hyperjump/rankd/internal/models"
	"github.com/hyperjump/rankd/pkg/utils"
)

// Dimensions is the length of every embedding.
const Dimensions = 100

// Vector is a unit-length embedding, or all zeros when nothing could be embedded.
type Vector []float64

// IsZero reports whether v has no magnitude.
func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Match is a document with its similarity to a query.
type Match struct {
	Document *models.Document
	Score    float64
}

// Engine embeds queries and documents and caches document vectors.
type Engine struct {
	cache  *VectorCache
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	cacheSize int
	logger    *zap.Logger
}

// WithCacheSize bounds the document vector cache.
func WithCacheSize(n int) Option {
	return func(o *engineOptions) { o.cacheSize = n }
}

// WithLogger sets the logger used for fallbacks.
func WithLogger(l *zap.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// NewEngine creates an embedding engine.
func NewEngine(opts ...Option) (*Engine, error) {
	o := engineOptions{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	cache, err := NewVectorCache(o.cacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{cache: cache, logger: utils.LoggerOrNop(o.logger)}, nil
}

// Embed returns the normalized hashed bag-of-words vector of text.
// Text with no usable tokens, or any numeric failure, yields the zero vector.
func (e *Engine) Embed(text string) (v Vector) {
	v = make(Vector, Dimensions)
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("embedding fell back to zero vector", zap.Any("panic", r))
			v = make(Vector, Dimensions)
		}
	}()

	counts := make(map[string]int)
	for _, tok := range Tokens(text) {
		counts[tok]++
	}
	for tok, n := range counts {
		length := float64(utf8.RuneCountInString(tok))
		v[HashString(tok)%Dimensions] += float64(n) * (1 + math.Log(1+length/3))
	}
	if !utils.NormalizeL2(v) {
		return make(Vector, Dimensions)
	}
	return v
}

// DocumentText is the text a document is embedded from.
// Tags and category are repeated to weigh them more than free text.
func DocumentText(doc *models.Document) string {
	var b strings.Builder
	parts := []string{doc.Name, doc.Description, doc.Tagline}
	tags := strings.Join(doc.Tags, " ")
	parts = append(parts, tags, tags, doc.Category, doc.Category)
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	return b.String()
}

// DocumentVector returns the cached vector for doc, embedding it on a miss.
func (e *Engine) DocumentVector(doc *models.Document) Vector {
	if v, ok := e.cache.Get(doc.ID); ok {
		return v
	}
	v := e.Embed(DocumentText(doc))
	e.cache.Set(doc.ID, v)
	return v
}

// Forget drops a document's cached vector, e.g. after the document changed.
func (e *Engine) Forget(id string) {
	e.cache.Remove(id)
}

// Rank scores docs against query and returns those scoring at least minScore,
// best first. Ties keep the input order.
func (e *Engine) Rank(query string, docs []*models.Document, minScore float64) []Match {
	q := e.Embed(query)
	if q.IsZero() {
		return nil
	}
	matches := make([]Match, 0, len(docs))
	for _, doc := range docs {
		s := Similarity(q, e.DocumentVector(doc))
		if s > 0 && s >= minScore {
			matches = append(matches, Match{Document: doc, Score: s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// Similarity returns the cosine similarity of a and b clamped to [0, 1].
// Mismatched lengths or a zero-magnitude vector give 0.
func Similarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(s) {
		return 0
	}
	return math.Max(0, math.Min(1, s))
}
