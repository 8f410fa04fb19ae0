package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/hyperjump/rankd/pkg/utils"
)

// FilterHash returns a short stable digest of filters, independent of key order.
func FilterHash(filters map[string]string) string {
	if filters == nil {
		filters = map[string]string{}
	}
	// encoding/json writes map keys in sorted order.
	data, _ := json.Marshal(filters)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// segmentEscaper percent-encodes the key separator and glob metacharacters so
// a query cannot add key segments or widen an invalidation pattern.
var segmentEscaper = strings.NewReplacer(
	"%", "%25",
	":", "%3A",
	"*", "%2A",
	"?", "%3F",
	"[", "%5B",
	"]", "%5D",
	`\`, "%5C",
)

// Key derives the cache key entityType:query:filterHash:skip:limit.
// The query is normalized so equivalent requests share a key, then escaped.
func Key(entityType, query string, filters map[string]string, skip, limit int) string {
	return strings.Join([]string{
		entityType,
		segmentEscaper.Replace(utils.NormalizeQuery(query)),
		FilterHash(filters),
		strconv.Itoa(skip),
		strconv.Itoa(limit),
	}, ":")
}

// SearchKey derives the key of a cached search page, kind:search:query:...
func SearchKey(kind, query string, filters map[string]string, skip, limit int) string {
	return Key(kind+":search", query, filters, skip, limit)
}

// TrendingKey derives the key of a cached trending list.
func TrendingKey(kind, timeRange string, limit int, excludeIDs []string) string {
	return Key(kind+":trending", timeRange, map[string]string{"exclude": strings.Join(excludeIDs, ",")}, 0, limit)
}
