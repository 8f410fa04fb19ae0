// Package cache derives result-cache keys, wraps computations with
// get-or-compute caching and cascades invalidations across related keys.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by KV.Get for missing or expired keys.
var ErrNotFound = errors.New("cache: key not found")

// Op names a failed KV operation.
type Op string

const (
	OpGet    Op = "get"
	OpSet    Op = "set"
	OpScan   Op = "scan"
	OpDelete Op = "delete"
)

// Error wraps a backend failure with the operation that caused it.
type Error struct {
	Op  Op
	Err error
}

func (e *Error) Error() string { return "cache " + string(e.Op) + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// KV is the key-value store behind the orchestrator.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeleteMatching removes every key matching a glob pattern ("*", "?") and
	// returns how many were removed.
	DeleteMatching(ctx context.Context, pattern string) (int, error)
}

// matchGlob reports whether key matches pattern with Redis glob semantics for
// "*" and "?": both match any character, including ":" and "/".
// A backslash escapes the next pattern character.
func matchGlob(pattern, key string) bool {
	p, k := []rune(pattern), []rune(key)
	var pi, ki int
	star, mark := -1, 0
	for ki < len(k) {
		switch {
		case pi < len(p) && p[pi] == '*':
			star, mark = pi, ki
			pi++
		case pi < len(p) && p[pi] == '\\' && pi+1 < len(p) && p[pi+1] == k[ki]:
			pi += 2
			ki++
		case pi < len(p) && (p[pi] == '?' || (p[pi] != '\\' && p[pi] == k[ki])):
			pi++
			ki++
		case star >= 0:
			pi = star + 1
			mark++
			ki = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
