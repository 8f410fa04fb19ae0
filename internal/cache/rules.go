package cache

import "strings"

// Rule cascades an invalidation: when a pattern matching Pattern is
// invalidated, each Related pattern is invalidated too. "{id}" in a related
// pattern is replaced by the last ":"-separated segment of the triggering pattern.
type Rule struct {
	Pattern string
	Related []string
}

// DefaultRules is the dependency table between cached views.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "products:detail:*", Related: []string{"products:list:*", "products:trending:*", "recommendations:*", "products:search:*"}},
		{Pattern: "jobs:detail:*", Related: []string{"jobs:list:*", "jobs:trending:*", "jobs:search:*"}},
		{Pattern: "projects:detail:*", Related: []string{"projects:list:*", "projects:trending:*", "projects:search:*"}},
		{Pattern: "users:detail:*", Related: []string{"bookmarks:{id}:*", "recommendations:{id}:*", "users:search:*"}},
		{Pattern: "comments:products:*", Related: []string{"products:detail:{id}"}},
		{Pattern: "upvotes:products:*", Related: []string{"products:detail:{id}", "products:trending:*"}},
	}
}

// related returns the patterns a rule derives from pattern, or nil if the rule does not apply.
func (r Rule) related(pattern string) []string {
	if pattern != r.Pattern && !matchGlob(r.Pattern, pattern) {
		return nil
	}
	id := pattern
	if i := strings.LastIndex(pattern, ":"); i >= 0 {
		id = pattern[i+1:]
	}
	out := make([]string, 0, len(r.Related))
	for _, rel := range r.Related {
		out = append(out, strings.ReplaceAll(rel, "{id}", id))
	}
	return out
}
