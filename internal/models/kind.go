package models

import (
	"fmt"
	"strings"
)

// Kind is the closed set of searchable entity types.
type Kind string

const (
	KindProducts Kind = "products"
	KindJobs     Kind = "jobs"
	KindProjects Kind = "projects"
	KindUsers    Kind = "users"
)

// AllKinds lists every kind in the order results are reported.
var AllKinds = []Kind{KindProducts, KindJobs, KindProjects, KindUsers}

// Profile carries the per-kind constants shared by criteria, ranking and blending.
type Profile struct {
	// Status is the lifecycle status a document must have to be visible.
	Status string
	// Secondary lists descriptive fields matched after name and tags.
	Secondary []Field
	// SemanticThreshold is the minimum similarity for semantic-only results.
	SemanticThreshold float64
}

var profiles = map[Kind]Profile{
	KindProducts: {
		Status:            "published",
		Secondary:         []Field{FieldCategory, FieldTagline},
		SemanticThreshold: 0.3,
	},
	KindJobs: {
		Status:            "active",
		Secondary:         []Field{FieldCategory, FieldCompany, FieldLocation},
		SemanticThreshold: 0.3,
	},
	KindProjects: {
		Status:            "published",
		Secondary:         []Field{FieldCategory, FieldTagline},
		SemanticThreshold: 0.3,
	},
	KindUsers: {
		Status:            "active",
		Secondary:         []Field{FieldTagline, FieldCompany, FieldLocation},
		SemanticThreshold: 0.5,
	},
}

// ParseKind resolves a kind name. Unknown names wrap ErrInvalidInput.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := profiles[k]; !ok {
		return "", fmt.Errorf("%w: unknown entity kind %q", ErrInvalidInput, s)
	}
	return k, nil
}

// Valid reports whether k is one of AllKinds.
func (k Kind) Valid() bool {
	_, ok := profiles[k]
	return ok
}

// Profile returns the constants for k. Unknown kinds get the zero profile.
func (k Kind) Profile() Profile {
	return profiles[k]
}

func (k Kind) String() string { return string(k) }
