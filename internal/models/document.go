// Package models defines core data structures for entities, search requests, scored results and trending records.
package models

import (
	"regexp"
	"time"
)

// Field names a searchable or filterable document attribute.
type Field string

const (
	FieldID          Field = "id"
	FieldName        Field = "name"
	FieldTags        Field = "tags"
	FieldCategory    Field = "category"
	FieldTagline     Field = "tagline"
	FieldCompany     Field = "company"
	FieldLocation    Field = "location"
	FieldDescription Field = "description"
	FieldStatus      Field = "status"
	FieldPrice       Field = "price"
	FieldPricingType Field = "pricing_type"
	FieldOwner       Field = "owner_id"
	FieldRole        Field = "role"
	FieldCreatedAt   Field = "created_at"
)

// Document is a searchable entity. Name holds the title or display name and
// Tags holds tags, skills or technologies depending on the kind.
type Document struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	Slug          string    `json:"slug,omitempty"`
	Name          string    `json:"name"`
	Tags          []string  `json:"tags,omitempty"`
	Category      string    `json:"category,omitempty"`
	Tagline       string    `json:"tagline,omitempty"`
	Company       string    `json:"company,omitempty"`
	Location      string    `json:"location,omitempty"`
	Description   string    `json:"description,omitempty"`
	Status        string    `json:"status"`
	Price         float64   `json:"price,omitempty"`
	PricingType   string    `json:"pricing_type,omitempty"`
	OwnerID       string    `json:"owner_id,omitempty"`
	Role          string    `json:"role,omitempty"`
	Image         string    `json:"image,omitempty"`
	Verified      bool      `json:"verified,omitempty"`
	Upvotes       int       `json:"upvotes"`
	Views         int       `json:"views"`
	Comments      int       `json:"comments"`
	Bookmarks     int       `json:"bookmarks"`
	TrendingScore float64   `json:"trending_score,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Text returns the string value of a text field; list and numeric fields return "".
func (d *Document) Text(f Field) string {
	switch f {
	case FieldID:
		return d.ID
	case FieldName:
		return d.Name
	case FieldCategory:
		return d.Category
	case FieldTagline:
		return d.Tagline
	case FieldCompany:
		return d.Company
	case FieldLocation:
		return d.Location
	case FieldDescription:
		return d.Description
	case FieldStatus:
		return d.Status
	case FieldPricingType:
		return d.PricingType
	case FieldOwner:
		return d.OwnerID
	case FieldRole:
		return d.Role
	}
	return ""
}

// Age returns how long ago the document was created, never negative.
func (d *Document) Age(now time.Time) time.Duration {
	age := now.Sub(d.CreatedAt)
	if age < 0 {
		return 0
	}
	return age
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidID reports whether id is a well-formed entity id.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}
