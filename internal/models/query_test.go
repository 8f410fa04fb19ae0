package models

import (
	"errors"
	"testing"
	"time"
)

func TestSearchRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *SearchRequest
		wantErr bool
	}{
		{"defaults", &SearchRequest{Query: "react"}, false},
		{"empty query allowed", &SearchRequest{}, false},
		{"negative page", &SearchRequest{Query: "x", Page: -1}, true},
		{"limit too large", &SearchRequest{Query: "x", Limit: 101}, true},
		{"negative limit", &SearchRequest{Query: "x", Limit: -5}, true},
		{"unknown kind", &SearchRequest{Query: "x", Kinds: []Kind{"widgets"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("error %v should wrap ErrInvalidInput", err)
				}
				return
			}
			if tt.req.Page != 1 || tt.req.Limit != 10 {
				t.Errorf("defaults not applied: page=%d limit=%d", tt.req.Page, tt.req.Limit)
			}
			if len(tt.req.Kinds) != len(AllKinds) {
				t.Errorf("expected all kinds, got %v", tt.req.Kinds)
			}
		})
	}
}

func TestSearchRequest_ValidateDedupsKinds(t *testing.T) {
	req := &SearchRequest{Query: "x", Kinds: []Kind{KindJobs, KindJobs, KindUsers}}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(req.Kinds) != 2 || req.Kinds[0] != KindJobs || req.Kinds[1] != KindUsers {
		t.Errorf("kinds = %v", req.Kinds)
	}
}

func TestSearchRequest_Skip(t *testing.T) {
	req := &SearchRequest{Page: 3, Limit: 20}
	if got := req.Skip(); got != 40 {
		t.Errorf("Skip() = %d, want 40", got)
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Products ")
	if err != nil || k != KindProducts {
		t.Fatalf("ParseKind = %q, %v", k, err)
	}
	if _, err := ParseKind("comments"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if KindUsers.Profile().SemanticThreshold <= KindProducts.Profile().SemanticThreshold {
		t.Error("users should use a stricter semantic threshold than products")
	}
}

func TestParseTimeRange(t *testing.T) {
	r, err := ParseTimeRange("")
	if err != nil || r != RangeWeek {
		t.Fatalf("default range = %q, %v", r, err)
	}
	if _, err := ParseTimeRange("decade"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	if got := RangeDay.Since(now); !got.Equal(now.Add(-24 * time.Hour)) {
		t.Errorf("RangeDay.Since = %v", got)
	}
	if !RangeAll.Since(now).IsZero() {
		t.Error("RangeAll.Since should be zero")
	}
}

func TestValidID(t *testing.T) {
	for _, id := range []string{"abc", "my-slug_1", "550e8400-e29b-41d4-a716-446655440000"} {
		if !ValidID(id) {
			t.Errorf("ValidID(%q) = false", id)
		}
	}
	for _, id := range []string{"", "has space", "semi;colon", "../etc"} {
		if ValidID(id) {
			t.Errorf("ValidID(%q) = true", id)
		}
	}
}
