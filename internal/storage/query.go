package storage

import (
	"fmt"
	"strings"

	"github.com/hyperjump/rankd/internal/criteria"
	"github.com/hyperjump/rankd/internal/models"
)

// compile translates criteria into a SQL WHERE expression over the documents
// table. SQLite's lower() folds ASCII only, so non-ASCII text compares
// case-sensitively here while criteria.Match folds it.
func compile(c *criteria.Criteria) (string, []any, error) {
	if c == nil {
		return "", nil, fmt.Errorf("%w: nil criteria", models.ErrInvalidInput)
	}
	where := []string{"kind = ?"}
	args := []any{string(c.Kind)}

	and := func(clauses []criteria.Clause) error {
		for _, cl := range clauses {
			expr, a, err := compileClause(cl)
			if err != nil {
				return err
			}
			where = append(where, expr)
			args = append(args, a...)
		}
		return nil
	}
	if err := and(c.Base); err != nil {
		return "", nil, err
	}
	if err := and(c.Filters); err != nil {
		return "", nil, err
	}
	if len(c.Any) > 0 {
		var or []string
		for _, cl := range c.Any {
			expr, a, err := compileClause(cl)
			if err != nil {
				return "", nil, err
			}
			or = append(or, expr)
			args = append(args, a...)
		}
		where = append(where, "("+strings.Join(or, " OR ")+")")
	}
	return strings.Join(where, " AND "), args, nil
}

// compileOrder renders the ORDER BY expression matching the store order:
// best clause priority, then newest first, then id.
func compileOrder(c *criteria.Criteria) (string, []any, error) {
	const tail = "created_at DESC, id ASC"
	if len(c.Any) == 0 {
		return tail, nil, nil
	}
	var b strings.Builder
	var args []any
	b.WriteString("CASE")
	for _, cl := range c.Any {
		expr, a, err := compileClause(cl)
		if err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&b, " WHEN %s THEN %d", expr, cl.Priority)
		args = append(args, a...)
	}
	fmt.Fprintf(&b, " ELSE %d END, %s", criteria.NoMatch, tail)
	return b.String(), args, nil
}

func compileClause(cl criteria.Clause) (string, []any, error) {
	switch cl.Op {
	case criteria.OpEquals:
		return textPredicate(cl.Field, "lower(%s) = ?", strings.ToLower(cl.Value))
	case criteria.OpContains:
		return textPredicate(cl.Field, "instr(lower(%s), ?) > 0", strings.ToLower(cl.Value))
	case criteria.OpNotEquals:
		expr, args, err := textPredicate(cl.Field, "lower(%s) = ?", strings.ToLower(cl.Value))
		return "NOT " + expr, args, err
	case criteria.OpIn:
		if len(cl.Values) == 0 {
			return "0", nil, nil
		}
		vals := make([]any, len(cl.Values))
		for i, v := range cl.Values {
			vals[i] = strings.ToLower(v)
		}
		return textPredicate(cl.Field, "lower(%s) IN ("+placeholders(len(vals))+")", vals...)
	case criteria.OpRange:
		return rangePredicate(cl)
	}
	return "", nil, fmt.Errorf("%w: unsupported operator %s", models.ErrInvalidInput, cl.Op)
}

// textPredicate renders format over the field's SQL expression. Tags match
// when any element satisfies the predicate.
func textPredicate(f models.Field, format string, args ...any) (string, []any, error) {
	if f == models.FieldTags {
		inner := fmt.Sprintf(format, "json_each.value")
		return "EXISTS (SELECT 1 FROM json_each(documents.data, '$.tags') WHERE " + inner + ")", args, nil
	}
	col, err := textColumn(f)
	if err != nil {
		return "", nil, err
	}
	return "(" + fmt.Sprintf(format, col) + ")", args, nil
}

func textColumn(f models.Field) (string, error) {
	switch f {
	case models.FieldID:
		return "id", nil
	case models.FieldStatus:
		return "status", nil
	case models.FieldName, models.FieldCategory, models.FieldTagline, models.FieldCompany,
		models.FieldLocation, models.FieldDescription, models.FieldPricingType,
		models.FieldOwner, models.FieldRole:
		return fmt.Sprintf("COALESCE(json_extract(data, '$.%s'), '')", f), nil
	}
	return "", fmt.Errorf("%w: field %q is not a text field", models.ErrInvalidInput, f)
}

func rangePredicate(cl criteria.Clause) (string, []any, error) {
	var parts []string
	var args []any
	switch cl.Field {
	case models.FieldPrice:
		const price = "COALESCE(json_extract(data, '$.price'), 0)"
		if cl.Min != nil {
			parts = append(parts, price+" >= ?")
			args = append(args, *cl.Min)
		}
		if cl.Max != nil {
			parts = append(parts, price+" <= ?")
			args = append(args, *cl.Max)
		}
	case models.FieldCreatedAt:
		if cl.From != nil {
			parts = append(parts, "created_at >= ?")
			args = append(args, cl.From.UnixMilli())
		}
		if cl.To != nil {
			parts = append(parts, "created_at <= ?")
			args = append(args, cl.To.UnixMilli())
		}
	default:
		return "", nil, fmt.Errorf("%w: field %q does not support ranges", models.ErrInvalidInput, cl.Field)
	}
	if len(parts) == 0 {
		return "1", nil, nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", args, nil
}

// collectTerms returns document names and their distinct tags in first-seen order.
func collectTerms(docs []*models.Document) ([]string, []string) {
	names := make([]string, 0, len(docs))
	var tags []string
	seen := make(map[string]bool)
	for _, d := range docs {
		if d.Name != "" {
			names = append(names, d.Name)
		}
		for _, t := range d.Tags {
			k := strings.ToLower(t)
			if !seen[k] {
				seen[k] = true
				tags = append(tags, t)
			}
		}
	}
	return names, tags
}
