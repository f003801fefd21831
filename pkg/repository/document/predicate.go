package document

import (
	"fmt"
	"strings"

	"github.com/nimburion/docquery/pkg/query"
)

// Condition is one normalized predicate fragment on a storage field.
type Condition struct {
	Field    string
	Operator query.Operator
	Value    any
}

// Predicate is the backend-neutral form of a filter list: fan-out expanded,
// logical id renamed to the primary key, one condition per field.
type Predicate struct {
	Conditions []Condition
}

// NewPredicate normalizes filters. When several filters target the same
// field the later one replaces the earlier one, keeping its position.
func NewPredicate(filters []query.Filter) (Predicate, error) {
	var pred Predicate
	index := make(map[string]int)
	for _, f := range filters {
		if !f.Operator.Valid() {
			return Predicate{}, fmt.Errorf("%w: %q", query.ErrUnsupportedOperator, f.Operator)
		}
		if f.Operator == query.OpBetween {
			if _, _, err := query.BetweenBounds(f.Value); err != nil {
				return Predicate{}, err
			}
		}
		for _, field := range f.Fields {
			field = storageField(field)
			cond := Condition{Field: field, Operator: f.Operator, Value: f.Value}
			if i, ok := index[field]; ok {
				pred.Conditions[i] = cond
				continue
			}
			index[field] = len(pred.Conditions)
			pred.Conditions = append(pred.Conditions, cond)
		}
	}
	return pred, nil
}

// Empty reports whether the predicate matches every document.
func (p Predicate) Empty() bool {
	return len(p.Conditions) == 0
}

// String renders the predicate for logs and span attributes.
func (p Predicate) String() string {
	parts := make([]string, 0, len(p.Conditions))
	for _, c := range p.Conditions {
		parts = append(parts, fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Value))
	}
	return strings.Join(parts, " AND ")
}

// storageField maps the logical identifier to the primary key.
func storageField(field string) string {
	if field == IDField {
		return PrimaryKey
	}
	return field
}

// storageSort returns the storage field and direction of s.
func storageSort(s *query.Sort) (string, bool, bool) {
	if s == nil || s.Field == "" {
		return "", false, false
	}
	return storageField(s.Field), s.Descending(), true
}
