// Package query provides a storage-agnostic filter algebra and a fluent
// builder whose terminal operations are executed by a caller-supplied handler.
package query

import (
	"errors"
	"fmt"
)

// Operator is a filter comparison operator.
type Operator string

// Supported operators.
const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpLike         Operator = "like"
	OpIn           Operator = "in"
	OpAll          Operator = "all"
	OpBetween      Operator = "between"
	OpLessThan     Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreaterThan  Operator = ">"
	OpGreaterEqual Operator = ">="
)

var (
	// ErrUnsupportedOperator is returned when a filter carries an operator
	// outside the supported set.
	ErrUnsupportedOperator = errors.New("unhandled filter operator")
	// ErrInvalidOperand is returned when a comparand has the wrong shape for
	// its operator (e.g. between without a [low, high] pair).
	ErrInvalidOperand = errors.New("invalid filter operand")
)

// Valid reports whether o is one of the supported operators.
func (o Operator) Valid() bool {
	switch o {
	case OpEqual, OpNotEqual, OpLike, OpIn, OpAll, OpBetween,
		OpLessThan, OpLessEqual, OpGreaterThan, OpGreaterEqual:
		return true
	default:
		return false
	}
}

// ParseOperator converts a string to an Operator.
func ParseOperator(s string) (Operator, error) {
	op := Operator(s)
	if !op.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedOperator, s)
	}
	return op, nil
}

// Filter is a single predicate. Fields holds one logical field name or a
// fan-out set the same predicate applies to.
type Filter struct {
	Fields   []string
	Operator Operator
	Value    any
}

// NewFilter creates a filter over one or more fields.
func NewFilter(op Operator, value any, fields ...string) Filter {
	return Filter{
		Fields:   append([]string(nil), fields...),
		Operator: op,
		Value:    value,
	}
}

// String renders the filter for logs.
func (f Filter) String() string {
	if len(f.Fields) == 1 {
		return fmt.Sprintf("%s %s %v", f.Fields[0], f.Operator, f.Value)
	}
	return fmt.Sprintf("%v %s %v", f.Fields, f.Operator, f.Value)
}

// Order defines the direction of sorting.
type Order string

// Sort order constants
const (
	Asc  Order = "ASC"
	Desc Order = "DESC"
)

// Sort specifies field and direction for sorting results.
type Sort struct {
	Field string
	Order Order
}

// Descending reports whether the sort is in descending order.
func (s Sort) Descending() bool {
	return s.Order == Desc
}

// Between returns the [low, high] comparand for an OpBetween filter.
func Between(low, high any) []any {
	return []any{low, high}
}
