package query

import (
	"context"
	"fmt"
	"math"
)

// Mode identifies which terminal operation triggered execution.
type Mode string

// Execution modes
const (
	ModeAll      Mode = "all"
	ModeFirst    Mode = "first"
	ModePaginate Mode = "paginate"
)

// Default pagination values applied by handlers when the caller leaves them unset.
const (
	DefaultPage    = 1
	DefaultPerPage = 10
)

// Mapper transforms a result item. Mappers run in registration order; for
// First with no match they receive the zero value of T and must handle it.
type Mapper[T any] func(item T) (T, error)

// Params is the accumulated query state handed to the Handler by a terminal call.
type Params[T any] struct {
	Filters []Filter
	Sort    *Sort
	Mappers []Mapper[T]
	Mode    Mode
	Page    int
	PerPage int
}

// Apply runs item through the mapper pipeline. The first failing mapper aborts it.
func (p Params[T]) Apply(item T) (T, error) {
	var err error
	for i, mapper := range p.Mappers {
		item, err = mapper(item)
		if err != nil {
			var zero T
			return zero, fmt.Errorf("mapper %d: %w", i, err)
		}
	}
	return item, nil
}

// ApplyAll runs every item through the mapper pipeline.
func (p Params[T]) ApplyAll(items []T) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		mapped, err := p.Apply(item)
		if err != nil {
			return nil, err
		}
		out = append(out, mapped)
	}
	return out, nil
}

// Paginated is one page of results plus the total number of matches.
type Paginated[T any] struct {
	Data    []T   `json:"data" yaml:"data"`
	Page    int   `json:"page" yaml:"page"`
	PerPage int   `json:"perPage" yaml:"perPage"`
	Total   int64 `json:"total" yaml:"total"`
}

// Result is what a Handler returns; only the fields for the requested Mode are read.
type Result[T any] struct {
	Items []T
	Item  T
	Page  Paginated[T]
}

// Handler executes a query against a concrete backend.
type Handler[T any] func(ctx context.Context, params Params[T]) (Result[T], error)

// Builder accumulates filters, a sort and mappers until a terminal call.
// Chained calls mutate the builder in place and return it; a Builder must not
// be shared between concurrent callers. Terminal calls do not reset state.
type Builder[T any] struct {
	handler Handler[T]
	filters []Filter
	sort    *Sort
	mappers []Mapper[T]
}

// New creates a chain root bound to handler.
func New[T any](handler Handler[T]) *Builder[T] {
	return &Builder[T]{handler: handler}
}

// Filter adds a predicate on a single field.
func (b *Builder[T]) Filter(field string, op Operator, value any) *Builder[T] {
	b.filters = append(b.filters, NewFilter(op, value, field))
	return b
}

// FilterAny adds one predicate applied to each of fields.
func (b *Builder[T]) FilterAny(fields []string, op Operator, value any) *Builder[T] {
	b.filters = append(b.filters, NewFilter(op, value, fields...))
	return b
}

// Sort sets the sort order, replacing any previous one.
func (b *Builder[T]) Sort(field string, order Order) *Builder[T] {
	b.sort = &Sort{Field: field, Order: order}
	return b
}

// Map appends a mapper to the result pipeline.
func (b *Builder[T]) Map(mapper Mapper[T]) *Builder[T] {
	b.mappers = append(b.mappers, mapper)
	return b
}

// Filters returns a copy of the accumulated filters.
func (b *Builder[T]) Filters() []Filter {
	return append([]Filter(nil), b.filters...)
}

// All returns every matching item.
func (b *Builder[T]) All(ctx context.Context) ([]T, error) {
	res, err := b.run(ctx, ModeAll, 0, 0)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// First returns the first matching item, or the mapped zero value when nothing matches.
func (b *Builder[T]) First(ctx context.Context) (T, error) {
	res, err := b.run(ctx, ModeFirst, 0, 0)
	if err != nil {
		var zero T
		return zero, err
	}
	return res.Item, nil
}

// Paginate returns the requested 1-based page. Zero or negative values select
// DefaultPage and DefaultPerPage.
func (b *Builder[T]) Paginate(ctx context.Context, page, perPage int) (Paginated[T], error) {
	res, err := b.run(ctx, ModePaginate, page, perPage)
	if err != nil {
		return Paginated[T]{}, err
	}
	return res.Page, nil
}

func (b *Builder[T]) run(ctx context.Context, mode Mode, page, perPage int) (Result[T], error) {
	if b.handler == nil {
		return Result[T]{}, fmt.Errorf("query handler is required")
	}
	params := Params[T]{
		Filters: b.Filters(),
		Mappers: append([]Mapper[T](nil), b.mappers...),
		Mode:    mode,
		Page:    page,
		PerPage: perPage,
	}
	if b.sort != nil {
		s := *b.sort
		params.Sort = &s
	}
	return b.handler(ctx, params)
}

// Normalize fills pagination defaults for unset values.
func (p Params[T]) Normalize() Params[T] {
	if p.Page <= 0 {
		p.Page = DefaultPage
	}
	if p.PerPage <= 0 {
		p.PerPage = DefaultPerPage
	}
	return p
}

// Skip returns the number of items preceding the requested page. It
// saturates at math.MaxInt instead of overflowing for very large pages.
func (p Params[T]) Skip() int {
	if p.Page <= 1 || p.PerPage <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PerPage {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PerPage
}
