package document

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/nimburion/docquery/pkg/query"
)

// MemoryExecutor keeps collections in process memory. It follows document
// store semantics rather than query.Matches: a missing field behaves like a
// null value, so it satisfies "= nil" and "!=" against any non-nil value.
// Falsy values are compared like any other value. Stored documents never
// share nested maps or slices with callers.
type MemoryExecutor struct {
	mu          sync.RWMutex
	collections map[string][]Document
}

// NewMemoryExecutor creates an empty in-memory store.
func NewMemoryExecutor() *MemoryExecutor {
	return &MemoryExecutor{collections: make(map[string][]Document)}
}

// Find returns copies of every matching document.
func (e *MemoryExecutor) Find(_ context.Context, collection string, pred Predicate, s *query.Sort) ([]Document, error) {
	return e.match(collection, pred, s)
}

// FindOne returns a copy of the first matching document, or nil.
func (e *MemoryExecutor) FindOne(_ context.Context, collection string, pred Predicate, s *query.Sort) (Document, error) {
	docs, err := e.match(collection, pred, s)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// FindPage returns one page of matches and the total count, under one read lock.
func (e *MemoryExecutor) FindPage(_ context.Context, collection string, pred Predicate, s *query.Sort, skip, limit int) ([]Document, int64, error) {
	docs, err := e.match(collection, pred, s)
	if err != nil {
		return nil, 0, err
	}
	start, end := pageWindow(len(docs), skip, limit)
	return docs[start:end], int64(len(docs)), nil
}

// pageWindow bounds a page of n items. A negative skip or one past the end
// yields an empty window; limit <= 0 means no limit.
func pageWindow(n, skip, limit int) (int, int) {
	if skip < 0 || skip >= n {
		return n, n
	}
	end := n
	if limit > 0 && limit < n-skip {
		end = skip + limit
	}
	return skip, end
}

// InsertOne stores a copy of doc. Duplicate primary keys are rejected.
func (e *MemoryExecutor) InsertOne(_ context.Context, collection string, doc Document) (any, error) {
	id, ok := doc[PrimaryKey]
	if !ok {
		return nil, fmt.Errorf("insert %s: document has no %s", collection, PrimaryKey)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.collections[collection] {
		if existing[PrimaryKey] == id {
			return nil, fmt.Errorf("insert %s: duplicate key %v", collection, id)
		}
	}
	e.collections[collection] = append(e.collections[collection], cloneDocument(doc))
	return id, nil
}

// FindOneAndUpdate merges set into the stored document.
func (e *MemoryExecutor) FindOneAndUpdate(_ context.Context, collection string, id string, set Document) (Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, doc := range e.collections[collection] {
		if doc[PrimaryKey] != id {
			continue
		}
		for k, v := range set {
			if k == PrimaryKey {
				continue
			}
			doc[k] = cloneValue(v)
		}
		return cloneDocument(doc), nil
	}
	return nil, ErrNotFound
}

// FindOneAndDelete removes the document with the given id, if present.
func (e *MemoryExecutor) FindOneAndDelete(_ context.Context, collection string, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	docs := e.collections[collection]
	for i, doc := range docs {
		if doc[PrimaryKey] == id {
			e.collections[collection] = append(docs[:i:i], docs[i+1:]...)
			return nil
		}
	}
	return nil
}

// Len returns the number of documents in collection.
func (e *MemoryExecutor) Len(collection string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.collections[collection])
}

func (e *MemoryExecutor) match(collection string, pred Predicate, s *query.Sort) ([]Document, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := []Document{}
	for _, doc := range e.collections[collection] {
		ok, err := matchDocument(doc, pred)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, cloneDocument(doc))
		}
	}
	sortDocuments(out, s)
	return out, nil
}

func matchDocument(doc Document, pred Predicate) (bool, error) {
	for _, c := range pred.Conditions {
		ok, err := matchCondition(doc, c)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchCondition(doc Document, c Condition) (bool, error) {
	value, present := query.Lookup(doc, c.Field)
	if !present {
		if !c.Operator.Valid() {
			return false, fmt.Errorf("%w: %q", query.ErrUnsupportedOperator, c.Operator)
		}
		switch c.Operator {
		case query.OpEqual:
			return c.Value == nil, nil
		case query.OpNotEqual:
			return c.Value != nil, nil
		}
		return false, nil
	}

	// Array fields match scalar equality on any element.
	if c.Operator == query.OpEqual || c.Operator == query.OpNotEqual {
		if _, isList := query.AsList(value); isList {
			if _, cmpList := query.AsList(c.Value); !cmpList {
				hit, err := query.Compare(value, query.OpIn, []any{c.Value})
				if c.Operator == query.OpNotEqual {
					hit = !hit
				}
				return hit, err
			}
		}
	}

	// An empty $all matches nothing.
	if c.Operator == query.OpAll {
		if required, ok := query.AsList(c.Value); ok && len(required) == 0 {
			return false, nil
		}
	}

	return query.Compare(value, c.Operator, c.Value)
}

// cloneDocument copies doc together with its nested maps and slices.
func cloneDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return cloneDocument(t)
	case map[string]any:
		return map[string]any(cloneDocument(Document(t)))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}

// sortDocuments orders docs by s. Missing fields sort first; values of
// incomparable kinds keep their relative order.
func sortDocuments(docs []Document, s *query.Sort) {
	field, desc, ok := storageSort(s)
	if !ok {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, aok := query.Lookup(docs[i], field)
		b, bok := query.Lookup(docs[j], field)
		var less bool
		switch {
		case !aok && !bok:
			return false
		case !aok:
			less = true
		case !bok:
			less = false
		default:
			cmp, comparable := query.CompareValues(a, b)
			if !comparable || cmp == 0 {
				return false
			}
			less = cmp < 0
		}
		if desc {
			return !less
		}
		return less
	})
}

// System identifies the backend on spans.
func (e *MemoryExecutor) System() string { return SystemMemory }
