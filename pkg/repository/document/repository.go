// Package document binds the query builder to named collections of a document
// store and implements the execution modes and mutations on top of a
// backend-specific Executor.
package document

import (
	"context"
	"errors"

	"github.com/nimburion/docquery/pkg/query"
)

// Field names shared by every backend.
const (
	// IDField is the caller-facing record key.
	IDField = "id"
	// PrimaryKey is the storage primary-key field.
	PrimaryKey = "_id"
	// CreatedAtField holds the insert time in epoch milliseconds.
	CreatedAtField = "createdAt"
	// UpdatedAtField holds the last update time in epoch milliseconds, 0 if never updated.
	UpdatedAtField = "updatedAt"
)

var (
	// ErrNotFound is returned by Update when no document has the given id.
	ErrNotFound = errors.New("document not found")
	// ErrMissingID is returned by Update when the payload carries no id.
	ErrMissingID = errors.New("document id is required")
	// ErrThrottled marks a failure caused by the store rejecting requests
	// over its provisioned capacity. The operation can be retried later.
	ErrThrottled = errors.New("document store throttled the request")
)

// Document is a stored document, keyed by PrimaryKey.
type Document map[string]any

// Record is a document as exposed to callers, keyed by IDField.
// A nil Record means "absent".
type Record map[string]any

// Executor is the backend seam: every method works on raw documents and a
// normalized Predicate, never on logical records.
type Executor interface {
	// Find returns every document matching pred, sorted when sort is not nil.
	Find(ctx context.Context, collection string, pred Predicate, sort *query.Sort) ([]Document, error)
	// FindOne returns the first matching document, or nil when nothing matches.
	FindOne(ctx context.Context, collection string, pred Predicate, sort *query.Sort) (Document, error)
	// FindPage returns one page of matches plus the total match count, both
	// computed from the same predicate in a single round trip where the backend allows it.
	FindPage(ctx context.Context, collection string, pred Predicate, sort *query.Sort, skip, limit int) ([]Document, int64, error)
	// InsertOne stores doc and returns its primary key.
	InsertOne(ctx context.Context, collection string, doc Document) (any, error)
	// FindOneAndUpdate merges set into the document with the given id and
	// returns the updated document. It returns ErrNotFound when the id is unknown.
	FindOneAndUpdate(ctx context.Context, collection string, id string, set Document) (Document, error)
	// FindOneAndDelete removes the document with the given id. A missing id is not an error.
	FindOneAndDelete(ctx context.Context, collection string, id string) error
}

// toRecord renames the primary key to IDField. The input is not modified.
func toRecord(doc Document) Record {
	if doc == nil {
		return nil
	}
	rec := make(Record, len(doc))
	for k, v := range doc {
		if k == PrimaryKey {
			rec[IDField] = v
			continue
		}
		rec[k] = v
	}
	return rec
}

func toRecords(docs []Document) []Record {
	out := make([]Record, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toRecord(doc))
	}
	return out
}
