package document

import (
	"context"
	"time"

	"github.com/nimburion/docquery/pkg/observability/logger"
	"github.com/nimburion/docquery/pkg/observability/metrics"
	"github.com/nimburion/docquery/pkg/observability/tracing"
	"github.com/nimburion/docquery/pkg/query"
)

// System names reported on spans.
const (
	SystemMongoDB  = "mongodb"
	SystemDynamoDB = "dynamodb"
	SystemMemory   = "memory"
)

type systemNamer interface {
	System() string
}

func systemOf(exec Executor) string {
	if n, ok := exec.(systemNamer); ok {
		return n.System()
	}
	return "unknown"
}

// instrumentedExecutor wraps every call in a span, a metrics observation and
// a debug log entry.
type instrumentedExecutor struct {
	next    Executor
	system  string
	log     logger.Logger
	metrics *metrics.DocumentMetrics
}

func (e *instrumentedExecutor) start(ctx context.Context, op tracing.SpanOperation, collection string, opts ...tracing.DatabaseSpanOption) (context.Context, func(error, ...any)) {
	opts = append([]tracing.DatabaseSpanOption{
		tracing.WithDBCollection(collection),
		tracing.WithDBSystem(e.system),
	}, opts...)
	ctx, span := tracing.StartDatabaseSpan(ctx, op, opts...)
	began := time.Now()

	return ctx, func(err error, fields ...any) {
		elapsed := time.Since(began)
		tracing.End(span, err)
		e.metrics.Record(collection, string(op), err, elapsed)

		fields = append(fields, "collection", collection, "operation", string(op), "duration", elapsed)
		log := e.log.WithContext(ctx)
		if err != nil {
			log.Debug("document operation failed", append(fields, "error", err)...)
			return
		}
		log.Debug("document operation", fields...)
	}
}

func (e *instrumentedExecutor) Find(ctx context.Context, collection string, pred Predicate, sort *query.Sort) ([]Document, error) {
	ctx, done := e.start(ctx, tracing.SpanOperationFind, collection, tracing.WithDBStatement(pred.String()))
	docs, err := e.next.Find(ctx, collection, pred, sort)
	done(err, "filters", pred.String(), "results", len(docs))
	return docs, err
}

func (e *instrumentedExecutor) FindOne(ctx context.Context, collection string, pred Predicate, sort *query.Sort) (Document, error) {
	ctx, done := e.start(ctx, tracing.SpanOperationFindOne, collection, tracing.WithDBStatement(pred.String()))
	doc, err := e.next.FindOne(ctx, collection, pred, sort)
	done(err, "filters", pred.String(), "found", doc != nil)
	return doc, err
}

func (e *instrumentedExecutor) FindPage(ctx context.Context, collection string, pred Predicate, sort *query.Sort, skip, limit int) ([]Document, int64, error) {
	ctx, done := e.start(ctx, tracing.SpanOperationPaginate, collection,
		tracing.WithDBStatement(pred.String()),
		tracing.WithDBPage(skip, limit),
	)
	docs, total, err := e.next.FindPage(ctx, collection, pred, sort, skip, limit)
	done(err, "filters", pred.String(), "skip", skip, "limit", limit, "total", total)
	return docs, total, err
}

func (e *instrumentedExecutor) InsertOne(ctx context.Context, collection string, doc Document) (any, error) {
	ctx, done := e.start(ctx, tracing.SpanOperationInsert, collection)
	id, err := e.next.InsertOne(ctx, collection, doc)
	done(err, "id", id)
	return id, err
}

func (e *instrumentedExecutor) FindOneAndUpdate(ctx context.Context, collection string, id string, set Document) (Document, error) {
	ctx, done := e.start(ctx, tracing.SpanOperationUpdate, collection)
	doc, err := e.next.FindOneAndUpdate(ctx, collection, id, set)
	done(err, "id", id, "fields", len(set))
	return doc, err
}

func (e *instrumentedExecutor) FindOneAndDelete(ctx context.Context, collection string, id string) error {
	ctx, done := e.start(ctx, tracing.SpanOperationDelete, collection)
	err := e.next.FindOneAndDelete(ctx, collection, id)
	done(err, "id", id)
	return err
}
