package document

import (
	"context"
	"fmt"

	"github.com/nimburion/docquery/pkg/query"
	mongostore "github.com/nimburion/docquery/pkg/store/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBExecutor adapts the store/mongodb adapter to the Executor contract.
type MongoDBExecutor struct {
	adapter *mongostore.Adapter
}

// NewMongoDBExecutor creates a new MongoDBExecutor instance.
func NewMongoDBExecutor(adapter *mongostore.Adapter) (*MongoDBExecutor, error) {
	if adapter == nil {
		return nil, fmt.Errorf("mongodb adapter is required")
	}
	return &MongoDBExecutor{adapter: adapter}, nil
}

// Find returns every document matching pred.
func (e *MongoDBExecutor) Find(ctx context.Context, collection string, pred Predicate, sort *query.Sort) ([]Document, error) {
	filter, err := translateMongoFilters(pred)
	if err != nil {
		return nil, err
	}
	opts := options.Find()
	if s := translateMongoSort(sort); s != nil {
		opts.SetSort(s)
	}

	var out []bson.M
	if err := e.adapter.Find(ctx, collection, filter, &out, opts); err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	docs := make([]Document, 0, len(out))
	for _, m := range out {
		docs = append(docs, Document(m))
	}
	return docs, nil
}

// FindOne returns the first document matching pred, or nil.
func (e *MongoDBExecutor) FindOne(ctx context.Context, collection string, pred Predicate, sort *query.Sort) (Document, error) {
	filter, err := translateMongoFilters(pred)
	if err != nil {
		return nil, err
	}
	opts := options.FindOne()
	if s := translateMongoSort(sort); s != nil {
		opts.SetSort(s)
	}

	out := bson.M{}
	found, err := e.adapter.FindOne(ctx, collection, filter, &out, opts)
	if err != nil {
		return nil, fmt.Errorf("find one %s: %w", collection, err)
	}
	if !found {
		return nil, nil
	}
	return Document(out), nil
}

type mongoPageResult struct {
	Data  []bson.M `bson:"data"`
	Total []struct {
		Count int64 `bson:"count"`
	} `bson:"total"`
}

// FindPage runs the $facet pagination aggregation.
func (e *MongoDBExecutor) FindPage(ctx context.Context, collection string, pred Predicate, sort *query.Sort, skip, limit int) ([]Document, int64, error) {
	filter, err := translateMongoFilters(pred)
	if err != nil {
		return nil, 0, err
	}

	var out []mongoPageResult
	if err := e.adapter.Aggregate(ctx, collection, mongoPagePipeline(filter, translateMongoSort(sort), skip, limit), &out); err != nil {
		return nil, 0, fmt.Errorf("aggregate %s: %w", collection, err)
	}
	if len(out) == 0 {
		return []Document{}, 0, nil
	}

	page := out[0]
	docs := make([]Document, 0, len(page.Data))
	for _, m := range page.Data {
		docs = append(docs, Document(m))
	}
	var total int64
	if len(page.Total) > 0 {
		total = page.Total[0].Count
	}
	return docs, total, nil
}

// InsertOne inserts a document into the collection.
func (e *MongoDBExecutor) InsertOne(ctx context.Context, collection string, doc Document) (any, error) {
	result, err := e.adapter.InsertOne(ctx, collection, bson.M(doc))
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", collection, err)
	}
	return result.InsertedID, nil
}

// FindOneAndUpdate applies a $set of the given fields and returns the updated document.
func (e *MongoDBExecutor) FindOneAndUpdate(ctx context.Context, collection string, id string, set Document) (Document, error) {
	out := bson.M{}
	found, err := e.adapter.FindOneAndUpdate(ctx, collection,
		bson.D{{Key: PrimaryKey, Value: id}},
		bson.D{{Key: "$set", Value: bson.M(set)}},
		&out,
	)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", collection, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return Document(out), nil
}

// FindOneAndDelete deletes the document with the given id.
func (e *MongoDBExecutor) FindOneAndDelete(ctx context.Context, collection string, id string) error {
	if err := e.adapter.FindOneAndDelete(ctx, collection, bson.D{{Key: PrimaryKey, Value: id}}); err != nil {
		return fmt.Errorf("delete %s: %w", collection, err)
	}
	return nil
}

// System identifies the backend on spans.
func (e *MongoDBExecutor) System() string { return SystemMongoDB }
