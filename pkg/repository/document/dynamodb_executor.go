package document

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nimburion/docquery/pkg/query"
	dynamostore "github.com/nimburion/docquery/pkg/store/dynamodb"
)

// DynamoDBExecutor adapts the store/dynamodb adapter to the Executor contract.
// Each collection is a table whose partition key is the string attribute "_id".
// Queries run as filtered Scans; sorting and paging happen in process.
type DynamoDBExecutor struct {
	adapter *dynamostore.Adapter
}

// NewDynamoDBExecutor creates a new DynamoDBExecutor instance.
func NewDynamoDBExecutor(adapter *dynamostore.Adapter) (*DynamoDBExecutor, error) {
	if adapter == nil {
		return nil, fmt.Errorf("dynamodb adapter is required")
	}
	return &DynamoDBExecutor{adapter: adapter}, nil
}

// System identifies the backend on spans.
func (e *DynamoDBExecutor) System() string { return SystemDynamoDB }

func primaryKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{PrimaryKey: &types.AttributeValueMemberS{Value: id}}
}

func (e *DynamoDBExecutor) scan(ctx context.Context, table string, pred Predicate) ([]Document, error) {
	filter, err := translateDynamoFilters(pred)
	if err != nil {
		return nil, err
	}
	if filter.Never {
		return []Document{}, nil
	}

	input := &awsdynamodb.ScanInput{TableName: aws.String(table)}
	if filter.Expression != "" {
		input.FilterExpression = aws.String(filter.Expression)
		input.ExpressionAttributeNames = filter.Names
		if len(filter.Values) > 0 {
			input.ExpressionAttributeValues = filter.Values
		}
	}

	items, err := e.adapter.ScanAll(ctx, input)
	if err != nil {
		return nil, storeError("scan", table, err)
	}
	docs := make([]Document, 0, len(items))
	for _, item := range items {
		doc, err := unmarshalDocument(item)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func unmarshalDocument(item map[string]types.AttributeValue) (Document, error) {
	var m map[string]any
	if err := attributevalue.UnmarshalMap(item, &m); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	return Document(m), nil
}

// Find returns every item matching pred.
func (e *DynamoDBExecutor) Find(ctx context.Context, collection string, pred Predicate, s *query.Sort) ([]Document, error) {
	docs, err := e.scan(ctx, collection, pred)
	if err != nil {
		return nil, err
	}
	sortDocuments(docs, s)
	return docs, nil
}

// FindOne uses a consistent GetItem when pred is a single primary-key
// equality, and a Scan otherwise.
func (e *DynamoDBExecutor) FindOne(ctx context.Context, collection string, pred Predicate, s *query.Sort) (Document, error) {
	if id, ok := primaryKeyLookup(pred); ok {
		out, err := e.adapter.GetItem(ctx, &awsdynamodb.GetItemInput{
			TableName:      aws.String(collection),
			Key:            primaryKey(id),
			ConsistentRead: aws.Bool(true),
		})
		if err != nil {
			return nil, storeError("get", collection, err)
		}
		if len(out.Item) == 0 {
			return nil, nil
		}
		return unmarshalDocument(out.Item)
	}

	docs, err := e.Find(ctx, collection, pred, s)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

func primaryKeyLookup(pred Predicate) (string, bool) {
	if len(pred.Conditions) != 1 {
		return "", false
	}
	c := pred.Conditions[0]
	if c.Field != PrimaryKey || c.Operator != query.OpEqual {
		return "", false
	}
	id, ok := c.Value.(string)
	return id, ok
}

// FindPage scans all matches once and slices the requested page from them,
// so data and total always agree.
func (e *DynamoDBExecutor) FindPage(ctx context.Context, collection string, pred Predicate, s *query.Sort, skip, limit int) ([]Document, int64, error) {
	docs, err := e.Find(ctx, collection, pred, s)
	if err != nil {
		return nil, 0, err
	}
	start, end := pageWindow(len(docs), skip, limit)
	return docs[start:end], int64(len(docs)), nil
}

// InsertOne puts doc, refusing to overwrite an existing primary key.
func (e *DynamoDBExecutor) InsertOne(ctx context.Context, collection string, doc Document) (any, error) {
	item, err := attributevalue.MarshalMap(map[string]any(doc))
	if err != nil {
		return nil, fmt.Errorf("insert %s: encode item: %w", collection, err)
	}
	_, err = e.adapter.PutItem(ctx, &awsdynamodb.PutItemInput{
		TableName:                aws.String(collection),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": PrimaryKey},
	})
	if err != nil {
		return nil, storeError("insert", collection, err)
	}
	return doc[PrimaryKey], nil
}

// FindOneAndUpdate SETs the given attributes on an existing item and returns
// the item after the update.
func (e *DynamoDBExecutor) FindOneAndUpdate(ctx context.Context, collection string, id string, set Document) (Document, error) {
	keys := make([]string, 0, len(set))
	for k := range set {
		if k != PrimaryKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	names := map[string]string{"#pk": PrimaryKey}
	values := make(map[string]types.AttributeValue, len(keys))
	assignments := make([]string, 0, len(keys))
	for i, k := range keys {
		av, err := attributevalue.Marshal(set[k])
		if err != nil {
			return nil, fmt.Errorf("update %s: encode %s: %w", collection, k, err)
		}
		name, value := fmt.Sprintf("#u%d", i), fmt.Sprintf(":u%d", i)
		names[name] = k
		values[value] = av
		assignments = append(assignments, name+" = "+value)
	}
	if len(assignments) == 0 {
		return nil, fmt.Errorf("update %s: no fields to set", collection)
	}

	out, err := e.adapter.UpdateItem(ctx, &awsdynamodb.UpdateItemInput{
		TableName:                 aws.String(collection),
		Key:                       primaryKey(id),
		UpdateExpression:          aws.String("SET " + strings.Join(assignments, ", ")),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if dynamostore.IsConditionFailed(err) {
			return nil, ErrNotFound
		}
		return nil, storeError("update", collection, err)
	}
	return unmarshalDocument(out.Attributes)
}

// FindOneAndDelete deletes the item with the given id. Deleting a missing item succeeds.
func (e *DynamoDBExecutor) FindOneAndDelete(ctx context.Context, collection string, id string) error {
	_, err := e.adapter.DeleteItem(ctx, &awsdynamodb.DeleteItemInput{
		TableName: aws.String(collection),
		Key:       primaryKey(id),
	})
	if err != nil {
		return storeError("delete", collection, err)
	}
	return nil
}

// storeError wraps a DynamoDB failure, tagging capacity rejections with ErrThrottled.
func storeError(op, collection string, err error) error {
	if dynamostore.IsThrottlingError(err) {
		return fmt.Errorf("%s %s: %w: %w", op, collection, ErrThrottled, err)
	}
	return fmt.Errorf("%s %s: %w", op, collection, err)
}
