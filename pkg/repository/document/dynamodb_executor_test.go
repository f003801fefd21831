package document

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/nimburion/docquery/pkg/query"
	dynamostore "github.com/nimburion/docquery/pkg/store/dynamodb"
)

// fakeDynamo records requests and serves canned responses.
type fakeDynamo struct {
	scanPages []map[string]types.AttributeValue
	scans     []*awsdynamodb.ScanInput
	scanErr   error

	getItem map[string]types.AttributeValue
	gets    []*awsdynamodb.GetItemInput

	puts    []*awsdynamodb.PutItemInput
	putErr  error
	updates []*awsdynamodb.UpdateItemInput
	updated map[string]types.AttributeValue
	updErr  error
	deletes []*awsdynamodb.DeleteItemInput
	delErr  error
}

func (f *fakeDynamo) ListTables(context.Context, *awsdynamodb.ListTablesInput, ...func(*awsdynamodb.Options)) (*awsdynamodb.ListTablesOutput, error) {
	return &awsdynamodb.ListTablesOutput{}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *awsdynamodb.PutItemInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	return &awsdynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) GetItem(_ context.Context, in *awsdynamodb.GetItemInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.GetItemOutput, error) {
	f.gets = append(f.gets, in)
	return &awsdynamodb.GetItemOutput{Item: f.getItem}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *awsdynamodb.UpdateItemInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	if f.updErr != nil {
		return nil, f.updErr
	}
	return &awsdynamodb.UpdateItemOutput{Attributes: f.updated}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *awsdynamodb.DeleteItemInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.DeleteItemOutput, error) {
	f.deletes = append(f.deletes, in)
	return &awsdynamodb.DeleteItemOutput{}, f.delErr
}

// Scan serves one item per page.
func (f *fakeDynamo) Scan(_ context.Context, in *awsdynamodb.ScanInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.ScanOutput, error) {
	f.scans = append(f.scans, in)
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	index := len(f.scans) - 1
	if index >= len(f.scanPages) {
		return &awsdynamodb.ScanOutput{}, nil
	}
	out := &awsdynamodb.ScanOutput{Items: []map[string]types.AttributeValue{f.scanPages[index]}}
	if index+1 < len(f.scanPages) {
		out.LastEvaluatedKey = primaryKey("page")
	}
	return out, nil
}

func newFakeDynamoExecutor(t *testing.T, fake *fakeDynamo) *DynamoDBExecutor {
	t.Helper()
	exec, err := NewDynamoDBExecutor(dynamostore.NewAdapterWithClient(fake, dynamostore.Config{}, nil))
	if err != nil {
		t.Fatalf("NewDynamoDBExecutor: %v", err)
	}
	return exec
}

func item(id string, rank int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		PrimaryKey: &types.AttributeValueMemberS{Value: id},
		"rank":     &types.AttributeValueMemberN{Value: strconv.Itoa(rank)},
	}
}

func TestDynamoDBExecutor_FindScansAndSorts(t *testing.T) {
	fake := &fakeDynamo{scanPages: []map[string]types.AttributeValue{item("a", 3), item("b", 1), item("c", 2)}}
	exec := newFakeDynamoExecutor(t, fake)

	pred := mustPredicate(t, query.NewFilter(query.OpGreaterThan, 0, "rank"))
	docs, err := exec.Find(context.Background(), "items", pred, &query.Sort{Field: "rank", Order: query.Desc})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(fake.scans) != 3 {
		t.Fatalf("expected 3 scan pages, got %d", len(fake.scans))
	}
	first := fake.scans[0]
	if aws.ToString(first.TableName) != "items" {
		t.Errorf("expected table items, got %q", aws.ToString(first.TableName))
	}
	if aws.ToString(first.FilterExpression) != "#n0 > :v0" {
		t.Errorf("unexpected filter expression %q", aws.ToString(first.FilterExpression))
	}
	if first.ExpressionAttributeNames["#n0"] != "rank" {
		t.Errorf("unexpected attribute names %v", first.ExpressionAttributeNames)
	}

	want := []any{"a", "c", "b"}
	got := primaryKeys(docs)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if docs[0]["rank"] != float64(3) {
		t.Errorf("expected numbers to decode as float64, got %T", docs[0]["rank"])
	}
}

func TestDynamoDBExecutor_FindWithoutFilter(t *testing.T) {
	fake := &fakeDynamo{}
	exec := newFakeDynamoExecutor(t, fake)

	if _, err := exec.Find(context.Background(), "items", Predicate{}, nil); err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(fake.scans) != 1 {
		t.Fatalf("expected 1 scan, got %d", len(fake.scans))
	}
	if fake.scans[0].FilterExpression != nil || fake.scans[0].ExpressionAttributeValues != nil {
		t.Errorf("expected unfiltered scan, got %+v", fake.scans[0])
	}
}

func TestDynamoDBExecutor_NeverMatchingSkipsScan(t *testing.T) {
	fake := &fakeDynamo{scanPages: []map[string]types.AttributeValue{item("a", 1)}}
	exec := newFakeDynamoExecutor(t, fake)

	pred := mustPredicate(t, query.NewFilter(query.OpIn, []any{}, "rank"))
	docs, err := exec.Find(context.Background(), "items", pred, nil)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(docs) != 0 || len(fake.scans) != 0 {
		t.Fatalf("expected no scan and no results, got %d scans and %d docs", len(fake.scans), len(docs))
	}
}

func TestDynamoDBExecutor_FindOneByID(t *testing.T) {
	fake := &fakeDynamo{getItem: item("a", 1)}
	exec := newFakeDynamoExecutor(t, fake)

	doc, err := exec.FindOne(context.Background(), "items", mustPredicate(t, query.NewFilter(query.OpEqual, "a", IDField)), nil)
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if doc[PrimaryKey] != "a" {
		t.Fatalf("expected document a, got %v", doc)
	}
	if len(fake.gets) != 1 || len(fake.scans) != 0 {
		t.Fatalf("expected a single GetItem, got %d gets and %d scans", len(fake.gets), len(fake.scans))
	}
	if !aws.ToBool(fake.gets[0].ConsistentRead) {
		t.Error("expected consistent read")
	}

	fake.getItem = nil
	doc, err = exec.FindOne(context.Background(), "items", mustPredicate(t, query.NewFilter(query.OpEqual, "zz", IDField)), nil)
	if err != nil || doc != nil {
		t.Fatalf("expected nil document, got %v, %v", doc, err)
	}
}

func TestDynamoDBExecutor_FindPage(t *testing.T) {
	fake := &fakeDynamo{scanPages: []map[string]types.AttributeValue{item("a", 1), item("b", 2), item("c", 3)}}
	exec := newFakeDynamoExecutor(t, fake)

	docs, total, err := exec.FindPage(context.Background(), "items", Predicate{}, &query.Sort{Field: "rank", Order: query.Asc}, 2, 2)
	if err != nil {
		t.Fatalf("FindPage: %v", err)
	}
	if total != 3 || len(docs) != 1 || docs[0][PrimaryKey] != "c" {
		t.Fatalf("expected [c] of 3, got %v of %d", primaryKeys(docs), total)
	}
}

func TestDynamoDBExecutor_InsertOne(t *testing.T) {
	fake := &fakeDynamo{}
	exec := newFakeDynamoExecutor(t, fake)

	id, err := exec.InsertOne(context.Background(), "items", Document{PrimaryKey: "a", "name": "Ada"})
	if err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	if id != "a" {
		t.Errorf("expected id a, got %v", id)
	}
	put := fake.puts[0]
	if aws.ToString(put.ConditionExpression) != "attribute_not_exists(#pk)" {
		t.Errorf("unexpected condition %q", aws.ToString(put.ConditionExpression))
	}
	if name, ok := put.Item["name"].(*types.AttributeValueMemberS); !ok || name.Value != "Ada" {
		t.Errorf("unexpected encoded item %v", put.Item)
	}
}

func TestDynamoDBExecutor_FindOneAndUpdate(t *testing.T) {
	fake := &fakeDynamo{updated: item("a", 2)}
	exec := newFakeDynamoExecutor(t, fake)

	doc, err := exec.FindOneAndUpdate(context.Background(), "items", "a", Document{"rank": 2, "note": "x", PrimaryKey: "ignored"})
	if err != nil {
		t.Fatalf("FindOneAndUpdate: %v", err)
	}
	if doc["rank"] != float64(2) {
		t.Errorf("expected updated rank, got %v", doc["rank"])
	}

	upd := fake.updates[0]
	if aws.ToString(upd.UpdateExpression) != "SET #u0 = :u0, #u1 = :u1" {
		t.Errorf("unexpected update expression %q", aws.ToString(upd.UpdateExpression))
	}
	if upd.ExpressionAttributeNames["#u0"] != "note" || upd.ExpressionAttributeNames["#u1"] != "rank" {
		t.Errorf("unexpected names %v", upd.ExpressionAttributeNames)
	}
	if upd.ReturnValues != types.ReturnValueAllNew {
		t.Errorf("expected ALL_NEW, got %v", upd.ReturnValues)
	}
}

func TestDynamoDBExecutor_FindOneAndUpdateMissing(t *testing.T) {
	fake := &fakeDynamo{updErr: &types.ConditionalCheckFailedException{Message: aws.String("missing")}}
	exec := newFakeDynamoExecutor(t, fake)

	if _, err := exec.FindOneAndUpdate(context.Background(), "items", "ghost", Document{"rank": 1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDynamoDBExecutor_Throttled(t *testing.T) {
	throttled := &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}
	ctx := context.Background()

	tests := []struct {
		name string
		fake *fakeDynamo
		call func(*DynamoDBExecutor) error
	}{
		{"scan", &fakeDynamo{scanErr: throttled}, func(e *DynamoDBExecutor) error {
			_, _, err := e.FindPage(ctx, "items", Predicate{}, nil, 0, 10)
			return err
		}},
		{"insert", &fakeDynamo{putErr: &types.RequestLimitExceeded{}}, func(e *DynamoDBExecutor) error {
			_, err := e.InsertOne(ctx, "items", Document{PrimaryKey: "a"})
			return err
		}},
		{"update", &fakeDynamo{updErr: throttled}, func(e *DynamoDBExecutor) error {
			_, err := e.FindOneAndUpdate(ctx, "items", "a", Document{"rank": 1})
			return err
		}},
		{"delete", &fakeDynamo{delErr: throttled}, func(e *DynamoDBExecutor) error {
			return e.FindOneAndDelete(ctx, "items", "a")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(newFakeDynamoExecutor(t, tt.fake))
			if !errors.Is(err, ErrThrottled) {
				t.Fatalf("expected ErrThrottled, got %v", err)
			}
			if !dynamostore.IsThrottlingError(err) {
				t.Fatalf("store error must stay inspectable, got %v", err)
			}
		})
	}

	err := newFakeDynamoExecutor(t, &fakeDynamo{delErr: errors.New("boom")}).FindOneAndDelete(ctx, "items", "a")
	if err == nil || errors.Is(err, ErrThrottled) {
		t.Fatalf("plain failures must not be marked throttled, got %v", err)
	}
}

func TestDynamoDBExecutor_FindOneAndDelete(t *testing.T) {
	fake := &fakeDynamo{}
	exec := newFakeDynamoExecutor(t, fake)

	if err := exec.FindOneAndDelete(context.Background(), "items", "a"); err != nil {
		t.Fatalf("FindOneAndDelete: %v", err)
	}
	key, ok := fake.deletes[0].Key[PrimaryKey].(*types.AttributeValueMemberS)
	if !ok || key.Value != "a" {
		t.Fatalf("unexpected delete key %v", fake.deletes[0].Key)
	}
}

func TestDynamoDBExecutor_ThroughFacade(t *testing.T) {
	fake := &fakeDynamo{}
	db, err := NewDatabase(newFakeDynamoExecutor(t, fake), WithIDGenerator(sequentialIDs()))
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}

	rec, err := db.Collection("items").Insert(context.Background(), Record{"name": "Ada"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if rec[IDField] != "id0001" {
		t.Fatalf("expected generated id, got %v", rec[IDField])
	}
	if _, ok := fake.puts[0].Item[CreatedAtField].(*types.AttributeValueMemberN); !ok {
		t.Fatalf("expected numeric createdAt, got %T", fake.puts[0].Item[CreatedAtField])
	}
}
