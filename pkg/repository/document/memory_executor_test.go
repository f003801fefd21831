package document

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/nimburion/docquery/pkg/query"
)

func seedMemory(t *testing.T, docs ...Document) *MemoryExecutor {
	t.Helper()
	mem := NewMemoryExecutor()
	for _, doc := range docs {
		if _, err := mem.InsertOne(context.Background(), "items", doc); err != nil {
			t.Fatalf("InsertOne: %v", err)
		}
	}
	return mem
}

func primaryKeys(docs []Document) []any {
	out := make([]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, d[PrimaryKey])
	}
	return out
}

func TestMemoryExecutor_InsertOne(t *testing.T) {
	mem := NewMemoryExecutor()
	ctx := context.Background()

	id, err := mem.InsertOne(ctx, "items", Document{PrimaryKey: "a", "n": 1})
	if err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	if id != "a" {
		t.Errorf("expected id a, got %v", id)
	}
	if _, err := mem.InsertOne(ctx, "items", Document{PrimaryKey: "a"}); err == nil {
		t.Error("expected duplicate key error")
	}
	if _, err := mem.InsertOne(ctx, "items", Document{"n": 2}); err == nil {
		t.Error("expected error for document without primary key")
	}
	if mem.Len("items") != 1 {
		t.Errorf("expected 1 document, got %d", mem.Len("items"))
	}
}

func TestMemoryExecutor_StoresCopies(t *testing.T) {
	doc := Document{PrimaryKey: "a", "n": 1}
	mem := seedMemory(t, doc)
	doc["n"] = 2

	got, err := mem.FindOne(context.Background(), "items", Predicate{}, nil)
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got["n"] != 1 {
		t.Fatalf("stored document changed through caller map: %v", got["n"])
	}
	got["n"] = 3

	again, _ := mem.FindOne(context.Background(), "items", Predicate{}, nil)
	if again["n"] != 1 {
		t.Fatalf("stored document changed through result map: %v", again["n"])
	}
}

func TestMemoryExecutor_StoresDeepCopies(t *testing.T) {
	tags := []any{"x"}
	meta := map[string]any{"owner": "ada"}
	mem := seedMemory(t, Document{PrimaryKey: "a", "tags": tags, "meta": meta})
	ctx := context.Background()

	tags[0] = "changed"
	meta["owner"] = "changed"

	got, err := mem.FindOne(ctx, "items", Predicate{}, nil)
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got["tags"].([]any)[0] != "x" {
		t.Fatalf("stored slice changed through caller: %v", got["tags"])
	}
	if got["meta"].(map[string]any)["owner"] != "ada" {
		t.Fatalf("stored map changed through caller: %v", got["meta"])
	}

	got["tags"].([]any)[0] = "result"
	set := Document{"meta": map[string]any{"owner": "grace"}}
	updated, err := mem.FindOneAndUpdate(ctx, "items", "a", set)
	if err != nil {
		t.Fatalf("FindOneAndUpdate: %v", err)
	}
	set["meta"].(map[string]any)["owner"] = "changed"
	updated["meta"].(map[string]any)["owner"] = "changed"

	again, _ := mem.FindOne(ctx, "items", Predicate{}, nil)
	if again["tags"].([]any)[0] != "x" {
		t.Fatalf("stored slice changed through result: %v", again["tags"])
	}
	if again["meta"].(map[string]any)["owner"] != "grace" {
		t.Fatalf("stored map changed after update: %v", again["meta"])
	}
}

func TestMemoryExecutor_StoreSemantics(t *testing.T) {
	mem := seedMemory(t,
		Document{PrimaryKey: "a", "status": "open", "tags": []any{"x", "y"}, "score": 0},
		Document{PrimaryKey: "b", "status": "done", "tags": []any{"y"}},
		Document{PrimaryKey: "c", "tags": []any{}, "score": 5},
	)

	tests := []struct {
		name string
		cond Condition
		want []any
	}{
		{"missing field matches not equal", Condition{"status", query.OpNotEqual, "open"}, []any{"b", "c"}},
		{"missing field matches equal nil", Condition{"status", query.OpEqual, nil}, []any{"c"}},
		{"missing field fails not equal nil", Condition{"status", query.OpNotEqual, nil}, []any{"a", "b"}},
		{"missing field never matches equal value", Condition{"status", query.OpEqual, "open"}, []any{"a"}},
		{"missing field never matches in", Condition{"status", query.OpIn, []any{"open", "done"}}, []any{"a", "b"}},
		{"zero value compares normally", Condition{"score", query.OpEqual, 0}, []any{"a"}},
		{"scalar equality on array element", Condition{"tags", query.OpEqual, "y"}, []any{"a", "b"}},
		{"scalar inequality on array element", Condition{"tags", query.OpNotEqual, "x"}, []any{"b", "c"}},
		{"all requires every element", Condition{"tags", query.OpAll, []any{"x", "y"}}, []any{"a"}},
		{"empty all matches nothing", Condition{"tags", query.OpAll, []any{}}, []any{}},
		{"in intersects arrays", Condition{"tags", query.OpIn, []any{"x", "q"}}, []any{"a"}},
		{"like is case-insensitive", Condition{"status", query.OpLike, "OP"}, []any{"a"}},
		{"between inclusive", Condition{"score", query.OpBetween, query.Between(0, 5)}, []any{"a", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mem.Find(context.Background(), "items", Predicate{Conditions: []Condition{tt.cond}}, &query.Sort{Field: PrimaryKey, Order: query.Asc})
			if err != nil {
				t.Fatalf("Find: %v", err)
			}
			keys := primaryKeys(got)
			if len(keys) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, keys)
			}
			for i := range keys {
				if keys[i] != tt.want[i] {
					t.Fatalf("expected %v, got %v", tt.want, keys)
				}
			}
		})
	}
}

func TestMemoryExecutor_InvalidOperand(t *testing.T) {
	mem := seedMemory(t, Document{PrimaryKey: "a", "name": "Ada"})
	pred := Predicate{Conditions: []Condition{{Field: "name", Operator: query.OpLike, Value: 42}}}

	if _, err := mem.Find(context.Background(), "items", pred, nil); !errors.Is(err, query.ErrInvalidOperand) {
		t.Fatalf("expected ErrInvalidOperand, got %v", err)
	}
}

func TestMemoryExecutor_Sort(t *testing.T) {
	mem := seedMemory(t,
		Document{PrimaryKey: "a", "rank": 2},
		Document{PrimaryKey: "b"},
		Document{PrimaryKey: "c", "rank": 1},
		Document{PrimaryKey: "d", "rank": 2},
	)
	ctx := context.Background()

	asc, err := mem.Find(ctx, "items", Predicate{}, &query.Sort{Field: "rank", Order: query.Asc})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got := primaryKeys(asc); got[0] != "b" || got[1] != "c" || got[2] != "a" || got[3] != "d" {
		t.Errorf("unexpected ascending order %v", got)
	}

	desc, err := mem.Find(ctx, "items", Predicate{}, &query.Sort{Field: "rank", Order: query.Desc})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got := primaryKeys(desc); got[0] != "a" || got[1] != "d" || got[2] != "c" || got[3] != "b" {
		t.Errorf("unexpected descending order %v", got)
	}

	byID, err := mem.Find(ctx, "items", Predicate{}, &query.Sort{Field: IDField, Order: query.Desc})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got := primaryKeys(byID); got[0] != "d" || got[3] != "a" {
		t.Errorf("sorting on id should use the primary key, got %v", got)
	}
}

func TestMemoryExecutor_FindPage(t *testing.T) {
	var docs []Document
	for i := 0; i < 7; i++ {
		docs = append(docs, Document{PrimaryKey: string(rune('a' + i)), "n": i})
	}
	mem := seedMemory(t, docs...)
	sortByN := &query.Sort{Field: "n", Order: query.Asc}

	tests := []struct {
		skip, limit int
		wantLen     int
		wantFirst   any
	}{
		{0, 3, 3, 0},
		{3, 3, 3, 3},
		{6, 3, 1, 6},
		{9, 3, 0, nil},
		{0, 0, 7, 0},
		{-4, 3, 0, nil},
		{math.MaxInt, 3, 0, nil},
		{2, math.MaxInt, 5, 2},
	}

	for _, tt := range tests {
		page, total, err := mem.FindPage(context.Background(), "items", Predicate{}, sortByN, tt.skip, tt.limit)
		if err != nil {
			t.Fatalf("FindPage(%d, %d): %v", tt.skip, tt.limit, err)
		}
		if total != 7 {
			t.Errorf("FindPage(%d, %d): expected total 7, got %d", tt.skip, tt.limit, total)
		}
		if len(page) != tt.wantLen {
			t.Fatalf("FindPage(%d, %d): expected %d items, got %d", tt.skip, tt.limit, tt.wantLen, len(page))
		}
		if tt.wantLen > 0 && page[0]["n"] != tt.wantFirst {
			t.Errorf("FindPage(%d, %d): expected first n=%v, got %v", tt.skip, tt.limit, tt.wantFirst, page[0]["n"])
		}
	}
}

func TestMemoryExecutor_UpdateAndDelete(t *testing.T) {
	mem := seedMemory(t, Document{PrimaryKey: "a", "n": 1, "keep": true})
	ctx := context.Background()

	updated, err := mem.FindOneAndUpdate(ctx, "items", "a", Document{"n": 2, PrimaryKey: "hijack"})
	if err != nil {
		t.Fatalf("FindOneAndUpdate: %v", err)
	}
	if updated["n"] != 2 || updated["keep"] != true || updated[PrimaryKey] != "a" {
		t.Fatalf("unexpected updated document %v", updated)
	}
	if _, err := mem.FindOneAndUpdate(ctx, "items", "ghost", Document{"n": 3}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := mem.FindOneAndDelete(ctx, "items", "a"); err != nil {
			t.Fatalf("delete #%d: %v", i+1, err)
		}
	}
	if mem.Len("items") != 0 {
		t.Fatalf("expected empty collection, got %d", mem.Len("items"))
	}
}
