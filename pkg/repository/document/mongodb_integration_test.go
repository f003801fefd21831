package document

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/nimburion/docquery/pkg/observability/logger"
	"github.com/nimburion/docquery/pkg/query"
	mongostore "github.com/nimburion/docquery/pkg/store/mongodb"
	"github.com/nimburion/docquery/pkg/testutil"
)

// TestMongoDBExecutor_Integration runs the collection facade against a real
// MongoDB server.
func TestMongoDBExecutor_Integration(t *testing.T) {
	testutil.RequireContainers(t)

	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err, "start mongodb container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	adapter, err := mongostore.NewAdapter(mongostore.Config{
		URL:              uri,
		Database:         "docquery_test",
		ConnectTimeout:   30 * time.Second,
		OperationTimeout: 10 * time.Second,
	}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	exec, err := NewMongoDBExecutor(adapter)
	require.NoError(t, err)
	db, err := NewDatabase(exec, WithIDGenerator(sequentialIDs()), WithClock(newTestClock(1_700_000_000_000).Now))
	require.NoError(t, err)

	tasks := db.Collection("tasks")
	for i := 0; i < 25; i++ {
		status := "open"
		if i%5 == 0 {
			status = "done"
		}
		_, err := tasks.Insert(ctx, Record{"status": status, "n": i, "tags": []any{"t", status}})
		require.NoError(t, err)
	}

	t.Run("FilterAndSort", func(t *testing.T) {
		done, err := tasks.Query().
			Filter("status", query.OpEqual, "done").
			Sort(CreatedAtField, query.Desc).
			All(ctx)
		require.NoError(t, err)
		require.Len(t, done, 5)
		assert.EqualValues(t, 20, done[0]["n"])
		assert.EqualValues(t, 0, done[4]["n"])
		for _, rec := range done {
			assert.Contains(t, rec, IDField)
			assert.NotContains(t, rec, PrimaryKey)
		}
	})

	t.Run("Operators", func(t *testing.T) {
		tests := []struct {
			field string
			op    query.Operator
			value any
			want  int
		}{
			{"status", query.OpNotEqual, "done", 20},
			{"status", query.OpLike, "ON", 5},
			{"n", query.OpIn, []any{1, 2, 3}, 3},
			{"tags", query.OpAll, []any{"t", "done"}, 5},
			{"n", query.OpLessThan, 5, 5},
			{"n", query.OpGreaterEqual, 20, 5},
			{"n", query.OpBetween, query.Between(10, 14), 5},
		}
		for _, tt := range tests {
			got, err := tasks.Query().Filter(tt.field, tt.op, tt.value).All(ctx)
			require.NoError(t, err, "%s %s", tt.field, tt.op)
			assert.Len(t, got, tt.want, "%s %s %v", tt.field, tt.op, tt.value)
		}
	})

	t.Run("Paginate", func(t *testing.T) {
		for page, want := range map[int]int{1: 10, 2: 10, 3: 5} {
			got, err := tasks.Query().Sort("n", query.Asc).Paginate(ctx, page, 10)
			require.NoError(t, err)
			assert.Len(t, got.Data, want)
			assert.EqualValues(t, 25, got.Total)
			assert.EqualValues(t, (page-1)*10, got.Data[0]["n"])
		}
	})

	t.Run("UpdateAndRemove", func(t *testing.T) {
		rec, err := tasks.Insert(ctx, Record{"status": "new"})
		require.NoError(t, err)
		id := rec[IDField].(string)

		updated, err := tasks.Update(ctx, Record{"id": id, "status": "triaged", "createdAt": int64(1)})
		require.NoError(t, err)
		assert.Equal(t, "triaged", updated["status"])

		stored, err := tasks.Query().Filter("id", query.OpEqual, id).First(ctx)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.EqualValues(t, rec[CreatedAtField], stored[CreatedAtField])
		assert.Greater(t, stored[UpdatedAtField], rec[CreatedAtField])

		_, err = tasks.Update(ctx, Record{"id": "ghost", "status": "x"})
		assert.ErrorIs(t, err, ErrNotFound)

		for i := 0; i < 2; i++ {
			ok, err := tasks.Remove(ctx, id)
			require.NoError(t, err)
			assert.True(t, ok)
		}
		gone, err := tasks.Query().Filter("id", query.OpEqual, id).First(ctx)
		require.NoError(t, err)
		assert.Nil(t, gone)
	})
}
