package document

import (
	"context"
	"fmt"

	"github.com/nimburion/docquery/pkg/query"
)

// Collection binds query builders and mutations to one named collection.
type Collection struct {
	name string
	db   *Database
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Query returns a new chain root whose terminal calls run against this collection.
func (c *Collection) Query() *query.Builder[Record] {
	return query.New(c.handle)
}

func (c *Collection) handle(ctx context.Context, params query.Params[Record]) (query.Result[Record], error) {
	pred, err := NewPredicate(params.Filters)
	if err != nil {
		return query.Result[Record]{}, err
	}
	exec := c.db.exec

	switch params.Mode {
	case query.ModeAll:
		docs, err := exec.Find(ctx, c.name, pred, params.Sort)
		if err != nil {
			return query.Result[Record]{}, err
		}
		items, err := params.ApplyAll(toRecords(docs))
		if err != nil {
			return query.Result[Record]{}, err
		}
		return query.Result[Record]{Items: items}, nil

	case query.ModeFirst:
		doc, err := exec.FindOne(ctx, c.name, pred, params.Sort)
		if err != nil {
			return query.Result[Record]{}, err
		}
		item, err := params.Apply(toRecord(doc))
		if err != nil {
			return query.Result[Record]{}, err
		}
		return query.Result[Record]{Item: item}, nil

	case query.ModePaginate:
		params = params.Normalize()
		docs, total, err := exec.FindPage(ctx, c.name, pred, params.Sort, params.Skip(), params.PerPage)
		if err != nil {
			return query.Result[Record]{}, err
		}
		items, err := params.ApplyAll(toRecords(docs))
		if err != nil {
			return query.Result[Record]{}, err
		}
		return query.Result[Record]{Page: query.Paginated[Record]{
			Data:    items,
			Page:    params.Page,
			PerPage: params.PerPage,
			Total:   total,
		}}, nil

	default:
		return query.Result[Record]{}, fmt.Errorf("unknown query mode %q", params.Mode)
	}
}

// Insert stores data under a freshly generated id. Any id or primary key in
// data is ignored; createdAt is set to now and updatedAt to 0.
func (c *Collection) Insert(ctx context.Context, data Record) (Record, error) {
	id, err := c.db.newID()
	if err != nil {
		return nil, err
	}

	doc := make(Document, len(data)+3)
	for k, v := range data {
		if k == IDField || k == PrimaryKey {
			continue
		}
		doc[k] = v
	}
	doc[PrimaryKey] = id
	doc[CreatedAtField] = c.db.nowMillis()
	doc[UpdatedAtField] = int64(0)

	if _, err := c.db.exec.InsertOne(ctx, c.name, doc); err != nil {
		return nil, err
	}
	return toRecord(doc), nil
}

// Update merges the fields of data into the stored record identified by
// data["id"]. createdAt is never written; updatedAt is set to now. Fields not
// present in data are preserved.
func (c *Collection) Update(ctx context.Context, data Record) (Record, error) {
	id, ok := data[IDField].(string)
	if !ok || id == "" {
		return nil, ErrMissingID
	}

	set := make(Document, len(data))
	for k, v := range data {
		switch k {
		case IDField, PrimaryKey, CreatedAtField:
			continue
		}
		set[k] = v
	}
	set[UpdatedAtField] = c.db.nowMillis()

	stored, err := c.db.exec.FindOneAndUpdate(ctx, c.name, id, set)
	if err != nil {
		return nil, err
	}

	out := toRecord(stored)
	if out == nil {
		out = Record{}
	}
	for k, v := range set {
		out[k] = v
	}
	out[IDField] = id
	return out, nil
}

// Remove deletes the record with the given id. Removing an unknown id succeeds.
func (c *Collection) Remove(ctx context.Context, id string) (bool, error) {
	if err := c.db.exec.FindOneAndDelete(ctx, c.name, id); err != nil {
		return false, err
	}
	return true, nil
}
