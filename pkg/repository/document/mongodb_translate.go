package document

import (
	"fmt"
	"regexp"

	"github.com/nimburion/docquery/pkg/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// translateMongoFilters compiles a predicate into a MongoDB query document.
func translateMongoFilters(pred Predicate) (bson.D, error) {
	out := bson.D{}
	for _, c := range pred.Conditions {
		fragment, err := mongoFragment(c)
		if err != nil {
			return nil, err
		}
		out = append(out, bson.E{Key: c.Field, Value: fragment})
	}
	return out, nil
}

func mongoFragment(c Condition) (any, error) {
	switch c.Operator {
	case query.OpEqual:
		return c.Value, nil
	case query.OpNotEqual:
		return bson.D{{Key: "$ne", Value: c.Value}}, nil
	case query.OpLike:
		pattern, ok := c.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: like expects a string, got %T", query.ErrInvalidOperand, c.Value)
		}
		return primitive.Regex{Pattern: ".*" + regexp.QuoteMeta(pattern) + ".*", Options: "i"}, nil
	case query.OpIn:
		return bson.D{{Key: "$in", Value: c.Value}}, nil
	case query.OpAll:
		return bson.D{{Key: "$all", Value: c.Value}}, nil
	case query.OpLessThan:
		return bson.D{{Key: "$lt", Value: c.Value}}, nil
	case query.OpLessEqual:
		return bson.D{{Key: "$lte", Value: c.Value}}, nil
	case query.OpGreaterThan:
		return bson.D{{Key: "$gt", Value: c.Value}}, nil
	case query.OpGreaterEqual:
		return bson.D{{Key: "$gte", Value: c.Value}}, nil
	case query.OpBetween:
		low, high, err := query.BetweenBounds(c.Value)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$gte", Value: low}, {Key: "$lte", Value: high}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", query.ErrUnsupportedOperator, c.Operator)
	}
}

// translateMongoSort returns the sort document for s, or nil when unsorted.
func translateMongoSort(s *query.Sort) bson.D {
	field, desc, ok := storageSort(s)
	if !ok {
		return nil
	}
	direction := 1
	if desc {
		direction = -1
	}
	return bson.D{{Key: field, Value: direction}}
}

// mongoPagePipeline builds the single $facet aggregation computing one page
// of data and the total match count from the same $match stage.
func mongoPagePipeline(filter, sort bson.D, skip, limit int) mongo.Pipeline {
	data := bson.A{bson.D{{Key: "$match", Value: filter}}}
	if len(sort) > 0 {
		data = append(data, bson.D{{Key: "$sort", Value: sort}})
	}
	data = append(data,
		bson.D{{Key: "$skip", Value: int64(skip)}},
		bson.D{{Key: "$limit", Value: int64(limit)}},
	)

	total := bson.A{
		bson.D{{Key: "$match", Value: filter}},
		bson.D{{Key: "$count", Value: "count"}},
	}

	return mongo.Pipeline{
		{{Key: "$facet", Value: bson.D{
			{Key: "data", Value: data},
			{Key: "total", Value: total},
		}}},
	}
}
