package document

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nimburion/docquery/pkg/query"
)

// maxInOperands is the DynamoDB limit on IN list size.
const maxInOperands = 100

// dynamoFilter is a compiled Scan FilterExpression. Never is set when the
// predicate cannot match any item (an empty "in" or "all" list).
type dynamoFilter struct {
	Expression string
	Names      map[string]string
	Values     map[string]types.AttributeValue
	Never      bool
}

type dynamoExprBuilder struct {
	names   map[string]string
	aliases map[string]string
	values  map[string]types.AttributeValue
	next    int
	listTyp string
}

func newDynamoExprBuilder() *dynamoExprBuilder {
	return &dynamoExprBuilder{
		names:   make(map[string]string),
		aliases: make(map[string]string),
		values:  make(map[string]types.AttributeValue),
	}
}

// name returns the placeholder path for a dotted field.
func (b *dynamoExprBuilder) name(field string) string {
	segments := strings.Split(field, ".")
	for i, segment := range segments {
		alias, ok := b.aliases[segment]
		if !ok {
			alias = fmt.Sprintf("#n%d", len(b.aliases))
			b.aliases[segment] = alias
			b.names[alias] = segment
		}
		segments[i] = alias
	}
	return strings.Join(segments, ".")
}

func (b *dynamoExprBuilder) value(v any) (string, error) {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", query.ErrInvalidOperand, err)
	}
	placeholder := fmt.Sprintf(":v%d", b.next)
	b.next++
	b.values[placeholder] = av
	return placeholder, nil
}

func (b *dynamoExprBuilder) listType() string {
	if b.listTyp == "" {
		b.listTyp = ":typeL"
		b.values[b.listTyp] = &types.AttributeValueMemberS{Value: "L"}
	}
	return b.listTyp
}

// translateDynamoFilters compiles a predicate into a FilterExpression. Unlike
// MongoDB, "like" is case sensitive and equality does not reach into lists.
func translateDynamoFilters(pred Predicate) (dynamoFilter, error) {
	b := newDynamoExprBuilder()
	clauses := make([]string, 0, len(pred.Conditions))
	for _, c := range pred.Conditions {
		clause, never, err := b.fragment(c)
		if err != nil {
			return dynamoFilter{}, err
		}
		if never {
			return dynamoFilter{Never: true}, nil
		}
		clauses = append(clauses, clause)
	}
	if len(clauses) == 0 {
		return dynamoFilter{}, nil
	}
	return dynamoFilter{
		Expression: strings.Join(clauses, " AND "),
		Names:      b.names,
		Values:     b.values,
	}, nil
}

func (b *dynamoExprBuilder) fragment(c Condition) (string, bool, error) {
	name := b.name(c.Field)

	compare := func(op string) (string, bool, error) {
		v, err := b.value(c.Value)
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("%s %s %s", name, op, v), false, nil
	}

	switch c.Operator {
	case query.OpEqual:
		return compare("=")
	case query.OpNotEqual:
		v, err := b.value(c.Value)
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("(attribute_not_exists(%s) OR %s <> %s)", name, name, v), false, nil
	case query.OpLessThan:
		return compare("<")
	case query.OpLessEqual:
		return compare("<=")
	case query.OpGreaterThan:
		return compare(">")
	case query.OpGreaterEqual:
		return compare(">=")
	case query.OpLike:
		pattern, ok := c.Value.(string)
		if !ok {
			return "", false, fmt.Errorf("%w: like expects a string, got %T", query.ErrInvalidOperand, c.Value)
		}
		v, err := b.value(pattern)
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("contains(%s, %s)", name, v), false, nil
	case query.OpBetween:
		low, high, err := query.BetweenBounds(c.Value)
		if err != nil {
			return "", false, err
		}
		lo, err := b.value(low)
		if err != nil {
			return "", false, err
		}
		hi, err := b.value(high)
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", name, lo, hi), false, nil
	case query.OpIn:
		return b.inFragment(name, c.Value)
	case query.OpAll:
		return b.allFragment(name, c.Value)
	default:
		return "", false, fmt.Errorf("%w: %q", query.ErrUnsupportedOperator, c.Operator)
	}
}

// inFragment matches scalar attributes listed in the comparand and list
// attributes sharing at least one element with it.
func (b *dynamoExprBuilder) inFragment(name string, comparand any) (string, bool, error) {
	if comparand == nil {
		return "", true, nil
	}
	set, ok := query.AsList(comparand)
	if !ok {
		return "", false, fmt.Errorf("%w: in expects a list, got %T", query.ErrInvalidOperand, comparand)
	}
	if len(set) == 0 {
		return "", true, nil
	}

	placeholders := make([]string, 0, len(set))
	for _, v := range set {
		p, err := b.value(v)
		if err != nil {
			return "", false, err
		}
		placeholders = append(placeholders, p)
	}

	var scalar []string
	for start := 0; start < len(placeholders); start += maxInOperands {
		end := min(start+maxInOperands, len(placeholders))
		scalar = append(scalar, fmt.Sprintf("%s IN (%s)", name, strings.Join(placeholders[start:end], ", ")))
	}
	contains := make([]string, 0, len(placeholders))
	for _, p := range placeholders {
		contains = append(contains, fmt.Sprintf("contains(%s, %s)", name, p))
	}

	return fmt.Sprintf("(%s OR (attribute_type(%s, %s) AND (%s)))",
		strings.Join(scalar, " OR "),
		name, b.listType(),
		strings.Join(contains, " OR "),
	), false, nil
}

// allFragment matches list attributes containing every comparand element.
func (b *dynamoExprBuilder) allFragment(name string, comparand any) (string, bool, error) {
	required, ok := query.AsList(comparand)
	if !ok {
		return "", false, fmt.Errorf("%w: all expects a list, got %T", query.ErrInvalidOperand, comparand)
	}
	if len(required) == 0 {
		return "", true, nil
	}

	parts := []string{fmt.Sprintf("attribute_type(%s, %s)", name, b.listType())}
	for _, v := range required {
		p, err := b.value(v)
		if err != nil {
			return "", false, err
		}
		parts = append(parts, fmt.Sprintf("contains(%s, %s)", name, p))
	}
	return "(" + strings.Join(parts, " AND ") + ")", false, nil
}
