package document

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/crossdbodm/odm/internal/odmerr"
	"github.com/crossdbodm/odm/internal/query"
)

// compile translates a condition tree into a MongoDB filter document. This
// mirrors internal/query.Compile's job for the SQL adapters, but targets
// bson.M instead of a parameterized SQL string — the document store needs
// its own compiler since it has no placeholder/WHERE-clause concept.
func compile(c *query.Condition) (bson.M, error) {
	if c == nil {
		return bson.M{}, nil
	}
	if err := c.Validate(); err != nil {
		return nil, &odmerr.InvalidConditionError{Message: err.Error()}
	}
	return compileNode(*c)
}

func compileNode(c query.Condition) (bson.M, error) {
	if c.IsGroup() {
		parts := make([]bson.M, 0, len(c.Children))
		for _, child := range c.Children {
			part, err := compileNode(child)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		}
		op := "$and"
		if c.Logic == query.LogicOr {
			op = "$or"
		}
		return bson.M{op: parts}, nil
	}
	return compileSingle(c)
}

func compileSingle(c query.Condition) (bson.M, error) {
	field := fieldKey(c.Field)

	switch c.Operator {
	case query.OpIsNull:
		return bson.M{field: bson.M{"$in": bson.A{nil}}}, nil
	case query.OpIsNotNull:
		return bson.M{field: bson.M{"$nin": bson.A{nil}}}, nil
	case query.OpExists:
		return bson.M{field: bson.M{"$exists": true}}, nil
	}

	switch c.Operator {
	case query.OpEq:
		return bson.M{field: toBSON(c.Value)}, nil
	case query.OpNe:
		return bson.M{field: bson.M{"$ne": toBSON(c.Value)}}, nil
	case query.OpGt:
		return bson.M{field: bson.M{"$gt": toBSON(c.Value)}}, nil
	case query.OpGte:
		return bson.M{field: bson.M{"$gte": toBSON(c.Value)}}, nil
	case query.OpLt:
		return bson.M{field: bson.M{"$lt": toBSON(c.Value)}}, nil
	case query.OpLte:
		return bson.M{field: bson.M{"$lte": toBSON(c.Value)}}, nil
	case query.OpIn:
		arr, ok := c.Value.AsArray()
		if !ok {
			return nil, &odmerr.InvalidConditionError{Message: "operator In requires an array value"}
		}
		return bson.M{field: bson.M{"$in": toBSONArray(arr)}}, nil
	case query.OpNotIn:
		arr, ok := c.Value.AsArray()
		if !ok {
			return nil, &odmerr.InvalidConditionError{Message: "operator NotIn requires an array value"}
		}
		return bson.M{field: bson.M{"$nin": toBSONArray(arr)}}, nil
	case query.OpRegex:
		pattern, ok := c.Value.AsString()
		if !ok {
			return nil, &odmerr.InvalidConditionError{Message: "operator Regex requires a string value"}
		}
		return bson.M{field: bson.M{"$regex": pattern}}, nil
	case query.OpContains:
		s, ok := c.Value.AsString()
		if !ok {
			return nil, &odmerr.InvalidConditionError{Message: "operator Contains requires a string value"}
		}
		return bson.M{field: bson.M{"$regex": regexEscape(s)}}, nil
	case query.OpStartsWith:
		s, ok := c.Value.AsString()
		if !ok {
			return nil, &odmerr.InvalidConditionError{Message: "operator StartsWith requires a string value"}
		}
		return bson.M{field: bson.M{"$regex": "^" + regexEscape(s)}}, nil
	case query.OpEndsWith:
		s, ok := c.Value.AsString()
		if !ok {
			return nil, &odmerr.InvalidConditionError{Message: "operator EndsWith requires a string value"}
		}
		return bson.M{field: bson.M{"$regex": regexEscape(s) + "$"}}, nil
	default:
		return nil, &odmerr.UnsupportedOperatorError{Operator: c.Operator.String(), Backend: "mongo"}
	}
}
