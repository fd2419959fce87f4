package query

import (
	"regexp"
	"strings"

	"github.com/crossdbodm/odm/internal/value"
)

// Evaluator evaluates a Condition tree against an in-memory record. It
// gives tests a backend-independent oracle to check adapter results
// against; the embedded-SQL engine's LIKE approximation decision is made
// by CanApproximateWithLike, not here.
type Evaluator struct{}

// Evaluate reports whether record satisfies the condition tree.
func (Evaluator) Evaluate(c Condition, record value.Value) (bool, error) {
	if c.IsGroup() {
		switch c.Logic {
		case LogicAnd:
			for _, child := range c.Children {
				ok, err := (Evaluator{}).Evaluate(child, record)
				if err != nil {
					return false, err
				}
				if !ok {
					return false, nil
				}
			}
			return true, nil
		case LogicOr:
			for _, child := range c.Children {
				ok, err := (Evaluator{}).Evaluate(child, record)
				if err != nil {
					return false, err
				}
				if ok {
					return true, nil
				}
			}
			return false, nil
		}
	}
	return evalSingle(c, record)
}

func evalSingle(c Condition, record value.Value) (bool, error) {
	fieldVal, present := record.Get(c.Field)

	switch c.Operator {
	case OpExists:
		return present, nil
	case OpIsNull:
		return !present || fieldVal.IsNull(), nil
	case OpIsNotNull:
		return present && !fieldVal.IsNull(), nil
	}

	if !present {
		return false, nil
	}

	switch c.Operator {
	case OpEq:
		return value.Equal(fieldVal, c.Value), nil
	case OpNe:
		return !value.Equal(fieldVal, c.Value), nil
	case OpGt, OpGte, OpLt, OpLte:
		return compareOrdered(c.Operator, fieldVal, c.Value)
	case OpContains:
		return stringOp(fieldVal, c.Value, strings.Contains)
	case OpStartsWith:
		return stringOp(fieldVal, c.Value, strings.HasPrefix)
	case OpEndsWith:
		return stringOp(fieldVal, c.Value, strings.HasSuffix)
	case OpRegex:
		pattern, ok := c.Value.AsString()
		if !ok {
			return false, nil
		}
		s, ok := fieldVal.AsString()
		if !ok {
			return false, nil
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, err
		}
		return re.MatchString(s), nil
	case OpIn:
		arr, ok := c.Value.AsArray()
		if !ok {
			return false, nil
		}
		for _, item := range arr {
			if value.Equal(fieldVal, item) {
				return true, nil
			}
		}
		return false, nil
	case OpNotIn:
		arr, ok := c.Value.AsArray()
		if !ok {
			return false, nil
		}
		for _, item := range arr {
			if value.Equal(fieldVal, item) {
				return false, nil
			}
		}
		return true, nil
	default:
		return false, nil
	}
}

func stringOp(field, target value.Value, op func(s, substr string) bool) (bool, error) {
	s, ok := field.AsString()
	if !ok {
		return false, nil
	}
	t, ok := target.AsString()
	if !ok {
		return false, nil
	}
	return op(s, t), nil
}

func compareOrdered(op Operator, a, b value.Value) (bool, error) {
	var cmp int
	switch {
	case a.Kind() == value.KindInt && b.Kind() == value.KindInt:
		ai, _ := a.AsInt()
		bi, _ := b.AsInt()
		cmp = compareInt64(ai, bi)
	case a.Kind() == value.KindFloat || b.Kind() == value.KindFloat:
		af := asFloat(a)
		bf := asFloat(b)
		cmp = compareFloat64(af, bf)
	case a.Kind() == value.KindString && b.Kind() == value.KindString:
		as, _ := a.AsString()
		bs, _ := b.AsString()
		cmp = strings.Compare(as, bs)
	case a.Kind() == value.KindTimestamp && b.Kind() == value.KindTimestamp:
		at, _ := a.AsTimestamp()
		bt, _ := b.AsTimestamp()
		switch {
		case at.Before(bt):
			cmp = -1
		case at.After(bt):
			cmp = 1
		default:
			cmp = 0
		}
	default:
		return false, nil
	}

	switch op {
	case OpGt:
		return cmp > 0, nil
	case OpGte:
		return cmp >= 0, nil
	case OpLt:
		return cmp < 0, nil
	case OpLte:
		return cmp <= 0, nil
	default:
		return false, nil
	}
}

func asFloat(v value.Value) float64 {
	if f, ok := v.AsFloat(); ok {
		return f
	}
	if i, ok := v.AsInt(); ok {
		return float64(i)
	}
	return 0
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// regexMetaChars matches the regex metacharacters whose presence in an
// anchored pattern's body rules out the narrow case spec.md allows the embedded
// engine to approximate Regex with a LIKE clause instead of failing with
// UnsupportedOperator.
var regexMetaChars = regexp.MustCompile(`[\\^$.|?*+()\[\]{}]`)

// CanApproximateWithLike reports whether pattern is anchored and literal
// enough for the embedded SQL engine's LIKE-based Regex approximation
// (e.g. "^foo" or "bar$" with no other metacharacters).
func CanApproximateWithLike(pattern string) (likePattern string, ok bool) {
	anchoredStart := strings.HasPrefix(pattern, "^")
	anchoredEnd := strings.HasSuffix(pattern, "$")
	if !anchoredStart && !anchoredEnd {
		return "", false
	}
	body := strings.TrimSuffix(strings.TrimPrefix(pattern, "^"), "$")
	if regexMetaChars.MatchString(body) {
		return "", false
	}
	switch {
	case anchoredStart && anchoredEnd:
		return body, true
	case anchoredStart:
		return body + "%", true
	default:
		return "%" + body, true
	}
}
