package query

import (
	"fmt"
	"strings"

	"github.com/crossdbodm/odm/internal/odmerr"
	"github.com/crossdbodm/odm/internal/value"
)

// Dialect abstracts the handful of per-engine differences in SQL
// compilation: placeholder syntax, the regex operator (if any), and JSON
// array/array-literal handling. The three SQL adapters each supply one.
type Dialect struct {
	Name string

	// Placeholder renders the N-th (1-indexed) bound parameter placeholder,
	// e.g. "?" for SQLite/MySQL or "$1" for Postgres.
	Placeholder func(n int) string

	// NativeRegexOperator, if non-empty, is the SQL operator/function used
	// to express Regex directly (e.g. Postgres "~", MySQL "REGEXP"). Empty
	// means the backend has no native regex operator (the embedded engine),
	// in which case the compiler only accepts the LIKE-approximable subset.
	NativeRegexOperator string

	// SupportsNativeArrayIn records whether the backend has a native array
	// column type (Postgres). The compiler does not consult it: In/NotIn
	// always expand the array into "(p1, p2, ...)" on every dialect.
	SupportsNativeArrayIn bool
}

// Compiled is the compiled form of a condition tree: a WHERE-clause body
// (no leading "WHERE") with positional binds in args, in parameter order
// matching the dialect's placeholder numbering.
type Compiled struct {
	SQL  string
	Args []interface{}
}

// Compile translates a condition tree into a parameterized SQL predicate.
// No value is ever interpolated into the SQL text; every Single leaf emits
// a placeholder bound to Args.
func Compile(c *Condition, d Dialect) (Compiled, error) {
	if c == nil {
		return Compiled{SQL: "1=1"}, nil
	}
	if err := c.Validate(); err != nil {
		return Compiled{}, &odmerr.InvalidConditionError{Message: err.Error()}
	}
	b := &compileState{dialect: d}
	sql, err := b.compile(*c)
	if err != nil {
		return Compiled{}, err
	}
	return Compiled{SQL: sql, Args: b.args}, nil
}

type compileState struct {
	dialect Dialect
	args    []interface{}
}

func (b *compileState) bind(v value.Value) (string, error) {
	native, err := toNativeParam(v)
	if err != nil {
		return "", err
	}
	b.args = append(b.args, native)
	return b.dialect.Placeholder(len(b.args)), nil
}

func (b *compileState) compile(c Condition) (string, error) {
	if c.IsGroup() {
		parts := make([]string, 0, len(c.Children))
		for _, child := range c.Children {
			part, err := b.compile(child)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		joiner := " AND "
		if c.Logic == LogicOr {
			joiner = " OR "
		}
		return "(" + strings.Join(parts, joiner) + ")", nil
	}
	return b.compileSingle(c)
}

func (b *compileState) compileSingle(c Condition) (string, error) {
	col := quoteIdent(c.Field)

	switch c.Operator {
	case OpIsNull:
		return col + " IS NULL", nil
	case OpIsNotNull:
		return col + " IS NOT NULL", nil
	case OpExists:
		// SQL columns always "exist" on a row; Exists is meaningful against
		// a document store. On SQL backends it degrades to IS NOT NULL.
		return col + " IS NOT NULL", nil
	}

	switch c.Operator {
	case OpIn, OpNotIn:
		return b.compileInNotIn(c, col)
	case OpRegex:
		return b.compileRegex(c, col)
	}

	op, err := sqlComparisonOperator(c.Operator)
	if err != nil {
		return "", err
	}
	if c.Operator == OpContains || c.Operator == OpStartsWith || c.Operator == OpEndsWith {
		return b.compileLikeFamily(c, col)
	}

	ph, err := b.bind(c.Value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", col, op, ph), nil
}

func (b *compileState) compileLikeFamily(c Condition, col string) (string, error) {
	s, ok := c.Value.AsString()
	if !ok {
		return "", &odmerr.InvalidConditionError{Message: fmt.Sprintf("operator %s requires a string value", c.Operator)}
	}
	var pattern string
	switch c.Operator {
	case OpContains:
		pattern = "%" + escapeLike(s) + "%"
	case OpStartsWith:
		pattern = escapeLike(s) + "%"
	case OpEndsWith:
		pattern = "%" + escapeLike(s)
	}
	ph, err := b.bind(value.String(pattern))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s LIKE %s ESCAPE '\\'", col, ph), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")
	return r.Replace(s)
}

func (b *compileState) compileInNotIn(c Condition, col string) (string, error) {
	arr, ok := c.Value.AsArray()
	if !ok {
		return "", &odmerr.InvalidConditionError{Message: fmt.Sprintf("operator %s requires an array value", c.Operator)}
	}
	keyword := "IN"
	if c.Operator == OpNotIn {
		keyword = "NOT IN"
	}
	if len(arr) == 0 {
		if c.Operator == OpIn {
			return "1=0", nil
		}
		return "1=1", nil
	}
	placeholders := make([]string, len(arr))
	for i, item := range arr {
		ph, err := b.bind(item)
		if err != nil {
			return "", err
		}
		placeholders[i] = ph
	}
	return fmt.Sprintf("%s %s (%s)", col, keyword, strings.Join(placeholders, ", ")), nil
}

func (b *compileState) compileRegex(c Condition, col string) (string, error) {
	pattern, ok := c.Value.AsString()
	if !ok {
		return "", &odmerr.InvalidConditionError{Message: "operator Regex requires a string value"}
	}
	if b.dialect.NativeRegexOperator != "" {
		ph, err := b.bind(value.String(pattern))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", col, b.dialect.NativeRegexOperator, ph), nil
	}
	like, ok := CanApproximateWithLike(pattern)
	if !ok {
		return "", &odmerr.UnsupportedOperatorError{Operator: "Regex", Backend: b.dialect.Name}
	}
	ph, err := b.bind(value.String(like))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s LIKE %s", col, ph), nil
}

func sqlComparisonOperator(op Operator) (string, error) {
	switch op {
	case OpEq:
		return "=", nil
	case OpNe:
		return "<>", nil
	case OpGt:
		return ">", nil
	case OpGte:
		return ">=", nil
	case OpLt:
		return "<", nil
	case OpLte:
		return "<=", nil
	case OpContains, OpStartsWith, OpEndsWith:
		return "LIKE", nil
	default:
		return "", &odmerr.UnsupportedOperatorError{Operator: op.String()}
	}
}

// toNativeParam converts a canonical value into the representation
// database/sql expects as a bind parameter.
func toNativeParam(v value.Value) (interface{}, error) {
	switch v.Kind() {
	case value.KindNull:
		return nil, nil
	case value.KindBool:
		b, _ := v.AsBool()
		return b, nil
	case value.KindInt:
		i, _ := v.AsInt()
		return i, nil
	case value.KindFloat:
		f, _ := v.AsFloat()
		return f, nil
	case value.KindString, value.KindUUID, value.KindObjectID:
		s, _ := v.AsString()
		return s, nil
	case value.KindBytes:
		bs, _ := v.AsBytes()
		return bs, nil
	case value.KindTimestamp:
		t, _ := v.AsTimestamp()
		return t, nil
	default:
		proj, err := v.ToJSONValue()
		if err != nil {
			return nil, err
		}
		return proj, nil
	}
}

// quoteIdent double-quotes a field name defensively; field names come from
// declared schema descriptors, never raw user query text, but quoting
// keeps reserved words safe across all three SQL dialects.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
