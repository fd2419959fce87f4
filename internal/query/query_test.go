package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossdbodm/odm/internal/value"
)

func TestParseSimpleComparison(t *testing.T) {
	c, err := Parse(`status = "open"`)
	require.NoError(t, err)
	assert.False(t, c.IsGroup())
	assert.Equal(t, "status", c.Field)
	assert.Equal(t, OpEq, c.Operator)
	s, _ := c.Value.AsString()
	assert.Equal(t, "open", s)
}

func TestParseAndOrPrecedence(t *testing.T) {
	c, err := Parse(`age >= 25 AND (department = "tech" OR department = "product")`)
	require.NoError(t, err)
	require.True(t, c.IsGroup())
	assert.Equal(t, LogicAnd, c.Logic)
	require.Len(t, c.Children, 2)
	assert.False(t, c.Children[0].IsGroup())
	require.True(t, c.Children[1].IsGroup())
	assert.Equal(t, LogicOr, c.Children[1].Logic)
}

func TestParseInOperator(t *testing.T) {
	c, err := Parse(`status in [1, 2, 3]`)
	require.NoError(t, err)
	assert.Equal(t, OpIn, c.Operator)
	arr, ok := c.Value.AsArray()
	require.True(t, ok)
	assert.Len(t, arr, 3)
}

func TestParseNotDesugarsToNegatedOperator(t *testing.T) {
	c, err := Parse(`NOT status = "closed"`)
	require.NoError(t, err)
	assert.Equal(t, OpNe, c.Operator)
}

func TestQueryFingerprintOrderIndependentForAndOfSingles(t *testing.T) {
	optsA := Options{Conditions: []Condition{
		Single("name", OpEq, value.String("a")),
		Single("age", OpGte, value.Int(25)),
	}}
	optsB := Options{Conditions: []Condition{
		Single("age", OpGte, value.Int(25)),
		Single("name", OpEq, value.String("a")),
	}}
	assert.Equal(t, QueryFingerprint(optsA), QueryFingerprint(optsB))
}

func TestQueryFingerprintDiffersOnDifferentConditions(t *testing.T) {
	optsA := Options{Conditions: []Condition{Single("name", OpEq, value.String("a"))}}
	optsB := Options{Conditions: []Condition{Single("name", OpEq, value.String("b"))}}
	assert.NotEqual(t, QueryFingerprint(optsA), QueryFingerprint(optsB))
}

func TestGroupsFingerprintPreservesOrder(t *testing.T) {
	g1 := Group(LogicOr, Single("department", OpEq, value.String("tech")), Single("department", OpEq, value.String("product")))
	g2 := Group(LogicOr, Single("department", OpEq, value.String("product")), Single("department", OpEq, value.String("tech")))
	fp1 := GroupsFingerprint(g1, Options{})
	fp2 := GroupsFingerprint(g2, Options{})
	assert.NotEqual(t, fp1, fp2, "groups are not reordered even though OR is semantically order-independent")
}

func TestEvaluatorComplexConditionGroup(t *testing.T) {
	rows := []value.Value{
		recordOf(t, "tech", 30),
		recordOf(t, "product", 20),
		recordOf(t, "sales", 40),
		recordOf(t, "tech", 22),
	}
	tree := Group(LogicAnd,
		Single("age", OpGte, value.Int(25)),
		Group(LogicOr,
			Single("department", OpEq, value.String("tech")),
			Single("department", OpEq, value.String("product")),
		),
	)
	eval := Evaluator{}
	var matched int
	for _, r := range rows {
		ok, err := eval.Evaluate(tree, r)
		require.NoError(t, err)
		if ok {
			matched++
		}
	}
	assert.Equal(t, 1, matched) // only (tech, 30)

	flat := Single("age", OpGte, value.Int(25))
	var flatMatched int
	for _, r := range rows {
		ok, err := eval.Evaluate(flat, r)
		require.NoError(t, err)
		if ok {
			flatMatched++
		}
	}
	assert.GreaterOrEqual(t, flatMatched, matched, "flat-conditions fallback returns a superset")
}

func recordOf(t *testing.T, department string, age int64) value.Value {
	t.Helper()
	return value.Object(map[string]value.Value{
		"department": value.String(department),
		"age":        value.Int(age),
	}, []string{"department", "age"})
}

func TestCompileSingleEqBindsParameter(t *testing.T) {
	d := Dialect{Name: "test", Placeholder: func(n int) string { return "?" }}
	c := Single("name", OpEq, value.String("a"))
	compiled, err := Compile(&c, d)
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "?")
	require.Len(t, compiled.Args, 1)
	assert.Equal(t, "a", compiled.Args[0])
}

func TestCompileInRejectsNonArray(t *testing.T) {
	d := Dialect{Name: "test", Placeholder: func(n int) string { return "?" }}
	c := Single("id", OpIn, value.Int(5))
	_, err := Compile(&c, d)
	assert.Error(t, err)
}

func TestCompileRegexFailsWithoutNativeOperatorOnNonLiteralPattern(t *testing.T) {
	d := Dialect{Name: "embedded", Placeholder: func(n int) string { return "?" }}
	c := Single("name", OpRegex, value.String("a.*b"))
	_, err := Compile(&c, d)
	assert.Error(t, err)
}

func TestCompileRegexAcceptsAnchoredLiteralOnEmbedded(t *testing.T) {
	d := Dialect{Name: "embedded", Placeholder: func(n int) string { return "?" }}
	c := Single("name", OpRegex, value.String("^abc"))
	compiled, err := Compile(&c, d)
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "LIKE")
	assert.Equal(t, "abc%", compiled.Args[0])
}

func TestCompileGroupNestsParens(t *testing.T) {
	d := Dialect{Name: "test", Placeholder: func(n int) string { return "?" }}
	tree := Group(LogicAnd,
		Single("age", OpGte, value.Int(25)),
		Group(LogicOr, Single("dept", OpEq, value.String("tech")), Single("dept", OpEq, value.String("product"))),
	)
	compiled, err := Compile(&tree, d)
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "AND")
	assert.Contains(t, compiled.SQL, "OR")
	assert.Len(t, compiled.Args, 3)
}
