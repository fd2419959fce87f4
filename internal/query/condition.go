// Package query implements the condition tree that is the abstract query
// language of the ODM: single field comparisons and AND/OR groups, a
// textual convenience parser for building them, a per-backend SQL
// compiler, and the cache-key fingerprinting scheme.
package query

import (
	"fmt"

	"github.com/crossdbodm/odm/internal/value"
)

// Operator enumerates the condition operators spec.md names. Evaluation
// semantics are backend-specific; the compiler owns any coercion required.
type Operator int

const (
	OpEq Operator = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpContains
	OpStartsWith
	OpEndsWith
	OpIn
	OpNotIn
	OpRegex
	OpExists
	OpIsNull
	OpIsNotNull
)

func (o Operator) String() string {
	switch o {
	case OpEq:
		return "Eq"
	case OpNe:
		return "Ne"
	case OpGt:
		return "Gt"
	case OpGte:
		return "Gte"
	case OpLt:
		return "Lt"
	case OpLte:
		return "Lte"
	case OpContains:
		return "Contains"
	case OpStartsWith:
		return "StartsWith"
	case OpEndsWith:
		return "EndsWith"
	case OpIn:
		return "In"
	case OpNotIn:
		return "NotIn"
	case OpRegex:
		return "Regex"
	case OpExists:
		return "Exists"
	case OpIsNull:
		return "IsNull"
	case OpIsNotNull:
		return "IsNotNull"
	default:
		return fmt.Sprintf("Operator(%d)", o)
	}
}

// bindsNoParameter reports operators that never bind a value parameter,
// per spec.md's condition-compiling rules for IsNull/IsNotNull.
func (o Operator) bindsNoParameter() bool {
	return o == OpIsNull || o == OpIsNotNull
}

// Logic discriminates AND/OR group semantics.
type Logic int

const (
	LogicAnd Logic = iota
	LogicOr
)

func (l Logic) String() string {
	if l == LogicOr {
		return "OR"
	}
	return "AND"
}

// Condition is the recursive sum type: either a Single comparison or a
// Group of AND/OR-joined subtrees. Exactly one of Field/Children is
// meaningful, discriminated by IsGroup.
type Condition struct {
	// Single fields.
	Field    string
	Operator Operator
	Value    value.Value

	// Group fields.
	Logic    Logic
	Children []Condition

	isGroup bool
}

// Single builds a Single(field, operator, value) leaf.
func Single(field string, op Operator, v value.Value) Condition {
	return Condition{Field: field, Operator: op, Value: v}
}

// Group builds a Group(logic, children) node. Nesting is unbounded; the
// tree is never flattened.
func Group(logic Logic, children ...Condition) Condition {
	return Condition{Logic: logic, Children: children, isGroup: true}
}

func (c Condition) IsGroup() bool { return c.isGroup }

// Validate checks the structural invariants the compiler depends on:
// In/NotIn must carry an Array value, and IsNull/IsNotNull must not carry
// one (callers are free to supply Null() for those; we still allow any
// value and simply ignore it on compile, since the operator itself is
// what's load-bearing).
func (c Condition) Validate() error {
	if c.isGroup {
		if len(c.Children) == 0 {
			return fmt.Errorf("query: group has no children")
		}
		for _, child := range c.Children {
			if err := child.Validate(); err != nil {
				return err
			}
		}
		return nil
	}
	if c.Field == "" {
		return fmt.Errorf("query: single condition missing field name")
	}
	if c.Operator == OpIn || c.Operator == OpNotIn {
		if _, ok := c.Value.AsArray(); !ok {
			return fmt.Errorf("query: operator %s requires an array value", c.Operator)
		}
	}
	return nil
}

// SortField is one (field, direction) entry of a query's sort list.
type SortField struct {
	Field string
	Desc  bool
}

// Pagination is the (skip, limit) window applied to a query's results.
// Limit of nil means "no explicit limit".
type Pagination struct {
	Skip  int64
	Limit *int64
}
