package query

// Options is the query-shaping bundle the facade and worker pass down to
// an adapter's Find/Count/Exists operations: a flat AND-joined condition
// list, an optional richer condition-group tree, sort order, pagination,
// and field projection.
//
// When both Conditions and Groups are populated, Groups takes precedence
// (matches the original dispatcher's behavior; see DESIGN.md's open-
// question decision).
type Options struct {
	Conditions []Condition
	Groups     *Condition
	Sort       []SortField
	Pagination *Pagination
	Fields     []string
}

// Effective returns the condition tree that should actually be compiled:
// Groups if present, otherwise an implicit AND-group over Conditions (nil
// if there are none, meaning "match everything").
func (o Options) Effective() *Condition {
	if o.Groups != nil {
		return o.Groups
	}
	if len(o.Conditions) == 0 {
		return nil
	}
	g := Group(LogicAnd, o.Conditions...)
	return &g
}
