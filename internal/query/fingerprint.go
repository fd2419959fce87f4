package query

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

// RecordFingerprint is the fingerprint component for a record-kind cache
// key: the primary-key value rendered as a canonical string.
func RecordFingerprint(idString string) string {
	return idString
}

// QueryFingerprint hashes (normalized conditions, sort, pagination,
// projection) into a stable string suitable as the fingerprint component of
// a query-kind cache key. AND-of-singles is normalized by sorting on field
// name so that two condition lists differing only in order collide to the
// same key (testable property #5); groups are never reordered since OR's
// order-independence would otherwise risk colliding with an AND-rooted key
// built from the same fields.
func QueryFingerprint(opts Options) string {
	h := fnv.New64a()
	conds := append([]Condition(nil), opts.Conditions...)
	sort.Slice(conds, func(i, j int) bool { return conds[i].Field < conds[j].Field })
	for _, c := range conds {
		writeSingle(h, c)
	}
	writeSortAndPagination(h, opts)
	return fmt.Sprintf("%x", h.Sum64())
}

// GroupsFingerprint hashes the full condition-group tree in input order;
// unlike QueryFingerprint, no reordering is applied since a Group's own
// Logic already encodes the intended semantics precisely.
func GroupsFingerprint(groups Condition, opts Options) string {
	h := fnv.New64a()
	writeCondition(h, groups)
	writeSortAndPagination(h, opts)
	return fmt.Sprintf("%x", h.Sum64())
}

type byteWriter interface {
	Write(p []byte) (int, error)
}

func writeCondition(w byteWriter, c Condition) {
	if c.IsGroup() {
		fmt.Fprintf(w, "G(%s,%d)[", c.Logic, len(c.Children))
		for _, child := range c.Children {
			writeCondition(w, child)
			w.Write([]byte(";"))
		}
		w.Write([]byte("]"))
		return
	}
	writeSingle(w, c)
}

func writeSingle(w byteWriter, c Condition) {
	fmt.Fprintf(w, "S(%s,%s,%s)", c.Field, c.Operator, stableValueString(c))
}

// stableValueString renders a condition's bound value deterministically.
// Arrays used by In/NotIn are rendered element-by-element in their given
// order (order is semantically significant for these operators' intent,
// even though set membership itself is not, so preserving input order here
// is simplest and still collision-safe).
func stableValueString(c Condition) string {
	if c.Operator.bindsNoParameter() {
		return "-"
	}
	if arr, ok := c.Value.AsArray(); ok {
		parts := make([]string, len(arr))
		for i, item := range arr {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return c.Value.String()
}

func writeSortAndPagination(w byteWriter, opts Options) {
	w.Write([]byte("|sort:"))
	for _, s := range opts.Sort {
		dir := "asc"
		if s.Desc {
			dir = "desc"
		}
		fmt.Fprintf(w, "%s:%s,", s.Field, dir)
	}
	w.Write([]byte("|page:"))
	if opts.Pagination != nil {
		fmt.Fprintf(w, "%d,", opts.Pagination.Skip)
		if opts.Pagination.Limit != nil {
			fmt.Fprintf(w, "%d", *opts.Pagination.Limit)
		}
	}
	w.Write([]byte("|fields:"))
	fields := append([]string(nil), opts.Fields...)
	sort.Strings(fields)
	w.Write([]byte(strings.Join(fields, ",")))
}
