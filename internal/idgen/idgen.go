// Package idgen implements the five pluggable identifier generation
// disciplines selectable per alias: Monotonic, Random128, TimeOrdered64
// (snowflake-style), Opaque12 (ObjectID-shaped), and Prefixed.
package idgen

import (
	"github.com/crossdbodm/odm/internal/value"
)

// Generator produces canonical identifier values on the write path and
// validates caller-supplied ones.
type Generator interface {
	// Generate returns a fresh identifier, or value.Null() for strategies
	// that delegate assignment to the backend.
	Generate() (value.Value, error)
	// Validate reports whether v is a well-formed identifier for this
	// strategy. It does not check uniqueness.
	Validate(v value.Value) bool
}

// Regenerator is an optional capability a Generator implements when its
// strategy has its own sentinel "not really an id" value beyond the
// generic ones NeedsGeneration already checks — e.g. Random128's all-zero
// UUID. The pool's write path consults it in addition to NeedsGeneration
// so a caller-supplied sentinel still triggers fresh generation.
type Regenerator interface {
	NeedsRegeneration(v value.Value) bool
}

// NeedsGeneration reports whether the payload's primary-key field should be
// replaced by a freshly generated identifier before the adapter's native
// insert runs. Per spec this fires when the field is absent, Null, the
// empty string, the string "0", or (checked by the caller for the
// random-128 strategy specifically) the all-zero value.
func NeedsGeneration(v value.Value, present bool) bool {
	if !present || v.IsNull() {
		return true
	}
	if s, ok := v.AsString(); ok {
		return s == "" || s == "0"
	}
	return false
}

// Strategy names as they appear in per-alias configuration.
const (
	StrategyMonotonic    = "monotonic"
	StrategyRandom128    = "random128"
	StrategyTimeOrdered64 = "time_ordered64"
	StrategyOpaque12     = "opaque12"
	StrategyPrefixed     = "prefixed"
)

// Options configures the strategy-specific parameters that per-alias
// configuration supplies: datacenter/machine id for TimeOrdered64, prefix
// for Prefixed, and a flag telling Opaque12 whether ID assignment should be
// delegated to a document-store backend instead of self-generated.
type Options struct {
	Strategy string

	// TimeOrdered64
	DatacenterID uint8
	MachineID    uint8

	// Prefixed
	Prefix string

	// Opaque12: when true (document-store backend), Generate returns
	// value.Null() so the backend driver assigns the ObjectID itself; the
	// generator remains usable as a Validate-only helper.
	DelegateToBackend bool
}

// New constructs the Generator configured by opts.
func New(opts Options) (Generator, error) {
	switch opts.Strategy {
	case StrategyMonotonic, "":
		return &Monotonic{}, nil
	case StrategyRandom128:
		return &Random128{}, nil
	case StrategyTimeOrdered64:
		return NewSnowflake(opts.DatacenterID, opts.MachineID)
	case StrategyOpaque12:
		return NewOpaque12(opts.DelegateToBackend), nil
	case StrategyPrefixed:
		return NewPrefixed(opts.Prefix), nil
	default:
		return nil, &unknownStrategyError{Strategy: opts.Strategy}
	}
}

type unknownStrategyError struct{ Strategy string }

func (e *unknownStrategyError) Error() string {
	return "idgen: unknown strategy " + e.Strategy
}
