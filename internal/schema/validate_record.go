package schema

import (
	"fmt"
	"regexp"

	"github.com/crossdbodm/odm/internal/odmerr"
	"github.com/crossdbodm/odm/internal/value"
)

// ValidateRecord checks a write payload against a declared schema before
// any backend call is made: required fields present, declared string/
// numeric/array constraints honored. It does not check uniqueness — that
// surfaces as DuplicateKeyError from the backend itself.
func ValidateRecord(s Schema, record value.Value) error {
	obj, _, ok := record.AsObject()
	if !ok {
		return &odmerr.ValidationError{Field: "", Message: "record is not an object"}
	}

	for _, f := range s.Fields {
		v, present := obj[f.Name]
		if !present || v.IsNull() {
			if f.Required && f.Default == nil {
				return &odmerr.ValidationError{Field: f.Name, Message: "required field missing"}
			}
			continue
		}
		if err := validateField(f, v); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePartial checks a partial write payload (an update's data object)
// against a declared schema: every field present in data must satisfy its
// declared type/constraints, the same as ValidateRecord, but fields the
// payload omits are never flagged missing — an update only touches the
// fields it names. Fields not declared on the schema are ignored, matching
// the adapters' own SET-clause builders, which silently drop them.
func ValidatePartial(s Schema, data value.Value) error {
	obj, _, ok := data.AsObject()
	if !ok {
		return &odmerr.ValidationError{Field: "", Message: "update data is not an object"}
	}
	for name, v := range obj {
		f, declared := s.FieldByName(name)
		if !declared || v.IsNull() {
			continue
		}
		if err := validateField(f, v); err != nil {
			return err
		}
	}
	return nil
}

func validateField(f Field, v value.Value) error {
	switch f.Kind {
	case FieldString, FieldUUID:
		s, ok := v.AsString()
		if !ok {
			return &odmerr.ValidationError{Field: f.Name, Message: "expected a string"}
		}
		if f.Constraints.MinLength != nil && len(s) < *f.Constraints.MinLength {
			return &odmerr.ValidationError{Field: f.Name, Message: fmt.Sprintf("shorter than minimum length %d", *f.Constraints.MinLength)}
		}
		if f.Constraints.MaxLength != nil && len(s) > *f.Constraints.MaxLength {
			return &odmerr.ValidationError{Field: f.Name, Message: fmt.Sprintf("longer than maximum length %d", *f.Constraints.MaxLength)}
		}
		if f.Constraints.Pattern != "" {
			re, err := regexp.Compile(f.Constraints.Pattern)
			if err != nil {
				return &odmerr.ValidationError{Field: f.Name, Message: fmt.Sprintf("invalid pattern %q: %v", f.Constraints.Pattern, err)}
			}
			if !re.MatchString(s) {
				return &odmerr.ValidationError{Field: f.Name, Message: fmt.Sprintf("does not match pattern %q", f.Constraints.Pattern)}
			}
		}
	case FieldInt:
		i, ok := v.AsInt()
		if !ok {
			return &odmerr.ValidationError{Field: f.Name, Message: "expected an integer"}
		}
		if f.Constraints.MinInt != nil && i < *f.Constraints.MinInt {
			return &odmerr.ValidationError{Field: f.Name, Message: fmt.Sprintf("below minimum %d", *f.Constraints.MinInt)}
		}
		if f.Constraints.MaxInt != nil && i > *f.Constraints.MaxInt {
			return &odmerr.ValidationError{Field: f.Name, Message: fmt.Sprintf("above maximum %d", *f.Constraints.MaxInt)}
		}
	case FieldFloat:
		fv, ok := v.AsFloat()
		if !ok {
			return &odmerr.ValidationError{Field: f.Name, Message: "expected a float"}
		}
		if f.Constraints.MinFloat != nil && fv < *f.Constraints.MinFloat {
			return &odmerr.ValidationError{Field: f.Name, Message: fmt.Sprintf("below minimum %g", *f.Constraints.MinFloat)}
		}
		if f.Constraints.MaxFloat != nil && fv > *f.Constraints.MaxFloat {
			return &odmerr.ValidationError{Field: f.Name, Message: fmt.Sprintf("above maximum %g", *f.Constraints.MaxFloat)}
		}
	case FieldBool:
		if _, ok := v.AsBool(); !ok {
			return &odmerr.ValidationError{Field: f.Name, Message: "expected a bool"}
		}
	case FieldTimestamp:
		if _, ok := v.AsTimestamp(); !ok {
			return &odmerr.ValidationError{Field: f.Name, Message: "expected a timestamp"}
		}
	case FieldArray:
		arr, ok := v.AsArray()
		if !ok {
			return &odmerr.ValidationError{Field: f.Name, Message: "expected an array"}
		}
		if f.Constraints.MinItems != nil && len(arr) < *f.Constraints.MinItems {
			return &odmerr.ValidationError{Field: f.Name, Message: fmt.Sprintf("fewer than minimum %d items", *f.Constraints.MinItems)}
		}
		if f.Constraints.MaxItems != nil && len(arr) > *f.Constraints.MaxItems {
			return &odmerr.ValidationError{Field: f.Name, Message: fmt.Sprintf("more than maximum %d items", *f.Constraints.MaxItems)}
		}
	case FieldObject:
		_, _, ok := v.AsObject()
		if !ok {
			return &odmerr.ValidationError{Field: f.Name, Message: "expected an object"}
		}
	case FieldJSON, FieldReference:
		// No structural check beyond presence; JSON fields are opaque by
		// design and reference fields are validated by the target table.
	}
	return nil
}
