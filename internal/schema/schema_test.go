package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossdbodm/odm/internal/value"
)

func intPtr(i int64) *int64 { return &i }

func testSchema() Schema {
	return Schema{
		Table: "people",
		Fields: []Field{
			{Name: "name", Kind: FieldString, Required: true},
			{Name: "age", Kind: FieldInt, Constraints: Constraints{MinInt: intPtr(0)}},
			{Name: "scores", Kind: FieldArray, ElementKind: FieldInt},
		},
	}
}

func TestSchemaValidateRejectsDuplicateFields(t *testing.T) {
	s := Schema{Table: "t", Fields: []Field{{Name: "a", Kind: FieldString}, {Name: "a", Kind: FieldInt}}}
	assert.Error(t, s.Validate())
}

func TestSchemaValidateAcceptsWellFormedSchema(t *testing.T) {
	assert.NoError(t, testSchema().Validate())
}

func TestValidateRecordRequiredFieldMissing(t *testing.T) {
	s := testSchema()
	rec := value.Object(map[string]value.Value{
		"age": value.Int(10),
	}, []string{"age"})
	err := ValidateRecord(s, rec)
	require.Error(t, err)
}

func TestValidateRecordRejectsOutOfRangeInt(t *testing.T) {
	s := testSchema()
	rec := value.Object(map[string]value.Value{
		"name": value.String("a"),
		"age":  value.Int(-1),
	}, []string{"name", "age"})
	err := ValidateRecord(s, rec)
	require.Error(t, err)
}

func TestValidateRecordAcceptsValidRecord(t *testing.T) {
	s := testSchema()
	rec := value.Object(map[string]value.Value{
		"name":   value.String("a"),
		"age":    value.Int(30),
		"scores": value.Array([]value.Value{value.Int(1), value.Int(2)}),
	}, []string{"name", "age", "scores"})
	assert.NoError(t, ValidateRecord(s, rec))
}
