package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemSchema() Schema {
	return Object(map[string]interface{}{
		"name_raw":   String(),
		"quantity":   Nullable("number"),
		"unit":       Enum(true, "g", "kg"),
		"confidence": Range(0, 1),
		"tags":       Array(String()),
	}, "name_raw", "confidence")
}

func TestValidateDocument_Valid(t *testing.T) {
	doc := map[string]interface{}{
		"name_raw":   "farine",
		"quantity":   nil,
		"unit":       nil,
		"confidence": 0.8,
		"tags":       []interface{}{"bio"},
	}

	assert.NoError(t, ValidateDocument("item", itemSchema(), doc))
}

func TestValidateDocument_ListsEveryViolation(t *testing.T) {
	doc := map[string]interface{}{
		"name_raw":   12,
		"unit":       "lb",
		"confidence": 1.5,
		"extra":      true,
	}

	err := ValidateDocument("item", itemSchema(), doc)

	var violation *SchemaViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "item", violation.Subject)
	assert.Len(t, violation.Violations, 4)
	assert.Contains(t, err.Error(), "item violates schema")
}

func TestValidateDocument_MissingRequired(t *testing.T) {
	err := ValidateDocument("item", itemSchema(), map[string]interface{}{"name_raw": "sel"})

	var violation *SchemaViolationError
	require.True(t, errors.As(err, &violation))
	require.Len(t, violation.Violations, 1)
	assert.Equal(t, "REQUIRED", violation.Violations[0].Code)
}

func TestValidate_ResultHelpers(t *testing.T) {
	result, err := Validate(itemSchema(), map[string]interface{}{"name_raw": "sel", "confidence": 2})
	require.NoError(t, err)

	assert.False(t, result.Valid)
	assert.True(t, result.HasErrors("confidence"))
	assert.False(t, result.HasErrors("name_raw"))
	assert.Len(t, result.GetErrorMessages(), 1)
}

func TestGetSchemaFromJSON(t *testing.T) {
	schema, err := GetSchemaFromJSON(`{"type":"object","properties":{"a":{"type":"string"}}}`)
	require.NoError(t, err)

	assert.NoError(t, ValidateDocument("doc", schema, map[string]interface{}{"a": "x"}))
	assert.Error(t, ValidateDocument("doc", schema, map[string]interface{}{"a": 1}))
}
