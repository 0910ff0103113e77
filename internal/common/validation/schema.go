package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a JSON schema document in its generic map form, ready to be sent
// to the model as a response schema and to be loaded by gojsonschema.
type Schema = map[string]interface{}

// Object builds an object schema that rejects unknown properties.
func Object(properties map[string]interface{}, required ...string) Schema {
	s := Schema{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func String() Schema { return Schema{"type": "string"} }

func Number() Schema { return Schema{"type": "number"} }

func Integer() Schema { return Schema{"type": "integer"} }

// Nullable allows either the given primitive type or null.
func Nullable(primitive string) Schema {
	return Schema{"type": []interface{}{primitive, "null"}}
}

// Enum restricts a string to the given values. A nullable enum also accepts null.
func Enum(nullable bool, values ...string) Schema {
	vals := make([]interface{}, 0, len(values)+1)
	for _, v := range values {
		vals = append(vals, v)
	}
	if nullable {
		vals = append(vals, nil)
		return Schema{"type": []interface{}{"string", "null"}, "enum": vals}
	}
	return Schema{"type": "string", "enum": vals}
}

// Range is a number bounded on both ends.
func Range(min, max float64) Schema {
	return Schema{"type": "number", "minimum": min, "maximum": max}
}

func Array(items Schema) Schema {
	return Schema{"type": "array", "items": items}
}

// ValidationResult mirrors the outcome of one schema check.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// SchemaViolationError is returned when a document does not satisfy its
// schema. It lists every violation.
type SchemaViolationError struct {
	Subject    string
	Violations []ValidationError
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("%s violates schema: %s", e.Subject, strings.Join(e.Messages(), "; "))
}

// Messages returns "field: message" strings, one per violation.
func (e *SchemaViolationError) Messages() []string {
	out := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		out[i] = fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return out
}

// Validate checks document against schema.
func Validate(schema Schema, document interface{}) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// ValidateDocument returns a *SchemaViolationError when document does not
// match schema, and a plain error when the schema itself is unusable.
func ValidateDocument(subject string, schema Schema, document interface{}) error {
	result, err := Validate(schema, document)
	if err != nil {
		return err
	}
	if !result.Valid {
		return &SchemaViolationError{Subject: subject, Violations: result.Errors}
	}
	return nil
}

// GetSchemaFromJSON parses a JSON schema from string.
func GetSchemaFromJSON(schemaJSON string) (Schema, error) {
	var schema Schema
	err := json.Unmarshal([]byte(schemaJSON), &schema)
	return schema, err
}

// GetErrorMessages returns a simple list of error messages.
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for a specific field.
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			return true
		}
	}
	return false
}
