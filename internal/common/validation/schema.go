// Package validation checks request bodies and job variables against the
// JSON schemas of the pipeline operations.
package validation

import (
	"fmt"
	"strings"

	"hiring-pipeline/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validator holds the compiled operation schemas.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewValidator compiles the built-in schemas.
func NewValidator() (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(builtinSchemas))}
	for name, src := range builtinSchemas {
		if err := v.Register(name, src); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// MustValidator is NewValidator for package-level wiring; the built-in
// schemas are constants, so a failure is a programming error.
func MustValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// Register compiles src and stores it under name, replacing any previous one.
func (v *Validator) Register(name, src string) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		return fmt.Errorf("compile schema %s: %w", name, err)
	}
	v.schemas[name] = schema
	return nil
}

// Check validates a document loaded by loader against schema name.
func (v *Validator) Check(name string, loader gojsonschema.JSONLoader) (*ValidationResult, error) {
	schema, ok := v.schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}

	result, err := schema.Validate(loader)
	if err != nil {
		return &ValidationResult{
			Valid:  false,
			Errors: []ValidationError{{Field: "(root)", Message: err.Error(), Code: "malformed_document"}},
		}, nil
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fieldOf(desc),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	return out, nil
}

// Validate checks a raw JSON document and converts failures into a
// VALIDATION_ERROR carrying the per-field errors as metadata.
func (v *Validator) Validate(name string, document []byte) error {
	result, err := v.Check(name, gojsonschema.NewBytesLoader(document))
	if err != nil {
		return errors.NewInternalError(err)
	}
	return result.AsError()
}

// ValidateMap is Validate for already decoded documents such as job variables.
func (v *Validator) ValidateMap(name string, document map[string]interface{}) error {
	result, err := v.Check(name, gojsonschema.NewGoLoader(document))
	if err != nil {
		return errors.NewInternalError(err)
	}
	return result.AsError()
}

// AsError returns nil for a valid result.
func (vr *ValidationResult) AsError() error {
	if vr.Valid {
		return nil
	}
	return errors.NewValidationError(strings.Join(vr.GetErrorMessages(), "; ")).
		WithMetadata("fields", vr.Errors)
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, 0, len(vr.Errors))
	for _, err := range vr.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	return len(vr.GetErrorsForField(field)) > 0
}

func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var out []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field {
			out = append(out, err)
		}
	}
	return out
}

// fieldOf names the offending property. Required errors belong to the parent
// object; the missing property is appended unless the library already did.
func fieldOf(desc gojsonschema.ResultError) string {
	field := desc.Field()
	prop, ok := desc.Details()["property"].(string)
	if !ok || prop == "" || desc.Type() != "required" {
		return field
	}
	if field == prop || strings.HasSuffix(field, "."+prop) {
		return field
	}
	if field == "" || field == "(root)" {
		return prop
	}
	return field + "." + prop
}
