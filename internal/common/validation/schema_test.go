package validation

import (
	"testing"

	"hiring-pipeline/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidator_CompilesBuiltins(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)
	assert.Len(t, v.schemas, len(builtinSchemas))
}

func TestValidate(t *testing.T) {
	v := MustValidator()

	tests := []struct {
		name    string
		schema  string
		body    string
		wantErr bool
	}{
		{"valid submission", SchemaSubmitApplication, `{"vacancyId":"vac-1","cvId":"cv-1"}`, false},
		{"extra variables allowed", SchemaSubmitApplication, `{"vacancyId":"vac-1","cvId":"cv-1","processVar":1}`, false},
		{"missing cv", SchemaSubmitApplication, `{"vacancyId":"vac-1"}`, true},
		{"empty vacancy", SchemaSubmitApplication, `{"vacancyId":"","cvId":"cv-1"}`, true},
		{"transition", SchemaRequestTransition, `{"to":"INTERVIEW_R1","expectedVersion":3}`, false},
		{"transition bad version", SchemaRequestTransition, `{"to":"SCREENING","expectedVersion":0}`, true},
		{"rating must be integer", SchemaSubmitEvaluation, `{"rating":7.5,"recommendation":"PROCEED"}`, true},
		{"unknown test kind", SchemaCreateTest, `{"vacancyId":"v","title":"t","kind":"ORAL","passingScore":50}`, true},
		{"schedule", SchemaScheduleInterview, `{"round":1,"scheduledAt":"2026-03-01T10:00:00Z","durationMinutes":45,"interviewerIds":["iv-1"]}`, false},
		{"schedule bad timestamp", SchemaScheduleInterview, `{"round":1,"scheduledAt":"tomorrow","durationMinutes":45,"interviewerIds":["iv-1"]}`, true},
		{"schedule duplicate interviewers", SchemaScheduleInterview, `{"round":1,"scheduledAt":"2026-03-01T10:00:00Z","durationMinutes":45,"interviewerIds":["iv-1","iv-1"]}`, true},
		{"cancel needs reason", SchemaCancelInterview, `{}`, true},
		{"malformed json", SchemaCancelInterview, `{"reason":`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.schema, []byte(tt.body))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))
		})
	}
}

func TestValidate_ReportsMissingField(t *testing.T) {
	v := MustValidator()

	err := v.Validate(SchemaSubmitApplication, []byte(`{"vacancyId":"vac-1"}`))
	require.Error(t, err)

	stdErr := errors.AsStandard(err)
	assert.Contains(t, stdErr.Details, "cvId")

	fields, ok := stdErr.Metadata["fields"].([]ValidationError)
	require.True(t, ok)
	require.Len(t, fields, 1)
	assert.Equal(t, "cvId", fields[0].Field)
	assert.Equal(t, "required", fields[0].Code)
}

func TestValidateMap_JobVariables(t *testing.T) {
	v := MustValidator()

	assert.NoError(t, v.ValidateMap(SchemaInviteToTest, map[string]interface{}{
		"applicationId": "app-1",
		"testId":        "test-1",
		"processStep":   "screening",
	}))

	err := v.ValidateMap(SchemaInviteToTest, map[string]interface{}{"applicationId": 42})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := MustValidator().Validate("nope", []byte(`{}`))
	assert.Equal(t, errors.ErrCodeInternal, errors.CodeOf(err))
}

func TestValidationResult_Helpers(t *testing.T) {
	vr := &ValidationResult{Errors: []ValidationError{
		{Field: "rating", Message: "must be integer"},
		{Field: "recommendation", Message: "is required"},
	}}

	assert.True(t, vr.HasErrors("rating"))
	assert.False(t, vr.HasErrors("comments"))
	assert.Equal(t, []string{"rating: must be integer", "recommendation: is required"}, vr.GetErrorMessages())
	assert.Error(t, vr.AsError())
}
