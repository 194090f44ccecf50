package validation

// Schema names, shared by the REST handlers and the job workers.
const (
	SchemaSubmitApplication   = "submit-application"
	SchemaRequestTransition   = "request-transition"
	SchemaSubmitEvaluation    = "submit-evaluation"
	SchemaCreateTest          = "create-test"
	SchemaInviteToTest        = "invite-to-test"
	SchemaSubmitAttempt       = "submit-attempt"
	SchemaMarkTestComplete    = "mark-test-complete"
	SchemaScheduleInterview   = "schedule-interview"
	SchemaRescheduleInterview = "reschedule-interview"
	SchemaCancelInterview     = "cancel-interview"
	SchemaCompleteInterview   = "complete-interview"
)

// Job variables carry the whole process scope, so no schema forbids
// additional properties.
var builtinSchemas = map[string]string{
	SchemaSubmitApplication: `{
		"type": "object",
		"required": ["vacancyId", "cvId"],
		"properties": {
			"vacancyId":          {"type": "string", "minLength": 1},
			"cvId":               {"type": "string", "minLength": 1},
			"motivationLetterId": {"type": ["string", "null"]},
			"notes":              {"type": "string", "maxLength": 4000}
		}
	}`,

	SchemaRequestTransition: `{
		"type": "object",
		"required": ["to"],
		"properties": {
			"applicationId":   {"type": "string", "minLength": 1},
			"to":              {"type": "string", "pattern": "^[A-Za-z_0-9]+$"},
			"notes":           {"type": "string", "maxLength": 4000},
			"reason":          {"type": "string", "maxLength": 1000},
			"expectedStatus":  {"type": "string"},
			"expectedVersion": {"type": "integer", "minimum": 1}
		}
	}`,

	SchemaSubmitEvaluation: `{
		"type": "object",
		"required": ["rating", "recommendation"],
		"properties": {
			"applicationId":  {"type": "string", "minLength": 1},
			"rating":         {"type": "integer"},
			"comments":       {"type": "string", "maxLength": 4000},
			"strengths":      {"type": "string", "maxLength": 4000},
			"weaknesses":     {"type": "string", "maxLength": 4000},
			"recommendation": {"type": "string", "minLength": 1}
		}
	}`,

	SchemaCreateTest: `{
		"type": "object",
		"required": ["vacancyId", "title", "kind", "passingScore"],
		"properties": {
			"vacancyId":    {"type": "string", "minLength": 1},
			"title":        {"type": "string", "minLength": 1, "maxLength": 200},
			"kind":         {"enum": ["INTERNAL_QUIZ", "EXTERNAL_LINK"]},
			"externalUrl":  {"type": "string"},
			"passingScore": {"type": "number", "minimum": 0, "maximum": 100},
			"questions": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["type", "prompt", "points"],
					"properties": {
						"type":           {"enum": ["MULTIPLE_CHOICE", "TRUE_FALSE", "SHORT_ANSWER"]},
						"prompt":         {"type": "string", "minLength": 1},
						"options":        {"type": "array", "items": {"type": "string"}},
						"correctOptions": {"type": "array", "items": {"type": "string"}},
						"correctBool":    {"type": ["boolean", "null"]},
						"correctText":    {"type": "string"},
						"points":         {"type": "integer", "minimum": 1}
					}
				}
			}
		}
	}`,

	SchemaInviteToTest: `{
		"type": "object",
		"required": ["applicationId", "testId"],
		"properties": {
			"applicationId": {"type": "string", "minLength": 1},
			"testId":        {"type": "string", "minLength": 1}
		}
	}`,

	SchemaSubmitAttempt: `{
		"type": "object",
		"required": ["answers"],
		"properties": {
			"answers": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["questionId"],
					"properties": {
						"questionId": {"type": "string", "minLength": 1},
						"choice":     {"type": "string"},
						"bool":       {"type": ["boolean", "null"]},
						"text":       {"type": "string"}
					}
				}
			}
		}
	}`,

	SchemaMarkTestComplete: `{
		"type": "object",
		"properties": {
			"notes": {"type": "string", "maxLength": 4000}
		}
	}`,

	SchemaScheduleInterview: `{
		"type": "object",
		"required": ["round", "scheduledAt", "durationMinutes", "interviewerIds"],
		"properties": {
			"applicationId":   {"type": "string", "minLength": 1},
			"round":           {"type": "integer", "minimum": 1},
			"scheduledAt":     {"type": "string", "format": "date-time"},
			"durationMinutes": {"type": "integer", "minimum": 1},
			"interviewerIds": {
				"type": "array",
				"minItems": 1,
				"uniqueItems": true,
				"items": {"type": "string", "minLength": 1}
			}
		}
	}`,

	SchemaRescheduleInterview: `{
		"type": "object",
		"required": ["scheduledAt", "reason"],
		"properties": {
			"scheduledAt": {"type": "string", "format": "date-time"},
			"reason":      {"type": "string", "minLength": 1, "maxLength": 1000}
		}
	}`,

	SchemaCancelInterview: `{
		"type": "object",
		"required": ["reason"],
		"properties": {
			"reason": {"type": "string", "minLength": 1, "maxLength": 1000}
		}
	}`,

	SchemaCompleteInterview: `{
		"type": "object",
		"required": ["verdicts"],
		"properties": {
			"interviewId": {"type": "string", "minLength": 1},
			"verdicts": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["interviewerId", "attended"],
					"properties": {
						"interviewerId":  {"type": "string", "minLength": 1},
						"attended":       {"type": "boolean"},
						"rating":         {"type": ["integer", "null"]},
						"recommendation": {"type": ["string", "null"]}
					}
				}
			}
		}
	}`,
}
