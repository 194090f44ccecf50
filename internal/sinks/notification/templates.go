package notification

import (
	"fmt"
	"strings"

	"hiring-pipeline/internal/models"
)

// statusTemplates covers StatusChanged events, keyed by the target status.
// Interview rounds share the "INTERVIEW" entry.
var statusTemplates = map[string]models.NotificationTemplate{
	string(models.StatusScreening): {
		Type:    models.EventStatusChanged,
		Subject: "Your application is being screened",
		Body:    "Hello {{name}}, your application {{applicationId}} is now being screened by our recruiting team.",
	},
	string(models.StatusShortlisted): {
		Type:    models.EventStatusChanged,
		Subject: "You have been shortlisted",
		Body:    "Hello {{name}}, good news: your application {{applicationId}} has been shortlisted.",
	},
	string(models.StatusUnderReview): {
		Type:    models.EventStatusChanged,
		Subject: "Your application is under review",
		Body:    "Hello {{name}}, your application {{applicationId}} is under review.",
	},
	"INTERVIEW": {
		Type:    models.EventStatusChanged,
		Subject: "You are moving to the interview stage",
		Body:    "Hello {{name}}, your application {{applicationId}} has moved to {{to}}. We will send the schedule shortly.",
	},
	string(models.StatusOffered): {
		Type:         models.EventStatusChanged,
		Subject:      "You have an offer",
		Body:         "Hello {{name}}, we are happy to extend an offer for application {{applicationId}}.",
		HighPriority: true,
	},
	string(models.StatusHired): {
		Type:         models.EventStatusChanged,
		Subject:      "Welcome aboard",
		Body:         "Hello {{name}}, your hire for application {{applicationId}} is confirmed.",
		HighPriority: true,
	},
	string(models.StatusRejected): {
		Type:    models.EventStatusChanged,
		Subject: "Update on your application",
		Body:    "Hello {{name}}, thank you for your interest. We will not be moving forward with application {{applicationId}}.",
	},
	string(models.StatusWithdrawn): {
		Type:    models.EventStatusChanged,
		Subject: "Your application was withdrawn",
		Body:    "Hello {{name}}, we have recorded the withdrawal of application {{applicationId}}.",
	},
}

var eventTemplates = map[models.EventType]models.NotificationTemplate{
	models.EventApplicationSubmitted: {
		Type:    models.EventApplicationSubmitted,
		Subject: "Application received",
		Body:    "Hello {{name}}, thank you! Your application {{applicationId}} has been submitted.",
	},
	models.EventTestInvited: {
		Type:    models.EventTestInvited,
		Subject: "You are invited to a test",
		Body:    "Hello {{name}}, please complete the test \"{{testTitle}}\" for application {{applicationId}}. {{externalUrl}}",
	},
	models.EventTestCompleted: {
		Type:    models.EventTestCompleted,
		Subject: "Test received",
		Body:    "Hello {{name}}, we have received your test for application {{applicationId}}.",
	},
	models.EventInterviewScheduled: {
		Type:         models.EventInterviewScheduled,
		Subject:      "Interview scheduled",
		Body:         "Hello {{name}}, interview round {{round}} for application {{applicationId}} is scheduled at {{scheduledAt}}.",
		HighPriority: true,
	},
	models.EventInterviewRescheduled: {
		Type:    models.EventInterviewRescheduled,
		Subject: "Interview rescheduled",
		Body:    "Hello {{name}}, interview round {{round}} for application {{applicationId}} moved to {{scheduledAt}}. {{reason}}",
	},
	models.EventInterviewCancelled: {
		Type:    models.EventInterviewCancelled,
		Subject: "Interview cancelled",
		Body:    "Hello {{name}}, interview round {{round}} for application {{applicationId}} was cancelled. {{reason}}",
	},
}

// templateFor returns the template of event. Events without one, such as
// evaluations, are not notified.
func templateFor(event models.DomainEvent) (models.NotificationTemplate, bool) {
	if event.Type == models.EventStatusChanged {
		to := models.ApplicationStatus(event.PayloadString("to"))
		key := string(to)
		if to.IsInterview() {
			key = "INTERVIEW"
		}
		tmpl, ok := statusTemplates[key]
		return tmpl, ok
	}
	tmpl, ok := eventTemplates[event.Type]
	return tmpl, ok
}

// renderTemplate substitutes {{key}} placeholders and drops unknown ones.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		value := ""
		switch t := v.(type) {
		case string:
			value = t
		case nil:
		default:
			value = fmt.Sprintf("%v", t)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return strings.TrimSpace(result)
}
