package models

import "time"

type TestKind string

const (
	TestKindInternalQuiz TestKind = "INTERNAL_QUIZ"
	TestKindExternalLink TestKind = "EXTERNAL_LINK"
)

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionShortAnswer    QuestionType = "SHORT_ANSWER"
)

type Question struct {
	ID             string       `json:"id"`
	Type           QuestionType `json:"type"`
	Prompt         string       `json:"prompt"`
	Options        []string     `json:"options,omitempty"`
	CorrectOptions []string     `json:"correctOptions,omitempty"`
	CorrectBool    *bool        `json:"correctBool,omitempty"`
	CorrectText    string       `json:"correctText,omitempty"`
	Points         int          `json:"points"`
}

type Test struct {
	ID           string     `json:"id"`
	VacancyID    string     `json:"vacancyId"`
	Title        string     `json:"title"`
	Kind         TestKind   `json:"kind"`
	ExternalURL  string     `json:"externalUrl,omitempty"`
	PassingScore float64    `json:"passingScore"`
	Questions    []Question `json:"questions,omitempty"`
	CreatedBy    string     `json:"createdBy"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Clone returns a copy that shares no slices with t.
func (t Test) Clone() Test {
	out := t
	if t.Questions != nil {
		out.Questions = make([]Question, len(t.Questions))
		for i, q := range t.Questions {
			q.Options = append([]string(nil), q.Options...)
			q.CorrectOptions = append([]string(nil), q.CorrectOptions...)
			if q.CorrectBool != nil {
				b := *q.CorrectBool
				q.CorrectBool = &b
			}
			out.Questions[i] = q
		}
	}
	return out
}

// TotalPoints is the maximum achievable score.
func (t Test) TotalPoints() int {
	total := 0
	for _, q := range t.Questions {
		total += q.Points
	}
	return total
}

// PublicQuestion is the applicant-facing view of a Question.
type PublicQuestion struct {
	ID      string       `json:"id"`
	Type    QuestionType `json:"type"`
	Prompt  string       `json:"prompt"`
	Options []string     `json:"options,omitempty"`
	Points  int          `json:"points"`
}

// PublicTest is the applicant-facing view of a Test. It has no answer fields.
type PublicTest struct {
	ID           string           `json:"id"`
	VacancyID    string           `json:"vacancyId"`
	Title        string           `json:"title"`
	Kind         TestKind         `json:"kind"`
	ExternalURL  string           `json:"externalUrl,omitempty"`
	PassingScore float64          `json:"passingScore"`
	Questions    []PublicQuestion `json:"questions,omitempty"`
}

func (t Test) Public() PublicTest {
	out := PublicTest{
		ID:           t.ID,
		VacancyID:    t.VacancyID,
		Title:        t.Title,
		Kind:         t.Kind,
		ExternalURL:  t.ExternalURL,
		PassingScore: t.PassingScore,
	}
	for _, q := range t.Questions {
		out.Questions = append(out.Questions, PublicQuestion{
			ID:      q.ID,
			Type:    q.Type,
			Prompt:  q.Prompt,
			Options: append([]string(nil), q.Options...),
			Points:  q.Points,
		})
	}
	return out
}

// Answer holds one submitted answer. Which field is read depends on the
// question type: Choice for MULTIPLE_CHOICE, Bool for TRUE_FALSE, Text for
// SHORT_ANSWER.
type Answer struct {
	QuestionID string `json:"questionId"`
	Choice     string `json:"choice,omitempty"`
	Bool       *bool  `json:"bool,omitempty"`
	Text       string `json:"text,omitempty"`
}

type AttemptStatus string

const (
	AttemptInvited   AttemptStatus = "INVITED"
	AttemptCompleted AttemptStatus = "COMPLETED"
)

type TestAttempt struct {
	ID            string        `json:"id"`
	ApplicationID string        `json:"applicationId"`
	TestID        string        `json:"testId"`
	Status        AttemptStatus `json:"status"`
	Answers       []Answer      `json:"answers,omitempty"`
	Score         int           `json:"score"`
	TotalScore    int           `json:"totalScore"`
	Percentage    float64       `json:"percentage"`
	IsPassed      bool          `json:"isPassed"`
	Notes         string        `json:"notes,omitempty"`
	InvitedAt     time.Time     `json:"invitedAt"`
	CompletedAt   *time.Time    `json:"completedAt,omitempty"`
}

// AssessmentSignal summarises all attempts of an application.
type AssessmentSignal string

const (
	AssessmentNone    AssessmentSignal = "NONE"
	AssessmentPending AssessmentSignal = "PENDING"
	AssessmentPass    AssessmentSignal = "PASS"
	AssessmentFail    AssessmentSignal = "FAIL"
)
