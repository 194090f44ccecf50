package assessment

import (
	"strings"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/models"
)

// Result is the outcome of grading one attempt.
type Result struct {
	Score      int     `json:"score"`
	TotalScore int     `json:"totalScore"`
	Percentage float64 `json:"percentage"`
	IsPassed   bool    `json:"isPassed"`
}

// Grade scores answers against an internal quiz. Unanswered questions score
// zero. Answers to unknown questions or repeated answers are rejected.
func Grade(test models.Test, answers []models.Answer) (Result, error) {
	byID := make(map[string]models.Answer, len(answers))
	for _, a := range answers {
		if _, dup := byID[a.QuestionID]; dup {
			return Result{}, errors.NewValidationErrorf("question %s answered twice", a.QuestionID)
		}
		byID[a.QuestionID] = a
	}
	known := make(map[string]bool, len(test.Questions))
	for _, q := range test.Questions {
		known[q.ID] = true
	}
	for id := range byID {
		if !known[id] {
			return Result{}, errors.NewValidationErrorf("question %s is not part of the test", id)
		}
	}

	res := Result{TotalScore: test.TotalPoints()}
	for _, q := range test.Questions {
		a, ok := byID[q.ID]
		if ok && correct(q, a) {
			res.Score += q.Points
		}
	}
	if res.TotalScore > 0 {
		res.Percentage = float64(res.Score) / float64(res.TotalScore) * 100
	}
	res.IsPassed = res.Percentage >= test.PassingScore
	return res, nil
}

func correct(q models.Question, a models.Answer) bool {
	switch q.Type {
	case models.QuestionMultipleChoice:
		if a.Choice == "" {
			return false
		}
		for _, option := range q.CorrectOptions {
			if option == a.Choice {
				return true
			}
		}
		return false
	case models.QuestionTrueFalse:
		return q.CorrectBool != nil && a.Bool != nil && *q.CorrectBool == *a.Bool
	case models.QuestionShortAnswer:
		expected := normalize(q.CorrectText)
		return expected != "" && normalize(a.Text) == expected
	}
	return false
}

// normalize trims, lowercases and collapses inner whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
