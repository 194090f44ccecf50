package assessment

import (
	"testing"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func quiz() models.Test {
	return models.Test{
		ID:           "test-1",
		VacancyID:    "vac-1",
		Kind:         models.TestKindInternalQuiz,
		PassingScore: 70,
		Questions: []models.Question{
			{ID: "q1", Type: models.QuestionMultipleChoice, Prompt: "Pick Go", Options: []string{"go", "rust"}, CorrectOptions: []string{"go"}, Points: 10},
			{ID: "q2", Type: models.QuestionTrueFalse, Prompt: "Go has generics", CorrectBool: boolPtr(true), Points: 5},
			{ID: "q3", Type: models.QuestionShortAnswer, Prompt: "Keyword for goroutines", CorrectText: "go", Points: 5},
		},
	}
}

func TestGrade_WeightedScore(t *testing.T) {
	result, err := Grade(quiz(), []models.Answer{
		{QuestionID: "q1", Choice: "go"},
		{QuestionID: "q2", Bool: boolPtr(true)},
		{QuestionID: "q3", Text: "defer"},
	})
	require.NoError(t, err)

	assert.Equal(t, 15, result.Score)
	assert.Equal(t, 20, result.TotalScore)
	assert.InDelta(t, 75.0, result.Percentage, 0.001)
	assert.True(t, result.IsPassed)
}

func TestGrade_BelowPassingScore(t *testing.T) {
	result, err := Grade(quiz(), []models.Answer{
		{QuestionID: "q1", Choice: "rust"},
		{QuestionID: "q2", Bool: boolPtr(true)},
		{QuestionID: "q3", Text: "  GO "},
	})
	require.NoError(t, err)

	assert.Equal(t, 10, result.Score)
	assert.InDelta(t, 50.0, result.Percentage, 0.001)
	assert.False(t, result.IsPassed)
}

func TestGrade_UnansweredScoresZero(t *testing.T) {
	result, err := Grade(quiz(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Score)
	assert.Equal(t, 20, result.TotalScore)
	assert.False(t, result.IsPassed)
}

func TestGrade_RejectsBadAnswers(t *testing.T) {
	_, err := Grade(quiz(), []models.Answer{{QuestionID: "q9", Choice: "go"}})
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))

	_, err = Grade(quiz(), []models.Answer{{QuestionID: "q1", Choice: "go"}, {QuestionID: "q1", Choice: "rust"}})
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))
}

func TestSignal(t *testing.T) {
	completed := func(passed bool) models.TestAttempt {
		return models.TestAttempt{Status: models.AttemptCompleted, IsPassed: passed}
	}
	invited := models.TestAttempt{Status: models.AttemptInvited}

	assert.Equal(t, models.AssessmentNone, Signal(nil))
	assert.Equal(t, models.AssessmentPending, Signal([]models.TestAttempt{invited, completed(true)}))
	assert.Equal(t, models.AssessmentPass, Signal([]models.TestAttempt{completed(true), completed(true)}))
	assert.Equal(t, models.AssessmentFail, Signal([]models.TestAttempt{invited, completed(false)}))
}
