package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/models"
)

func (t *tx) CreateTest(ctx context.Context, test *models.Test) error {
	questions, err := json.Marshal(test.Questions)
	if err != nil {
		return errors.NewInternalError(err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO tests (id, vacancy_id, title, kind, external_url, passing_score, questions, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		test.ID, test.VacancyID, test.Title, string(test.Kind), test.ExternalURL, test.PassingScore,
		questions, test.CreatedBy, test.CreatedAt,
	)
	return mapError("insert_test", err)
}

func (t *tx) GetTest(ctx context.Context, id string) (*models.Test, error) {
	var (
		test      models.Test
		questions []byte
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, vacancy_id, title, kind, external_url, passing_score, questions, created_by, created_at
		FROM tests WHERE id = $1`, id).Scan(
		&test.ID, &test.VacancyID, &test.Title, &test.Kind, &test.ExternalURL, &test.PassingScore,
		&questions, &test.CreatedBy, &test.CreatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("test", id)
	}
	if err != nil {
		return nil, mapError("select_test", err)
	}
	if err := json.Unmarshal(questions, &test.Questions); err != nil {
		return nil, errors.NewInternalError(err)
	}
	test.CreatedAt = test.CreatedAt.UTC()
	return &test, nil
}

const attemptColumns = `id, application_id, test_id, status, answers, score, total_score, percentage,
	is_passed, notes, invited_at, completed_at`

func scanAttempt(row rowScanner) (*models.TestAttempt, error) {
	var (
		a           models.TestAttempt
		answers     []byte
		completedAt sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.ApplicationID, &a.TestID, &a.Status, &answers, &a.Score, &a.TotalScore,
		&a.Percentage, &a.IsPassed, &a.Notes, &a.InvitedAt, &completedAt); err != nil {
		return nil, err
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &a.Answers); err != nil {
			return nil, err
		}
	}
	a.InvitedAt = a.InvitedAt.UTC()
	a.CompletedAt = timePtr(completedAt)
	return &a, nil
}

func (t *tx) CreateAttempt(ctx context.Context, a *models.TestAttempt) error {
	answers, err := json.Marshal(nonNilAnswers(a.Answers))
	if err != nil {
		return errors.NewInternalError(err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO test_attempts (`+attemptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID, a.ApplicationID, a.TestID, string(a.Status), answers, a.Score, a.TotalScore,
		a.Percentage, a.IsPassed, a.Notes, a.InvitedAt, nullTime(a.CompletedAt),
	)
	return mapError("insert_test_attempt", err)
}

func (t *tx) GetAttempt(ctx context.Context, applicationID, testID string) (*models.TestAttempt, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM test_attempts
		WHERE application_id = $1 AND test_id = $2 FOR UPDATE`, applicationID, testID)
	a, err := scanAttempt(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("test attempt", applicationID+"/"+testID)
	}
	if err != nil {
		return nil, mapError("select_test_attempt", err)
	}
	return a, nil
}

func (t *tx) ListAttempts(ctx context.Context, applicationID string) ([]models.TestAttempt, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+attemptColumns+` FROM test_attempts
		WHERE application_id = $1 ORDER BY invited_at, id`, applicationID)
	if err != nil {
		return nil, mapError("list_test_attempts", err)
	}
	defer rows.Close()

	out := make([]models.TestAttempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, mapError("scan_test_attempt", err)
		}
		out = append(out, *a)
	}
	return out, mapError("list_test_attempts", rows.Err())
}

func (t *tx) CompleteAttempt(ctx context.Context, a *models.TestAttempt) error {
	answers, err := json.Marshal(nonNilAnswers(a.Answers))
	if err != nil {
		return errors.NewInternalError(err)
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE test_attempts
		SET status = $3, answers = $4, score = $5, total_score = $6, percentage = $7,
			is_passed = $8, notes = $9, completed_at = $10
		WHERE application_id = $1 AND test_id = $2 AND status = 'INVITED'`,
		a.ApplicationID, a.TestID, string(a.Status), answers, a.Score, a.TotalScore, a.Percentage,
		a.IsPassed, a.Notes, nullTime(a.CompletedAt),
	)
	if err != nil {
		return mapError("complete_test_attempt", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("rows_affected", err)
	}
	if n == 0 {
		return errors.NewDuplicateActionError("test attempt already completed")
	}
	return nil
}

func nonNilAnswers(answers []models.Answer) []models.Answer {
	if answers == nil {
		return []models.Answer{}
	}
	return answers
}
