package postgres

import (
	"context"

	"hiring-pipeline/internal/models"
)

func (t *tx) InsertEvaluation(ctx context.Context, e *models.Evaluation) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO evaluations (id, application_id, evaluator_id, evaluator_role, rating, comments,
			strengths, weaknesses, recommendation, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.ApplicationID, e.EvaluatorID, string(e.EvaluatorRole), e.Rating, e.Comments,
		e.Strengths, e.Weaknesses, string(e.Recommendation), e.CreatedAt,
	)
	return mapError("insert_evaluation", err)
}

func (t *tx) ListEvaluations(ctx context.Context, applicationID string) ([]models.Evaluation, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, application_id, evaluator_id, evaluator_role, rating, comments, strengths,
			weaknesses, recommendation, created_at
		FROM evaluations WHERE application_id = $1
		ORDER BY created_at, id`, applicationID)
	if err != nil {
		return nil, mapError("list_evaluations", err)
	}
	defer rows.Close()

	out := make([]models.Evaluation, 0)
	for rows.Next() {
		var e models.Evaluation
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.EvaluatorID, &e.EvaluatorRole, &e.Rating,
			&e.Comments, &e.Strengths, &e.Weaknesses, &e.Recommendation, &e.CreatedAt); err != nil {
			return nil, mapError("scan_evaluation", err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, mapError("list_evaluations", rows.Err())
}
