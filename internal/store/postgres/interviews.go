package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/models"
)

const interviewColumns = `id, application_id, round, scheduled_at, duration_minutes, status,
	reschedule_reason, cancel_reason, version, created_at, updated_at, completed_at`

func scanInterview(row rowScanner) (*models.Interview, error) {
	var (
		i           models.Interview
		completedAt sql.NullTime
	)
	if err := row.Scan(&i.ID, &i.ApplicationID, &i.Round, &i.ScheduledAt, &i.DurationMinutes, &i.Status,
		&i.RescheduleReason, &i.CancelReason, &i.Version, &i.CreatedAt, &i.UpdatedAt, &completedAt); err != nil {
		return nil, err
	}
	i.ScheduledAt = i.ScheduledAt.UTC()
	i.CreatedAt = i.CreatedAt.UTC()
	i.UpdatedAt = i.UpdatedAt.UTC()
	i.CompletedAt = timePtr(completedAt)
	return &i, nil
}

func (t *tx) CreateInterview(ctx context.Context, i *models.Interview) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO interviews (`+interviewColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		i.ID, i.ApplicationID, i.Round, i.ScheduledAt, i.DurationMinutes, string(i.Status),
		i.RescheduleReason, i.CancelReason, i.Version, i.CreatedAt, i.UpdatedAt, nullTime(i.CompletedAt),
	)
	if err != nil {
		return mapError("insert_interview", err)
	}
	for pos, a := range i.Assignments {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO interviewer_assignments (interview_id, interviewer_id, position, attended, rating, recommendation)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			i.ID, a.InterviewerID, pos, a.Attended, nullInt(a.Rating), nullRecommendation(a.Recommendation),
		); err != nil {
			return mapError("insert_interviewer_assignment", err)
		}
	}
	return nil
}

func (t *tx) GetInterview(ctx context.Context, id string) (*models.Interview, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE id = $1 FOR UPDATE`, id)
	i, err := scanInterview(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("interview", id)
	}
	if err != nil {
		return nil, mapError("select_interview", err)
	}
	if i.Assignments, err = t.listAssignments(ctx, i.ID); err != nil {
		return nil, err
	}
	return i, nil
}

func (t *tx) ListInterviews(ctx context.Context, applicationID string) ([]models.Interview, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+interviewColumns+` FROM interviews
		WHERE application_id = $1 ORDER BY round, created_at`, applicationID)
	if err != nil {
		return nil, mapError("list_interviews", err)
	}

	out := make([]models.Interview, 0)
	for rows.Next() {
		i, err := scanInterview(rows)
		if err != nil {
			rows.Close()
			return nil, mapError("scan_interview", err)
		}
		out = append(out, *i)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, mapError("list_interviews", err)
	}
	rows.Close()

	for idx := range out {
		if out[idx].Assignments, err = t.listAssignments(ctx, out[idx].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *tx) listAssignments(ctx context.Context, interviewID string) ([]models.InterviewerAssignment, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT interview_id, interviewer_id, attended, rating, recommendation
		FROM interviewer_assignments WHERE interview_id = $1 ORDER BY position`, interviewID)
	if err != nil {
		return nil, mapError("list_interviewer_assignments", err)
	}
	defer rows.Close()

	out := make([]models.InterviewerAssignment, 0)
	for rows.Next() {
		var (
			a              models.InterviewerAssignment
			rating         sql.NullInt64
			recommendation sql.NullString
		)
		if err := rows.Scan(&a.InterviewID, &a.InterviewerID, &a.Attended, &rating, &recommendation); err != nil {
			return nil, mapError("scan_interviewer_assignment", err)
		}
		if rating.Valid {
			v := int(rating.Int64)
			a.Rating = &v
		}
		if recommendation.Valid {
			r := models.Recommendation(recommendation.String)
			a.Recommendation = &r
		}
		out = append(out, a)
	}
	return out, mapError("list_interviewer_assignments", rows.Err())
}

func (t *tx) UpdateInterview(ctx context.Context, i *models.Interview, expectedVersion int64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE interviews
		SET scheduled_at = $3, duration_minutes = $4, status = $5, reschedule_reason = $6,
			cancel_reason = $7, updated_at = $8, completed_at = $9, version = version + 1
		WHERE id = $1 AND version = $2`,
		i.ID, expectedVersion, i.ScheduledAt, i.DurationMinutes, string(i.Status), i.RescheduleReason,
		i.CancelReason, i.UpdatedAt, nullTime(i.CompletedAt),
	)
	if err != nil {
		return mapError("update_interview", err)
	}
	if err := expectOneRow(res, "interview", i.ID); err != nil {
		return err
	}
	for _, a := range i.Assignments {
		if _, err := t.tx.ExecContext(ctx, `
			UPDATE interviewer_assignments SET attended = $3, rating = $4, recommendation = $5
			WHERE interview_id = $1 AND interviewer_id = $2`,
			i.ID, a.InterviewerID, a.Attended, nullInt(a.Rating), nullRecommendation(a.Recommendation),
		); err != nil {
			return mapError("update_interviewer_assignment", err)
		}
	}
	i.Version = expectedVersion + 1
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullRecommendation(r *models.Recommendation) sql.NullString {
	if r == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*r), Valid: true}
}
