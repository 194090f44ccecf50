package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/models"
)

const applicationColumns = `id, vacancy_id, applicant_id, cv_id, motivation_letter_id, status, notes,
	withdrawn_reason, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		app              models.Application
		motivationLetter sql.NullString
		withdrawnReason  sql.NullString
	)
	if err := row.Scan(
		&app.ID, &app.VacancyID, &app.ApplicantID, &app.CVID, &motivationLetter, &app.Status,
		&app.Notes, &withdrawnReason, &app.Version, &app.CreatedAt, &app.UpdatedAt,
	); err != nil {
		return nil, err
	}
	app.MotivationLetterID = stringPtr(motivationLetter)
	app.WithdrawnReason = stringPtr(withdrawnReason)
	app.CreatedAt = app.CreatedAt.UTC()
	app.UpdatedAt = app.UpdatedAt.UTC()
	return &app, nil
}

func (t *tx) CreateApplication(ctx context.Context, app *models.Application) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		app.ID, app.VacancyID, app.ApplicantID, app.CVID, nullString(app.MotivationLetterID),
		string(app.Status), app.Notes, nullString(app.WithdrawnReason), app.Version,
		app.CreatedAt, app.UpdatedAt,
	)
	return mapError("insert_application", err)
}

func (t *tx) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1 FOR UPDATE`, id)
	app, err := scanApplication(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("application", id)
	}
	if err != nil {
		return nil, mapError("select_application", err)
	}
	return app, nil
}

func (t *tx) FindActiveApplication(ctx context.Context, applicantID, vacancyID string) (*models.Application, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+applicationColumns+` FROM applications
		WHERE applicant_id = $1 AND vacancy_id = $2 AND status NOT IN ('REJECTED', 'WITHDRAWN')
		LIMIT 1`, applicantID, vacancyID)
	app, err := scanApplication(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("select_active_application", err)
	}
	return app, nil
}

func (t *tx) ListApplications(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, value interface{}) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.VacancyID != "" {
		add("vacancy_id = $%d", filter.VacancyID)
	}
	if filter.ApplicantID != "" {
		add("applicant_id = $%d", filter.ApplicantID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}

	query := `SELECT ` + applicationColumns + ` FROM applications`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list_applications", err)
	}
	defer rows.Close()

	out := make([]models.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, mapError("scan_application", err)
		}
		out = append(out, *app)
	}
	return out, mapError("list_applications", rows.Err())
}

func (t *tx) UpdateApplication(ctx context.Context, app *models.Application, expectedVersion int64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE applications
		SET status = $3, notes = $4, withdrawn_reason = $5, version = version + 1, updated_at = $6
		WHERE id = $1 AND version = $2`,
		app.ID, expectedVersion, string(app.Status), app.Notes, nullString(app.WithdrawnReason), app.UpdatedAt,
	)
	if err != nil {
		return mapError("update_application", err)
	}
	if err := expectOneRow(res, "application", app.ID); err != nil {
		return err
	}
	app.Version = expectedVersion + 1
	return nil
}

func (t *tx) TouchApplication(ctx context.Context, id string, expectedVersion int64, at time.Time) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE applications SET version = version + 1, updated_at = $3
		WHERE id = $1 AND version = $2`, id, expectedVersion, at)
	if err != nil {
		return 0, mapError("touch_application", err)
	}
	if err := expectOneRow(res, "application", id); err != nil {
		return 0, err
	}
	return expectedVersion + 1, nil
}

// expectOneRow turns a conditional update that matched nothing into
// ConcurrentModification.
func expectOneRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("rows_affected", err)
	}
	if n == 0 {
		return errors.NewConcurrentModificationError(entity, id)
	}
	return nil
}
