// Package postgres implements the store ports on PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/store"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Store runs every unit of work in one database transaction.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

var (
	_ store.Store            = (*Store)(nil)
	_ store.OutboxRepository = (*Store)(nil)
)

func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewDatabaseConnectionFailedError(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
			return
		}
		if cerr := sqlTx.Commit(); cerr != nil {
			err = mapError("commit", cerr)
		}
	}()

	return fn(&tx{tx: sqlTx})
}

type tx struct {
	tx *sql.Tx
}

// mapError keeps taxonomy errors as they are, turns unique violations into
// DuplicateAction and everything else into QueryExecutionFailed.
func mapError(queryType string, err error) error {
	if err == nil {
		return nil
	}
	var stdErr *errors.StandardError
	if stderrors.As(err, &stdErr) {
		return err
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return errors.NewDuplicateActionError(queryType + ": " + pqErr.Constraint)
	}
	return errors.NewQueryExecutionFailedError(queryType, err)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time.UTC()
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
