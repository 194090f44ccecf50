package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/models"
)

func (t *tx) EnqueueEvent(ctx context.Context, event models.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.NewInternalError(err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO outbox_events (id, event_type, application_id, payload, status, available_at, created_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, $5)`,
		event.ID, string(event.Type), event.ApplicationID, payload, event.OccurredAt,
	)
	return mapError("insert_outbox_event", err)
}

// outboxClaimLock serialises claims across relays so the per-application
// ordering check sees every lease taken before it.
const outboxClaimLock int64 = 0x6f7574626f78

// ClaimBatch leases pending rows in sequence order. A row is skipped while an
// earlier pending row of the same application is leased or not yet due.
func (s *Store) ClaimBatch(ctx context.Context, limit int, lease time.Duration) (_ []models.OutboxRecord, err error) {
	now := s.now().UTC()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if _, err = sqlTx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, outboxClaimLock); err != nil {
		return nil, mapError("lock_outbox", err)
	}

	rows, err := sqlTx.QueryContext(ctx, `
		UPDATE outbox_events
		SET leased_until = $2, attempts = attempts + 1
		WHERE id IN (
			SELECT e.id FROM outbox_events e
			WHERE e.status = 'pending'
			  AND e.available_at <= $1
			  AND (e.leased_until IS NULL OR e.leased_until <= $1)
			  AND NOT EXISTS (
				SELECT 1 FROM outbox_events prior
				WHERE prior.application_id = e.application_id
				  AND prior.status = 'pending'
				  AND prior.seq < e.seq
				  AND (prior.available_at > $1 OR prior.leased_until > $1)
			  )
			ORDER BY e.seq
			LIMIT $3
			FOR UPDATE OF e SKIP LOCKED
		)
		RETURNING seq, payload, attempts`, now, now.Add(lease), limit)
	if err != nil {
		return nil, mapError("claim_outbox", err)
	}
	records, err := scanClaimed(rows)
	if err != nil {
		return nil, err
	}

	if err = sqlTx.Commit(); err != nil {
		return nil, mapError("commit", err)
	}
	return records, nil
}

func scanClaimed(rows *sql.Rows) ([]models.OutboxRecord, error) {
	defer rows.Close()

	type claimed struct {
		seq    int64
		record models.OutboxRecord
	}
	var batch []claimed
	for rows.Next() {
		var (
			c       claimed
			payload []byte
		)
		if err := rows.Scan(&c.seq, &payload, &c.record.Attempts); err != nil {
			return nil, mapError("scan_outbox", err)
		}
		if err := json.Unmarshal(payload, &c.record.Event); err != nil {
			return nil, errors.NewInternalError(err)
		}
		batch = append(batch, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("claim_outbox", err)
	}

	sort.Slice(batch, func(i, j int) bool { return batch[i].seq < batch[j].seq })
	out := make([]models.OutboxRecord, 0, len(batch))
	for _, c := range batch {
		out = append(out, c.record)
	}
	return out, nil
}

func (s *Store) MarkDelivered(ctx context.Context, eventID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox_events SET status = 'delivered', delivered_at = $2, leased_until = NULL
		WHERE id = $1`, eventID, s.now().UTC())
	if err != nil {
		return mapError("mark_outbox_delivered", err)
	}
	return expectFound(res, eventID)
}

func (s *Store) MarkFailed(ctx context.Context, eventID, lastError string, nextAttemptAt time.Time, dead bool) error {
	status := models.OutboxPending
	if dead {
		status = models.OutboxDead
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox_events
		SET status = $2, last_error = $3, available_at = $4, leased_until = NULL
		WHERE id = $1`, eventID, string(status), lastError, nextAttemptAt.UTC())
	if err != nil {
		return mapError("mark_outbox_failed", err)
	}
	return expectFound(res, eventID)
}

func (s *Store) Release(ctx context.Context, eventID string, availableAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox_events
		SET available_at = $2, leased_until = NULL, attempts = GREATEST(attempts - 1, 0)
		WHERE id = $1 AND status = 'pending'`, eventID, availableAt.UTC())
	if err != nil {
		return mapError("release_outbox", err)
	}
	return expectFound(res, eventID)
}

func expectFound(res sql.Result, eventID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("rows_affected", err)
	}
	if n == 0 {
		return errors.NewNotFoundError("outbox event", eventID)
	}
	return nil
}
