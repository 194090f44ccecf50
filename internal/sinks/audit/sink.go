// Package audit keeps the append-only change log of the pipeline. Postgres is
// the record of truth; Elasticsearch, when configured, holds a searchable copy.
package audit

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

const SinkName = "audit"

// Entry is one recorded event as stored in audit_log.
type Entry struct {
	EventID       string                 `json:"eventId"`
	EventType     models.EventType       `json:"eventType"`
	ApplicationID string                 `json:"applicationId"`
	ActorID       string                 `json:"actorId"`
	ActorRole     models.Role            `json:"actorRole"`
	Payload       map[string]interface{} `json:"payload"`
	OccurredAt    time.Time              `json:"occurredAt"`
}

func entryFrom(e models.DomainEvent) Entry {
	return Entry{
		EventID:       e.ID,
		EventType:     e.Type,
		ApplicationID: e.ApplicationID,
		ActorID:       e.Actor.ID,
		ActorRole:     e.Actor.Role,
		Payload:       e.Payload,
		OccurredAt:    e.OccurredAt,
	}
}

type Sink struct {
	db     *sql.DB
	es     *elasticsearch.Client
	index  string
	logger logger.Logger
}

// NewSink records into db and, if es is non-nil, indexes into index.
func NewSink(db *sql.DB, es *elasticsearch.Client, index string, log logger.Logger) *Sink {
	return &Sink{
		db:     db,
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"sink": SinkName}),
	}
}

func (s *Sink) Name() string { return SinkName }

// Deliver is idempotent on the event id in both stores.
func (s *Sink) Deliver(ctx context.Context, event models.DomainEvent) error {
	entry := entryFrom(event)
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return errors.NewInternalError(err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_id, event_type, application_id, actor_id, actor_role, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING`,
		entry.EventID, string(entry.EventType), entry.ApplicationID,
		entry.ActorID, string(entry.ActorRole), payload, entry.OccurredAt,
	)
	if err != nil {
		return errors.NewAuditRecordFailedError("postgres", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.Debug("audit entry already recorded", map[string]interface{}{"eventId": entry.EventID})
	}

	if s.es != nil {
		if err := s.indexEntry(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) indexEntry(ctx context.Context, entry Entry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return errors.NewInternalError(err)
	}
	res, err := s.es.Index(
		s.index,
		bytes.NewReader(body),
		s.es.Index.WithContext(ctx),
		s.es.Index.WithDocumentID(entry.EventID),
	)
	if err != nil {
		return errors.NewAuditRecordFailedError("elasticsearch", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewAuditRecordFailedError("elasticsearch", fmt.Errorf("index %s: %s", s.index, res.Status()))
	}
	return nil
}

// History returns the audit trail of one application, oldest first.
func (s *Sink) History(ctx context.Context, applicationID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, event_type, application_id, actor_id, actor_role, payload, occurred_at
		FROM audit_log
		WHERE application_id = $1
		ORDER BY occurred_at, id`, applicationID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("select_audit_log", err)
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		var (
			e         Entry
			eventType string
			role      string
			payload   []byte
		)
		if err := rows.Scan(&e.EventID, &eventType, &e.ApplicationID, &e.ActorID, &role, &payload, &e.OccurredAt); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan_audit_log", err)
		}
		e.EventType = models.EventType(eventType)
		e.ActorRole = models.Role(role)
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, errors.NewInternalError(err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("select_audit_log", err)
	}
	return out, nil
}
