// Package notification delivers domain events to applicants and interviewers
// by email, and by SMS for high-priority events.
package notification

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/models"

	"github.com/redis/go-redis/v9"
)

const SinkName = "notification"

type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
}

type SMSSender interface {
	Send(ctx context.Context, phone, message string) (string, error)
}

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	// DedupeTTL is how long a delivered (event, recipient, channel) is remembered.
	DedupeTTL time.Duration
	Timeout   time.Duration
}

// Sink resolves recipients from the users table. Email and SMS senders are
// optional; a nil sender disables its channel.
type Sink struct {
	config Config
	db     *sql.DB
	email  EmailSender
	sms    SMSSender
	redis  *redis.Client
	logger logger.Logger
}

func NewSink(cfg Config, db *sql.DB, email EmailSender, sms SMSSender, rdb *redis.Client, log logger.Logger) *Sink {
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = 7 * 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Sink{
		config: cfg,
		db:     db,
		email:  email,
		sms:    sms,
		redis:  rdb,
		logger: log.WithFields(map[string]interface{}{"sink": SinkName}),
	}
}

func (s *Sink) Name() string { return SinkName }

// Deliver notifies every recipient of event. Recipients without a users row
// are skipped. The first channel failure aborts delivery so the relay retries;
// channels already delivered are skipped on retry through the dedupe keys.
func (s *Sink) Deliver(ctx context.Context, event models.DomainEvent) error {
	tmpl, ok := templateFor(event)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	for _, recipientID := range recipients(event) {
		contact, err := s.lookupContact(ctx, recipientID)
		if err != nil {
			return err
		}
		if contact == nil {
			s.logger.Warn("recipient not found", map[string]interface{}{
				"recipientId": recipientID,
				"eventId":     event.ID,
			})
			continue
		}

		data := map[string]interface{}{
			"name":          contact.Name,
			"applicationId": event.ApplicationID,
		}
		for k, v := range event.Payload {
			data[k] = v
		}
		subject := renderTemplate(tmpl.Subject, data)
		body := renderTemplate(tmpl.Body, data)

		if s.config.EmailEnabled && s.email != nil && contact.Email != "" {
			if err := s.once(ctx, event, recipientID, models.ChannelEmail, func() (string, error) {
				return s.email.Send(ctx, contact.Email, subject, body)
			}); err != nil {
				return err
			}
		}
		if tmpl.HighPriority && s.config.SMSEnabled && s.sms != nil && contact.Phone != "" {
			if err := s.once(ctx, event, recipientID, models.ChannelSMS, func() (string, error) {
				return s.sms.Send(ctx, contact.Phone, body)
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// once sends through channel unless the dedupe key shows an earlier success.
// The key is claimed before sending and released again if sending fails.
func (s *Sink) once(ctx context.Context, event models.DomainEvent, recipientID string, channel models.NotificationChannel, send func() (string, error)) error {
	key := dedupeKey(event.ID, recipientID, channel)
	if s.redis != nil {
		claimed, err := s.redis.SetNX(ctx, key, "sending", s.config.DedupeTTL).Result()
		if err != nil {
			return errors.NewExternalServiceError("redis", err)
		}
		if !claimed {
			s.logger.Debug("notification already sent", map[string]interface{}{
				"eventId":     event.ID,
				"recipientId": recipientID,
				"channel":     string(channel),
			})
			return nil
		}
	}

	messageID, err := send()
	if err != nil {
		if s.redis != nil {
			if delErr := s.redis.Del(context.WithoutCancel(ctx), key).Err(); delErr != nil {
				s.logger.Warn("failed to release dedupe key", map[string]interface{}{"key": key, "error": delErr.Error()})
			}
		}
		s.logger.Error("notification send failed", map[string]interface{}{
			"eventId":     event.ID,
			"recipientId": recipientID,
			"channel":     string(channel),
			"error":       err.Error(),
		})
		return errors.NewNotificationSendFailedError(string(channel), err)
	}

	if s.redis != nil {
		s.redis.Set(ctx, key, messageID, s.config.DedupeTTL)
	}
	s.logger.Info("notification sent", map[string]interface{}{
		"eventId":     event.ID,
		"recipientId": recipientID,
		"channel":     string(channel),
		"messageId":   messageID,
	})
	return nil
}

func (s *Sink) lookupContact(ctx context.Context, userID string) (*models.RecipientContact, error) {
	c := models.RecipientContact{UserID: userID}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, email, phone FROM users WHERE id = $1`, userID,
	).Scan(&c.Name, &c.Email, &c.Phone)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("select_recipient", err)
	}
	return &c, nil
}

// recipients is the applicant, plus the interviewers for interview events.
func recipients(event models.DomainEvent) []string {
	var out []string
	seen := map[string]bool{}
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	add(event.PayloadString("applicantId"))
	switch event.Type {
	case models.EventInterviewScheduled, models.EventInterviewRescheduled, models.EventInterviewCancelled:
		for _, id := range event.PayloadStrings("interviewerIds") {
			add(id)
		}
	}
	return out
}

func dedupeKey(eventID, recipientID string, channel models.NotificationChannel) string {
	return fmt.Sprintf("pipeline:notified:%s:%s:%s", eventID, recipientID, channel)
}
