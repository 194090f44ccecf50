// Package outbox drains committed domain events to the notification, audit
// and workflow sinks. Delivery is at least once: a sink may see the same
// event again after a partial failure and must treat the event id as an
// idempotency key.
package outbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"hiring-pipeline/internal/common/config"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/metrics"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/store"
)

// Sink consumes domain events.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event models.DomainEvent) error
}

type Config struct {
	PollInterval time.Duration
	BatchSize    int
	Concurrency  int
	Lease        time.Duration
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

// ConfigFrom converts the millisecond based outbox section.
func ConfigFrom(c config.OutboxConfig) Config {
	return Config{
		PollInterval: config.GetDuration(c.PollInterval),
		BatchSize:    c.BatchSize,
		Concurrency:  c.Concurrency,
		Lease:        config.GetDuration(c.Lease),
		MaxAttempts:  c.MaxAttempts,
		BaseBackoff:  config.GetDuration(c.BaseBackoff),
		MaxBackoff:   config.GetDuration(c.MaxBackoff),
	}
}

type Relay struct {
	repo   store.OutboxRepository
	sinks  []Sink
	config Config
	logger logger.Logger
	now    func() time.Time
}

type Option func(*Relay)

func WithClock(now func() time.Time) Option { return func(r *Relay) { r.now = now } }

func NewRelay(repo store.OutboxRepository, sinks []Sink, cfg Config, log logger.Logger, opts ...Option) *Relay {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 30 * time.Second
	}
	r := &Relay{
		repo:   repo,
		sinks:  sinks,
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"component": "outbox-relay"}),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled. A full batch is followed by an immediate
// poll so a backlog drains without waiting for the ticker.
func (r *Relay) Run(ctx context.Context) {
	r.logger.Info("Outbox relay started", map[string]interface{}{
		"sinks":       r.sinkNames(),
		"concurrency": r.config.Concurrency,
		"batchSize":   r.config.BatchSize,
	})

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopped", nil)
			return
		case <-ticker.C:
			for {
				n, err := r.PollOnce(ctx)
				if err != nil {
					r.logger.Error("Outbox claim failed", map[string]interface{}{"error": err.Error()})
					break
				}
				if n < r.config.BatchSize || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// PollOnce claims one batch and delivers it. Events of the same application
// are delivered in commit order; different applications proceed in parallel.
func (r *Relay) PollOnce(ctx context.Context) (int, error) {
	batch, err := r.repo.ClaimBatch(ctx, r.config.BatchSize, r.config.Lease)
	if err != nil {
		return 0, err
	}
	metrics.OutboxBatchSize.Observe(float64(len(batch)))
	if len(batch) == 0 {
		return 0, nil
	}

	var (
		order  []string
		groups = make(map[string][]models.OutboxRecord)
	)
	for _, rec := range batch {
		key := rec.Event.ApplicationID
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}

	jobs := make(chan []models.OutboxRecord)
	var wg sync.WaitGroup
	for i := 0; i < r.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range jobs {
				for idx, rec := range group {
					if settled, next := r.process(ctx, rec); !settled {
						r.holdBack(ctx, group[idx+1:], next)
						break
					}
				}
			}
		}()
	}
	for _, key := range order {
		jobs <- groups[key]
	}
	close(jobs)
	wg.Wait()

	return len(batch), nil
}

// process delivers rec to every sink and records the outcome. It reports
// whether the event is settled (delivered or dead) and, if not, when it is
// retried.
func (r *Relay) process(ctx context.Context, rec models.OutboxRecord) (bool, time.Time) {
	event := rec.Event
	var failures []string
	for _, sink := range r.sinks {
		if err := sink.Deliver(ctx, event); err != nil {
			metrics.OutboxDeliveries.WithLabelValues(sink.Name(), "failed").Inc()
			failures = append(failures, fmt.Sprintf("%s: %v", sink.Name(), err))
			r.logger.Warn("Sink delivery failed", map[string]interface{}{
				"sink":     sink.Name(),
				"eventId":  event.ID,
				"type":     string(event.Type),
				"attempts": rec.Attempts,
				"error":    err.Error(),
			})
			continue
		}
		metrics.OutboxDeliveries.WithLabelValues(sink.Name(), "delivered").Inc()
	}

	if len(failures) == 0 {
		if err := r.repo.MarkDelivered(ctx, event.ID); err != nil {
			r.logger.Error("Failed to mark event delivered", map[string]interface{}{
				"eventId": event.ID,
				"error":   err.Error(),
			})
		}
		return true, time.Time{}
	}

	dead := rec.Attempts >= r.config.MaxAttempts
	next := r.now().Add(r.Backoff(rec.Attempts))
	if err := r.repo.MarkFailed(ctx, event.ID, strings.Join(failures, "; "), next, dead); err != nil {
		r.logger.Error("Failed to record delivery failure", map[string]interface{}{
			"eventId": event.ID,
			"error":   err.Error(),
		})
	}
	if dead {
		metrics.OutboxDeadLetters.WithLabelValues(string(event.Type)).Inc()
		r.logger.Error("Event dead-lettered", map[string]interface{}{
			"eventId":       event.ID,
			"type":          string(event.Type),
			"applicationId": event.ApplicationID,
			"attempts":      rec.Attempts,
		})
		return true, time.Time{}
	}
	return false, next
}

// holdBack releases events queued behind a failed event of the same
// application. They become due together with the failed event and the claim
// does not count as an attempt.
func (r *Relay) holdBack(ctx context.Context, held []models.OutboxRecord, next time.Time) {
	for _, rec := range held {
		if err := r.repo.Release(ctx, rec.Event.ID, next); err != nil {
			r.logger.Error("Failed to release held event", map[string]interface{}{
				"eventId": rec.Event.ID,
				"error":   err.Error(),
			})
		}
	}
}

// Backoff is BaseBackoff doubled per prior attempt, capped at MaxBackoff.
func (r *Relay) Backoff(attempts int) time.Duration {
	d := r.config.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if r.config.MaxBackoff > 0 && d >= r.config.MaxBackoff {
			return r.config.MaxBackoff
		}
	}
	if r.config.MaxBackoff > 0 && d > r.config.MaxBackoff {
		return r.config.MaxBackoff
	}
	return d
}

func (r *Relay) sinkNames() []string {
	names := make([]string, 0, len(r.sinks))
	for _, s := range r.sinks {
		names = append(names, s.Name())
	}
	return names
}
