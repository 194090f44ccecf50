package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

func seedApplication(t *testing.T, s *Store, id string, status models.ApplicationStatus) {
	t.Helper()
	require.NoError(t, s.WithinTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateApplication(context.Background(), &models.Application{
			ID: id, VacancyID: "vac-1", ApplicantID: "user-" + id, CVID: "cv", Status: status,
			Version: 1, CreatedAt: t0, UpdatedAt: t0,
		})
	}))
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := New()
	seedApplication(t, s, "app-1", models.StatusApplied)

	err := s.WithinTx(context.Background(), func(tx store.Tx) error {
		app, err := tx.GetApplication(context.Background(), "app-1")
		require.NoError(t, err)
		app.Status = models.StatusScreening
		require.NoError(t, tx.UpdateApplication(context.Background(), app, 1))
		require.NoError(t, tx.EnqueueEvent(context.Background(),
			models.NewDomainEvent(models.EventStatusChanged, "app-1", models.Principal{}, nil, t0)))
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	_ = s.WithinTx(context.Background(), func(tx store.Tx) error {
		app, err := tx.GetApplication(context.Background(), "app-1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusApplied, app.Status)
		assert.Equal(t, int64(1), app.Version)
		return nil
	})
	assert.Empty(t, s.Events())
}

func TestCreateApplication_OneActivePerVacancy(t *testing.T) {
	s := New()
	create := func(id string) error {
		return s.WithinTx(context.Background(), func(tx store.Tx) error {
			return tx.CreateApplication(context.Background(), &models.Application{
				ID: id, VacancyID: "vac-1", ApplicantID: "user-1", Status: models.StatusApplied, Version: 1,
			})
		})
	}

	require.NoError(t, create("a"))
	assert.ErrorIs(t, create("b"), errors.ErrDuplicateAction)
}

func TestUpdateApplication_StaleVersion(t *testing.T) {
	s := New()
	seedApplication(t, s, "app-1", models.StatusApplied)

	err := s.WithinTx(context.Background(), func(tx store.Tx) error {
		return tx.UpdateApplication(context.Background(), &models.Application{ID: "app-1", Status: models.StatusRejected}, 4)
	})
	assert.ErrorIs(t, err, errors.ErrConcurrentModification)
}

func TestCreateInterview_ActiveRoundIsUnique(t *testing.T) {
	s := New()
	seedApplication(t, s, "app-1", models.StatusScreening)
	create := func(id string, status models.InterviewState) error {
		return s.WithinTx(context.Background(), func(tx store.Tx) error {
			return tx.CreateInterview(context.Background(), &models.Interview{
				ID: id, ApplicationID: "app-1", Round: 1, Status: status, Version: 1,
			})
		})
	}

	require.NoError(t, create("i1", models.InterviewCancelled))
	require.NoError(t, create("i2", models.InterviewScheduled))
	assert.ErrorIs(t, create("i3", models.InterviewScheduled), errors.ErrDuplicateAction)
}

func TestOutbox_ClaimLeaseAndRetry(t *testing.T) {
	now := t0
	s := NewWithClock(func() time.Time { return now })
	seedApplication(t, s, "app-1", models.StatusApplied)
	event := models.NewDomainEvent(models.EventApplicationSubmitted, "app-1", models.Principal{}, nil, t0)
	require.NoError(t, s.WithinTx(context.Background(), func(tx store.Tx) error {
		return tx.EnqueueEvent(context.Background(), event)
	}))

	records, err := s.ClaimBatch(context.Background(), 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].Attempts)

	again, err := s.ClaimBatch(context.Background(), 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again, "leased events are not handed out twice")

	require.NoError(t, s.MarkFailed(context.Background(), event.ID, "timeout", now.Add(5*time.Second), false))
	early, _ := s.ClaimBatch(context.Background(), 10, time.Minute)
	assert.Empty(t, early)

	now = now.Add(10 * time.Second)
	retried, err := s.ClaimBatch(context.Background(), 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, retried, 1)
	assert.Equal(t, 2, retried[0].Attempts)

	require.NoError(t, s.MarkDelivered(context.Background(), event.ID))
	status, attempts, ok := s.OutboxStatus(event.ID)
	require.True(t, ok)
	assert.Equal(t, models.OutboxDelivered, status)
	assert.Equal(t, 2, attempts)
}
