package cron

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/menuboard-backend/pkg/db/dbtest"
	"github.com/angelmondragon/menuboard-backend/pkg/db/models"
	"github.com/angelmondragon/menuboard-backend/pkg/enums"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox"
)

func TestRetentionJobPrunesSettledRows(t *testing.T) {
	client := dbtest.Client(t)
	conn := client.DB()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-45 * 24 * time.Hour)
	recent := now.Add(-2 * 24 * time.Hour)

	event := func(createdAt time.Time, publishedAt *time.Time, attempts int) models.OutboxEvent {
		e := models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			CreatedAt:     createdAt,
			PublishedAt:   publishedAt,
			AttemptCount:  attempts,
		}
		require.NoError(t, conn.Create(&e).Error)
		return e
	}
	oldPublished := event(old, &old, 1)
	recentPublished := event(recent, &recent, 1)
	oldTerminal := event(old, nil, 10)
	oldPending := event(old, nil, 3)

	letter := func(failedAt time.Time) models.OutboxDLQ {
		d := models.OutboxDLQ{
			ID:            uuid.New(),
			EventID:       uuid.New(),
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
			FailedAt:      failedAt,
		}
		require.NoError(t, conn.Create(&d).Error)
		return d
	}
	ancientLetter := letter(now.Add(-120 * 24 * time.Hour))
	freshLetter := letter(recent)

	jobIface, err := NewRetentionJob(RetentionJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		DB:     client,
		Outbox: outbox.NewRepository(conn),
		DLQ:    outbox.NewDLQRepository(conn),
	})
	require.NoError(t, err)
	job := jobIface.(*retentionJob)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	var remaining []uuid.UUID
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Pluck("id", &remaining).Error)
	require.ElementsMatch(t, []uuid.UUID{recentPublished.ID, oldPending.ID}, remaining)
	require.NotContains(t, remaining, oldPublished.ID)
	require.NotContains(t, remaining, oldTerminal.ID)

	var letters []uuid.UUID
	require.NoError(t, conn.Model(&models.OutboxDLQ{}).Pluck("id", &letters).Error)
	require.Equal(t, []uuid.UUID{freshLetter.ID}, letters)
	require.NotContains(t, letters, ancientLetter.ID)
}

func TestNewRetentionJobRequiresRepositories(t *testing.T) {
	_, err := NewRetentionJob(RetentionJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		DB:     dbtest.Client(t),
	})
	require.Error(t, err)
}
