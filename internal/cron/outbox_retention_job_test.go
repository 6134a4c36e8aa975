package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/dbtest"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
)

func outboxRow(t *testing.T, conn *gorm.DB, created time.Time, published, terminal *time.Time, attempts int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, conn.Create(&models.OutboxEvent{
		ID:            id,
		EventType:     enums.EventSaleCompleted,
		AggregateType: enums.AggregateSale,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{}`),
		CreatedAt:     created,
		PublishedAt:   published,
		TerminalAt:    terminal,
		AttemptCount:  attempts,
	}).Error)
	return id
}

func TestOutboxRetentionJobPrunesOldRows(t *testing.T) {
	conn := dbtest.New(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-40 * 24 * time.Hour)
	recent := now.Add(-2 * time.Hour)

	oldPublished := outboxRow(t, conn, old, &old, nil, 1)
	recentPublished := outboxRow(t, conn, recent, &recent, nil, 1)
	oldTerminal := outboxRow(t, conn, old, nil, &old, 10)
	oldPending := outboxRow(t, conn, old, nil, nil, 3)

	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      quietLogger(),
		DB:          db.Wrap(conn),
		Repo:        outbox.NewRepository(conn),
		MaxAttempts: 10,
	})
	require.NoError(t, err)
	job.(*outboxRetentionJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Find(&remaining).Error)
	ids := map[uuid.UUID]bool{}
	for _, row := range remaining {
		ids[row.ID] = true
	}
	assert.False(t, ids[oldPublished])
	assert.False(t, ids[oldTerminal])
	assert.True(t, ids[recentPublished])
	assert.True(t, ids[oldPending], "undelivered rows are never pruned")
}

type failingPruner struct{}

func (failingPruner) DeletePublishedBefore(context.Context, *gorm.DB, time.Time, int) (int64, error) {
	return 0, errors.New("boom")
}

type directTx struct{}

func (directTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger: quietLogger(),
		DB:     directTx{},
		Repo:   failingPruner{},
	})
	require.NoError(t, err)
	assert.Error(t, job.Run(context.Background()))
}
