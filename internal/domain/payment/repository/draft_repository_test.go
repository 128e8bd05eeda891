package repository

import (
	"context"
	"testing"
	"time"
	"ustp_things/internal/domain/payment/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDraftRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDraftRepository()
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	d := &model.CheckoutDraft{ExternalID: "order_1_b1", BuyerID: "b1", CreatedAt: now}
	require.NoError(t, repo.Save(ctx, d, time.Hour))

	got, err := repo.Get(ctx, "order_1_b1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "b1", got.BuyerID)

	pending, _ := repo.PendingFor(ctx, "b1")
	assert.Equal(t, "order_1_b1", pending)

	t.Run("newer checkout keeps its pointer", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, &model.CheckoutDraft{ExternalID: "order_2_b1", BuyerID: "b1", CreatedAt: now}, time.Hour))
		require.NoError(t, repo.Delete(ctx, "order_1_b1", "b1"))

		pending, _ := repo.PendingFor(ctx, "b1")
		assert.Equal(t, "order_2_b1", pending)
		got, _ := repo.Get(ctx, "order_1_b1")
		assert.Nil(t, got)
	})

	t.Run("processed marker", func(t *testing.T) {
		ok, _ := repo.IsProcessed(ctx, "order_2_b1")
		assert.False(t, ok)
		require.NoError(t, repo.MarkProcessed(ctx, "order_2_b1", time.Hour))
		ok, _ = repo.IsProcessed(ctx, "order_2_b1")
		assert.True(t, ok)
	})

	t.Run("list pending by age", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, &model.CheckoutDraft{ExternalID: "order_0_b2", BuyerID: "b2", CreatedAt: now.Add(-10 * time.Minute)}, time.Hour))

		list, err := repo.ListPending(ctx, now.Add(-5*time.Minute))
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "order_0_b2", list[0].ExternalID)
	})

	t.Run("expired draft is gone", func(t *testing.T) {
		now = now.Add(2 * time.Hour)
		got, _ := repo.Get(ctx, "order_2_b1")
		assert.Nil(t, got)
		pending, _ := repo.PendingFor(ctx, "b1")
		assert.Empty(t, pending)
	})
}
