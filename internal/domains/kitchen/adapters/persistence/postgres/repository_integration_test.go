//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/application"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/ports"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/outbox"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/postgres/pgtest"
)

func TestRepository_FinishItemsPersistsArrayAndOutbox(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, pool := pgtest.Start(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)

	ticket, err := domain.NewTicket("order-1", "ORD-0C7D9A4E", "Delivery", []domain.Item{
		{ID: "item-1", ProductID: "sku-1", Quantity: 1},
		{ID: "item-2", ProductID: "sku-2", Quantity: 1},
	}, now)
	require.NoError(t, err)

	saved, err := repo.Create(ctx, ticket)
	require.NoError(t, err)
	assert.EqualValues(t, 1, saved.Version)
	_, err = repo.Create(ctx, ticket)
	require.ErrorIs(t, err, ports.ErrAlreadyExists)

	next := saved.Entity.Clone()
	events, err := next.FinishItem("item-2", now.Add(time.Minute))
	require.NoError(t, err)
	msgs, err := application.Messages(events)
	require.NoError(t, err)

	_, err = repo.Save(ctx, next, 5, msgs)
	require.ErrorIs(t, err, ports.ErrVersionConflict)
	saved, err = repo.Save(ctx, next, 1, msgs)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketInPreparation, saved.Entity.State)
	assert.Equal(t, []string{"item-2"}, saved.Entity.FinishedItemIDs())

	var finished pq.StringArray
	require.NoError(t, db.Table("kitchen_tickets").Select("finished_item_ids").Where("order_id = ?", "order-1").Row().Scan(&finished))
	assert.Equal(t, pq.StringArray{"item-2"}, finished)

	batch, err := outbox.NewPgStore(pool, 0).LockBatch(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "kitchen:order-1:item-2", batch[0].ID)

	list, err := repo.List(ctx, []domain.TicketState{domain.TicketInPreparation})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
