package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)

func newTicket(t *testing.T) *Ticket {
	t.Helper()
	ticket, err := NewTicket("order-1", "ORD-0C7D9A4E", "TakeAway", []Item{
		{ID: "item-1", ProductID: "sku-1", Quantity: 2},
		{ID: "item-2", ProductID: "sku-2", Quantity: 1},
	}, now)
	require.NoError(t, err)
	return ticket
}

func TestNewTicketValidates(t *testing.T) {
	_, err := NewTicket("", "", "", []Item{{ID: "a"}}, now)
	require.ErrorIs(t, err, ErrMissingOrderID)

	_, err = NewTicket("order-1", "", "", nil, now)
	require.ErrorIs(t, err, ErrNoItems)

	_, err = NewTicket("order-1", "", "", []Item{{ID: "a"}, {ID: "a"}}, now)
	require.ErrorIs(t, err, ErrDuplicateItem)
}

func TestFinishItemRaisesEventsOnce(t *testing.T) {
	ticket := newTicket(t)
	require.Equal(t, TicketQueued, ticket.State)

	events, err := ticket.FinishItem("item-2", now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventItemFinished, events[0].EventName())
	assert.Equal(t, "kitchen:order-1:item-2", events[0].(ItemFinished).MessageID())
	assert.Equal(t, TicketInPreparation, ticket.State)
	require.NotNil(t, ticket.StartedAt)

	events, err = ticket.FinishItem("item-2", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = ticket.FinishItem("item-1", now.Add(3*time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventOrderFinished, events[1].EventName())
	assert.Equal(t, TicketFinished, ticket.State)
	assert.Equal(t, []string{"item-1", "item-2"}, ticket.FinishedItemIDs())

	events, err = ticket.FinishItem("item-1", now.Add(4*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFinishUnknownItem(t *testing.T) {
	ticket := newTicket(t)
	_, err := ticket.FinishItem("item-9", now)
	require.ErrorIs(t, err, ErrUnknownItem)
	assert.Equal(t, TicketQueued, ticket.State)
}

func TestStartIsIdempotent(t *testing.T) {
	ticket := newTicket(t)
	require.True(t, ticket.Start(now))
	require.False(t, ticket.Start(now.Add(time.Minute)))
	assert.Equal(t, now, *ticket.StartedAt)
}

func TestCloneIsDeep(t *testing.T) {
	ticket := newTicket(t)
	_, err := ticket.FinishItem("item-1", now)
	require.NoError(t, err)
	clone := ticket.Clone()
	*clone.Items[0].FinishedAt = now.Add(time.Hour)
	assert.Equal(t, now, *ticket.Items[0].FinishedAt)
}
