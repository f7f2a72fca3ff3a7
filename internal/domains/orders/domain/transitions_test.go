package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)

type run struct {
	t      *testing.T
	order  *Order
	events []Event
	states []State
	now    time.Time
}

func newRun(t *testing.T, orderType OrderType) *run {
	t.Helper()
	r := &run{t: t, now: t0}
	r.must(CreateOrder("2f9c1d7e-4b1a-4c6e-9b0a-1d2e3f4a5b6c", orderType, nil, "table 7"))
	return r
}

func (r *run) apply(op Operation) (Decision, error) {
	r.now = r.now.Add(time.Minute)
	decision, err := Apply(r.order, op, r.now)
	if err != nil {
		return decision, err
	}
	r.order = decision.Order
	r.events = append(r.events, decision.Events...)
	r.states = append(r.states, r.order.State)
	return decision, nil
}

func (r *run) must(op Operation) Decision {
	r.t.Helper()
	decision, err := r.apply(op)
	require.NoError(r.t, err, "operation %s", op.Name)
	return decision
}

func (r *run) eventNames() []string {
	names := make([]string, 0, len(r.events))
	for _, e := range r.events {
		names = append(names, e.EventName())
	}
	return names
}

func (r *run) count(name string) int {
	n := 0
	for _, e := range r.events {
		if e.EventName() == name {
			n++
		}
	}
	return n
}

func item(id string, qty int, price string) LineItem {
	return LineItem{ID: id, ProductID: "sku-" + id, Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
}

func TestApply_InHouseScenario(t *testing.T) {
	r := newRun(t, OrderTypeInHouse)
	r.must(AddItem(item("item-1", 2, "4.50")))
	r.must(AddItem(item("item-2", 1, "3.00")))
	require.True(t, decimal.RequireFromString("12").Equal(r.order.Total))

	r.must(ConfirmOrder())
	r.must(ConfirmPayment())
	r.must(StartProcessing())
	r.must(ItemFinished("item-1"))
	dup := r.must(ItemFinished("item-1"))
	assert.True(t, dup.Noop)
	assert.Equal(t, StateProcessing, r.order.State)
	r.must(ItemFinished("item-2"))
	assert.Equal(t, StatePrepared, r.order.State)
	r.must(Served())

	assert.Equal(t, StateClosed, r.order.State)
	assert.Equal(t, 1, r.count(EventOrderPaid))
	assert.Equal(t, 1, r.count(EventOrderPrepared))
	assert.Equal(t, 1, r.count(EventOrderClosed))
	assert.Equal(t, []string{
		EventOrderCreated,
		EventOrderConfirmed,
		EventOrderPaid,
		EventKitchenOrderStartProcessing,
		EventOrderItemFinished,
		EventOrderItemFinished,
		EventOrderPrepared,
		EventOrderClosed,
	}, r.eventNames())
	for _, it := range r.order.Items {
		assert.Equal(t, ItemDelivered, it.State)
	}
	assert.NotNil(t, r.order.Timestamps.ClosedAt)
	assert.Nil(t, r.order.Timestamps.DeliveredAt)
}

func TestApply_StatesNeverMoveBackwards(t *testing.T) {
	r := newRun(t, OrderTypeDelivery)
	r.must(AddItem(item("a", 1, "1")))
	r.must(AssignAddress(Address{Line1: "1 Main St", City: "Springfield"}))
	r.must(ConfirmOrder())
	r.must(ConfirmOrder())
	r.must(ConfirmPayment())
	_, _ = r.apply(AddItem(item("b", 1, "1")))
	r.must(StartProcessing())
	r.must(ConfirmPayment())
	r.must(ItemFinished("a"))
	r.must(StartDelivery())
	r.must(ItemFinished("a"))
	r.must(Delivered())
	r.must(Delivered())

	for i := 1; i < len(r.states); i++ {
		assert.False(t, r.states[i].Before(r.states[i-1]), "state went from %s to %s", r.states[i-1], r.states[i])
	}
	assert.Equal(t, StateClosed, r.order.State)
	assert.NotNil(t, r.order.Timestamps.DeliveredAt)
	assert.NotNil(t, r.order.Timestamps.DeliveryStartedAt)
}

func TestApply_ConfirmPaymentTwiceEmitsOnce(t *testing.T) {
	r := newRun(t, OrderTypeTakeAway)
	r.must(AddItem(item("a", 1, "2")))
	r.must(ConfirmOrder())
	first := r.must(ConfirmPayment())
	paidAt := *r.order.Timestamps.PaidAt
	second := r.must(ConfirmPayment())

	assert.False(t, first.Noop)
	assert.True(t, second.Noop)
	assert.Empty(t, second.Events)
	assert.Equal(t, 1, r.count(EventOrderPaid))
	assert.Equal(t, paidAt, *r.order.Timestamps.PaidAt)
}

func TestApply_ConfirmPaymentBeforeConfirmationIsRejected(t *testing.T) {
	r := newRun(t, OrderTypeInHouse)
	_, err := r.apply(ConfirmPayment())

	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.ErrorIs(t, err, ErrPreconditionFailed)
	assert.Equal(t, StateConfirmed, transitionErr.Expected)
	assert.Equal(t, StateCreating, transitionErr.Actual)
}

func TestApply_Rejections(t *testing.T) {
	t.Run("confirm without items", func(t *testing.T) {
		r := newRun(t, OrderTypeInHouse)
		_, err := r.apply(ConfirmOrder())
		assert.ErrorIs(t, err, ErrNoItems)
		assert.Equal(t, StateCreating, r.order.State)
	})
	t.Run("add item after confirmation", func(t *testing.T) {
		r := newRun(t, OrderTypeInHouse)
		r.must(AddItem(item("a", 1, "1")))
		r.must(ConfirmOrder())
		_, err := r.apply(AddItem(item("b", 1, "1")))
		assert.ErrorIs(t, err, ErrPreconditionFailed)
		assert.Len(t, r.order.Items, 1)
	})
	t.Run("remove item after confirmation", func(t *testing.T) {
		r := newRun(t, OrderTypeInHouse)
		r.must(AddItem(item("a", 1, "1")))
		r.must(ConfirmOrder())
		_, err := r.apply(RemoveItem("a"))
		assert.ErrorIs(t, err, ErrPreconditionFailed)
	})
	t.Run("customer after confirmation", func(t *testing.T) {
		r := newRun(t, OrderTypeInHouse)
		r.must(AddItem(item("a", 1, "1")))
		r.must(ConfirmOrder())
		_, err := r.apply(AssignCustomer(Customer{Name: "Ada"}))
		assert.ErrorIs(t, err, ErrPreconditionFailed)
	})
	t.Run("type change after confirmation", func(t *testing.T) {
		r := newRun(t, OrderTypeInHouse)
		r.must(AddItem(item("a", 1, "1")))
		r.must(ConfirmOrder())
		_, err := r.apply(ChangeOrderType(OrderTypeTakeAway))
		assert.ErrorIs(t, err, ErrPreconditionFailed)
	})
	t.Run("delivery without address", func(t *testing.T) {
		r := newRun(t, OrderTypeDelivery)
		r.must(AddItem(item("a", 1, "1")))
		_, err := r.apply(ConfirmOrder())
		assert.ErrorIs(t, err, ErrMissingAddress)
	})
	t.Run("served on delivery order", func(t *testing.T) {
		r := newRun(t, OrderTypeDelivery)
		_, err := r.apply(Served())
		assert.ErrorIs(t, err, ErrOrderTypeMismatch)
	})
	t.Run("start delivery on in-house order", func(t *testing.T) {
		r := newRun(t, OrderTypeInHouse)
		_, err := r.apply(StartDelivery())
		assert.ErrorIs(t, err, ErrOrderTypeMismatch)
	})
	t.Run("unknown item", func(t *testing.T) {
		r := newRun(t, OrderTypeInHouse)
		r.must(AddItem(item("a", 1, "1")))
		r.must(ConfirmOrder())
		r.must(ConfirmPayment())
		r.must(StartProcessing())
		_, err := r.apply(ItemFinished("ghost"))
		assert.ErrorIs(t, err, ErrItemNotFound)
	})
	t.Run("item finished before processing", func(t *testing.T) {
		r := newRun(t, OrderTypeInHouse)
		r.must(AddItem(item("a", 1, "1")))
		_, err := r.apply(ItemFinished("a"))
		assert.ErrorIs(t, err, ErrPreconditionFailed)
	})
	t.Run("operation on missing order", func(t *testing.T) {
		_, err := Apply(nil, ConfirmOrder(), t0)
		assert.ErrorIs(t, err, ErrOrderNotCreated)
	})
	t.Run("invalid item payload", func(t *testing.T) {
		r := newRun(t, OrderTypeInHouse)
		_, err := r.apply(AddItem(LineItem{ID: "a", ProductID: "sku", Quantity: 0}))
		assert.ErrorIs(t, err, ErrInvalidQuantity)
		assert.True(t, IsInvalidInput(err))
	})
}

func TestApply_DuplicateFinishDoesNotPrepare(t *testing.T) {
	r := newRun(t, OrderTypeInHouse)
	r.must(AddItem(item("a", 1, "1")))
	r.must(AddItem(item("b", 1, "1")))
	r.must(ConfirmOrder())
	r.must(ConfirmPayment())
	r.must(StartProcessing())

	r.must(ItemFinished("b"))
	r.must(ItemFinished("b"))
	assert.Equal(t, StateProcessing, r.order.State)
	assert.Equal(t, 0, r.count(EventOrderPrepared))
	assert.Equal(t, 1, r.count(EventOrderItemFinished))

	r.must(ItemFinished("a"))
	assert.Equal(t, StatePrepared, r.order.State)
	assert.Equal(t, 1, r.count(EventOrderPrepared))
}

func TestApply_FinishOrderDoesNotMatter(t *testing.T) {
	ids := []string{"a", "b", "c"}
	orders := [][]string{{"a", "b", "c"}, {"c", "a", "b"}, {"b", "c", "a"}}
	var finals []*Order
	for _, sequence := range orders {
		r := newRun(t, OrderTypeTakeAway)
		for _, id := range ids {
			r.must(AddItem(item(id, 1, "1")))
		}
		r.must(ConfirmOrder())
		r.must(ConfirmPayment())
		r.must(StartProcessing())
		for i, id := range sequence {
			r.must(ItemFinished(id))
			if i < len(sequence)-1 {
				assert.Equal(t, StateProcessing, r.order.State)
			}
		}
		assert.Equal(t, StatePrepared, r.order.State)
		finals = append(finals, r.order)
	}
	for _, o := range finals {
		assert.True(t, o.AllItemsDone())
	}
}

func TestApply_LateFinishAfterCloseIsNoop(t *testing.T) {
	r := newRun(t, OrderTypeInHouse)
	r.must(AddItem(item("a", 1, "1")))
	r.must(ConfirmOrder())
	r.must(ConfirmPayment())
	r.must(StartProcessing())
	r.must(ItemFinished("a"))
	r.must(Served())

	decision := r.must(ItemFinished("a"))
	assert.True(t, decision.Noop)
	assert.Equal(t, StateClosed, r.order.State)
}

func TestApply_NaturalKeyDedup(t *testing.T) {
	r := newRun(t, OrderTypeInHouse)
	r.must(AddItem(item("a", 1, "1")))
	again := r.must(AddItem(item("a", 1, "1")))
	assert.True(t, again.Noop)
	assert.Len(t, r.order.Items, 1)

	r.must(RemoveItem("a"))
	gone := r.must(RemoveItem("a"))
	assert.True(t, gone.Noop)
	assert.Empty(t, r.order.Items)
	assert.True(t, decimal.Zero.Equal(r.order.Total))
}

func TestApply_CreateIsIdempotent(t *testing.T) {
	r := newRun(t, OrderTypeInHouse)
	decision := r.must(CreateOrder(r.order.ID, OrderTypeDelivery, nil, ""))
	assert.True(t, decision.Noop)
	assert.Equal(t, OrderTypeInHouse, r.order.Type)
	assert.Equal(t, ReferenceFor(r.order.ID), r.order.Reference)
	assert.Equal(t, "ORD-2F9C1D7E", r.order.Reference)
}

func TestApply_MalformedCreateRejectedForExistingOrder(t *testing.T) {
	r := newRun(t, OrderTypeInHouse)
	for name, tc := range map[string]struct {
		op   Operation
		want error
	}{
		"unknown type":   {CreateOrder(r.order.ID, "Drone", nil, ""), ErrInvalidOrderType},
		"blank customer": {CreateOrder(r.order.ID, OrderTypeInHouse, &Customer{Name: " "}, ""), ErrInvalidCustomer},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Apply(r.order, tc.op, t0)
			require.ErrorIs(t, err, tc.want)
			_, err = Apply(nil, tc.op, t0)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	r := newRun(t, OrderTypeInHouse)
	r.must(AddItem(item("a", 1, "1")))
	before := r.order.Clone()

	_, err := Apply(r.order, AddItem(item("b", 1, "1")), t0)
	require.NoError(t, err)
	assert.Equal(t, before, r.order)
}
