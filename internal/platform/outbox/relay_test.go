package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu       sync.Mutex
	names    []string
	failOnce map[string]bool
}

func (p *recordingPublisher) Publish(_ context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOnce[msg.ID] {
		delete(p.failOnce, msg.ID)
		return errors.New("broker unavailable")
	}
	p.names = append(p.names, msg.ID)
	return nil
}

func TestRelayPublishesInWriteOrder(t *testing.T) {
	store := NewMemoryStore()
	store.Append(
		Message{ID: "a:1:0", AggregateID: "a", Name: "orders.order.created"},
		Message{ID: "b:1:0", AggregateID: "b", Name: "orders.order.created"},
		Message{ID: "a:2:0", AggregateID: "a", Name: "orders.order.confirmed"},
	)
	pub := &recordingPublisher{}
	relay := NewRelay(store, pub)

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []string{"a:1:0", "b:1:0", "a:2:0"}, pub.names)
	require.Zero(t, store.Pending())

	n, err = relay.Flush(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRelayHoldsBackAggregateAfterFailure(t *testing.T) {
	store := NewMemoryStore()
	store.Append(
		Message{ID: "a:1:0", AggregateID: "a"},
		Message{ID: "a:2:0", AggregateID: "a"},
		Message{ID: "b:1:0", AggregateID: "b"},
	)
	pub := &recordingPublisher{failOnce: map[string]bool{"a:1:0": true}}
	relay := NewRelay(store, pub)

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []string{"b:1:0"}, pub.names)

	// a:2:0 is still leased from the first flush; expire the lease.
	store.now = func() time.Time { return time.Now().Add(time.Hour) }

	n, err = relay.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []string{"b:1:0", "a:1:0", "a:2:0"}, pub.names)

	msgs := store.Messages()
	require.Equal(t, 1, msgs[0].Attempts)
}

func TestMemoryStoreIgnoresDuplicateIDs(t *testing.T) {
	store := NewMemoryStore()
	store.Append(Message{ID: "a:1:0"}, Message{ID: "a:1:0"})
	require.Len(t, store.Messages(), 1)
}

func TestRelayRunRequiresWiring(t *testing.T) {
	require.Error(t, NewRelay(nil, nil).Run(context.Background()))
}
