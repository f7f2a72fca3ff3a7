package outbox

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	msg         Message
	status      Status
	lockedUntil time.Time
	lastError   string
}

// MemoryStore keeps the outbox in process for local runs and tests.
type MemoryStore struct {
	mu          sync.Mutex
	entries     []*memoryEntry
	index       map[string]*memoryEntry
	seq         int64
	maxAttempts int
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		index:       map[string]*memoryEntry{},
		maxAttempts: 20,
		now:         time.Now,
	}
}

// Append queues messages. Ids already present are ignored, mirroring the unique
// constraint on the postgres table. Callers that write state alongside the
// outbox hold their own lock across both writes.
func (s *MemoryStore) Append(msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range msgs {
		if _, ok := s.index[msg.ID]; ok {
			continue
		}
		s.seq++
		msg.Seq = s.seq
		msg.Payload = append([]byte(nil), msg.Payload...)
		e := &memoryEntry{msg: msg, status: StatusPending}
		s.entries = append(s.entries, e)
		s.index[msg.ID] = e
	}
}

func (s *MemoryStore) LockBatch(_ context.Context, batchSize int, lease time.Duration) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var out []Message
	for _, e := range s.entries {
		if len(out) >= batchSize {
			break
		}
		if e.status != StatusPending || now.Before(e.lockedUntil) {
			continue
		}
		e.lockedUntil = now.Add(lease)
		out = append(out, e.msg)
	}
	return out, nil
}

func (s *MemoryStore) MarkSent(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if e, ok := s.index[id]; ok {
			e.status = StatusSent
			e.lockedUntil = time.Time{}
		}
	}
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.index[id]
	if !ok {
		return nil
	}
	e.msg.Attempts++
	e.lastError = errMsg
	e.lockedUntil = time.Time{}
	if e.msg.Attempts >= s.maxAttempts {
		e.status = StatusDead
	}
	return nil
}

// Messages returns every message in write order regardless of status.
func (s *MemoryStore) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.msg)
	}
	return out
}

// Pending counts messages not yet published.
func (s *MemoryStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.status == StatusPending {
			n++
		}
	}
	return n
}

var _ Store = (*MemoryStore)(nil)
