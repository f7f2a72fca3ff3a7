package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/ports"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/outbox"
)

var (
	// ErrInvalidInput signals a ticket that breaks a kitchen rule.
	ErrInvalidInput = errors.New("invalid kitchen input")
	// ErrTransient signals a store failure; the command is safe to retry.
	ErrTransient = errors.New("kitchen store unavailable")
)

const conflictRetries = 3

var _ ports.Service = (*Service)(nil)

// Service runs kitchen commands against the ticket store.
type Service struct {
	repo   ports.Repository
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(repo ports.Repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Receive queues a ticket. Receiving the same order again returns the stored ticket.
func (s *Service) Receive(ctx context.Context, in ports.ReceiveInput) (*ports.Result, error) {
	ticket, err := domain.NewTicket(strings.TrimSpace(in.OrderID), in.Reference, in.OrderType, in.Items, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	stored, err := s.repo.Create(ctx, ticket)
	if errors.Is(err, ports.ErrAlreadyExists) {
		existing, getErr := s.repo.Get(ctx, ticket.OrderID)
		if getErr != nil {
			return nil, mapError(getErr)
		}
		return &ports.Result{Ticket: existing, Noop: true}, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	s.logger.Info("ticket queued", slog.String("order.id", ticket.OrderID), slog.Int("items", len(ticket.Items)))
	return &ports.Result{Ticket: stored}, nil
}

// Start marks a ticket as being prepared.
func (s *Service) Start(ctx context.Context, orderID string) (*ports.Result, error) {
	return s.mutate(ctx, orderID, func(t *domain.Ticket, now time.Time) ([]domain.Event, bool, error) {
		return nil, t.Start(now), nil
	})
}

// FinishItem records one finished item and publishes kitchen.item.finished.
func (s *Service) FinishItem(ctx context.Context, orderID, itemID string) (*ports.Result, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, domain.ErrUnknownItem)
	}
	return s.mutate(ctx, orderID, func(t *domain.Ticket, now time.Time) ([]domain.Event, bool, error) {
		events, err := t.FinishItem(itemID, now)
		return events, len(events) > 0, err
	})
}

func (s *Service) Get(ctx context.Context, orderID string) (*ports.TicketProjection, error) {
	ticket, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, mapError(err)
	}
	return ticket, nil
}

// List returns tickets in the given states, all states when none are given.
func (s *Service) List(ctx context.Context, states []domain.TicketState) ([]*ports.TicketProjection, error) {
	if len(states) == 0 {
		states = []domain.TicketState{domain.TicketQueued, domain.TicketInPreparation, domain.TicketFinished}
	}
	for _, st := range states {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidInput, st)
		}
	}
	list, err := s.repo.List(ctx, states)
	if err != nil {
		return nil, mapError(err)
	}
	return list, nil
}

type mutation func(t *domain.Ticket, now time.Time) (events []domain.Event, changed bool, err error)

// mutate loads, changes and conditionally saves a ticket, reloading on version conflicts.
func (s *Service) mutate(ctx context.Context, orderID string, fn mutation) (*ports.Result, error) {
	for attempt := 0; ; attempt++ {
		stored, err := s.repo.Get(ctx, orderID)
		if err != nil {
			return nil, mapError(err)
		}
		ticket := stored.Entity.Clone()
		events, changed, err := fn(ticket, s.now().UTC())
		if err != nil {
			return nil, mapError(err)
		}
		if !changed {
			return &ports.Result{Ticket: stored, Noop: true}, nil
		}
		msgs, err := Messages(events)
		if err != nil {
			return nil, mapError(err)
		}
		saved, err := s.repo.Save(ctx, ticket, stored.Version, msgs)
		if errors.Is(err, ports.ErrVersionConflict) && attempt < conflictRetries {
			s.logger.Debug("ticket version conflict, reloading", slog.String("order.id", orderID), slog.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, mapError(err)
		}
		for _, e := range events {
			s.logger.Info("kitchen event raised", slog.String("order.id", orderID), slog.String("event", e.EventName()))
		}
		return &ports.Result{Ticket: saved}, nil
	}
}

type identified interface {
	MessageID() string
}

// Messages encodes kitchen events for the outbox.
func Messages(events []domain.Event) ([]outbox.Message, error) {
	msgs := make([]outbox.Message, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", e.EventName(), err)
		}
		id, ok := e.(identified)
		if !ok {
			return nil, fmt.Errorf("event %s has no message id", e.EventName())
		}
		msgs = append(msgs, outbox.Message{
			ID:          id.MessageID(),
			AggregateID: e.AggregateID(),
			Name:        e.EventName(),
			Payload:     payload,
			OccurredAt:  e.OccurredAt(),
		})
	}
	return msgs, nil
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrTransient):
		return err
	case errors.Is(err, domain.ErrUnknownItem),
		errors.Is(err, domain.ErrNoItems),
		errors.Is(err, domain.ErrMissingOrderID),
		errors.Is(err, domain.ErrDuplicateItem):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case errors.Is(err, ports.ErrNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
}
