package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/kitchen/ports"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/outbox"
	"github.com/Apurer/order-lifecycle-engine/internal/shared/projection"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists kitchen tickets using GORM.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ticketRecord is the kitchen_tickets row. Items live in jsonb; finished item
// ids are mirrored into a text[] column for the monitor's queries.
type ticketRecord struct {
	OrderID         string         `gorm:"primaryKey;column:order_id;size:64"`
	Reference       string         `gorm:"column:reference;size:32"`
	OrderType       string         `gorm:"column:order_type;size:16"`
	State           string         `gorm:"column:state;type:varchar(16);index"`
	Items           []byte         `gorm:"column:items;type:jsonb"`
	FinishedItemIDs pq.StringArray `gorm:"column:finished_item_ids;type:text[]"`
	Version         int64          `gorm:"column:version"`
	ReceivedAt      time.Time      `gorm:"column:received_at"`
	StartedAt       *time.Time     `gorm:"column:started_at"`
	FinishedAt      *time.Time     `gorm:"column:finished_at"`
	CreatedAt       time.Time      `gorm:"column:created_at"`
	UpdatedAt       time.Time      `gorm:"column:updated_at"`
}

func (ticketRecord) TableName() string { return "kitchen_tickets" }

func (r *Repository) Create(ctx context.Context, ticket *domain.Ticket) (*ports.TicketProjection, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	record, err := toRecord(ticket, 1)
	if err != nil {
		return nil, err
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ports.ErrAlreadyExists
	}
	return r.Get(ctx, ticket.OrderID)
}

func (r *Repository) Save(ctx context.Context, ticket *domain.Ticket, expectedVersion int64, msgs []outbox.Message) (*ports.TicketProjection, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	record, err := toRecord(ticket, expectedVersion+1)
	if err != nil {
		return nil, err
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&ticketRecord{}).
			Where("order_id = ? AND version = ?", record.OrderID, expectedVersion).
			Updates(map[string]any{
				"state":             record.State,
				"items":             record.Items,
				"finished_item_ids": record.FinishedItemIDs,
				"version":           record.Version,
				"started_at":        record.StartedAt,
				"finished_at":       record.FinishedAt,
				"updated_at":        gorm.Expr("NOW()"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&ticketRecord{}).Where("order_id = ?", record.OrderID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ports.ErrNotFound
			}
			return ports.ErrVersionConflict
		}
		if len(msgs) == 0 {
			return nil
		}
		rows := outbox.Records(msgs)
		return tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, ticket.OrderID)
}

func (r *Repository) Get(ctx context.Context, orderID string) (*ports.TicketProjection, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record ticketRecord
	if err := r.db.WithContext(ctx).First(&record, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toProjection()
}

func (r *Repository) List(ctx context.Context, states []domain.TicketState) ([]*ports.TicketProjection, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	names := make(pq.StringArray, 0, len(states))
	for _, s := range states {
		names = append(names, string(s))
	}
	var records []ticketRecord
	if err := r.db.WithContext(ctx).
		Where("state = ANY(?)", names).
		Order("created_at, order_id").
		Find(&records).Error; err != nil {
		return nil, err
	}
	list := make([]*ports.TicketProjection, 0, len(records))
	for i := range records {
		p, err := records[i].toProjection()
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, nil
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres kitchen repository not configured")
	}
	return nil
}

func toRecord(ticket *domain.Ticket, version int64) (ticketRecord, error) {
	if ticket == nil {
		return ticketRecord{}, errors.New("ticket is nil")
	}
	items, err := json.Marshal(ticket.Items)
	if err != nil {
		return ticketRecord{}, err
	}
	return ticketRecord{
		OrderID:         ticket.OrderID,
		Reference:       ticket.Reference,
		OrderType:       ticket.OrderType,
		State:           string(ticket.State),
		Items:           items,
		FinishedItemIDs: pq.StringArray(ticket.FinishedItemIDs()),
		Version:         version,
		ReceivedAt:      ticket.ReceivedAt,
		StartedAt:       ticket.StartedAt,
		FinishedAt:      ticket.FinishedAt,
	}, nil
}

func (r ticketRecord) toProjection() (*ports.TicketProjection, error) {
	ticket := &domain.Ticket{
		OrderID:    r.OrderID,
		Reference:  r.Reference,
		OrderType:  r.OrderType,
		State:      domain.TicketState(r.State),
		ReceivedAt: r.ReceivedAt,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if err := json.Unmarshal(r.Items, &ticket.Items); err != nil {
		return nil, err
	}
	return projection.New(ticket, r.Version, r.CreatedAt, r.UpdatedAt), nil
}
