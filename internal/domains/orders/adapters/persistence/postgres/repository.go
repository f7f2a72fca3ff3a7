package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application/types"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/ports"
	"github.com/Apurer/order-lifecycle-engine/internal/platform/outbox"
	"github.com/Apurer/order-lifecycle-engine/internal/shared/projection"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists order snapshots in PostgreSQL using GORM. Every write
// inserts its outbox rows in the same transaction.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires a PostgreSQL-backed repository. Caller manages DB lifecycle
// and runs migrations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// orderRecord keeps the full snapshot as jsonb next to the columns used for lookups.
type orderRecord struct {
	ID        string     `gorm:"primaryKey;column:id;size:64"`
	Reference string     `gorm:"column:reference;size:32;index"`
	Type      string     `gorm:"column:type;type:varchar(16)"`
	State     string     `gorm:"column:state;type:varchar(16);index"`
	Snapshot  []byte     `gorm:"column:snapshot;type:jsonb"`
	Version   int64      `gorm:"column:version"`
	Archived  bool       `gorm:"column:archived;default:false;index"`
	ClosedAt  *time.Time `gorm:"column:closed_at;index"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at"`
}

func (orderRecord) TableName() string { return "orders" }

// Create inserts version 1 of an order.
func (r *Repository) Create(ctx context.Context, order *domain.Order, msgs []outbox.Message) (*types.OrderProjection, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if order == nil {
		return nil, errors.New("order is nil")
	}
	record, err := toRecord(order, 1)
	if err != nil {
		return nil, err
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ports.ErrAlreadyExists
		}
		return insertOutbox(tx, msgs)
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, order.ID)
}

// Save writes the next version when the stored one still equals expectedVersion.
func (r *Repository) Save(ctx context.Context, order *domain.Order, expectedVersion int64, msgs []outbox.Message) (*types.OrderProjection, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if order == nil {
		return nil, errors.New("order is nil")
	}
	record, err := toRecord(order, expectedVersion+1)
	if err != nil {
		return nil, err
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&orderRecord{}).
			Where("id = ? AND version = ?", record.ID, expectedVersion).
			Updates(map[string]any{
				"type":       record.Type,
				"state":      record.State,
				"snapshot":   record.Snapshot,
				"version":    record.Version,
				"closed_at":  record.ClosedAt,
				"updated_at": gorm.Expr("NOW()"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&orderRecord{}).Where("id = ?", record.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ports.ErrNotFound
			}
			return ports.ErrVersionConflict
		}
		return insertOutbox(tx, msgs)
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, order.ID)
}

// GetByID fetches an order snapshot by identifier.
func (r *Repository) GetByID(ctx context.Context, id string) (*types.OrderProjection, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record orderRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toProjection()
}

// ListByState returns non-archived orders in any of the states, oldest first.
func (r *Repository) ListByState(ctx context.Context, states []domain.State) ([]*types.OrderProjection, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	names := make(pq.StringArray, 0, len(states))
	for _, s := range states {
		names = append(names, string(s))
	}
	var records []orderRecord
	if err := r.db.WithContext(ctx).
		Where("state = ANY(?) AND archived = ?", names, false).
		Order("created_at, id").
		Find(&records).Error; err != nil {
		return nil, err
	}
	list := make([]*types.OrderProjection, 0, len(records))
	for i := range records {
		p, err := records[i].toProjection()
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, nil
}

// ArchiveClosedBefore flags closed orders older than cutoff. Rows are never deleted.
func (r *Repository) ArchiveClosedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := r.ensureDB(); err != nil {
		return 0, err
	}
	result := r.db.WithContext(ctx).Model(&orderRecord{}).
		Where("state = ? AND archived = ? AND closed_at < ?", string(domain.StateClosed), false, cutoff).
		Update("archived", true)
	return result.RowsAffected, result.Error
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres order repository not configured")
	}
	return nil
}

func insertOutbox(tx *gorm.DB, msgs []outbox.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	records := outbox.Records(msgs)
	return tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).Create(&records).Error
}

func toRecord(order *domain.Order, version int64) (orderRecord, error) {
	snapshot, err := json.Marshal(order)
	if err != nil {
		return orderRecord{}, err
	}
	return orderRecord{
		ID:        order.ID,
		Reference: order.Reference,
		Type:      string(order.Type),
		State:     string(order.State),
		Snapshot:  snapshot,
		Version:   version,
		ClosedAt:  order.Timestamps.ClosedAt,
	}, nil
}

func (r orderRecord) toProjection() (*types.OrderProjection, error) {
	var order domain.Order
	if err := json.Unmarshal(r.Snapshot, &order); err != nil {
		return nil, err
	}
	return projection.New(&order, r.Version, r.CreatedAt, r.UpdatedAt), nil
}
