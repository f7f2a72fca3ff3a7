package migrations

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/Apurer/order-lifecycle-engine/internal/platform/outbox"
)

// Run applies the schema for the bounded contexts. Adapters never automigrate.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&orderRecord{},
		&ticketRecord{},
		&outbox.Record{},
	)
}

// Order schema mirrors the orders Postgres adapter.
type orderRecord struct {
	ID        string     `gorm:"primaryKey;column:id;size:64"`
	Reference string     `gorm:"column:reference;size:32;index"`
	Type      string     `gorm:"column:type;type:varchar(16)"`
	State     string     `gorm:"column:state;type:varchar(16);index:idx_orders_state_archived"`
	Snapshot  []byte     `gorm:"column:snapshot;type:jsonb"`
	Version   int64      `gorm:"column:version;not null"`
	Archived  bool       `gorm:"column:archived;default:false;index:idx_orders_state_archived"`
	ClosedAt  *time.Time `gorm:"column:closed_at;index"`
	CreatedAt time.Time  `gorm:"column:created_at;index"`
	UpdatedAt time.Time  `gorm:"column:updated_at"`
}

func (orderRecord) TableName() string { return "orders" }

// Ticket schema mirrors the kitchen Postgres adapter.
type ticketRecord struct {
	OrderID         string         `gorm:"primaryKey;column:order_id;size:64"`
	Reference       string         `gorm:"column:reference;size:32"`
	OrderType       string         `gorm:"column:order_type;size:16"`
	State           string         `gorm:"column:state;type:varchar(16);index"`
	Items           []byte         `gorm:"column:items;type:jsonb"`
	FinishedItemIDs pq.StringArray `gorm:"column:finished_item_ids;type:text[]"`
	Version         int64          `gorm:"column:version;not null"`
	ReceivedAt      time.Time      `gorm:"column:received_at"`
	StartedAt       *time.Time     `gorm:"column:started_at"`
	FinishedAt      *time.Time     `gorm:"column:finished_at"`
	CreatedAt       time.Time      `gorm:"column:created_at;index"`
	UpdatedAt       time.Time      `gorm:"column:updated_at"`
}

func (ticketRecord) TableName() string { return "kitchen_tickets" }
