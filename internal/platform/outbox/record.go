package outbox

import "time"

// Record is the relational row of a message. Repositories insert records in
// the same transaction as the state they describe; the relay owns the rest of
// the row's lifecycle.
type Record struct {
	Seq         int64      `gorm:"primaryKey;column:seq;autoIncrement"`
	ID          string     `gorm:"column:id;size:255;uniqueIndex"`
	AggregateID string     `gorm:"column:aggregate_id;size:255;index"`
	Name        string     `gorm:"column:name;size:128"`
	Payload     []byte     `gorm:"column:payload;type:jsonb"`
	OccurredAt  time.Time  `gorm:"column:occurred_at"`
	Status      string     `gorm:"column:status;type:varchar(16);default:pending;index:idx_order_outbox_pending,priority:1"`
	Attempts    int        `gorm:"column:attempts;default:0"`
	LastError   string     `gorm:"column:last_error"`
	LockedUntil *time.Time `gorm:"column:locked_until;index:idx_order_outbox_pending,priority:2"`
	SentAt      *time.Time `gorm:"column:sent_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
}

func (Record) TableName() string { return TableName }

// Records maps messages to pending rows.
func Records(msgs []Message) []Record {
	records := make([]Record, 0, len(msgs))
	for _, m := range msgs {
		records = append(records, Record{
			ID:          m.ID,
			AggregateID: m.AggregateID,
			Name:        m.Name,
			Payload:     m.Payload,
			OccurredAt:  m.OccurredAt,
			Status:      string(StatusPending),
		})
	}
	return records
}
