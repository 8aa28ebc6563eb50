package delivery

import (
	"context"
	"time"
)

// Delivery records that a notification for a message was pushed to a recipient.
type Delivery struct {
	ID          string    `db:"id"`
	MessageID   string    `db:"message_id"`
	Recipient   string    `db:"recipient"`
	Subject     string    `db:"subject"`
	DeliveredAt time.Time `db:"delivered_at"`
}

type DeliveryRepo interface {
	Record(ctx context.Context, d *Delivery) error
	Exists(ctx context.Context, messageID string) (bool, error)
	ListSince(ctx context.Context, since time.Time) ([]Delivery, error)
}
