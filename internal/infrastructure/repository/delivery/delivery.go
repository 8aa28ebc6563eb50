package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	delivery_domain "github.com/huavcjj/wavemail/internal/domain/delivery"
	"github.com/jmoiron/sqlx"
)

type deliveryRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ delivery_domain.DeliveryRepo = (*deliveryRepo)(nil)

func NewDeliveryRepo(db *sqlx.DB) delivery_domain.DeliveryRepo {
	return &deliveryRepo{db: db, now: time.Now}
}

// Record stores d, filling ID and DeliveredAt when unset.
func (r *deliveryRepo) Record(ctx context.Context, d *delivery_domain.Delivery) error {
	if d == nil {
		return errors.New("delivery is nil")
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.DeliveredAt.IsZero() {
		d.DeliveredAt = r.now()
	}
	d.DeliveredAt = d.DeliveredAt.UTC().Truncate(time.Second)

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO deliveries (id, message_id, recipient, subject, delivered_at)
		VALUES (:id, :message_id, :recipient, :subject, :delivered_at)`, d)
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	return nil
}

func (r *deliveryRepo) Exists(ctx context.Context, messageID string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM deliveries WHERE message_id = ?`, messageID)
	if err != nil {
		return false, fmt.Errorf("failed to check delivery: %w", err)
	}
	return n > 0, nil
}

// ListSince returns deliveries at or after since, oldest first.
func (r *deliveryRepo) ListSince(ctx context.Context, since time.Time) ([]delivery_domain.Delivery, error) {
	deliveries := []delivery_domain.Delivery{}
	err := r.db.SelectContext(ctx, &deliveries, `
		SELECT id, message_id, recipient, subject, delivered_at
		FROM deliveries
		WHERE delivered_at >= ?
		ORDER BY delivered_at, message_id`, since.UTC().Truncate(time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	return deliveries, nil
}
