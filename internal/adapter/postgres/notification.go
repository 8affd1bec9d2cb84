package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/pkg/uuid"
)

// NotificationRepo is the outbox table backing the Dispatcher Notification
// Sink: one row per event that must reach a dispatcher's socket or history.
type NotificationRepo struct {
	db *pgxpool.Pool
}

func NewNotificationRepo(db *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) Insert(ctx context.Context, n *models.Notification) error {
	q := TxorDB(ctx, r.db)
	_, err := q.Exec(ctx, `
		INSERT INTO notifications (id, recipient_id, recipient, event_type, payload, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		n.ID, n.RecipientID, n.Recipient, n.EventType, n.Payload, n.CreatedAt,
	)
	return err
}

func (r *NotificationRepo) MarkDelivered(ctx context.Context, id uuid.UUID, deliveredAt time.Time) error {
	q := TxorDB(ctx, r.db)
	_, err := q.Exec(ctx, `
		UPDATE notifications SET delivered_at = $1, attempts = attempts + 1 WHERE id = $2`,
		deliveredAt, id)
	return err
}
