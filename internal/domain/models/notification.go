package models

import (
	"time"

	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/pkg/uuid"
)

// Notification is an outbox record for the dispatcher notification sink: one
// row per event that needs delivering to a socket; DeliveredAt stays nil until
// the row is marked delivered. No maximum attempt count is defined.
type Notification struct {
	ID          uuid.UUID
	RecipientID uuid.UUID
	Recipient   types.EntityType
	EventType   types.TripEvent
	Payload     []byte
	CreatedAt   time.Time
	DeliveredAt *time.Time
	Attempts    int
}
