package models

import "github.com/nomadcore/triphail/internal/domain/types"

type StatusUpdateWebSocketMessage struct {
	EventType types.TripEvent `json:"event_type"`
	Data      any             `json:"data"`
}
