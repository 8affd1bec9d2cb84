package dispatch

import (
	"time"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/pkg/uuid"
)

const (
	// OfferRadiusKm is the fixed candidate-discovery radius for both the
	// narrow (class-filtered) and wide (widened) queries.
	OfferRadiusKm = 2.0

	// MaxCandidates bounds the candidate list the spatial index may return.
	MaxCandidates = 20

	PerOfferTimeout       = 5 * time.Minute
	ClassExpansionTimeout = 1 * time.Minute
	ClassPollInterval     = 5 * time.Second
	ClassPollMaxAttempts  = 12
	AutoCancelTimeout     = 3 * time.Minute

	AutoCancelReason = "no drivers in the selected place please wait and try again"
)

// BroadcastState is the in-memory record of one trip's ongoing dispatch.
// It exists only while the trip is requested and is owned exclusively by the
// per-trip actor goroutine that holds it; nothing outside dispatch ever reads
// or mutates it directly.
type BroadcastState struct {
	TripID     uuid.UUID
	Candidates []models.DriverWithDistance
	Index      int
	StartedAt  time.Time

	HasExpandedToAllClasses bool
	IsPollingForClass       bool
	PollAttempts            int
}

// mergeWidened unions newly discovered candidates into the existing list,
// preserving the order of already-known entries and appending new ones, per
// the widening rule in 4.4.4.
func mergeWidened(existing []models.DriverWithDistance, discovered []models.DriverWithDistance) []models.DriverWithDistance {
	seen := make(map[uuid.UUID]bool, len(existing))
	merged := make([]models.DriverWithDistance, len(existing))
	copy(merged, existing)
	for _, d := range existing {
		seen[d.ID] = true
	}
	for _, d := range discovered {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		merged = append(merged, d)
	}
	return merged
}

func cappedCandidates(drivers []models.DriverWithDistance) []models.DriverWithDistance {
	if len(drivers) <= MaxCandidates {
		return drivers
	}
	return drivers[:MaxCandidates]
}
