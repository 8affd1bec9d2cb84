package notifysink

import (
	"context"
	"testing"
	"time"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/pkg/clock"
	"github.com/nomadcore/triphail/pkg/logger"
	"github.com/nomadcore/triphail/pkg/uuid"
)

type fakeStore struct {
	inserted []*models.Notification
}

func (f *fakeStore) Insert(ctx context.Context, n *models.Notification) error {
	f.inserted = append(f.inserted, n)
	return nil
}

func TestNotifyTripAccepted_PersistsForDispatcher(t *testing.T) {
	store := &fakeStore{}
	sink := New(store, clock.NewFake(time.Unix(0, 0)), logger.InitLogger("test", "ERROR"))

	dispatcherID := uuid.New()
	trip := &models.Trip{ID: uuid.New(), TripNumber: "T-1", DispatcherID: &dispatcherID}

	if err := sink.NotifyTripAccepted(context.Background(), trip); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected one notification, got %d", len(store.inserted))
	}
	got := store.inserted[0]
	if got.RecipientID != dispatcherID || got.Recipient != types.Dispatcher {
		t.Fatalf("expected notification addressed to dispatcher %s, got %s/%s", dispatcherID, got.RecipientID, got.Recipient)
	}
	if got.EventType != types.EventDriverMatched {
		t.Fatalf("expected EventDriverMatched, got %s", got.EventType)
	}
}

func TestNotifyAutoCanceled_IncludesReason(t *testing.T) {
	store := &fakeStore{}
	sink := New(store, clock.NewFake(time.Unix(0, 0)), logger.InitLogger("test", "ERROR"))

	dispatcherID := uuid.New()
	trip := &models.Trip{ID: uuid.New(), TripNumber: "T-2", DispatcherID: &dispatcherID}
	reason := "no drivers in the selected place please wait and try again"

	if err := sink.NotifyAutoCanceled(context.Background(), trip, reason); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected one notification, got %d", len(store.inserted))
	}
	if string(store.inserted[0].Payload) != "Trip T-2 was canceled: "+reason {
		t.Fatalf("unexpected payload: %s", store.inserted[0].Payload)
	}
}

func TestNotifyTripAccepted_DriverInitiatedTripIsNoOp(t *testing.T) {
	store := &fakeStore{}
	sink := New(store, clock.NewFake(time.Unix(0, 0)), logger.InitLogger("test", "ERROR"))

	trip := &models.Trip{ID: uuid.New(), TripNumber: "T-3", DispatcherID: nil}

	if err := sink.NotifyTripAccepted(context.Background(), trip); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.inserted) != 0 {
		t.Fatalf("expected no notification for a driver-initiated trip, got %d", len(store.inserted))
	}
}
