package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/internal/domain/types"
	"github.com/nomadcore/triphail/pkg/logger"
	wrap "github.com/nomadcore/triphail/pkg/logger/wrapper"
	"github.com/nomadcore/triphail/pkg/rabbit"
	"github.com/nomadcore/triphail/pkg/uuid"
)

// TripRepo is the read-only surface notify-worker needs: every wire message
// on trip_events carries only the trip id plus the fields specific to that
// event, so the consumer re-reads the row for the recipient/trip-number a
// notification actually needs.
type TripRepo interface {
	GetByID(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)
}

// NotifySink is the subset of notifysink.Sink the consumer drives.
type NotifySink interface {
	NotifyTripCreated(ctx context.Context, trip *models.Trip) error
	NotifyTripAccepted(ctx context.Context, trip *models.Trip) error
	NotifyAutoCanceled(ctx context.Context, trip *models.Trip, reason string) error
	NotifyTripCompleted(ctx context.Context, trip *models.Trip) error
}

type TripEventConsumer struct {
	client *rabbit.RabbitMQ
	trips  TripRepo
	sink   NotifySink
	l      logger.Logger
}

func NewTripEventConsumer(client *rabbit.RabbitMQ, trips TripRepo, sink NotifySink, l logger.Logger) *TripEventConsumer {
	return &TripEventConsumer{client: client, trips: trips, sink: sink, l: l}
}

// Run drains ExchangeTripEvents until ctx is canceled, reconnecting on
// transport loss instead of returning.
func (r *TripEventConsumer) Run(ctx context.Context) error {
	const op = "TripEventConsumer.Run"

	for {
		if ctx.Err() != nil {
			r.l.Debug(ctx, "trip event consumer stopped by context")
			return nil
		}

		if err := r.client.EnsureConnection(ctx); err != nil {
			r.l.Error(ctx, "ensure connection failed", err, "op", op)
			time.Sleep(2 * time.Second)
			continue
		}

		if err := r.client.Channel.ExchangeDeclare(ExchangeTripEvents, "topic", true, false, false, false, nil); err != nil {
			r.l.Error(ctx, "declare exchange failed", err, "op", op)
			time.Sleep(2 * time.Second)
			continue
		}

		q, err := r.client.Channel.QueueDeclare(QueueNotifyWorker, true, false, false, false, nil)
		if err != nil {
			r.l.Error(ctx, "declare queue failed", err, "op", op)
			time.Sleep(2 * time.Second)
			continue
		}

		if err := r.client.Channel.QueueBind(q.Name, "trip.#", ExchangeTripEvents, false, nil); err != nil {
			r.l.Error(ctx, "bind queue failed", err, "op", op)
			time.Sleep(2 * time.Second)
			continue
		}

		msgs, err := r.client.Channel.Consume(q.Name, "", false, false, false, false, nil)
		if err != nil {
			r.l.Error(ctx, "consume failed", err, "op", op)
			time.Sleep(2 * time.Second)
			continue
		}

		r.l.Info(ctx, "start consuming trip events", "queue", QueueNotifyWorker)

	consumeLoop:
		for {
			select {
			case <-ctx.Done():
				r.l.Info(ctx, "trip event consumer shutting down", "op", op)
				return nil

			case msg, ok := <-msgs:
				if !ok {
					r.l.Warn(ctx, "message channel closed, reconnecting...", "op", op)
					time.Sleep(2 * time.Second)
					break consumeLoop
				}

				go r.handle(ctx, msg)
			}
		}
	}
}

func (r *TripEventConsumer) handle(ctx context.Context, msg amqp.Delivery) {
	ctx = wrap.WithAction(ctx, "handle_trip_event")
	ctx = wrap.WithRequestID(ctx, msg.CorrelationId)

	var tripID uuid.UUID
	var err error

	switch {
	case msg.RoutingKey == "trip.requested":
		var req models.TripRequestedMessage
		if err = json.Unmarshal(msg.Body, &req); err == nil {
			tripID = req.TripID
		}
	case strings.HasPrefix(msg.RoutingKey, "trip.status."):
		var upd models.TripStatusUpdateMessage
		if err = json.Unmarshal(msg.Body, &upd); err == nil {
			tripID = upd.TripID
			err = r.dispatchStatusChange(ctx, upd)
		}
	default:
		r.l.Debug(ctx, "ignoring unrecognized trip event", "routing_key", msg.RoutingKey)
		_ = msg.Ack(false)
		return
	}

	if err == nil && msg.RoutingKey == "trip.requested" {
		err = r.dispatchTripCreated(ctx, tripID)
	}

	if err != nil {
		r.l.Error(ctx, "failed to handle trip event", err, "trip_id", tripID.String(), "routing_key", msg.RoutingKey)
		if isRecoverableError(err) {
			_ = msg.Nack(false, true)
		} else {
			_ = msg.Reject(false)
		}
		return
	}

	if err := msg.Ack(false); err != nil {
		r.l.Warn(ctx, "ack failed", "error", err.Error())
	}
}

func (r *TripEventConsumer) dispatchTripCreated(ctx context.Context, tripID uuid.UUID) error {
	trip, err := r.trips.GetByID(ctx, tripID)
	if err != nil {
		return fmt.Errorf("load trip %s: %w", tripID, err)
	}
	return r.sink.NotifyTripCreated(ctx, trip)
}

func (r *TripEventConsumer) dispatchStatusChange(ctx context.Context, upd models.TripStatusUpdateMessage) error {
	trip, err := r.trips.GetByID(ctx, upd.TripID)
	if err != nil {
		return fmt.Errorf("load trip %s: %w", upd.TripID, err)
	}

	switch types.TripStatus(upd.Status) {
	case types.TripCanceled:
		reason := "canceled"
		if trip.CancellationReason != nil {
			reason = *trip.CancellationReason
		}
		return r.sink.NotifyAutoCanceled(ctx, trip, reason)
	case types.TripCompleted:
		return r.sink.NotifyTripCompleted(ctx, trip)
	default:
		// accepted/in_progress updates for the dispatcher-facing outbox are
		// covered by NotifyTripAccepted, fired in-process by the dispatch
		// controller when the accept race resolves; nothing further to do
		// here for those statuses.
		return nil
	}
}
