package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/pkg/logger"
	wrap "github.com/nomadcore/triphail/pkg/logger/wrapper"
	"github.com/nomadcore/triphail/pkg/rabbit"
)

// ExchangeTripEvents carries every trip lifecycle event trip-core emits:
// creation (trip.requested) and every status transition
// (trip.status.<status>). notify-worker binds one durable queue to the
// whole "trip.#" pattern and hydrates the full trip row before handing off
// to the notification sink.
const ExchangeTripEvents = "trip_events"

// QueueNotifyWorker is the durable queue notify-worker consumes from.
const QueueNotifyWorker = "notify_worker_trip_events"

type TripEventPublisher struct {
	client *rabbit.RabbitMQ
	l      logger.Logger
}

func NewTripEventPublisher(client *rabbit.RabbitMQ, l logger.Logger) *TripEventPublisher {
	return &TripEventPublisher{client: client, l: l}
}

func (r *TripEventPublisher) publish(ctx context.Context, routingKey string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	if err := r.client.Channel.ExchangeDeclare(ExchangeTripEvents, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:   "application/json",
		Body:          body,
		Timestamp:     time.Now(),
		CorrelationId: wrap.GetRequestID(ctx),
	}

	if err := retry(5, 2*time.Second, func() error {
		return r.client.Channel.PublishWithContext(ctx, ExchangeTripEvents, routingKey, false, false, pub)
	}); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	return nil
}

// PublishTripRequested announces a newly requested trip for notify-worker to
// record, independent of candidate discovery (which runs in-process inside
// the dispatch controller).
func (r *TripEventPublisher) PublishTripRequested(ctx context.Context, msg models.TripRequestedMessage) error {
	ctx = wrap.WithAction(ctx, "publish_trip_requested")

	if err := r.publish(ctx, "trip.requested", msg); err != nil {
		return wrap.Error(ctx, err)
	}
	return nil
}

// PublishStatusChanged satisfies lifecycle.EventPublisher.
func (r *TripEventPublisher) PublishStatusChanged(ctx context.Context, msg models.TripStatusUpdateMessage) error {
	ctx = wrap.WithAction(ctx, "publish_trip_status_changed")
	key := fmt.Sprintf("trip.status.%s", msg.Status)

	if err := r.publish(ctx, key, msg); err != nil {
		return wrap.Error(ctx, err)
	}
	return nil
}
