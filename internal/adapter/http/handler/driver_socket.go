package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nomadcore/triphail/internal/domain/models"
	"github.com/nomadcore/triphail/pkg/logger"
	wrap "github.com/nomadcore/triphail/pkg/logger/wrapper"
	"github.com/nomadcore/triphail/pkg/uuid"
	ws "github.com/nomadcore/triphail/pkg/wsHub"
)

// PresenceHub is the subset of the presence adapter the driver socket
// handler drives directly; kept narrow so this package doesn't import the
// adapter's concrete type.
type PresenceHub interface {
	Connect(ctx context.Context, driverID uuid.UUID, conn *ws.Conn) error
	Disconnect(ctx context.Context, driverID uuid.UUID)
	HandleLocationUpdate(ctx context.Context, driverID uuid.UUID, loc models.Location)
	HandleAvailabilityChange(ctx context.Context, driverID uuid.UUID, available bool, loc *models.Location)
}

// DispatchResponder routes a driver's accept/decline of an offer back into
// the owning dispatch actor. Satisfied by *dispatch.Controller.
type DispatchResponder interface {
	HandleResponse(tripID, driverID uuid.UUID, accepted bool) error
	// DriverCurrentOffer reports the trip a driver currently holds a live
	// offer for, if any.
	DriverCurrentOffer(driverID uuid.UUID) (uuid.UUID, bool)
}

const (
	heartbeatTimeout  = 45 * time.Second
	heartbeatInterval = 20 * time.Second
)

type DriverSocket struct {
	presence PresenceHub
	dispatch DispatchResponder
	upgrader websocket.Upgrader
	log      logger.Logger
}

func NewDriverSocket(presence PresenceHub, dispatch DispatchResponder, log logger.Logger) *DriverSocket {
	return &DriverSocket{
		presence: presence,
		dispatch: dispatch,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Driver clients are mobile apps, not browsers; same-origin
			// checks don't apply here the way they would to a web UI.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// HandleWS upgrades a driver's connection and binds it to the presence hub.
// The caller is authenticated by the same bearer middleware as the rest of
// the HTTP surface; the driver id in the path must match the token's subject.
func (h *DriverSocket) HandleWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	driverID, err := uuid.Parse(r.PathValue("driver_id"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid driver id")
		return
	}

	user := models.UserFromContext(ctx)
	if user == nil || user.IsAnonymous() || user.ID != driverID {
		errorResponse(w, http.StatusUnauthorized, "token does not match driver id")
		return
	}

	rawConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(ctx, "websocket upgrade failed", "driver_id", driverID.String(), "error", err.Error())
		return
	}

	conn := ws.NewConn(context.WithoutCancel(ctx), driverID, rawConn, h.log)
	if err := h.presence.Connect(ctx, driverID, conn); err != nil {
		h.log.Error(ctx, "failed to register driver connection", err, "driver_id", driverID.String())
		conn.Close()
		return
	}

	if err := conn.Send(map[string]any{
		"type":      "connected",
		"userId":    driverID.String(),
		"user_id":   driverID.String(),
		"userType":  "driver",
		"user_type": "driver",
	}); err != nil {
		h.log.Debug(ctx, "failed to send connected ack", "driver_id", driverID.String())
	}

	events := make(chan map[string]any, 16)
	conn.Subscribe("driver_socket", events)

	go h.pump(context.WithoutCancel(ctx), driverID, conn, events)

	go func() {
		defer h.presence.Disconnect(context.WithoutCancel(ctx), driverID)
		defer h.declineCurrentOffer(context.WithoutCancel(ctx), driverID)
		if err := conn.Listen(); err != nil {
			h.log.Debug(ctx, "driver listen loop ended", "driver_id", driverID.String(), "error", err.Error())
		}
	}()

	go func() {
		if err := conn.HeartbeatLoop(heartbeatTimeout, heartbeatInterval); err != nil {
			h.log.Debug(ctx, "driver heartbeat loop ended", "driver_id", driverID.String())
		}
	}()
}

// pump dispatches inbound client events by their "type" field to the
// presence hub or dispatch controller.
func (h *DriverSocket) pump(ctx context.Context, driverID uuid.UUID, conn *ws.Conn, events <-chan map[string]any) {
	defer conn.Unsubscribe("driver_socket")

	for msg := range events {
		ctx := wrap.WithAction(ctx, "driver_socket_event")
		typ, _ := msg["type"].(string)

		switch typ {
		case "location_update":
			loc, ok := parseLocation(msg)
			if !ok {
				h.sendError(conn, "location_update requires lat and lng")
				continue
			}
			h.presence.HandleLocationUpdate(ctx, driverID, loc)

		case "set_availability":
			available, _ := msg["available"].(bool)
			var loc *models.Location
			if raw, ok := msg["location"].(map[string]any); ok {
				if l, ok := parseLocation(raw); ok {
					loc = &l
				}
			}
			h.presence.HandleAvailabilityChange(ctx, driverID, available, loc)

		case "trip_accept":
			tripID, ok := parseTripID(msg)
			if !ok {
				h.sendError(conn, "trip_accept requires tripId")
				continue
			}
			if err := h.dispatch.HandleResponse(tripID, driverID, true); err != nil {
				h.sendError(conn, "trip no longer available")
			}

		case "trip_decline":
			tripID, ok := parseTripID(msg)
			if !ok {
				h.sendError(conn, "trip_decline requires tripId")
				continue
			}
			_ = h.dispatch.HandleResponse(tripID, driverID, false)

		default:
			h.log.Debug(ctx, "ignoring unrecognized driver socket event", "type", typ, "driver_id", driverID.String())
		}
	}
}

// declineCurrentOffer treats a dropped connection as an immediate decline of
// whatever offer the driver was holding, rather than leaving the broadcast
// to sit out the rest of its per-offer timeout against a driver who is no
// longer there to answer.
func (h *DriverSocket) declineCurrentOffer(ctx context.Context, driverID uuid.UUID) {
	tripID, ok := h.dispatch.DriverCurrentOffer(driverID)
	if !ok {
		return
	}
	if err := h.dispatch.HandleResponse(tripID, driverID, false); err != nil {
		h.log.Debug(ctx, "failed to decline offer on disconnect", "driver_id", driverID.String(), "trip_id", tripID.String(), "error", err.Error())
	}
}

func (h *DriverSocket) sendError(conn *ws.Conn, message string) {
	_ = conn.Send(map[string]any{"type": "error", "message": message})
}

func parseLocation(msg map[string]any) (models.Location, bool) {
	lat, latOK := numeric(msg["lat"])
	if !latOK {
		lat, latOK = numeric(msg["latitude"])
	}
	lng, lngOK := numeric(msg["lng"])
	if !lngOK {
		lng, lngOK = numeric(msg["longitude"])
	}
	if !latOK || !lngOK {
		return models.Location{}, false
	}
	addr, _ := msg["address"].(string)
	return models.Location{Latitude: lat, Longitude: lng, Address: addr}, true
}

func parseTripID(msg map[string]any) (uuid.UUID, bool) {
	raw, ok := msg["tripId"].(string)
	if !ok || raw == "" {
		raw, ok = msg["trip_id"].(string)
	}
	if !ok || raw == "" {
		return uuid.UUID{}, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

func numeric(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}
