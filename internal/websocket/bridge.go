// Package websocket owns the physical connections. It accepts upgrade
// requests, registers each player's channel in the game's connection
// registry, and shuttles inbound frames onto the message bus. Outbound
// traffic never passes through this package directly; the engine sends
// through the registry, which writes to the Conn adapters registered
// here.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"dicelink/internal/connection"
	"dicelink/internal/hub"
	"dicelink/internal/middleware"
	"dicelink/internal/pubsub"
)

// Bridge accepts WebSocket connections and binds them to game
// registries.
type Bridge struct {
	hub       *hub.Hub
	publisher pubsub.Publisher
	logger    *slog.Logger

	// insecureSkipVerify disables origin checking; tests enable it.
	insecureSkipVerify bool
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithInsecureSkipVerify disables WebSocket origin checking. Test use
// only.
func WithInsecureSkipVerify() Option {
	return func(b *Bridge) { b.insecureSkipVerify = true }
}

// NewBridge creates a bridge publishing to the given bus.
func NewBridge(h *hub.Hub, pub pubsub.Publisher, opts ...Option) *Bridge {
	b := &Bridge{
		hub:       h,
		publisher: pub,
		logger:    slog.Default().With("component", "websocket.bridge"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Handler returns the echo handler for the per-game WebSocket endpoint.
// The route must carry a :game path parameter and sit behind the Player
// middleware.
func (b *Bridge) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		player, ok := middleware.CurrentPlayer(c)
		if !ok {
			b.logger.Error("WebSocket upgrade without resolved player")
			return c.String(http.StatusUnauthorized, "player not authenticated")
		}

		gameID, err := uuid.Parse(c.Param("game"))
		if err != nil {
			return c.String(http.StatusBadRequest, "bad game id")
		}

		ws, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			InsecureSkipVerify: b.insecureSkipVerify,
		})
		if err != nil {
			b.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
			return err
		}

		reg := b.hub.Registry(gameID)
		ch := NewConn(ws)
		reg.Register(player.ID, ch)

		b.publishLifecycle(TopicClientConnected, gameID, player.ID, "")

		// The read loop runs until the peer goes away; the connection is
		// hijacked, so blocking here is fine.
		reason := b.readLoop(c.Request().Context(), ws, gameID, player.ID)

		// Transport-reported drop: the socket is already dead, so the
		// entry is removed without a close attempt.
		if err := reg.Unregister(player.ID); err != nil && !errors.Is(err, connection.ErrNotConnected) {
			b.logger.Warn("Unregister after drop failed", "gameID", gameID, "playerID", player.ID, "error", err)
		}
		b.publishLifecycle(TopicClientDisconnected, gameID, player.ID, reason)

		return nil
	}
}

// readLoop pumps frames from the peer onto the bus until the connection
// drops, and reports why it ended.
func (b *Bridge) readLoop(ctx context.Context, ws *websocket.Conn, gameID, playerID uuid.UUID) string {
	for {
		_, payload, err := ws.Read(ctx)
		if err != nil {
			switch {
			case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
				websocket.CloseStatus(err) == websocket.StatusGoingAway:
				b.logger.Info("WebSocket closed by client", "gameID", gameID, "playerID", playerID)
				return "client closed"
			case errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
				return "connection lost"
			default:
				b.logger.Error("WebSocket read error", "gameID", gameID, "playerID", playerID, "error", err)
				return "read error"
			}
		}

		if !json.Valid(payload) {
			b.logger.Warn("Dropping non-JSON frame", "gameID", gameID, "playerID", playerID)
			continue
		}

		msg := pubsub.Message{
			Topic:    TopicGameAction,
			PlayerID: playerID.String(),
			GameID:   gameID.String(),
			Payload:  payload,
			Metadata: map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			},
		}
		if err := b.publisher.Publish(context.Background(), msg); err != nil {
			b.logger.Error("Failed to publish player action", "gameID", gameID, "playerID", playerID, "error", err)
		}
	}
}

func (b *Bridge) publishLifecycle(topic string, gameID, playerID uuid.UUID, reason string) {
	payload, _ := json.Marshal(map[string]string{
		"gameID":   gameID.String(),
		"playerID": playerID.String(),
		"reason":   reason,
	})
	msg := pubsub.Message{
		Topic:    topic,
		PlayerID: playerID.String(),
		GameID:   gameID.String(),
		Payload:  payload,
	}
	if err := b.publisher.Publish(context.Background(), msg); err != nil {
		b.logger.Error("Failed to publish lifecycle event", "topic", topic, "error", err)
	}
}
