package hub

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"dicelink/internal/connection"
)

// Hub hands out one connection registry per game. Registries are
// created lazily on first access and dropped when the game ends.
type Hub struct {
	mu         sync.Mutex
	registries map[uuid.UUID]*connection.Registry
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{registries: make(map[uuid.UUID]*connection.Registry)}
}

// Registry returns the connection registry for a game, creating it if
// this is the first connection for that game.
func (h *Hub) Registry(gameID uuid.UUID) *connection.Registry {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.registries[gameID]
	if ok {
		return r
	}

	r = connection.NewRegistry()
	h.registries[gameID] = r
	slog.Info("Game registry created", "gameID", gameID, "active_games", len(h.registries))
	return r
}

// Peek returns the registry for a game without creating one.
func (h *Hub) Peek(gameID uuid.UUID) (*connection.Registry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.registries[gameID]
	return r, ok
}

// Drop removes a game's registry. Callers disconnect remaining players
// first; Drop is bookkeeping only.
func (h *Hub) Drop(gameID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.registries[gameID]; ok {
		delete(h.registries, gameID)
		slog.Info("Game registry dropped", "gameID", gameID, "active_games", len(h.registries))
	}
}
