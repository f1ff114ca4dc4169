// Package handlers contains the HTTP handlers for the REST surface.
// Gameplay itself happens over WebSocket; these endpoints cover
// identity and game lifecycle.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"dicelink/internal/domain"
	"dicelink/internal/middleware"
)

// PlayerHandler manages player identity.
type PlayerHandler struct {
	players domain.PlayerRepository
}

// NewPlayerHandler creates a new PlayerHandler.
func NewPlayerHandler(players domain.PlayerRepository) *PlayerHandler {
	return &PlayerHandler{players: players}
}

type joinRequest struct {
	Name string `json:"name" form:"name"`
}

type joinResponse struct {
	PlayerID uuid.UUID `json:"player_id"`
	Name     string    `json:"name"`
}

// JoinPost registers a new player identity and stores it in the
// session. Every later request authenticates through that cookie.
func (h *PlayerHandler) JoinPost(c echo.Context) error {
	var req joinRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}

	player := &domain.Player{
		ID:   uuid.New(),
		Name: domain.NormalizeName(req.Name),
	}
	if err := player.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "name must be 2-32 characters")
	}

	if err := h.players.Create(c.Request().Context(), player); err != nil {
		slog.Error("Failed to create player", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create player")
	}

	sess, err := session.Get(middleware.SessionName, c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
	}
	sess.Values[middleware.SessionKeyPlayerID] = player.ID.String()
	sess.Values[middleware.SessionKeyPlayerName] = player.Name
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		slog.Error("Failed to save session", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not save session")
	}

	return c.JSON(http.StatusCreated, joinResponse{PlayerID: player.ID, Name: player.Name})
}
