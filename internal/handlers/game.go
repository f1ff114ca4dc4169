package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"dicelink/internal/domain"
	"dicelink/internal/game"
	"dicelink/internal/middleware"
)

// GameHandler manages game lifecycle over HTTP. Players create and join
// games here, then connect over WebSocket to play.
type GameHandler struct {
	engine *game.Engine
	games  domain.GameRepository
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(engine *game.Engine, games domain.GameRepository) *GameHandler {
	return &GameHandler{engine: engine, games: games}
}

// GamesPost opens a new lobby and seats the creator.
func (h *GameHandler) GamesPost(c echo.Context) error {
	player, ok := middleware.CurrentPlayer(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not joined")
	}

	g, err := h.engine.CreateGame(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create game")
	}
	if err := h.engine.Join(c.Request().Context(), g.ID, player); err != nil {
		return gameError(err)
	}

	return c.JSON(http.StatusCreated, map[string]any{"game_id": g.ID})
}

// GameJoinPost seats the current player at an existing lobby.
func (h *GameHandler) GameJoinPost(c echo.Context) error {
	player, ok := middleware.CurrentPlayer(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not joined")
	}

	gameID, err := uuid.Parse(c.Param("game"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "bad game id")
	}

	if err := h.engine.Join(c.Request().Context(), gameID, player); err != nil {
		return gameError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GameGet returns the stored record of a game, finished ones included.
func (h *GameHandler) GameGet(c echo.Context) error {
	gameID, err := uuid.Parse(c.Param("game"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "bad game id")
	}

	g, err := h.games.Get(c.Request().Context(), gameID)
	if err != nil {
		return gameError(err)
	}
	return c.JSON(http.StatusOK, g)
}

// gameError maps domain errors onto HTTP status codes.
func gameError(err error) error {
	switch {
	case errors.Is(err, domain.ErrGameNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "game not found")
	case errors.Is(err, domain.ErrGameFull):
		return echo.NewHTTPError(http.StatusConflict, "game is full")
	case errors.Is(err, domain.ErrGameStarted):
		return echo.NewHTTPError(http.StatusConflict, "game already started")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
