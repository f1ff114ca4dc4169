package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"dicelink/internal/handlers"
	"dicelink/internal/middleware"
	"dicelink/internal/websocket"
)

// registerRoutes sets up all the application routes.
func (s *Server) registerRoutes(bridgeOpts ...websocket.Option) {
	playerHandler := handlers.NewPlayerHandler(s.players)
	gameHandler := handlers.NewGameHandler(s.Engine, s.games)
	bridge := websocket.NewBridge(s.Hub, s.Broker, bridgeOpts...)

	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	s.E.POST("/join", playerHandler.JoinPost)

	authed := s.E.Group("", middleware.Player())
	authed.POST("/games", gameHandler.GamesPost)
	authed.POST("/games/:game/join", gameHandler.GameJoinPost)
	authed.GET("/games/:game", gameHandler.GameGet)
	authed.GET("/ws/:game", bridge.Handler())
}
