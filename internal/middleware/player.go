package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"dicelink/internal/domain"
)

// PlayerContextKey is where the resolved player is stored on the echo
// context.
const PlayerContextKey = "player"

// Session keys written by the join handler.
const (
	SessionName          = "dicelink"
	SessionKeyPlayerID   = "player_id"
	SessionKeyPlayerName = "player_name"
)

// Player resolves the current player from the session and stores it on
// the context. Requests without a joined player get 401.
func Player() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, err := session.Get(SessionName, c)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "no session")
			}

			rawID, ok := sess.Values[SessionKeyPlayerID].(string)
			if !ok || rawID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "not joined")
			}
			id, err := uuid.Parse(rawID)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "corrupt session")
			}

			name, _ := sess.Values[SessionKeyPlayerName].(string)
			c.Set(PlayerContextKey, &domain.Player{ID: id, Name: name})

			return next(c)
		}
	}
}

// CurrentPlayer returns the player resolved by the Player middleware.
func CurrentPlayer(c echo.Context) (*domain.Player, bool) {
	player, ok := c.Get(PlayerContextKey).(*domain.Player)
	return player, ok && player != nil
}
