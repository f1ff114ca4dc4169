package domain

import "errors"

// Sentinel errors for the domain layer. These provide consistent,
// checkable errors for common game-logic failures.
var (
	ErrGameNotFound   = errors.New("game not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrGameFull       = errors.New("game already has the maximum number of players")
	ErrGameStarted    = errors.New("game is already in progress")
	ErrNotYourTurn    = errors.New("action attempted out of turn")
	ErrInvalidBid     = errors.New("bid does not raise the current bid")
	ErrNoCurrentBid   = errors.New("no bid to challenge")
)
