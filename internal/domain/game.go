package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// GameStatus tracks where a game is in its lifecycle.
type GameStatus string

const (
	StatusLobby    GameStatus = "lobby"
	StatusPlaying  GameStatus = "playing"
	StatusFinished GameStatus = "finished"
)

const (
	// StartingDice is the number of dice each player begins with.
	StartingDice = 5
	// MaxPlayers caps the table size.
	MaxPlayers = 8
	// DiceFaces is the number of faces per die.
	DiceFaces = 6
)

// Bid is a claim that at least Quantity dice across all hands show Face.
type Bid struct {
	PlayerID uuid.UUID `json:"player_id"`
	Quantity int       `json:"quantity" validate:"required,min=1"`
	Face     int       `json:"face" validate:"required,min=1,max=6"`
}

// Raises reports whether b outbids prev. A bid raises when it claims a
// strictly higher quantity, or the same quantity of a higher face.
func (b Bid) Raises(prev Bid) bool {
	if b.Quantity != prev.Quantity {
		return b.Quantity > prev.Quantity
	}
	return b.Face > prev.Face
}

// Validate runs validation checks on the Bid struct.
func (b *Bid) Validate() error {
	return validatorInstance.Struct(b)
}

// PlayerData is one player's standing inside a game: identity plus the
// dice currently in their cup. It doubles as the per-recipient context
// for personalized fan-out, which is why it carries everything a payload
// function needs.
type PlayerData struct {
	PlayerID uuid.UUID `json:"player_id"`
	Name     string    `json:"name"`
	Dice     []int     `json:"dice,omitempty"`
	Ready    bool      `json:"ready"`
}

// DiceLeft reports how many dice the player still holds.
func (pd PlayerData) DiceLeft() int {
	return len(pd.Dice)
}


// Game is the persisted record of one table.
type Game struct {
	ID         uuid.UUID    `json:"id"`
	Status     GameStatus   `json:"status"`
	Players    []PlayerData `json:"players"`
	Round      int          `json:"round"`
	WinnerID   *uuid.UUID   `json:"winner_id,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// GameRepository is the persistence contract for games.
type GameRepository interface {
	Create(ctx context.Context, game *Game) error
	Get(ctx context.Context, id uuid.UUID) (*Game, error)
	Update(ctx context.Context, game *Game) error
}
