package game

import (
	"github.com/google/uuid"

	"dicelink/internal/domain"
)

// Event type names as they appear on the wire.
const (
	EventLobby           = "lobby"
	EventPlayerJoined    = "player_joined"
	EventPlayerLeft      = "player_left"
	EventRoundStarted    = "round_started"
	EventYourHand        = "your_hand"
	EventBidPlaced       = "bid_placed"
	EventChallengeResult = "challenge_result"
	EventPlayerOut       = "player_eliminated"
	EventGameOver        = "game_over"
	EventError           = "error"
)

// PlayerSummary is what every player may see about another: identity and
// dice count, never dice values.
type PlayerSummary struct {
	PlayerID uuid.UUID `json:"player_id"`
	Name     string    `json:"name"`
	DiceLeft int       `json:"dice_left"`
	Ready    bool      `json:"ready"`
}

// LobbyEvent announces the current table composition.
type LobbyEvent struct {
	Type    string          `json:"type"`
	GameID  uuid.UUID       `json:"game_id"`
	Players []PlayerSummary `json:"players"`
}

// PlayerJoinedEvent announces a new player at the table.
type PlayerJoinedEvent struct {
	Type   string        `json:"type"`
	Player PlayerSummary `json:"player"`
}

// PlayerLeftEvent announces a departure.
type PlayerLeftEvent struct {
	Type     string    `json:"type"`
	PlayerID uuid.UUID `json:"player_id"`
}

// RoundStartedEvent opens a round: public dice counts and whose turn it is.
type RoundStartedEvent struct {
	Type    string          `json:"type"`
	Round   int             `json:"round"`
	Players []PlayerSummary `json:"players"`
	Turn    uuid.UUID       `json:"turn"`
}

// HandEvent is the personalized payload carrying one player's own dice.
type HandEvent struct {
	Type  string    `json:"type"`
	Round int       `json:"round"`
	Dice  []int     `json:"dice"`
	Turn  uuid.UUID `json:"turn"`
}

// BidPlacedEvent announces a bid and passes the turn.
type BidPlacedEvent struct {
	Type string     `json:"type"`
	Bid  domain.Bid `json:"bid"`
	Turn uuid.UUID  `json:"turn"`
}

// RevealedHand exposes one player's dice after a challenge.
type RevealedHand struct {
	PlayerID uuid.UUID `json:"player_id"`
	Name     string    `json:"name"`
	Dice     []int     `json:"dice"`
}

// ChallengeResultEvent resolves a challenge: all hands are revealed and
// the loser forfeits a die.
type ChallengeResultEvent struct {
	Type       string         `json:"type"`
	Challenger uuid.UUID      `json:"challenger"`
	Bid        domain.Bid     `json:"bid"`
	Actual     int            `json:"actual"`
	Loser      uuid.UUID      `json:"loser"`
	Hands      []RevealedHand `json:"hands"`
}

// PlayerEliminatedEvent announces a player losing their last die.
type PlayerEliminatedEvent struct {
	Type     string    `json:"type"`
	PlayerID uuid.UUID `json:"player_id"`
}

// GameOverEvent closes the game.
type GameOverEvent struct {
	Type     string    `json:"type"`
	WinnerID uuid.UUID `json:"winner_id"`
}

// ErrorEvent is sent to a single player whose action was rejected.
type ErrorEvent struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func summarize(players []domain.PlayerData) []PlayerSummary {
	out := make([]PlayerSummary, len(players))
	for i, p := range players {
		out[i] = PlayerSummary{
			PlayerID: p.PlayerID,
			Name:     p.Name,
			DiceLeft: p.DiceLeft(),
			Ready:    p.Ready,
		}
	}
	return out
}
