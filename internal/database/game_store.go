package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"

	"dicelink/internal/domain"
)

// SurrealGameStore implements domain.GameRepository on SurrealDB.
type SurrealGameStore struct {
	db *surrealdb.DB
}

// NewSurrealGameStore creates a game store.
func NewSurrealGameStore(db *surrealdb.DB) *SurrealGameStore {
	return &SurrealGameStore{db: db}
}

// Create inserts a new game record.
func (s *SurrealGameStore) Create(ctx context.Context, game *domain.Game) error {
	query := "CREATE game CONTENT $content"
	params := map[string]any{"content": gameRowFrom(game)}
	if err := Execute(ctx, s.db, query, params); err != nil {
		return fmt.Errorf("creating game %s: %w", game.ID, err)
	}
	return nil
}

// Get fetches a game by ID.
func (s *SurrealGameStore) Get(ctx context.Context, id uuid.UUID) (*domain.Game, error) {
	query := "SELECT * FROM game WHERE uid = $uid"
	params := map[string]any{"uid": id.String()}

	row, err := QueryOne[gameRow](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("fetching game %s: %w", id, err)
	}
	if row == nil {
		return nil, domain.ErrGameNotFound
	}
	return row.toDomain()
}

// Update overwrites the stored record for a game.
func (s *SurrealGameStore) Update(ctx context.Context, game *domain.Game) error {
	query := "UPDATE game CONTENT $content WHERE uid = $uid"
	params := map[string]any{
		"uid":     game.ID.String(),
		"content": gameRowFrom(game),
	}
	if err := Execute(ctx, s.db, query, params); err != nil {
		return fmt.Errorf("updating game %s: %w", game.ID, err)
	}
	return nil
}

// gameRow is the storage shape of a game. UUIDs travel as strings so
// the record survives round-trips regardless of the server's native id
// handling.
type gameRow struct {
	UID        string          `json:"uid"`
	Status     string          `json:"status"`
	Players    []playerDataRow `json:"players"`
	Round      int             `json:"round"`
	WinnerUID  string          `json:"winner_uid,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

type playerDataRow struct {
	PlayerUID string `json:"player_uid"`
	Name      string `json:"name"`
	Dice      []int  `json:"dice,omitempty"`
	Ready     bool   `json:"ready"`
}

func gameRowFrom(game *domain.Game) gameRow {
	row := gameRow{
		UID:        game.ID.String(),
		Status:     string(game.Status),
		Players:    make([]playerDataRow, 0, len(game.Players)),
		Round:      game.Round,
		CreatedAt:  game.CreatedAt,
		FinishedAt: game.FinishedAt,
	}
	if game.WinnerID != nil {
		row.WinnerUID = game.WinnerID.String()
	}
	for _, pd := range game.Players {
		row.Players = append(row.Players, playerDataRow{
			PlayerUID: pd.PlayerID.String(),
			Name:      pd.Name,
			Dice:      pd.Dice,
			Ready:     pd.Ready,
		})
	}
	return row
}

func (r gameRow) toDomain() (*domain.Game, error) {
	id, err := uuid.Parse(r.UID)
	if err != nil {
		return nil, fmt.Errorf("corrupt game id %q: %w", r.UID, err)
	}
	game := &domain.Game{
		ID:         id,
		Status:     domain.GameStatus(r.Status),
		Players:    make([]domain.PlayerData, 0, len(r.Players)),
		Round:      r.Round,
		CreatedAt:  r.CreatedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.WinnerUID != "" {
		winner, err := uuid.Parse(r.WinnerUID)
		if err != nil {
			return nil, fmt.Errorf("corrupt winner id %q: %w", r.WinnerUID, err)
		}
		game.WinnerID = &winner
	}
	for _, pr := range r.Players {
		pid, err := uuid.Parse(pr.PlayerUID)
		if err != nil {
			return nil, fmt.Errorf("corrupt player id %q: %w", pr.PlayerUID, err)
		}
		game.Players = append(game.Players, domain.PlayerData{
			PlayerID: pid,
			Name:     pr.Name,
			Dice:     pr.Dice,
			Ready:    pr.Ready,
		})
	}
	return game, nil
}
