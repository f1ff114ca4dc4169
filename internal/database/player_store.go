package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"

	"dicelink/internal/domain"
)

// SurrealPlayerStore implements domain.PlayerRepository on SurrealDB.
type SurrealPlayerStore struct {
	db *surrealdb.DB
}

// NewSurrealPlayerStore creates a player store.
func NewSurrealPlayerStore(db *surrealdb.DB) *SurrealPlayerStore {
	return &SurrealPlayerStore{db: db}
}

// Create inserts a new player record.
func (s *SurrealPlayerStore) Create(ctx context.Context, player *domain.Player) error {
	query := "CREATE player CONTENT { uid: $uid, name: $name }"
	params := map[string]any{
		"uid":  player.ID.String(),
		"name": player.Name,
	}
	if err := Execute(ctx, s.db, query, params); err != nil {
		return fmt.Errorf("creating player %s: %w", player.ID, err)
	}
	return nil
}

// Get fetches a player by ID.
func (s *SurrealPlayerStore) Get(ctx context.Context, id uuid.UUID) (*domain.Player, error) {
	query := "SELECT uid, name FROM player WHERE uid = $uid"
	params := map[string]any{"uid": id.String()}

	row, err := QueryOne[playerRow](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("fetching player %s: %w", id, err)
	}
	if row == nil {
		return nil, domain.ErrPlayerNotFound
	}
	return row.toDomain()
}

// playerRow is the storage shape of a player. UUIDs travel as strings.
type playerRow struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

func (r playerRow) toDomain() (*domain.Player, error) {
	id, err := uuid.Parse(r.UID)
	if err != nil {
		return nil, fmt.Errorf("corrupt player id %q: %w", r.UID, err)
	}
	return &domain.Player{ID: id, Name: r.Name}, nil
}
