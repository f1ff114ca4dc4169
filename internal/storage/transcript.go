// Package storage archives finished games. Transcripts are plain JSON
// files on an afero filesystem, so tests and ephemeral deployments can
// run fully in memory while production writes to disk.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Entry is one recorded moment of a game.
type Entry struct {
	At      time.Time       `json:"at"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Transcript is the archived record of one finished game.
type Transcript struct {
	GameID     uuid.UUID  `json:"game_id"`
	FinishedAt time.Time  `json:"finished_at"`
	WinnerID   *uuid.UUID `json:"winner_id,omitempty"`
	Entries    []Entry    `json:"entries"`
}

// TranscriptStore writes transcripts to a filesystem.
type TranscriptStore struct {
	fs  afero.Fs
	dir string
}

// NewTranscriptStore creates a store rooted at dir on the given
// filesystem.
func NewTranscriptStore(fs afero.Fs, dir string) *TranscriptStore {
	return &TranscriptStore{fs: fs, dir: dir}
}

// Save writes a transcript as <dir>/<gameID>.json.
func (s *TranscriptStore) Save(ctx context.Context, t Transcript) error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating transcript dir: %w", err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding transcript for game %s: %w", t.GameID, err)
	}

	path := s.path(t.GameID)
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("writing transcript %s: %w", path, err)
	}
	return nil
}

// Load reads a previously archived transcript.
func (s *TranscriptStore) Load(ctx context.Context, gameID uuid.UUID) (*Transcript, error) {
	data, err := afero.ReadFile(s.fs, s.path(gameID))
	if err != nil {
		return nil, fmt.Errorf("reading transcript for game %s: %w", gameID, err)
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decoding transcript for game %s: %w", gameID, err)
	}
	return &t, nil
}

func (s *TranscriptStore) path(gameID uuid.UUID) string {
	return filepath.Join(s.dir, gameID.String()+".json")
}
