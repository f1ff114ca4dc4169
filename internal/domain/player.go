package domain

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// validatorInstance is a package-level validator instance. A single
// instance caches struct metadata and is safe for concurrent use.
var validatorInstance = validator.New()

var nameCaser = cases.Title(language.Und)

// Player is a registered participant.
type Player struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name" validate:"required,min=2,max=32"`
}

// Validate runs validation checks on the Player struct.
func (p *Player) Validate() error {
	return validatorInstance.Struct(p)
}

// NormalizeName canonicalizes a display name: Unicode NFC so visually
// identical names compare equal, surrounding whitespace stripped, and
// title case applied.
func NormalizeName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	return nameCaser.String(name)
}

// PlayerRepository is the persistence contract for players.
type PlayerRepository interface {
	Create(ctx context.Context, player *Player) error
	Get(ctx context.Context, id uuid.UUID) (*Player, error)
}
