package game

import "github.com/go-playground/validator/v10"

var validatorInstance = validator.New()

// Action names accepted from clients.
const (
	ActionReady     = "ready"
	ActionBid       = "bid"
	ActionChallenge = "challenge"
)

// Action is the inbound message a connected player may send. Quantity
// and Face are only meaningful for bids.
type Action struct {
	Action   string `json:"action" validate:"required,oneof=ready bid challenge"`
	Quantity int    `json:"quantity,omitempty" validate:"omitempty,min=1"`
	Face     int    `json:"face,omitempty" validate:"omitempty,min=1,max=6"`
}

// Validate runs validation checks on the Action struct.
func (a *Action) Validate() error {
	return validatorInstance.Struct(a)
}
