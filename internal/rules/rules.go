// Package rules evaluates the house-rule variants of a table. The
// defaults implement standard liar's dice (ones are wild, bids must
// strictly raise); a Tengo script can override either decision without
// a server restart.
package rules

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/d5/tengo/v2"

	"dicelink/internal/domain"
)

// Script contract: the source is evaluated once per decision with the
// inputs below bound as globals, and must leave these variables set:
//
//	ones_wild   bool — whether face 1 counts toward every bid
//	valid_raise bool — whether next_* legally raises prev_*
//
// Inputs: prev_quantity, prev_face, next_quantity, next_face (ints).
const (
	varOnesWild   = "ones_wild"
	varValidRaise = "valid_raise"
)

// Engine answers rule questions for the game loop. Safe for concurrent
// use; LoadScript swaps the active script atomically.
type Engine struct {
	mu  sync.RWMutex
	src []byte // nil means built-in defaults
}

// NewEngine creates an engine running the built-in standard rules.
func NewEngine() *Engine {
	return &Engine{}
}

// LoadScript validates and activates a rule script. The script is test
// evaluated against sample inputs first, so a broken script never
// replaces a working one.
func (e *Engine) LoadScript(src []byte) error {
	if _, _, err := evaluate(src, domain.Bid{Quantity: 1, Face: 2}, domain.Bid{Quantity: 2, Face: 2}); err != nil {
		return fmt.Errorf("rule script rejected: %w", err)
	}

	e.mu.Lock()
	e.src = src
	e.mu.Unlock()

	slog.Info("Rule script activated", "bytes", len(src))
	return nil
}

// Reset drops any loaded script and returns to the built-in defaults.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.src = nil
	e.mu.Unlock()
}

// OnesWild reports whether face 1 counts toward every bid.
func (e *Engine) OnesWild() bool {
	e.mu.RLock()
	src := e.src
	e.mu.RUnlock()

	if src == nil {
		return true
	}

	wild, _, err := evaluate(src, domain.Bid{Quantity: 1, Face: 2}, domain.Bid{Quantity: 2, Face: 2})
	if err != nil {
		slog.Error("Rule script failed, falling back to defaults", "error", err)
		return true
	}
	return wild
}

// ValidRaise reports whether next legally raises prev.
func (e *Engine) ValidRaise(prev, next domain.Bid) bool {
	e.mu.RLock()
	src := e.src
	e.mu.RUnlock()

	if src == nil {
		return next.Raises(prev)
	}

	_, valid, err := evaluate(src, prev, next)
	if err != nil {
		slog.Error("Rule script failed, falling back to defaults", "error", err)
		return next.Raises(prev)
	}
	return valid
}

// CountMatching counts dice across all hands that support a bid on face,
// honoring the wildness rule.
func (e *Engine) CountMatching(hands [][]int, face int) int {
	wild := e.OnesWild()

	count := 0
	for _, hand := range hands {
		for _, die := range hand {
			if die == face || (wild && die == 1 && face != 1) {
				count++
			}
		}
	}
	return count
}

func evaluate(src []byte, prev, next domain.Bid) (onesWild, validRaise bool, err error) {
	script := tengo.NewScript(src)

	for name, value := range map[string]any{
		"prev_quantity": prev.Quantity,
		"prev_face":     prev.Face,
		"next_quantity": next.Quantity,
		"next_face":     next.Face,
		varOnesWild:     true,
		varValidRaise:   false,
	} {
		if err := script.Add(name, value); err != nil {
			return false, false, fmt.Errorf("binding %s: %w", name, err)
		}
	}

	compiled, err := script.Run()
	if err != nil {
		return false, false, err
	}

	return compiled.Get(varOnesWild).Bool(), compiled.Get(varValidRaise).Bool(), nil
}
