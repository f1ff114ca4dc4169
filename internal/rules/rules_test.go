package rules_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicelink/internal/domain"
	"dicelink/internal/rules"
)

const standardScript = `
ones_wild = true
valid_raise = next_quantity > prev_quantity || (next_quantity == prev_quantity && next_face > prev_face)
`

const strictScript = `
ones_wild = false
valid_raise = next_quantity > prev_quantity
`

func TestEngine_Defaults(t *testing.T) {
	e := rules.NewEngine()

	assert.True(t, e.OnesWild())
	assert.True(t, e.ValidRaise(domain.Bid{Quantity: 2, Face: 3}, domain.Bid{Quantity: 2, Face: 4}))
	assert.False(t, e.ValidRaise(domain.Bid{Quantity: 2, Face: 3}, domain.Bid{Quantity: 2, Face: 3}))
}

func TestEngine_ScriptOverridesDefaults(t *testing.T) {
	e := rules.NewEngine()
	require.NoError(t, e.LoadScript([]byte(strictScript)))

	assert.False(t, e.OnesWild())
	// Same quantity with a higher face is no longer a raise.
	assert.False(t, e.ValidRaise(domain.Bid{Quantity: 2, Face: 3}, domain.Bid{Quantity: 2, Face: 4}))
	assert.True(t, e.ValidRaise(domain.Bid{Quantity: 2, Face: 3}, domain.Bid{Quantity: 3, Face: 2}))

	e.Reset()
	assert.True(t, e.OnesWild())
}

func TestEngine_RejectsBrokenScript(t *testing.T) {
	e := rules.NewEngine()
	require.NoError(t, e.LoadScript([]byte(strictScript)))

	err := e.LoadScript([]byte(`this is not tengo [`))
	require.Error(t, err)

	// The previous working script stays active.
	assert.False(t, e.OnesWild())
}

func TestEngine_CountMatching(t *testing.T) {
	hands := [][]int{
		{1, 3, 3, 5},
		{2, 3, 1},
	}

	e := rules.NewEngine()
	// Ones are wild by default: three 3s plus two 1s.
	assert.Equal(t, 5, e.CountMatching(hands, 3))
	// Bidding on ones counts only actual ones.
	assert.Equal(t, 2, e.CountMatching(hands, 1))

	require.NoError(t, e.LoadScript([]byte(strictScript)))
	assert.Equal(t, 3, e.CountMatching(hands, 3))
}

func TestEngine_WatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.tengo")
	require.NoError(t, os.WriteFile(path, []byte(standardScript), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := rules.NewEngine()
	require.NoError(t, e.Watch(ctx, path))
	require.True(t, e.OnesWild())

	require.NoError(t, os.WriteFile(path, []byte(strictScript), 0o644))

	require.Eventually(t, func() bool {
		return !e.OnesWild()
	}, 2*time.Second, 20*time.Millisecond, "script change should hot-reload")
}
