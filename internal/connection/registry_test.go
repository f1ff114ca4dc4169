package connection_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicelink/internal/connection"
)

// fakeChannel records every write and close so tests can assert on
// exactly what reached the transport.
type fakeChannel struct {
	mu       sync.Mutex
	writes   [][]byte
	closes   int
	writeErr error
	closeErr error
}

func (f *fakeChannel) Write(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	f.writes = append(f.writes, buf)
	return nil
}

func (f *fakeChannel) Close(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return f.closeErr
}

func (f *fakeChannel) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	for i, w := range f.writes {
		out[i] = string(w)
	}
	return out
}

func (f *fakeChannel) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func TestRegistry_RegisterReplaceUnregister(t *testing.T) {
	r := connection.NewRegistry()
	id := uuid.New()
	first := &fakeChannel{}
	second := &fakeChannel{}

	r.Register(id, first)
	ch, err := r.Lookup(id)
	require.NoError(t, err)
	assert.Same(t, connection.Channel(first), ch)

	// Last write wins.
	r.Register(id, second)
	ch, err = r.Lookup(id)
	require.NoError(t, err)
	assert.Same(t, connection.Channel(second), ch)
	assert.Equal(t, 1, r.Len())

	require.NoError(t, r.Unregister(id))
	assert.Equal(t, 0, r.Len())

	// Removing an absent entry is a caller error.
	err = r.Unregister(id)
	require.ErrorIs(t, err, connection.ErrNotConnected)

	_, err = r.Lookup(id)
	require.ErrorIs(t, err, connection.ErrNotConnected)

	// Unregister never touches the channel.
	assert.Equal(t, 0, second.closeCount())
}

func TestRegistry_SendToUnknownPlayer(t *testing.T) {
	r := connection.NewRegistry()

	err := r.Send(context.Background(), uuid.New(), "hello")
	require.ErrorIs(t, err, connection.ErrNotConnected)
}

func TestRegistry_SendEncoding(t *testing.T) {
	type announcement struct {
		Type  string `json:"type"`
		Round int    `json:"round"`
	}

	tests := []struct {
		name    string
		payload any
		want    string
	}{
		{name: "plain text passes through", payload: "raw text", want: "raw text"},
		{name: "bytes pass through", payload: []byte(`{"pre":"encoded"}`), want: `{"pre":"encoded"}`},
		{name: "raw message passes through", payload: json.RawMessage(`{"x":1}`), want: `{"x":1}`},
		{name: "struct is JSON encoded", payload: announcement{Type: "start", Round: 1}, want: `{"type":"start","round":1}`},
		{name: "pointer to struct is JSON encoded", payload: &announcement{Type: "start", Round: 2}, want: `{"type":"start","round":2}`},
		{name: "map is JSON encoded", payload: map[string]string{"type": "tick"}, want: `{"type":"tick"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := connection.NewRegistry()
			id := uuid.New()
			ch := &fakeChannel{}
			r.Register(id, ch)

			require.NoError(t, r.Send(context.Background(), id, tt.payload))
			require.Len(t, ch.written(), 1)
			assert.Equal(t, tt.want, ch.written()[0])
		})
	}
}

func TestRegistry_SendRejectsInvalidPayloads(t *testing.T) {
	r := connection.NewRegistry()
	id := uuid.New()
	ch := &fakeChannel{}
	r.Register(id, ch)

	for _, payload := range []any{nil, 42, 3.14, true, []int{1, 2}, make(chan int)} {
		err := r.Send(context.Background(), id, payload)
		require.ErrorIs(t, err, connection.ErrInvalidPayload, "payload %T", payload)
	}

	// Validation happens before the lookup and before any write.
	assert.Empty(t, ch.written())
}

func TestRegistry_SendTransportFailure(t *testing.T) {
	r := connection.NewRegistry()
	id := uuid.New()
	boom := errors.New("socket reset")
	r.Register(id, &fakeChannel{writeErr: boom})

	err := r.Send(context.Background(), id, "hello")
	require.Error(t, err)
	require.NotErrorIs(t, err, connection.ErrNotConnected)

	var te *connection.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, id, te.Identity)
	assert.ErrorIs(t, err, boom)

	// The entry survives the failed send; removal is the caller's call.
	_, err = r.Lookup(id)
	assert.NoError(t, err)
}

func TestRegistry_Disconnect(t *testing.T) {
	t.Run("closes exactly once and removes the entry", func(t *testing.T) {
		r := connection.NewRegistry()
		id := uuid.New()
		ch := &fakeChannel{}
		r.Register(id, ch)

		require.NoError(t, r.Disconnect(context.Background(), id))
		assert.Equal(t, 1, ch.closeCount())

		_, err := r.Lookup(id)
		require.ErrorIs(t, err, connection.ErrNotConnected)
	})

	t.Run("removes the entry even when close fails", func(t *testing.T) {
		r := connection.NewRegistry()
		id := uuid.New()
		ch := &fakeChannel{closeErr: errors.New("already gone")}
		r.Register(id, ch)

		err := r.Disconnect(context.Background(), id)
		require.Error(t, err)
		assert.Equal(t, 1, ch.closeCount())

		var te *connection.TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, id, te.Identity)

		_, err = r.Lookup(id)
		require.ErrorIs(t, err, connection.ErrNotConnected)
	})

	t.Run("unknown player", func(t *testing.T) {
		r := connection.NewRegistry()
		err := r.Disconnect(context.Background(), uuid.New())
		require.ErrorIs(t, err, connection.ErrNotConnected)
	})
}

func TestRegistry_Broadcast(t *testing.T) {
	r := connection.NewRegistry()
	channels := make(map[uuid.UUID]*fakeChannel)
	for i := 0; i < 5; i++ {
		id := uuid.New()
		ch := &fakeChannel{}
		channels[id] = ch
		r.Register(id, ch)
	}

	require.NoError(t, r.Broadcast(context.Background(), map[string]string{"type": "start"}))
	for id, ch := range channels {
		require.Len(t, ch.written(), 1, "player %s", id)
		assert.JSONEq(t, `{"type":"start"}`, ch.written()[0])
	}
}

func TestRegistry_BroadcastExcluding(t *testing.T) {
	r := connection.NewRegistry()
	excluded := uuid.New()
	excludedCh := &fakeChannel{}
	r.Register(excluded, excludedCh)

	others := make([]*fakeChannel, 0, 3)
	for i := 0; i < 3; i++ {
		ch := &fakeChannel{}
		others = append(others, ch)
		r.Register(uuid.New(), ch)
	}

	require.NoError(t, r.Broadcast(context.Background(), "tick", connection.Excluding(excluded)))

	assert.Empty(t, excludedCh.written(), "excluded player must never be written to")
	for _, ch := range others {
		assert.Equal(t, []string{"tick"}, ch.written())
	}
}

func TestRegistry_BroadcastPartialFailure(t *testing.T) {
	r := connection.NewRegistry()
	bad := uuid.New()
	r.Register(bad, &fakeChannel{writeErr: errors.New("broken pipe")})

	good := make(map[uuid.UUID]*fakeChannel)
	for i := 0; i < 4; i++ {
		id := uuid.New()
		ch := &fakeChannel{}
		good[id] = ch
		r.Register(id, ch)
	}

	err := r.Broadcast(context.Background(), "round over")
	require.Error(t, err)

	// The failure names exactly the broken player.
	assert.Equal(t, []uuid.UUID{bad}, connection.FailedIdentities(err))

	// Everyone else was still delivered to.
	for id, ch := range good {
		assert.Equal(t, []string{"round over"}, ch.written(), "player %s", id)
	}

	// The broken player is still registered; removal is explicit.
	_, lookupErr := r.Lookup(bad)
	assert.NoError(t, lookupErr)
}

func TestRegistry_PersonalizedBroadcast(t *testing.T) {
	type hand struct {
		Name string
		Dice []int
	}

	r := connection.NewRegistry()
	channels := make(map[uuid.UUID]*fakeChannel)
	recipients := make(map[uuid.UUID]hand)
	for _, name := range []string{"alice", "bob", "carol"} {
		id := uuid.New()
		ch := &fakeChannel{}
		channels[id] = ch
		recipients[id] = hand{Name: name, Dice: []int{len(name)}}
		r.Register(id, ch)
	}

	err := connection.PersonalizedBroadcast(context.Background(), r, func(h hand) any {
		return map[string]any{"type": "hand", "player": h.Name, "dice": h.Dice}
	}, recipients)
	require.NoError(t, err)

	// Each player received their own payload, never another's.
	for id, ch := range channels {
		require.Len(t, ch.written(), 1)
		var got struct {
			Player string `json:"player"`
		}
		require.NoError(t, json.Unmarshal([]byte(ch.written()[0]), &got))
		assert.Equal(t, recipients[id].Name, got.Player)
	}
}

func TestRegistry_PersonalizedBroadcastMissingContext(t *testing.T) {
	r := connection.NewRegistry()
	known := uuid.New()
	orphan := uuid.New()
	knownCh := &fakeChannel{}
	orphanCh := &fakeChannel{}
	r.Register(known, knownCh)
	r.Register(orphan, orphanCh)

	recipients := map[uuid.UUID]string{known: "alice"}
	err := connection.PersonalizedBroadcast(context.Background(), r, func(name string) any {
		return name
	}, recipients)

	require.ErrorIs(t, err, connection.ErrMissingContext)
	assert.Contains(t, err.Error(), orphan.String())

	// Contract violations are caught before any network activity.
	assert.Empty(t, knownCh.written())
	assert.Empty(t, orphanCh.written())
}

func TestRegistry_BroadcastLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	r := connection.NewRegistry()

	a, b := uuid.New(), uuid.New()
	chA, chB := &fakeChannel{}, &fakeChannel{}
	r.Register(a, chA)
	r.Register(b, chB)

	require.NoError(t, r.Broadcast(ctx, map[string]string{"type": "start"}))
	assert.JSONEq(t, `{"type":"start"}`, chA.written()[0])
	assert.JSONEq(t, `{"type":"start"}`, chB.written()[0])

	require.NoError(t, r.Disconnect(ctx, a))

	require.NoError(t, r.Broadcast(ctx, map[string]string{"type": "tick"}))
	require.Len(t, chA.written(), 1, "disconnected player must not receive further broadcasts")
	require.Len(t, chB.written(), 2)
	assert.JSONEq(t, `{"type":"tick"}`, chB.written()[1])

	err := r.Send(ctx, a, "late")
	require.ErrorIs(t, err, connection.ErrNotConnected)
}

func TestRegistry_ConcurrentChurn(t *testing.T) {
	r := connection.NewRegistry()
	ctx := context.Background()

	stable := uuid.New()
	stableCh := &fakeChannel{}
	r.Register(stable, stableCh)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			id := uuid.New()
			r.Register(id, &fakeChannel{})
			_ = r.Unregister(id)
		}()
		go func() {
			defer wg.Done()
			_ = r.Broadcast(ctx, "churn")
		}()
	}
	wg.Wait()

	// The stable player saw every broadcast that snapshotted after its
	// registration, and the registry is left consistent.
	assert.Equal(t, 1, r.Len())
	_, err := r.Lookup(stable)
	assert.NoError(t, err)
}
