package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks the live outbound channel for every connected player
// of a single game. It is the synchronization point between the game
// engine, which decides what to tell whom, and the transport layer,
// which owns the sockets.
//
// The map is the only shared mutable state. Lifecycle operations take
// the write lock; sends take a read-lock snapshot and never mutate the
// map, so a failed send never removes an entry on its own. Removal is
// always an explicit caller action.
type Registry struct {
	mu       sync.RWMutex
	channels map[uuid.UUID]Channel
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[uuid.UUID]Channel),
		logger:   slog.Default().With("component", "connection.registry"),
	}
}

// Register inserts or replaces the channel for a player. Last write
// wins: callers that do not intend replacement must Unregister first.
func (r *Registry) Register(id uuid.UUID, ch Channel) {
	r.mu.Lock()
	r.channels[id] = ch
	total := len(r.channels)
	r.mu.Unlock()

	r.logger.Info("Player registered", "playerID", id, "total_connections", total)
}

// Lookup returns the current channel for a player, or ErrNotConnected.
func (r *Registry) Lookup(id uuid.UUID) (Channel, error) {
	r.mu.RLock()
	ch, ok := r.channels[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("lookup %s: %w", id, ErrNotConnected)
	}
	return ch, nil
}

// Disconnect closes a player's channel and removes the entry. The entry
// is removed whether or not the close succeeds, since the handle is no
// longer usable either way; a close failure is still surfaced.
func (r *Registry) Disconnect(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	ch, ok := r.channels[id]
	if ok {
		delete(r.channels, id)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("disconnect %s: %w", id, ErrNotConnected)
	}

	if err := ch.Close(ctx); err != nil {
		r.logger.Warn("Channel close failed during disconnect", "playerID", id, "error", err)
		return &TransportError{Identity: id, Err: err}
	}

	r.logger.Info("Player disconnected", "playerID", id)
	return nil
}

// Unregister removes a player's entry without touching the channel. This
// is the path used when the transport layer reports the connection has
// already dropped and nothing further will be written.
func (r *Registry) Unregister(id uuid.UUID) error {
	r.mu.Lock()
	_, ok := r.channels[id]
	if ok {
		delete(r.channels, id)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("unregister %s: %w", id, ErrNotConnected)
	}

	r.logger.Info("Player unregistered", "playerID", id)
	return nil
}

// Len reports the number of currently registered players.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// Send encodes payload and writes it to a single player. The payload is
// validated and the player looked up before any network activity, so a
// NotConnected or InvalidPayload failure has no side effects.
func (r *Registry) Send(ctx context.Context, id uuid.UUID, payload any) error {
	data, err := Encode(payload)
	if err != nil {
		return err
	}

	ch, err := r.Lookup(id)
	if err != nil {
		return err
	}

	r.logger.Debug("Sending payload to player", "playerID", id, "payload", string(data))
	if err := ch.Write(ctx, data); err != nil {
		return &TransportError{Identity: id, Err: err}
	}
	return nil
}

// BroadcastOption configures a single Broadcast call.
type BroadcastOption func(*broadcastConfig)

type broadcastConfig struct {
	exclude map[uuid.UUID]struct{}
}

// Excluding leaves one player out of a broadcast, typically the one who
// triggered the event being announced.
func Excluding(id uuid.UUID) BroadcastOption {
	return func(cfg *broadcastConfig) {
		if cfg.exclude == nil {
			cfg.exclude = make(map[uuid.UUID]struct{})
		}
		cfg.exclude[id] = struct{}{}
	}
}

// Broadcast sends the same payload to every player registered at call
// time. The recipient set is a snapshot: players that register while the
// broadcast is in flight are not included. All sends run concurrently
// and all of them settle before Broadcast returns; a failure on one
// channel never cancels the others. If any send failed, the returned
// error joins one TransportError per failed player so the caller can
// decide who to disconnect.
func (r *Registry) Broadcast(ctx context.Context, payload any, opts ...BroadcastOption) error {
	var cfg broadcastConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	data, err := Encode(payload)
	if err != nil {
		return err
	}

	targets := r.snapshot(cfg.exclude)
	r.logger.Debug("Broadcasting payload", "recipients", len(targets), "payload", string(data))

	return r.fanOut(ctx, targets, func(uuid.UUID) ([]byte, error) {
		return data, nil
	})
}

// PersonalizedBroadcast sends each registered player a payload computed
// from that player's entry in recipients. Registry membership and
// recipient-context membership are the caller's responsibility to keep
// in sync: a registered player missing from recipients fails the whole
// call with ErrMissingContext before anything is written.
//
// Fan-out and failure aggregation behave exactly as in Broadcast.
func PersonalizedBroadcast[T any](ctx context.Context, r *Registry, payloadFor func(T) any, recipients map[uuid.UUID]T) error {
	targets := r.snapshot(nil)

	for id := range targets {
		if _, ok := recipients[id]; !ok {
			return fmt.Errorf("player %s: %w", id, ErrMissingContext)
		}
	}

	r.logger.Debug("Broadcasting personalized payloads", "recipients", len(targets))

	return r.fanOut(ctx, targets, func(id uuid.UUID) ([]byte, error) {
		return Encode(payloadFor(recipients[id]))
	})
}

// snapshot copies the current membership under the read lock so that
// fan-out can run without holding it.
func (r *Registry) snapshot(exclude map[uuid.UUID]struct{}) map[uuid.UUID]Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := make(map[uuid.UUID]Channel, len(r.channels))
	for id, ch := range r.channels {
		if _, skip := exclude[id]; skip {
			continue
		}
		targets[id] = ch
	}
	return targets
}

// fanOut issues one concurrent write per target and waits for every one
// of them to settle, then joins whatever failed.
func (r *Registry) fanOut(ctx context.Context, targets map[uuid.UUID]Channel, payloadFor func(uuid.UUID) ([]byte, error)) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []error
	)

	for id, ch := range targets {
		wg.Add(1)
		go func(id uuid.UUID, ch Channel) {
			defer wg.Done()

			data, err := payloadFor(id)
			if err == nil {
				r.logger.Debug("Sending payload to player", "playerID", id, "payload", string(data))
				if werr := ch.Write(ctx, data); werr != nil {
					err = &TransportError{Identity: id, Err: werr}
				}
			}
			if err != nil {
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
		}(id, ch)
	}
	wg.Wait()

	if len(failures) > 0 {
		r.logger.Warn("Fan-out completed with failures", "failed", len(failures), "attempted", len(targets))
		return errors.Join(failures...)
	}
	return nil
}

// Encode turns a payload into transport-ready text. Text payloads pass
// through verbatim; record payloads (structs and maps) are JSON encoded.
// Anything else is a caller contract violation caught before any network
// activity.
func Encode(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	case nil:
		return nil, fmt.Errorf("nil payload: %w", ErrInvalidPayload)
	}

	v := reflect.ValueOf(payload)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("nil payload: %w", ErrInvalidPayload)
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct, reflect.Map:
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("payload type %T: %w", payload, ErrInvalidPayload)
	}
}
