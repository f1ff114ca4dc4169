package pubsub

import "context"

// Message is the unit passed between components on the bus.
type Message struct {
	// Topic identifies the channel the message belongs to (e.g., "game.action").
	Topic string
	// PlayerID identifies the player who initiated the message, when one did.
	PlayerID string
	// GameID identifies the game the message concerns.
	GameID string
	// Payload contains the raw message data.
	Payload []byte
	// Metadata carries arbitrary key-value context (e.g., timestamps).
	Metadata map[string]string
}

// Handler processes a received message. A non-nil return nacks it.
type Handler func(ctx context.Context, msg Message) error

// Publisher is the contract for sending messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber is the contract for receiving messages from the bus.
type Subscriber interface {
	// Subscribe starts listening to the given topic, processing messages
	// with the handler. It returns once the subscription is active.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
