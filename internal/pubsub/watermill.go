package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Metadata keys used to carry Message fields through watermill.
const (
	metaKeyPlayerID = "player_id"
	metaKeyGameID   = "game_id"
	metaKeyTopic    = "topic"
)

// Broker implements Publisher and Subscriber on top of watermill's
// in-process GoChannel transport.
type Broker struct {
	pub    message.Publisher
	sub    message.Subscriber
	logger watermill.LoggerAdapter
}

// NewBroker initializes the in-memory bus.
func NewBroker() *Broker {
	logger := watermill.NewStdLogger(false, false)
	ch := gochannel.NewGoChannel(gochannel.Config{}, logger)

	return &Broker{pub: ch, sub: ch, logger: logger}
}

func toWatermill(msg Message) *message.Message {
	wm := message.NewMessage(watermill.NewUUID(), msg.Payload)
	wm.Metadata.Set(metaKeyPlayerID, msg.PlayerID)
	wm.Metadata.Set(metaKeyGameID, msg.GameID)
	wm.Metadata.Set(metaKeyTopic, msg.Topic)
	for k, v := range msg.Metadata {
		wm.Metadata.Set(k, v)
	}
	return wm
}

func fromWatermill(wm *message.Message) Message {
	metadata := make(map[string]string)
	for k, v := range wm.Metadata {
		switch k {
		case metaKeyPlayerID, metaKeyGameID, metaKeyTopic:
		default:
			metadata[k] = v
		}
	}

	return Message{
		Topic:    wm.Metadata.Get(metaKeyTopic),
		PlayerID: wm.Metadata.Get(metaKeyPlayerID),
		GameID:   wm.Metadata.Get(metaKeyGameID),
		Payload:  wm.Payload,
		Metadata: metadata,
	}
}

// Publish implements Publisher.
func (b *Broker) Publish(ctx context.Context, msg Message) error {
	return b.pub.Publish(msg.Topic, toWatermill(msg))
}

// Subscribe implements Subscriber. Message processing runs in a
// background goroutine; Subscribe itself returns once the subscription
// is active.
func (b *Broker) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := b.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for wm := range messages {
			msg := fromWatermill(wm)
			if err := handler(ctx, msg); err != nil {
				slog.Error("Failed to handle message", "topic", topic, "msg_id", wm.UUID, "error", err)
				wm.Nack()
			} else {
				wm.Ack()
			}
		}
		slog.Debug("Subscription message loop ended", "topic", topic)
	}()

	return nil
}

// Close shuts the bus down and ends all subscription loops.
func (b *Broker) Close() error {
	return b.sub.Close()
}
