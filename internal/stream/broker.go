package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

const eventChannelPrefix = "deck:events:" // Pub/Sub channel per deck: deck:events:{deck_id}

// Broker fans deck events out over Redis Pub/Sub so any API instance can
// serve the stream for a deck generated on another one.
type Broker struct {
	client *redis.Client
}

func NewBroker(client *redis.Client) *Broker {
	return &Broker{client: client}
}

func (b *Broker) channel(deckID string) string {
	return fmt.Sprintf("%s%s", eventChannelPrefix, deckID)
}

// Publish sends one event on the deck's channel.
func (b *Broker) Publish(ctx context.Context, deckID string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(deckID), data).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe returns a channel of events for the deck plus a cancel func.
// The channel closes when cancel is called or the context ends.
func (b *Broker) Subscribe(ctx context.Context, deckID string) (<-chan Event, func()) {
	pubsub := b.client.Subscribe(ctx, b.channel(deckID))
	out := make(chan Event, 16)

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("[warn] operation=stream_subscribe deck_id=%s error=%v", deckID, err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = pubsub.Close() }
}
