package auth

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const relayChannel = "casebook:auth_events"

// Relay carries auth events between instances that share token storage. Every
// instance receives what it publishes; the client drops its own events by origin.
type Relay interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context) (<-chan []byte, error)
}

type relayMessage struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

type RedisRelay struct {
	rdb *redis.Client
}

func NewRedisRelay(rdb *redis.Client) *RedisRelay {
	return &RedisRelay{rdb: rdb}
}

func (r *RedisRelay) Publish(ctx context.Context, payload []byte) error {
	return r.rdb.Publish(ctx, relayChannel, payload).Err()
}

// Subscribe returns once Redis confirmed the subscription. The channel closes when
// ctx is done.
func (r *RedisRelay) Subscribe(ctx context.Context) (<-chan []byte, error) {
	pubsub := r.rdb.Subscribe(ctx, relayChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// StartRelay shares this client's events with other instances and replays theirs
// on the local bus, so every instance's session stores follow sign-ins and
// sign-outs made elsewhere. Call it before serving requests.
func (c *Client) StartRelay(ctx context.Context, relay Relay) error {
	messages, err := relay.Subscribe(ctx)
	if err != nil {
		return err
	}
	c.relay = relay

	go func() {
		for payload := range messages {
			var msg relayMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				c.logger.Warn("AUTH", "Malformed relayed auth event", map[string]interface{}{"error": err.Error()})
				continue
			}
			if msg.Origin == c.instanceID {
				continue
			}
			c.applyRemote(msg.Event)
		}
	}()
	return nil
}

func (c *Client) applyRemote(event Event) {
	switch event.Type {
	case EventSignedIn:
		if event.Session != nil {
			c.armExpiry(event.ClientID, event.Session)
		}
	default:
		c.disarm(event.ClientID)
	}
	c.publishLocal(event)
}

func (c *Client) relayEvent(event Event) {
	payload, err := json.Marshal(relayMessage{Origin: c.instanceID, Event: event})
	if err != nil {
		c.logger.Error("AUTH", "Failed to encode relayed auth event", map[string]interface{}{"error": err})
		return
	}
	if err := c.relay.Publish(context.Background(), payload); err != nil {
		c.logger.Warn("AUTH", "Failed to relay auth event", map[string]interface{}{
			"type":  string(event.Type),
			"error": err.Error(),
		})
	}
}
