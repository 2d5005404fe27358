// Package auth keeps the sign-in state of each browser client: it persists tokens,
// validates them against the backend and broadcasts state changes.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"casebook/internal/backend"
	"casebook/internal/pkg/logger"
	"casebook/internal/repository/contract"
	"casebook/pkg/events"
	pktNats "casebook/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type Client struct {
	provider  backend.Provider
	tokens    contract.TokenRepository
	pubSub    *gochannel.GoChannel
	publisher *pktNats.Publisher
	logger    logger.ILogger

	relay      Relay
	instanceID string

	mu     sync.Mutex
	timers map[string]expiry
	now    func() time.Time
}

// NewPubSub builds the in-process bus the client publishes on. Publishing blocks until
// every subscriber acked, so state is updated by the time SignIn returns.
func NewPubSub() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{BlockPublishUntilSubscriberAck: true},
		watermill.NewStdLogger(false, false),
	)
}

func NewClient(
	provider backend.Provider,
	tokens contract.TokenRepository,
	pubSub *gochannel.GoChannel,
	publisher *pktNats.Publisher,
	log logger.ILogger,
) *Client {
	return &Client{
		provider:   provider,
		tokens:     tokens,
		pubSub:     pubSub,
		publisher:  publisher,
		logger:     log,
		instanceID: watermill.NewUUID(),
		timers:     make(map[string]expiry),
		now:        time.Now,
	}
}

func (c *Client) SignIn(ctx context.Context, clientID string, creds backend.Credentials) (*backend.AuthSession, error) {
	session, err := c.provider.SignInWithPassword(ctx, creds)
	if err != nil {
		return nil, err
	}

	if err := c.tokens.Save(ctx, clientID, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	c.armExpiry(clientID, session)

	c.logger.Info("AUTH", "Client signed in", map[string]interface{}{
		"client_id": clientID,
		"user_id":   session.User.Id,
	})
	c.publish(Event{Type: EventSignedIn, ClientID: clientID, Session: session})

	if c.publisher != nil {
		event := events.BaseEvent{
			Type: events.UserSignedIn,
			Data: map[string]interface{}{
				"user_id": session.User.Id,
				"email":   session.User.Email,
			},
			OccurredAt: c.now(),
		}
		go func() {
			if err := c.publisher.Publish(context.Background(), event); err != nil {
				c.logger.Warn("AUTH", "Failed to publish sign-in event", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	return session, nil
}

// SignOut always clears local state. A backend failure is logged, not returned.
func (c *Client) SignOut(ctx context.Context, clientID string) error {
	stored, err := c.tokens.Load(ctx, clientID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if stored != nil {
		if err := c.provider.SignOut(ctx, stored.AccessToken); err != nil {
			c.logger.Warn("AUTH", "Backend sign out failed", map[string]interface{}{
				"client_id": clientID,
				"error":     err.Error(),
			})
		}
	}

	if err := c.tokens.Delete(ctx, clientID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	c.disarm(clientID)

	c.publish(Event{Type: EventSignedOut, ClientID: clientID})
	return nil
}

// GetUser resolves the stored session of a client against the backend. Missing,
// expired and rejected tokens all yield nil, nil; only transport failures are errors.
func (c *Client) GetUser(ctx context.Context, clientID string) (*backend.AuthSession, error) {
	stored, err := c.tokens.Load(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if stored == nil {
		return nil, nil
	}
	if stored.Expired(c.now()) {
		_ = c.tokens.Delete(ctx, clientID)
		return nil, nil
	}

	user, err := c.provider.GetUser(ctx, stored.AccessToken)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			_ = c.tokens.Delete(ctx, clientID)
			return nil, nil
		}
		return nil, err
	}

	stored.User = *user
	c.armExpiry(clientID, stored)
	return stored, nil
}

// OnAuthStateChange delivers every later event for clientID to handler until ctx is
// cancelled or the returned function is called.
func (c *Client) OnAuthStateChange(ctx context.Context, clientID string, handler Handler) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	messages, err := c.pubSub.Subscribe(subCtx, topic(clientID))
	if err != nil {
		cancel()
		return nil, err
	}

	go func() {
		for msg := range messages {
			var event Event
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				c.logger.Error("AUTH", "Malformed auth event", map[string]interface{}{"error": err})
				msg.Ack()
				continue
			}
			handler(event)
			msg.Ack()
		}
	}()

	return cancel, nil
}

func (c *Client) publish(event Event) {
	event.OccurredAt = c.now()
	c.publishLocal(event)
	if c.relay != nil {
		c.relayEvent(event)
	}
}

func (c *Client) publishLocal(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		c.logger.Error("AUTH", "Failed to encode auth event", map[string]interface{}{"error": err})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := c.pubSub.Publish(topic(event.ClientID), msg); err != nil {
		c.logger.Error("AUTH", "Failed to publish auth event", map[string]interface{}{
			"type":  string(event.Type),
			"error": err,
		})
	}
}

type expiry struct {
	timer *time.Timer
	token string
}

func (c *Client) armExpiry(clientID string, session *backend.AuthSession) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.timers[clientID]; ok {
		if e.token == session.AccessToken {
			return
		}
		e.timer.Stop()
		delete(c.timers, clientID)
	}
	if session.ExpiresAt.IsZero() {
		return
	}

	token := session.AccessToken
	c.timers[clientID] = expiry{
		token: token,
		timer: time.AfterFunc(session.ExpiresAt.Sub(c.now()), func() {
			c.expire(clientID, token)
		}),
	}
}

func (c *Client) disarm(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.timers[clientID]; ok {
		e.timer.Stop()
		delete(c.timers, clientID)
	}
}

func (c *Client) expire(clientID, token string) {
	c.mu.Lock()
	e, ok := c.timers[clientID]
	if !ok || e.token != token {
		// Signed out or signed in again since the timer was armed.
		c.mu.Unlock()
		return
	}
	delete(c.timers, clientID)
	c.mu.Unlock()

	_ = c.tokens.Delete(context.Background(), clientID)
	c.logger.Info("AUTH", "Session expired", map[string]interface{}{"client_id": clientID})
	c.publish(Event{Type: EventTokenExpired, ClientID: clientID})
}

// Close stops every pending expiry timer.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.timers {
		e.timer.Stop()
		delete(c.timers, id)
	}
}
