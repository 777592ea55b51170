// Package notifications publishes social graph events into per-user Redis channels.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types published to user channels.
const (
	EventMatch   = "match"
	EventMessage = "message"
)

// Event is the JSON payload delivered on a user channel.
type Event struct {
	Type      string    `json:"type"`
	UserID    uint      `json:"user_id"`
	OtherID   uint      `json:"other_user_id"`
	ChatID    uint      `json:"chat_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(
	ctx context.Context, userID uint, payload string,
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishMatch tells both users that their likes became mutual.
func (n *Notifier) PublishMatch(ctx context.Context, a, b uint) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	now := time.Now().UTC()
	for _, pair := range [][2]uint{{a, b}, {b, a}} {
		payload, err := json.Marshal(Event{Type: EventMatch, UserID: pair[0], OtherID: pair[1], CreatedAt: now})
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		if err := n.PublishUser(ctx, pair[0], string(payload)); err != nil {
			return err
		}
	}
	return nil
}

// PublishMessage tells the recipient that fromID wrote in chatID.
func (n *Notifier) PublishMessage(ctx context.Context, fromID, toID, chatID uint) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(Event{
		Type:      EventMessage,
		UserID:    toID,
		OtherID:   fromID,
		ChatID:    chatID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return n.PublishUser(ctx, toID, string(payload))
}

// StartPatternSubscriber subscribes to pattern `notifications:user:*` and calls onMessage
// for each incoming message. onMessage receives channel and payload.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "notifications:user:*")
	// Wait for the subscription to be confirmed so early publishes are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in PatternSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}
