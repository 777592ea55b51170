package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_PublishUser(t *testing.T) {
	// Notifier with nil Redis should return nil error (fail-open/noop)
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishUser(context.Background(), 1, "test payload"))
	assert.NoError(t, n.PublishMatch(context.Background(), 1, 2))
	assert.NoError(t, n.PublishMessage(context.Background(), 1, 2, 5))
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		userID   uint
		expected string
	}{
		{1, "notifications:user:1"},
		{100, "notifications:user:100"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, UserChannel(tt.userID))
	}
}

func TestNotifier_PublishMatchReachesBothUsers(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Event, 2)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(_ string, payload string) {
		var ev Event
		if json.Unmarshal([]byte(payload), &ev) == nil {
			received <- ev
		}
	}))

	require.NoError(t, n.PublishMatch(ctx, 3, 9))

	got := map[uint]uint{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-received:
			assert.Equal(t, EventMatch, ev.Type)
			got[ev.UserID] = ev.OtherID
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for match event")
		}
	}
	assert.Equal(t, map[uint]uint{3: 9, 9: 3}, got)
}

func TestNotifier_PublishMessageReachesRecipientOnly(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type delivery struct {
		channel string
		event   Event
	}
	received := make(chan delivery, 2)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(channel string, payload string) {
		var ev Event
		if json.Unmarshal([]byte(payload), &ev) == nil {
			received <- delivery{channel: channel, event: ev}
		}
	}))

	require.NoError(t, n.PublishMessage(ctx, 4, 7, 12))

	select {
	case d := <-received:
		assert.Equal(t, UserChannel(7), d.channel)
		assert.Equal(t, EventMessage, d.event.Type)
		assert.Equal(t, uint(7), d.event.UserID)
		assert.Equal(t, uint(4), d.event.OtherID)
		assert.Equal(t, uint(12), d.event.ChatID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message event")
	}

	select {
	case d := <-received:
		t.Fatalf("unexpected second delivery on %s", d.channel)
	case <-time.After(100 * time.Millisecond):
	}
}
