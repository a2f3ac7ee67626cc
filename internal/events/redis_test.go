package events

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

func newTestSink(t *testing.T) (*RedisSink, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSinkFromClient(client), client
}

func TestChannelNaming(t *testing.T) {
	assert.Equal(t, "ws:alice", Channel("alice"))
	assert.Equal(t, "ws:*", ChannelPattern())
	assert.Equal(t, "alice", UserFromChannel("ws:alice"))
	assert.Equal(t, "", UserFromChannel("ws:"))
	assert.Equal(t, "", UserFromChannel("bogus"))
}

func TestPublishReachesSubscriber(t *testing.T) {
	sink, client := newTestSink(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, Channel("alice"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	err = sink.Publish(ctx, "alice", "impact.acknowledged", map[string]interface{}{
		"change_id": "chg1",
	})
	require.NoError(t, err)

	select {
	case msg := <-sub.Channel():
		var env Envelope
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
		assert.Equal(t, "impact.acknowledged", env.Event)
		assert.Equal(t, "chg1", env.Data["change_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestPublishWithoutSubscriberIsFine(t *testing.T) {
	sink, _ := newTestSink(t)
	err := sink.Publish(context.Background(), "nobody", "impact.nudged", nil)
	assert.NoError(t, err)
}

func TestPatternSubscriptionSeesAllUsers(t *testing.T) {
	sink, _ := newTestSink(t)
	ctx := context.Background()

	sub := sink.Subscribe(ctx)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, sink.Publish(ctx, "alice", "change.merge_gate_met", nil))
	require.NoError(t, sink.Publish(ctx, "bob", "change.merge_gate_met", nil))

	users := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case msg := <-sub.Channel():
			users[UserFromChannel(msg.Channel)] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for messages")
		}
	}
	assert.True(t, users["alice"])
	assert.True(t, users["bob"])
}
