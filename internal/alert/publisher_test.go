package alert

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-pipeline/internal/persistence"
)

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	pub := NewRedisPublisher(&persistence.Redis{Client: client, Prefix: "test"})
	ctx := context.Background()

	sub := client.Subscribe(ctx, pub.Channel("support-alerts"))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(ctx, "support-alerts", "ticket t1 is urgent", "Urgent ticket"))

	select {
	case msg := <-sub.Channel():
		var decoded Message
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &decoded))
		assert.Equal(t, "Urgent ticket", decoded.Subject)
		assert.Equal(t, "ticket t1 is urgent", decoded.Body)
		assert.Equal(t, "support-alerts", decoded.Topic)
	case <-time.After(2 * time.Second):
		t.Fatal("alert not received")
	}
}
