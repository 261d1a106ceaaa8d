package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/alumniport/donation-gateway/internal/model"
	"github.com/alumniport/donation-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Use unique connection name per test to avoid global adapter caching issues
	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func intentQueueConfig(name string) QueueConfig {
	return QueueConfig{
		Name:              name,
		ConsumerGroup:     "notifier-group",
		ConsumerName:      "notifier-1",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	}
}

func TestQueue_PublishAndConsumeIntent(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue, err := NewQueue(adapter, intentQueueConfig("intents:notifications"))
	require.NoError(t, err)

	ctx := context.Background()
	intent := model.NotificationIntent{
		DonationID: 42,
		Purpose:    model.NotificationPurposeConfirmation,
		PriorState: model.DonationStatusPendingPayment,
		NewState:   model.DonationStatusPendingVerification,
		EmittedAt:  time.Now().UTC(),
	}

	_, err = queue.PublishJSON(ctx, intent, map[string]string{"purpose": string(intent.Purpose)})
	require.NoError(t, err)

	received := make(chan model.NotificationIntent, 1)
	handler := func(ctx context.Context, msg *Message) error {
		var got model.NotificationIntent
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			return err
		}
		assert.Equal(t, "confirmation", msg.Metadata["purpose"])
		received <- got
		return nil
	}

	require.NoError(t, queue.Consume(handler))
	defer queue.Stop(time.Second)

	select {
	case got := <-received:
		assert.Equal(t, int64(42), got.DonationID)
		assert.Equal(t, model.NotificationPurposeConfirmation, got.Purpose)
		assert.Equal(t, model.DonationStatusPendingVerification, got.NewState)
	case <-time.After(2 * time.Second):
		t.Fatal("intent not received")
	}
}

func TestQueue_FailedHandlerLeavesMessagePending(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	cfg := intentQueueConfig("intents:retry")
	cfg.VisibilityTimeout = 1 * time.Second

	queue, err := NewQueue(adapter, cfg)
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	ctx := context.Background()
	_, err = queue.PublishJSON(ctx, model.NotificationIntent{DonationID: 7}, nil)
	require.NoError(t, err)

	attempts := 0
	handler := func(ctx context.Context, msg *Message) error {
		attempts++
		return assert.AnError
	}

	require.NoError(t, queue.Consume(handler))

	time.Sleep(500 * time.Millisecond)
	assert.GreaterOrEqual(t, attempts, 1)

	stats, err := queue.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.PendingMessages, int64(1))
}

func TestQueue_GetStats(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue, err := NewQueue(adapter, intentQueueConfig("intents:stats"))
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := queue.PublishJSON(ctx, model.NotificationIntent{DonationID: int64(i)}, nil)
		require.NoError(t, err)
	}

	stats, err := queue.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalMessages, int64(5))
}

func TestMessage_Ack(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue, err := NewQueue(adapter, intentQueueConfig("intents:ack"))
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	t.Run("ack marks message as processed", func(t *testing.T) {
		msgID, err := queue.Publish(context.Background(), []byte(`{"donation_id":1}`), nil)
		require.NoError(t, err)

		msg := &Message{ID: msgID, queue: queue}
		assert.NoError(t, msg.Ack())
		assert.True(t, msg.acked)
	})

	t.Run("cannot ack twice", func(t *testing.T) {
		msg := &Message{ID: "0-1", acked: true}
		err := msg.Ack()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already acknowledged")
	})
}

func TestQueue_ConcurrentPublish(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue, err := NewQueue(adapter, intentQueueConfig("intents:concurrent"))
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	ctx := context.Background()
	numGoroutines := 10
	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			_, err := queue.PublishJSON(ctx, model.NotificationIntent{DonationID: int64(id)}, nil)
			assert.NoError(t, err)
			done <- true
		}(i)
	}
	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	stats, err := queue.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalMessages, int64(numGoroutines))
}

func TestQueue_Stop(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue, err := NewQueue(adapter, intentQueueConfig("intents:stop"))
	require.NoError(t, err)

	handler := func(ctx context.Context, msg *Message) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	}

	require.NoError(t, queue.Consume(handler))
	assert.NoError(t, queue.Stop(2 * time.Second))
}
