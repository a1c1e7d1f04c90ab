package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/listing-crawler/internal/checkpoint"
)

func newTestClient(t *testing.T) *pubsub.Client {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	return client
}

func TestPublishCheckpoint(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	topic, err := client.CreateTopic(ctx, "checkpoints")
	require.NoError(t, err)
	sub, err := client.CreateSubscription(ctx, "checkpoints-sub", pubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	pub, err := NewWithClient(ctx, client, "checkpoints")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	cp := checkpoint.Checkpoint{
		RunID:     "run-1",
		Sequence:  3,
		Records:   1000,
		LastPage:  120,
		StorePath: "1670.csv",
		Message:   "Update data for 1000 records up to page 120",
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, pub.Publish(ctx, cp))

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	got := make(chan *pubsub.Message, 1)
	go func() {
		_ = sub.Receive(recvCtx, func(_ context.Context, msg *pubsub.Message) {
			msg.Ack()
			select {
			case got <- msg:
			default:
			}
		})
	}()

	select {
	case msg := <-got:
		cancel()
		assert.Equal(t, "run-1", msg.Attributes["run_id"])
		assert.Equal(t, "3", msg.Attributes["sequence"])
		assert.Equal(t, "false", msg.Attributes["final"])
		var decoded checkpoint.Checkpoint
		require.NoError(t, json.Unmarshal(msg.Data, &decoded))
		assert.Equal(t, cp, decoded)
	case <-recvCtx.Done():
		t.Fatal("timed out waiting for checkpoint message")
	}
}

func TestNewWithClientMissingTopic(t *testing.T) {
	client := newTestClient(t)
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewWithClient(context.Background(), client, "absent")
	require.ErrorContains(t, err, "does not exist")

	_, err = NewWithClient(context.Background(), client, "")
	require.Error(t, err)
}
