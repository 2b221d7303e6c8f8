package mq

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestPubSubClient(t *testing.T) *PubSubClient {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	client, err := pubsub.NewClient(context.Background(), "welisten-test", option.WithGRPCConn(conn))
	require.NoError(t, err)

	p := newPubSubClient(client, "")
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPubSubPublishReusesTopic(t *testing.T) {
	p := newTestPubSubClient(t)
	ctx := context.Background()

	for range 2 {
		id, err := p.Publish(ctx, "feedback-events", []byte(`{"type":"feedback.upvoted"}`), nil)
		require.NoError(t, err)
		assert.NotEmpty(t, id)
	}

	assert.Len(t, p.topics, 1)
}

func TestPubSubDeliversToSubscriber(t *testing.T) {
	p := newTestPubSubClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The subscription must exist before publishing or the message is dropped.
	_, err := p.subscription(ctx, "feedback-events")
	require.NoError(t, err)

	_, err = p.Publish(ctx, "feedback-events", []byte(`{"type":"feedback.created"}`), map[string]string{"type": "feedback.created"})
	require.NoError(t, err)

	received := make(chan Message, 1)
	err = p.Subscribe(ctx, "feedback-events", func(_ context.Context, msg Message) error {
		select {
		case received <- msg:
		default:
		}
		cancel()
		return nil
	})
	require.NoError(t, err)

	var msg Message
	select {
	case msg = <-received:
	default:
		t.Fatal("subscriber returned without a message")
	}
	assert.JSONEq(t, `{"type":"feedback.created"}`, string(msg.Data))
	assert.Equal(t, "feedback.created", msg.Attributes["type"])
}

func TestPubSubRequiresChannel(t *testing.T) {
	p := newTestPubSubClient(t)

	_, err := p.Publish(context.Background(), " ", nil, nil)
	assert.EqualError(t, err, "pubsub channel is required")
}
