package mq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/welisten/apiserver/config"
)

type loopbackBackend struct {
	published []Message
	closed    bool
}

func (b *loopbackBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.published = append(b.published, Message{ID: channel, Data: data, Attributes: attrs})
	return "id-1", nil
}

func (b *loopbackBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	for _, msg := range b.published {
		if msg.ID != channel {
			continue
		}
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *loopbackBackend) Close() error {
	b.closed = true
	return nil
}

func TestMQDelegatesToBackend(t *testing.T) {
	backend := &loopbackBackend{}
	queue := New(backend)

	id, err := queue.Publish(context.Background(), "feedback-events", []byte(`{"type":"feedback.created"}`), map[string]string{"type": "feedback.created"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)

	var received []Message
	err = queue.Subscribe(context.Background(), "feedback-events", func(_ context.Context, msg Message) error {
		received = append(received, msg)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "feedback.created", received[0].Attributes["type"])

	require.NoError(t, queue.Close())
	assert.True(t, backend.closed)
}

func TestOpen(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{})
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.ErrorContains(t, err, "unknown mq backend")

	_, err = Open(context.Background(), config.MQConfig{Backend: "RabbitMQ"})
	assert.ErrorContains(t, err, "rabbitmq url is required")

	_, err = Open(context.Background(), config.MQConfig{Backend: "pubsub"})
	assert.ErrorContains(t, err, "pubsub project id is required")
}

func TestHeaderConversion(t *testing.T) {
	headers := attributesToHeaders(map[string]string{"type": "feedback.upvoted"})
	assert.Equal(t, amqp.Table{"type": "feedback.upvoted"}, headers)

	attrs := headersToAttributes(amqp.Table{
		"type":  "feedback.upvoted",
		"raw":   []byte("bytes"),
		"count": int32(3),
	})
	assert.Equal(t, map[string]string{"type": "feedback.upvoted", "raw": "bytes", "count": "3"}, attrs)

	assert.Nil(t, headersToAttributes(nil))
}
