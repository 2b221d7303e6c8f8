package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingQueue struct {
	channel string
	data    []byte
	attrs   map[string]string
	err     error
}

func (q *recordingQueue) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	q.channel = channel
	q.data = data
	q.attrs = attrs
	return "msg-1", q.err
}

func TestMQEventPublisher(t *testing.T) {
	queue := &recordingQueue{}
	publisher := NewMQEventPublisher(queue, "feedback-events")

	occurred := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := publisher.Publish(context.Background(), Event{
		Type:       EventDuplicateRejected,
		FeedbackID: 7,
		UserID:     3,
		SimilarTo:  []int64{2, 5},
		OccurredAt: occurred,
	})
	require.NoError(t, err)

	assert.Equal(t, "feedback-events", queue.channel)
	assert.Equal(t, map[string]string{"type": EventDuplicateRejected}, queue.attrs)

	event, err := DecodeEvent(queue.data)
	require.NoError(t, err)
	assert.Equal(t, EventDuplicateRejected, event.Type)
	assert.Equal(t, int64(7), event.FeedbackID)
	assert.Equal(t, []int64{2, 5}, event.SimilarTo)
	assert.True(t, occurred.Equal(event.OccurredAt))
}

func TestMQEventPublisherReturnsQueueError(t *testing.T) {
	queue := &recordingQueue{err: errors.New("channel closed")}

	err := NewMQEventPublisher(queue, "feedback-events").Publish(context.Background(), Event{Type: EventUpvoted})
	assert.EqualError(t, err, "channel closed")
}
