package services

import (
	"context"
	"encoding/json"
	"time"
)

// Feedback event types.
const (
	EventFeedbackCreated   = "feedback.created"
	EventDuplicateRejected = "feedback.duplicate_rejected"
	EventStatusChanged     = "feedback.status_changed"
	EventUpvoted           = "feedback.upvoted"
)

// Event is a notification about a feedback lifecycle change.
type Event struct {
	Type       string    `json:"type"`
	FeedbackID int64     `json:"feedbackId"`
	UserID     int64     `json:"userId,omitempty"`
	Status     string    `json:"status,omitempty"`
	Upvotes    int64     `json:"upvotes,omitempty"`
	SimilarTo  []int64   `json:"similarTo,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EventPublisher delivers feedback events. Failures never fail the
// operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// MessagePublisher is the subset of the message queue used for events.
type MessagePublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// MQEventPublisher publishes events as JSON to a message queue channel.
type MQEventPublisher struct {
	queue   MessagePublisher
	channel string
}

func NewMQEventPublisher(queue MessagePublisher, channel string) *MQEventPublisher {
	return &MQEventPublisher{queue: queue, channel: channel}
}

func (p *MQEventPublisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.queue.Publish(ctx, p.channel, data, map[string]string{"type": event.Type})
	return err
}

// DecodeEvent parses an event published by MQEventPublisher.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NopEventPublisher drops every event.
type NopEventPublisher struct{}

func (NopEventPublisher) Publish(context.Context, Event) error { return nil }
