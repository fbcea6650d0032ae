package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"hooka/internal/model"

	"cloud.google.com/go/pubsub"
)

// Publisher defines an interface for publishing messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) (string, error)
}

// PubSubPublisher is an implementation of Publisher using Google Pub/Sub.
type PubSubPublisher struct {
	client *pubsub.Client
}

// NewPublisher creates a new PubSubPublisher for the given GCP project.
func NewPublisher(ctx context.Context, projectID string) (*PubSubPublisher, error) {
	if projectID == "" {
		return nil, errors.New("pubsub project id is empty")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return &PubSubPublisher{client: client}, nil
}

// Publish sends the payload to the given Pub/Sub topic and returns the message ID.
func (p *PubSubPublisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	t := p.client.Topic(topic)
	result := t.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"content-type": "application/json"},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}
	return id, nil
}

// Close flushes pending messages and releases the client.
func (p *PubSubPublisher) Close() error {
	return p.client.Close()
}

// AnalyticsSink forwards analytics events to a topic for downstream consumers.
type AnalyticsSink struct {
	pub   Publisher
	topic string
}

func NewAnalyticsSink(pub Publisher, topic string) *AnalyticsSink {
	return &AnalyticsSink{pub: pub, topic: topic}
}

// PublishEvent encodes the event as JSON and publishes it.
func (s *AnalyticsSink) PublishEvent(ctx context.Context, e *model.AnalyticsEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal analytics event: %w", err)
	}
	if _, err := s.pub.Publish(ctx, s.topic, payload); err != nil {
		return err
	}
	return nil
}
