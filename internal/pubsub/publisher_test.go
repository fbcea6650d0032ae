package pubsub

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"hooka/internal/model"

	ps "cloud.google.com/go/pubsub"
)

func TestNewPublisherInvalidProject(t *testing.T) {
	if _, err := NewPublisher(context.Background(), ""); err == nil {
		t.Fatal("expected error when project ID is empty")
	}
}

type recordingPublisher struct {
	topic   string
	payload []byte
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, payload []byte) (string, error) {
	r.topic, r.payload = topic, payload
	return "msg-1", nil
}

func TestAnalyticsSinkEncodesEvent(t *testing.T) {
	rec := &recordingPublisher{}
	sink := NewAnalyticsSink(rec, "analytics")

	ev := &model.AnalyticsEvent{ID: "e1", EventName: "generate_click", Timestamp: 7, Metadata: json.RawMessage(`{"n":1}`)}
	if err := sink.PublishEvent(context.Background(), ev); err != nil {
		t.Fatalf("PublishEvent returned error: %v", err)
	}
	if rec.topic != "analytics" {
		t.Fatalf("expected topic 'analytics', got %q", rec.topic)
	}
	var got model.AnalyticsEvent
	if err := json.Unmarshal(rec.payload, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.EventName != "generate_click" || got.Timestamp != 7 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestPublishWithEmulator(t *testing.T) {
	emulator := os.Getenv("PUBSUB_EMULATOR_HOST")
	if emulator == "" {
		t.Skip("PUBSUB_EMULATOR_HOST is not set, skip emulator integration test")
	}

	ctx := context.Background()
	pub, err := NewPublisher(ctx, "test-project")
	if err != nil {
		t.Fatalf("failed to create PubSubPublisher: %v", err)
	}
	defer pub.Close()

	topicName := "test-analytics"
	topic, err := pub.client.CreateTopic(ctx, topicName)
	if err != nil {
		t.Fatalf("failed to create topic: %v", err)
	}
	sub, err := pub.client.CreateSubscription(ctx, "test-analytics-sub", ps.SubscriptionConfig{Topic: topic})
	if err != nil {
		t.Fatalf("failed to create subscription: %v", err)
	}

	sink := NewAnalyticsSink(pub, topicName)
	if err := sink.PublishEvent(ctx, &model.AnalyticsEvent{ID: "e1", EventName: "ai_cost"}); err != nil {
		t.Fatalf("PublishEvent returned error: %v", err)
	}

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	c := make(chan []byte, 1)
	go func() {
		sub.Receive(recvCtx, func(ctx context.Context, m *ps.Message) {
			c <- m.Data
			m.Ack()
			cancel()
		})
	}()

	select {
	case data := <-c:
		var got model.AnalyticsEvent
		if err := json.Unmarshal(data, &got); err != nil || got.EventName != "ai_cost" {
			t.Fatalf("unexpected message data %s", string(data))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message from emulator subscription")
	}
}
