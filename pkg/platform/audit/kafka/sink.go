// Package kafka publishes audit events to a Kafka topic with franz-go.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "cliquey/pkg/platform/audit"
)

// Producer is the subset of *kgo.Client used by the sink.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Sink implements audit.Sink.
type Sink struct {
	producer Producer
	topic    string
}

// payload is the JSON document written to the topic.
type payload struct {
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	UserID    string `json:"user_id,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Action    string `json:"action"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	IP        string `json:"ip,omitempty"`
}

// NewSink wraps an existing producer.
func NewSink(producer Producer, topic string) *Sink {
	return &Sink{producer: producer, topic: topic}
}

// DialOption configures Dial.
type DialOption func(*dialOptions)

type dialOptions struct {
	topic *TopicSpec
}

// WithTopicCreation makes Dial create the topic when it is missing.
func WithTopicCreation(spec TopicSpec) DialOption {
	return func(o *dialOptions) {
		o.topic = &spec
	}
}

// Dial connects a franz-go client to the given brokers.
func Dial(ctx context.Context, brokers []string, topic string, opts ...DialOption) (*Sink, error) {
	var o dialOptions
	for _, opt := range opts {
		opt(&o)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if o.topic != nil {
		if err := EnsureTopic(ctx, kadm.NewClient(client), topic, *o.topic); err != nil {
			client.Close()
			return nil, err
		}
	}
	return NewSink(client, topic), nil
}

// Publish writes the event keyed by user so one user's events stay ordered.
func (s *Sink) Publish(ctx context.Context, event audit.Event) error {
	p := payload{
		Category:  string(event.Category),
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Subject:   event.Subject,
		Action:    event.Action,
		Reason:    event.Reason,
		RequestID: event.RequestID,
		ActorID:   event.ActorID,
		IP:        event.IP,
	}
	var key []byte
	if !event.UserID.IsNil() {
		p.UserID = event.UserID.String()
		key = []byte(p.UserID)
	}

	value, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	record := &kgo.Record{Topic: s.topic, Key: key, Value: value}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying client.
func (s *Sink) Close() {
	s.producer.Close()
}
