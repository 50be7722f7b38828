package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
)

// TopicCreator is the subset of *kadm.Client used to provision the audit topic.
type TopicCreator interface {
	CreateTopic(ctx context.Context, partitions int32, replicationFactor int16, configs map[string]*string, topic string) (kadm.CreateTopicResponse, error)
}

// TopicSpec sizes the audit topic when the sink creates it.
type TopicSpec struct {
	Partitions        int32
	ReplicationFactor int16
	// Retention is passed as retention.ms when non-empty.
	Retention string
}

// EnsureTopic creates topic if it does not exist. An existing topic is left as is.
func EnsureTopic(ctx context.Context, admin TopicCreator, topic string, spec TopicSpec) error {
	if spec.Partitions <= 0 {
		spec.Partitions = 1
	}
	if spec.ReplicationFactor <= 0 {
		spec.ReplicationFactor = 1
	}
	var configs map[string]*string
	if spec.Retention != "" {
		retention := spec.Retention
		configs = map[string]*string{"retention.ms": &retention}
	}

	resp, err := admin.CreateTopic(ctx, spec.Partitions, spec.ReplicationFactor, configs, topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	return nil
}
