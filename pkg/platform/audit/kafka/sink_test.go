package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	id "cliquey/pkg/domain"
	audit "cliquey/pkg/platform/audit"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
	closed  bool
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		f.records = append(f.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func (f *fakeProducer) Close() { f.closed = true }

func TestSink_Publish(t *testing.T) {
	producer := &fakeProducer{}
	sink := NewSink(producer, "cliquey.audit")
	userID := id.NewUserID()

	err := sink.Publish(context.Background(), audit.Event{
		Category:  audit.CategoryOperations,
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UserID:    userID,
		Action:    string(audit.EventProfileCreated),
		RequestID: "req-1",
	})
	require.NoError(t, err)
	require.Len(t, producer.records, 1)

	rec := producer.records[0]
	assert.Equal(t, "cliquey.audit", rec.Topic)
	assert.Equal(t, userID.String(), string(rec.Key))

	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Value, &got))
	assert.Equal(t, "profile_created", got["action"])
	assert.Equal(t, "2026-01-02T03:04:05Z", got["timestamp"])
	assert.Equal(t, userID.String(), got["user_id"])
}

func TestSink_PublishError(t *testing.T) {
	producer := &fakeProducer{err: errors.New("no brokers")}
	sink := NewSink(producer, "cliquey.audit")

	err := sink.Publish(context.Background(), audit.Event{Action: string(audit.EventLoginFailed)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers")
	assert.Nil(t, producer.records[0].Key, "anonymous events are not keyed")

	sink.Close()
	assert.True(t, producer.closed)
}
