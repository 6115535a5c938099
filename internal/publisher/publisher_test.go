package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/correlator-io/trackcheck/internal/ingestion"
	"github.com/correlator-io/trackcheck/internal/validation"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	deadline bool
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return f.err
	}

	f.messages = append(f.messages, msgs...)

	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true

	return nil
}

func sampleRun() *validation.Run {
	result := validation.NewResult("events.jsonl")
	result.Add(ingestion.Issue{Type: ingestion.IssueEventDependency, Severity: ingestion.SeverityError})
	result.Stats.TotalEvents = 4
	result.Stats.DependencyViolations = 1

	return validation.NewRun(result, "content", "schema")
}

func TestKafkaPublisher_Publish(t *testing.T) {
	writer := &fakeWriter{}
	pub := newKafkaPublisher(writer, &Config{Topic: "runs", WriteTimeout: time.Second}, nil)

	run := sampleRun()
	require.NoError(t, pub.Publish(context.Background(), run, true))

	require.Len(t, writer.messages, 1)
	assert.True(t, writer.deadline, "writes are bounded by the write timeout")

	msg := writer.messages[0]
	assert.Equal(t, "events.jsonl", string(msg.Key))

	var decoded Message
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, run.ID.String(), decoded.RunID)
	assert.True(t, decoded.Duplicate)
	assert.False(t, decoded.Valid)
	assert.Equal(t, 4, decoded.TotalEvents)
	assert.Equal(t, 1, decoded.ErrorCount)
	assert.Equal(t, 1, decoded.DependencyViolations)
	assert.Equal(t, []string{"EVENT_DEPENDENCY"}, decoded.IssueTypes)

	require.NoError(t, pub.Close())
	assert.True(t, writer.closed)
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	pub := newKafkaPublisher(&fakeWriter{err: errors.New("broker down")}, &Config{Topic: "runs"}, nil)

	err := pub.Publish(context.Background(), sampleRun(), false)
	assert.ErrorIs(t, err, ErrPublishFailed)
}

func TestNew_DisabledWithoutBrokers(t *testing.T) {
	pub, err := New(&Config{Topic: "runs"}, nil)
	require.NoError(t, err)
	assert.IsType(t, NoopPublisher{}, pub)
	assert.NoError(t, pub.Publish(context.Background(), sampleRun(), false))
}

func TestConfig(t *testing.T) {
	t.Setenv("TRACKCHECK_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("TRACKCHECK_KAFKA_TOPIC", "")

	cfg := LoadConfig()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers)
	assert.Equal(t, defaultTopic, cfg.Topic)
	require.NoError(t, cfg.Validate())

	assert.ErrorIs(t, (&Config{}).Validate(), ErrNoBrokers)
	assert.ErrorIs(t, (&Config{Brokers: []string{"k"}}).Validate(), ErrEmptyTopic)
}
