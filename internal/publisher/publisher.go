// Package publisher announces finished validation runs on Kafka.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/correlator-io/trackcheck/internal/config"
	"github.com/correlator-io/trackcheck/internal/validation"
)

const (
	defaultTopic        = "trackcheck.validation-runs"
	defaultWriteTimeout = 10 * time.Second
	defaultBatchTimeout = 50 * time.Millisecond
)

var (
	// ErrPublishFailed is returned when a run summary cannot be written to Kafka.
	ErrPublishFailed = errors.New("failed to publish validation run")

	// ErrNoBrokers is returned when a Kafka publisher is created without brokers.
	ErrNoBrokers = errors.New("kafka brokers are required")

	// ErrEmptyTopic is returned when a Kafka publisher is created without a topic.
	ErrEmptyTopic = errors.New("kafka topic cannot be empty")
)

type (
	// Publisher announces stored validation runs.
	Publisher interface {
		Publish(ctx context.Context, run *validation.Run, duplicate bool) error
		Close() error
	}

	// Config holds Kafka publisher settings.
	Config struct {
		Brokers      []string
		Topic        string
		WriteTimeout time.Duration
	}

	// Message is the JSON value written for each run. The key is the file name,
	// so all runs of one file land on the same partition.
	Message struct {
		RunID                    string    `json:"run_id"`
		FileName                 string    `json:"file_name"`
		ContentDigest            string    `json:"content_digest"`
		SchemaDigest             string    `json:"schema_digest"`
		CreatedAt                time.Time `json:"created_at"`
		Duplicate                bool      `json:"duplicate"`
		Valid                    bool      `json:"valid"`
		TotalEvents              int       `json:"total_events"`
		TotalUsers               int       `json:"total_users"`
		ErrorCount               int       `json:"error_count"`
		WarningCount             int       `json:"warning_count"`
		DependencyViolations     int       `json:"dependency_violations"`
		TimestampOrderViolations int       `json:"timestamp_order_violations"`
		PropertyViolations       int       `json:"property_violations"`
		IssueTypes               []string  `json:"issue_types"`
	}

	// messageWriter is the part of *kafka.Writer the publisher uses.
	messageWriter interface {
		WriteMessages(ctx context.Context, msgs ...kafka.Message) error
		Close() error
	}

	// KafkaPublisher writes one Message per run to a topic.
	KafkaPublisher struct {
		writer       messageWriter
		topic        string
		writeTimeout time.Duration
		logger       *slog.Logger
	}

	// NoopPublisher drops every run. Used when no brokers are configured.
	NoopPublisher struct{}
)

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NoopPublisher{}
)

// LoadConfig reads the publisher configuration from the environment.
// Publishing is disabled when TRACKCHECK_KAFKA_BROKERS is unset.
func LoadConfig() *Config {
	return &Config{
		Brokers:      config.ParseCommaSeparatedList(config.GetEnvStr("TRACKCHECK_KAFKA_BROKERS", "")),
		Topic:        config.GetEnvStr("TRACKCHECK_KAFKA_TOPIC", defaultTopic),
		WriteTimeout: config.GetEnvDuration("TRACKCHECK_KAFKA_WRITE_TIMEOUT", defaultWriteTimeout),
	}
}

// Enabled reports whether any broker is configured.
func (c *Config) Enabled() bool {
	return len(c.Brokers) > 0
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.Enabled() {
		return ErrNoBrokers
	}

	if c.Topic == "" {
		return ErrEmptyTopic
	}

	return nil
}

// New returns a KafkaPublisher when brokers are configured and a NoopPublisher
// otherwise.
func New(cfg *Config, logger *slog.Logger) (Publisher, error) {
	if !cfg.Enabled() {
		return NoopPublisher{}, nil
	}

	return NewKafkaPublisher(cfg, logger)
}

// NewKafkaPublisher creates a publisher writing to cfg.Topic. The topic is
// created on first write if the cluster allows it.
func NewKafkaPublisher(cfg *Config, logger *slog.Logger) (*KafkaPublisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           defaultBatchTimeout,
		AllowAutoTopicCreation: true,
	}

	return newKafkaPublisher(writer, cfg, logger), nil
}

func newKafkaPublisher(writer messageWriter, cfg *Config, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}

	return &KafkaPublisher{
		writer:       writer,
		topic:        cfg.Topic,
		writeTimeout: timeout,
		logger:       logger,
	}
}

// NewMessage summarises run for publishing.
func NewMessage(run *validation.Run, duplicate bool) Message {
	result := run.Result

	return Message{
		RunID:                    run.ID.String(),
		FileName:                 run.FileName,
		ContentDigest:            run.ContentDigest,
		SchemaDigest:             run.SchemaDigest,
		CreatedAt:                run.CreatedAt,
		Duplicate:                duplicate,
		Valid:                    result.Valid,
		TotalEvents:              result.Stats.TotalEvents,
		TotalUsers:               result.Stats.TotalUsers,
		ErrorCount:               len(result.Errors),
		WarningCount:             len(result.Warnings),
		DependencyViolations:     result.Stats.DependencyViolations,
		TimestampOrderViolations: result.Stats.TimestampOrderViolations,
		PropertyViolations:       result.Stats.PropertyViolations,
		IssueTypes:               result.IssueTypes(),
	}
}

// Publish writes the run summary. It blocks until the brokers acknowledge the
// write or the write timeout expires.
func (p *KafkaPublisher) Publish(ctx context.Context, run *validation.Run, duplicate bool) error {
	value, err := json.Marshal(NewMessage(run, duplicate))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(run.FileName),
		Value: value,
		Time:  run.CreatedAt,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "run-id", Value: []byte(run.ID.String())},
		},
	})
	if err != nil {
		p.logger.Error("Failed to publish validation run",
			slog.String("run_id", run.ID.String()),
			slog.String("topic", p.topic),
			slog.String("error", err.Error()))

		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	p.logger.Debug("Published validation run",
		slog.String("run_id", run.ID.String()),
		slog.String("topic", p.topic))

	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, *validation.Run, bool) error {
	return nil
}

// Close implements Publisher.
func (NoopPublisher) Close() error {
	return nil
}
