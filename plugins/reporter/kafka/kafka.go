// Package kafka implements the Kafka reporter plugin.
// Reports are buffered into batches, JSON-encoded and keyed by flow so that
// packets of one connection land on the same partition.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/tcpsniff/internal/core"
	"firestige.xyz/tcpsniff/internal/log"
	"firestige.xyz/tcpsniff/pkg/plugin"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultCompression  = "snappy"
	defaultMaxAttempts  = 3
)

// messageWriter is the subset of *kafka.Writer the reporter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaReporter sends reports to Kafka.
type KafkaReporter struct {
	writer  messageWriter
	config  Config
	pending []kafka.Message
	logger  log.Logger

	// Statistics
	reportedCount atomic.Uint64
	errorCount    atomic.Uint64
}

// Config represents Kafka reporter configuration.
type Config struct {
	Brokers      []string      `mapstructure:"brokers"`       // required
	Topic        string        `mapstructure:"topic"`         // required
	BatchSize    int           `mapstructure:"batch_size"`    // optional, default 100
	BatchTimeout time.Duration `mapstructure:"batch_timeout"` // optional, default 100ms
	Compression  string        `mapstructure:"compression"`   // optional: none|gzip|snappy|lz4|zstd, default snappy
	MaxAttempts  int           `mapstructure:"max_attempts"`  // optional, default 3
}

// NewKafkaReporter creates a new Kafka reporter.
func NewKafkaReporter() plugin.Reporter {
	return &KafkaReporter{}
}

// Name returns the plugin name.
func (r *KafkaReporter) Name() string {
	return "kafka"
}

// Init validates the configuration and builds the writer.
func (r *KafkaReporter) Init(config map[string]any) error {
	if config == nil {
		return fmt.Errorf("kafka: %w: reporter requires configuration", core.ErrConfigInvalid)
	}

	cfg := Config{
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		Compression:  defaultCompression,
		MaxAttempts:  defaultMaxAttempts,
	}
	if err := plugin.DecodeConfig(config, &cfg); err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("kafka: %w: brokers is required", core.ErrConfigInvalid)
	}
	if cfg.Topic == "" {
		return fmt.Errorf("kafka: %w: topic is required", core.ErrConfigInvalid)
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("kafka: %w: batch_size must be positive", core.ErrConfigInvalid)
	}

	codec, err := compressionCodec(cfg.Compression)
	if err != nil {
		return err
	}

	r.config = cfg
	r.pending = make([]kafka.Message, 0, cfg.BatchSize)
	r.logger = log.GetLogger().WithFields(map[string]interface{}{
		"reporter": "kafka",
		"topic":    cfg.Topic,
	})
	r.writer = kafka.NewWriter(kafka.WriterConfig{
		Brokers:          cfg.Brokers,
		Topic:            cfg.Topic,
		Balancer:         &kafka.Hash{}, // flow key -> stable partition
		BatchSize:        cfg.BatchSize,
		BatchTimeout:     cfg.BatchTimeout,
		MaxAttempts:      cfg.MaxAttempts,
		CompressionCodec: codec,
	})
	return nil
}

func compressionCodec(name string) (kafka.CompressionCodec, error) {
	switch name {
	case "none", "":
		return nil, nil
	case "gzip":
		return compress.Gzip.Codec(), nil
	case "snappy":
		return compress.Snappy.Codec(), nil
	case "lz4":
		return compress.Lz4.Codec(), nil
	case "zstd":
		return compress.Zstd.Codec(), nil
	default:
		return nil, fmt.Errorf("kafka: %w: invalid compression type %q", core.ErrConfigInvalid, name)
	}
}

// Start starts the reporter.
func (r *KafkaReporter) Start(ctx context.Context) error {
	r.logger.WithFields(map[string]interface{}{
		"brokers":     r.config.Brokers,
		"batch_size":  r.config.BatchSize,
		"compression": r.config.Compression,
	}).Info("kafka reporter started")
	return nil
}

// Stop flushes pending messages and closes the writer.
func (r *KafkaReporter) Stop(ctx context.Context) error {
	if r.writer == nil {
		return nil
	}
	flushErr := r.Flush(ctx)
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("kafka: close writer: %w", err)
	}
	r.logger.WithFields(map[string]interface{}{
		"total_reported": r.reportedCount.Load(),
		"total_errors":   r.errorCount.Load(),
	}).Info("kafka reporter stopped")
	return flushErr
}

// Report queues a report and sends the batch once it is full.
func (r *KafkaReporter) Report(ctx context.Context, report *core.PacketReport) error {
	if report == nil {
		return fmt.Errorf("nil report")
	}

	value, err := json.Marshal(report.Record())
	if err != nil {
		r.errorCount.Add(1)
		return fmt.Errorf("serialize report failed: %w", err)
	}

	r.pending = append(r.pending, kafka.Message{
		Key:   []byte(report.FlowKey()),
		Value: value,
		Time:  report.Timestamp,
	})
	if len(r.pending) < r.config.BatchSize {
		return nil
	}
	return r.Flush(ctx)
}

// Flush sends all queued messages.
func (r *KafkaReporter) Flush(ctx context.Context) error {
	if len(r.pending) == 0 {
		return nil
	}

	batch := r.pending
	r.pending = make([]kafka.Message, 0, r.config.BatchSize)

	if err := r.writer.WriteMessages(ctx, batch...); err != nil {
		r.errorCount.Add(uint64(len(batch)))
		return fmt.Errorf("kafka write failed (%d messages): %w", len(batch), err)
	}
	r.reportedCount.Add(uint64(len(batch)))
	return nil
}
