package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ConsumerConfig holds Kafka consumer settings
type ConsumerConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
	MaxWait  time.Duration
}

// Validate validates the configuration
func (c ConsumerConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("messaging: at least one broker is required")
	}
	if c.Topic == "" {
		return errors.New("messaging: topic is required")
	}
	if c.GroupID == "" {
		return errors.New("messaging: group ID is required")
	}
	return nil
}

// MessageHandler processes one message value. Returning nil commits it.
type MessageHandler func(ctx context.Context, value []byte) error

// messageReader is the part of *kafka.Reader the consumer uses
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Stats() kafka.ReaderStats
	Close() error
}

// Consumer reads the ingestion topic in a consumer group
type Consumer struct {
	reader  messageReader
	config  ConsumerConfig
	logger  *zap.Logger
	handler MessageHandler

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running bool
	mu      sync.Mutex

	// fetchRetryDelay paces FetchMessage retries after broker errors
	fetchRetryDelay time.Duration
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(config ConsumerConfig, logger *zap.Logger) (*Consumer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.Brokers,
		Topic:          config.Topic,
		GroupID:        config.GroupID,
		MinBytes:       config.MinBytes,
		MaxBytes:       config.MaxBytes,
		MaxWait:        config.MaxWait,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
	return newConsumer(reader, config, logger), nil
}

func newConsumer(reader messageReader, config ConsumerConfig, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader:          reader,
		config:          config,
		logger:          logger,
		fetchRetryDelay: time.Second,
	}
}

// Start begins consuming messages in the background
func (c *Consumer) Start(ctx context.Context, handler MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errors.New("messaging: consumer is already running")
	}
	c.running = true
	c.handler = handler

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.Info("Kafka consumer started",
		zap.String("topic", c.config.Topic),
		zap.String("group_id", c.config.GroupID),
	)
	return nil
}

// Stop stops fetching, waits for the in-flight message and closes the reader
func (c *Consumer) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("messaging: failed to close reader: %w", err)
	}
	c.logger.Info("Kafka consumer stopped")
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Failed to fetch message", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.fetchRetryDelay):
			}
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			// not committed; the group redelivers it after a restart
			c.logger.Warn("Message left uncommitted",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("Failed to commit message",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Message handler panicked",
				zap.Int64("offset", msg.Offset),
				zap.Any("panic", r),
			)
			err = nil
		}
	}()
	return c.handler(ctx, msg.Value)
}

// Stats returns reader statistics
func (c *Consumer) Stats() kafka.ReaderStats {
	return c.reader.Stats()
}

// Lag returns the current consumer lag
func (c *Consumer) Lag() int64 {
	return c.reader.Stats().Lag
}
