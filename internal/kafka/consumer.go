// Package kafka wraps the segmentio/kafka-go reader the projector consumes.
package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/jmehdipour/clipgate/internal/config"
	"github.com/segmentio/kafka-go"
)

// Consumer is a thin wrapper around segmentio/kafka-go Reader with explicit
// commits.
type Consumer struct {
	r *kafka.Reader
}

func NewConsumer(c config.KafkaConfig) (*Consumer, error) {
	if len(c.Brokers) == 0 || c.Topic == "" {
		return nil, errors.New("kafka: brokers and topic are required")
	}
	groupID := c.GroupID
	if groupID == "" {
		groupID = "clipgate-projector"
	}
	min := c.MinBytes
	if min <= 0 {
		min = 1 << 10 // 1KB
	}
	max := c.MaxBytes
	if max <= 0 {
		max = 10 << 20 // 10MB
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.Brokers,
		GroupID:  groupID,
		Topic:    c.Topic,
		MinBytes: min,
		MaxBytes: max,
		// 0 commits synchronously on CommitMessages
		CommitInterval: time.Duration(c.CommitInterval) * time.Millisecond,
		MaxWait:        250 * time.Millisecond,
		StartOffset:    kafka.FirstOffset,
	})

	return &Consumer{r: r}, nil
}

type Message = kafka.Message

func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	return c.r.FetchMessage(ctx)
}

func (c *Consumer) Commit(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return c.r.CommitMessages(ctx, msgs...)
}

func (c *Consumer) Close() error { return c.r.Close() }
