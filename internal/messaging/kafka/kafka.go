package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nikolayk812/notemarket/internal/port"
	kafkaGo "github.com/segmentio/kafka-go"
)

type Publisher struct {
	writer      *kafkaGo.Writer
	topicPrefix string
}

var _ port.EventPublisher = (*Publisher)(nil)

// NewPublisher creates one writer shared by all topics; the topic is set per message.
func NewPublisher(brokers []string, topicPrefix string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("brokers are empty")
	}

	return &Publisher{
		writer: &kafkaGo.Writer{
			Addr:                   kafkaGo.TCP(brokers...),
			Balancer:               &kafkaGo.Hash{},
			RequiredAcks:           kafkaGo.RequireAll,
			AllowAutoTopicCreation: true,
			WriteTimeout:           10 * time.Second,
			// WriteMessages blocks until the batch flushes; the 1s default would stall every webhook.
			BatchTimeout:           10 * time.Millisecond,
		},
		topicPrefix: topicPrefix,
	}, nil
}

func (p *Publisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafkaGo.Message{
		Topic: p.topicPrefix + topic,
		Key:   []byte(key),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("writer.WriteMessages[%s]: %w", topic, err)
	}

	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
