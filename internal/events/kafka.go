package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaBroker maps an exchange to a topic and a routing key to the message key.
// The routing key is also carried in a header so consumers can filter by pattern.
type KafkaBroker struct {
	writer messageWriter
}

func NewKafkaBroker(brokers []string) *KafkaBroker {
	return &KafkaBroker{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}}
}

func (k *KafkaBroker) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	return k.writer.WriteMessages(ctx, kafka.Message{
		Topic: exchange,
		Key:   []byte(routingKey),
		Value: body,
		Headers: []kafka.Header{
			{Key: "routing_key", Value: []byte(routingKey)},
			{Key: "content_type", Value: []byte("application/json")},
		},
		Time: time.Now().UTC(),
	})
}

func (k *KafkaBroker) Close() error {
	return k.writer.Close()
}
