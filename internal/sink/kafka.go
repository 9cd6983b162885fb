package sink

import (
	"context"
	"time"

	"alertbridge/internal/signal"

	"github.com/pkg/errors"
	kafka "github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the mirror uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka mirrors signals onto a topic, keyed by symbol.
type Kafka struct {
	topic  string
	writer messageWriter
}

func NewKafka(brokers []string, topic string) *Kafka {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		AllowAutoTopicCreation: false,
	}
	return &Kafka{topic: topic, writer: w}
}

func (k *Kafka) Name() string { return "kafka:" + k.topic }

func (k *Kafka) Send(ctx context.Context, sig signal.Signal) error {
	value, err := sig.Redacted().Encode()
	if err != nil {
		return errors.Wrap(err, "encode signal")
	}
	msg := kafka.Message{
		Key:   []byte(sig.Symbol),
		Value: value,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "signal-id", Value: []byte(sig.ID)},
			{Key: "action", Value: []byte(sig.Action)},
			{Key: "source", Value: []byte(sig.Source)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "kafka write %s", k.topic)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
