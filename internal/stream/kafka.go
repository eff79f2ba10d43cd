// Package stream publishes ledger entries to Kafka and reads them back.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/banksim-dev/banksim/internal/model"
)

// MessageWriter is the part of *kafka.Writer the log needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaLog is a transaction log that publishes each entry as JSON. Messages
// are keyed by account ID so one account's entries land on one partition
// and keep their order.
type KafkaLog struct {
	w MessageWriter
}

// NewWriter returns a kafka writer for topic with hash partitioning by key.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// NewKafkaLog wraps a writer.
func NewKafkaLog(w MessageWriter) *KafkaLog {
	return &KafkaLog{w: w}
}

// Append publishes one entry and waits for the broker acknowledgement.
func (l *KafkaLog) Append(ctx context.Context, txn model.Transaction) error {
	value, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("marshaling entry %s: %w", txn.ID, err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.Itoa(txn.AccountID)),
		Value: value,
		Time:  txn.Timestamp,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(txn.Type)},
		},
	}
	if err := l.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing entry %s: %w", txn.ID, err)
	}
	return nil
}

// Close closes the underlying writer, flushing pending messages.
func (l *KafkaLog) Close() error {
	return l.w.Close()
}

// Decode parses a published message back into an entry.
func Decode(msg kafka.Message) (model.Transaction, error) {
	var txn model.Transaction
	if err := json.Unmarshal(msg.Value, &txn); err != nil {
		return model.Transaction{}, fmt.Errorf("decoding entry: %w", err)
	}
	return txn, nil
}

// MessageReader is the part of *kafka.Reader a consumer needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// NewReader returns a consumer-group reader for topic. A group with no
// committed offset starts from the oldest message.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:         brokers,
		GroupID:         groupID,
		Topic:           topic,
		StartOffset:     kafka.FirstOffset,
		MinBytes:        1,
		MaxBytes:        10e6,
		MaxWait:         time.Second,
		ReadLagInterval: -1,
	})
}

// Consume reads entries until ctx is done and passes each to fn. Messages
// that do not decode are logged and skipped. It returns nil once ctx is
// canceled, and the first error from the reader or from fn otherwise.
func Consume(ctx context.Context, r MessageReader, logger zerolog.Logger, fn func(model.Transaction) error) error {
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading message: %w", err)
		}

		txn, err := Decode(msg)
		if err != nil {
			logger.Warn().Err(err).Int("partition", msg.Partition).Int64("offset", msg.Offset).Msg("skipping message")
			continue
		}
		if err := fn(txn); err != nil {
			return err
		}
	}
}
