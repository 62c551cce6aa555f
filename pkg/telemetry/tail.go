package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/leadpop/funnelrelay/pkg/core"
)

// Handler receives each decoded dispatch record.
type Handler func(ctx context.Context, record core.DispatchRecord) error

// DecodeRecord reads a dispatch record from a published message.
func DecodeRecord(msg *message.Message) (core.DispatchRecord, error) {
	var record core.DispatchRecord
	if err := json.Unmarshal(msg.Payload, &record); err != nil {
		return record, fmt.Errorf("decode dispatch record %s: %w", msg.UUID, err)
	}
	if record.ID == "" {
		record.ID = msg.UUID
	}
	if record.RequestID == "" {
		record.RequestID = msg.Metadata.Get("request_id")
	}
	return record, nil
}

// Tail subscribes to topic and hands every record to handler until ctx is
// done. Undecodable messages are acked and skipped. A handler error nacks
// the message and stops the tail.
func Tail(ctx context.Context, sub message.Subscriber, topic string, handler Handler, logger *log.Logger) error {
	if logger == nil {
		logger = core.NewLogger("telemetry")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = core.DefaultTelemetryTopic
	}
	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			record, err := DecodeRecord(msg)
			if err != nil {
				logger.Printf("skip message err=%v", err)
				msg.Ack()
				continue
			}
			if err := handler(ctx, record); err != nil {
				msg.Nack()
				return err
			}
			msg.Ack()
		}
	}
}
