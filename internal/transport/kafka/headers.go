package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/asquebay/bookstore-orders/internal/channel"
)

// заголовки конверта; payload лежит в Value как есть
const (
	headerKind          = "kind"
	headerPattern       = "pattern"
	headerCorrelationID = "correlation_id"
	headerReplyTo       = "reply_to"
	headerStatus        = "status"
)

// messageWriter — то, что нужно транспорту от *kafka.Writer
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// messageReader — то, что нужно транспорту от *kafka.Reader
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// replyReader — ридер одной партиции топика ответов, без группы и без коммитов
type replyReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

func injectTrace(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}

func extractTrace(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := propagation.MapCarrier{}
	for _, h := range headers {
		carrier[h.Key] = string(h.Value)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// encodeMessage кладёт запрос или событие в сообщение для топика очереди
func encodeMessage(ctx context.Context, topic string, msg channel.Message) kafka.Message {
	headers := []kafka.Header{
		{Key: headerKind, Value: []byte(msg.Kind)},
		{Key: headerPattern, Value: []byte(msg.Pattern)},
	}
	if msg.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: headerCorrelationID, Value: []byte(msg.CorrelationID)})
	}
	if msg.ReplyTo != "" {
		headers = append(headers, kafka.Header{Key: headerReplyTo, Value: []byte(msg.ReplyTo)})
	}

	return kafka.Message{
		Topic:   topic,
		Key:     []byte(msg.Pattern),
		Value:   msg.Payload,
		Headers: injectTrace(ctx, headers),
	}
}

func decodeMessage(km kafka.Message) channel.Message {
	return channel.Message{
		Kind:          channel.Kind(headerValue(km.Headers, headerKind)),
		Pattern:       headerValue(km.Headers, headerPattern),
		CorrelationID: headerValue(km.Headers, headerCorrelationID),
		ReplyTo:       headerValue(km.Headers, headerReplyTo),
		Payload:       km.Value,
	}
}

// encodeReply сериализует ответ целиком: тело и текст ошибки идут вместе
func encodeReply(ctx context.Context, topic string, reply channel.Reply) (kafka.Message, error) {
	value, err := json.Marshal(reply)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal reply: %w", err)
	}

	headers := []kafka.Header{
		{Key: headerCorrelationID, Value: []byte(reply.CorrelationID)},
		{Key: headerStatus, Value: []byte(reply.Status)},
	}

	return kafka.Message{
		Topic:   topic,
		Key:     []byte(reply.CorrelationID),
		Value:   value,
		Headers: injectTrace(ctx, headers),
	}, nil
}

func decodeReply(km kafka.Message) (channel.Reply, error) {
	var reply channel.Reply
	if err := json.Unmarshal(km.Value, &reply); err != nil {
		return channel.Reply{}, fmt.Errorf("unmarshal reply: %w", err)
	}
	if reply.CorrelationID == "" {
		reply.CorrelationID = headerValue(km.Headers, headerCorrelationID)
	}
	return reply, nil
}
