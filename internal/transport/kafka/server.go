package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/asquebay/bookstore-orders/internal/channel"
)

const tracerName = "github.com/asquebay/bookstore-orders/internal/transport/kafka"

// Server — сторона внешнего сервиса: читает свою очередь и отвечает через Router
type Server struct {
	reader messageReader
	writer messageWriter
	router *channel.Router
	topic  string
	tracer trace.Tracer
	log    *slog.Logger
}

// NewServer создает сервер, читающий очередь topic в группе groupID
func NewServer(brokers []string, topic, groupID string, router *channel.Router, log *slog.Logger) *Server {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
	})
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newServer(reader, writer, router, topic, log)
}

func newServer(reader messageReader, writer messageWriter, router *channel.Router, topic string, log *slog.Logger) *Server {
	return &Server{
		reader: reader,
		writer: writer,
		router: router,
		topic:  topic,
		tracer: otel.Tracer(tracerName),
		log:    log.With(slog.String("component", "kafka_server"), slog.String("topic", topic)),
	}
}

// Run запускает цикл чтения сообщений из очереди
// эта функция блокирующая, поэтому она запускается в отдельной горутине
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("kafka server started")

	for {
		// FetchMessage блокирует до тех пор, пока не придет новое сообщение или не возникнет ошибка
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				s.log.Info("kafka reader closed")
				return nil
			}
			s.log.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}

		if err := s.handle(ctx, msg); err != nil {
			s.log.Error("failed to handle message",
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
			// offset не фиксируем, но ридер группы назад не откатывается: следующий commit
			// сдвинет offset дальше, и сообщение будет прочитано снова только после ребаланса
			// или перезапуска; до тех пор запросивший получит таймаут
			continue
		}

		// offset фиксируем только после обработки
		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			s.log.Error("failed to commit message", slog.String("error", err.Error()))
		}
	}
}

// handle обрабатывает одно сообщение
// ошибка возвращается, только если ответ не удалось записать; всё остальное пропускается
func (s *Server) handle(ctx context.Context, km kafka.Message) error {
	msg := decodeMessage(km)
	log := s.log.With(
		slog.String("kind", string(msg.Kind)),
		slog.String("pattern", msg.Pattern),
		slog.String("correlation_id", msg.CorrelationID),
	)

	ctx = extractTrace(ctx, km.Headers)
	ctx, span := s.tracer.Start(ctx, "handle."+msg.Pattern,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", s.topic),
			attribute.String("messaging.message.kind", string(msg.Kind)),
		),
	)
	defer span.End()

	switch msg.Kind {
	case channel.KindRequest:
		reply := s.router.Dispatch(ctx, msg)
		if reply.Status != channel.StatusOK {
			span.SetStatus(codes.Error, reply.Error)
			log.Info("request rejected", slog.String("status", string(reply.Status)), slog.String("error", reply.Error))
		}

		if msg.ReplyTo == "" {
			log.Warn("request without reply_to, reply dropped")
			return nil
		}
		out, err := encodeReply(ctx, msg.ReplyTo, reply)
		if err != nil {
			log.Error("failed to encode reply, skipping", slog.String("error", err.Error()))
			return nil
		}
		if err := s.writer.WriteMessages(ctx, out); err != nil {
			span.RecordError(err)
			return err
		}
		return nil

	case channel.KindEvent:
		// отказ обработчика события повтором не лечится, только логируем
		if err := s.router.Deliver(ctx, msg); err != nil {
			span.RecordError(err)
			log.Warn("event rejected", slog.String("error", err.Error()))
		}
		return nil

	default:
		log.Warn("message without a known kind, skipping")
		return nil
	}
}

// gracefull shutdown сервера
func (s *Server) Close() error {
	s.log.Info("closing kafka server")
	return errors.Join(s.reader.Close(), s.writer.Close())
}
