package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/asquebay/bookstore-orders/internal/channel"
	"github.com/asquebay/bookstore-orders/internal/config"
)

// ErrClientClosed возвращается запросам, пришедшим после начала Shutdown;
// такой запрос в брокер не уходил
var ErrClientClosed = errors.New("kafka: client is shut down")

// Client — сторона оркестратора: отправляет запросы и события в очереди сервисов
// и ждёт ответы в собственном топике
type Client struct {
	requests   messageWriter
	events     messageWriter
	replies    []replyReader
	replyTopic string
	timeout    time.Duration
	log        *slog.Logger

	mu          sync.Mutex
	pending     map[string]chan channel.Reply
	closing     bool
	stopReplies context.CancelFunc
	inflight    sync.WaitGroup
}

// NewClient создаёт клиента поверх брокеров из конфига
// ответы читаются напрямую из партиций, без consumer group: позиция каждой партиции
// фиксируется здесь же, до первого запроса, поэтому ранний ответ не теряется
// и после перезапуска на брокере не остаётся осиротевших групп
func NewClient(ctx context.Context, cfg config.Kafka, timeout time.Duration, log *slog.Logger) (*Client, error) {
	const op = "kafka.NewClient"

	log = log.With(slog.String("component", "kafka_client"))

	replies, err := openReplyReaders(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	requests := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}

	// события уходят асинхронно, ошибка доставки видна только в логе
	events := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Error("failed to deliver events", slog.Int("count", len(msgs)), slog.String("error", err.Error()))
			}
		},
	}

	log.Info("reply readers ready", slog.String("topic", cfg.ReplyTopic), slog.Int("partitions", len(replies)))
	return newClient(requests, events, replies, cfg.ReplyTopic, timeout, log), nil
}

// openReplyReaders открывает по ридеру на каждую партицию топика ответов
// и ставит его на текущий конец партиции
func openReplyReaders(ctx context.Context, cfg config.Kafka) ([]replyReader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Brokers[0], err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(cfg.ReplyTopic)
	if err != nil {
		return nil, fmt.Errorf("read partitions of %s: %w", cfg.ReplyTopic, err)
	}
	if len(partitions) == 0 {
		return nil, fmt.Errorf("topic %s has no partitions", cfg.ReplyTopic)
	}

	readers := make([]replyReader, 0, len(partitions))
	closeAll := func() {
		for _, r := range readers {
			_ = r.Close()
		}
	}

	for _, p := range partitions {
		last, err := lastOffset(ctx, p)
		if err != nil {
			closeAll()
			return nil, err
		}

		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:   cfg.Brokers,
			Topic:     cfg.ReplyTopic,
			Partition: p.ID,
			MaxWait:   100 * time.Millisecond,
		})
		if err := r.SetOffset(last); err != nil {
			_ = r.Close()
			closeAll()
			return nil, fmt.Errorf("set offset of %s/%d: %w", cfg.ReplyTopic, p.ID, err)
		}
		readers = append(readers, r)
	}
	return readers, nil
}

func lastOffset(ctx context.Context, p kafka.Partition) (int64, error) {
	addr := net.JoinHostPort(p.Leader.Host, strconv.Itoa(p.Leader.Port))
	leader, err := kafka.DialLeader(ctx, "tcp", addr, p.Topic, p.ID)
	if err != nil {
		return 0, fmt.Errorf("dial leader of %s/%d: %w", p.Topic, p.ID, err)
	}
	defer leader.Close()

	last, err := leader.ReadLastOffset()
	if err != nil {
		return 0, fmt.Errorf("read last offset of %s/%d: %w", p.Topic, p.ID, err)
	}
	return last, nil
}

func newClient(requests, events messageWriter, replies []replyReader, replyTopic string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		requests:   requests,
		events:     events,
		replies:    replies,
		replyTopic: replyTopic,
		timeout:    timeout,
		log:        log,
		pending:    make(map[string]chan channel.Reply),
	}
}

// Queue возвращает соединение с одной очередью, например book_queue
func (c *Client) Queue(topic string) channel.Conn {
	return &queueConn{client: c, topic: topic}
}

type queueConn struct {
	client *Client
	topic  string
}

func (q *queueConn) Request(ctx context.Context, pattern string, payload, reply any) error {
	return q.client.request(ctx, q.topic, pattern, payload, reply)
}

func (q *queueConn) Publish(ctx context.Context, pattern string, payload any) error {
	return q.client.publish(ctx, q.topic, pattern, payload)
}

func (c *Client) request(ctx context.Context, topic, pattern string, payload, reply any) error {
	msg, err := channel.NewRequest(pattern, payload)
	if err != nil {
		return err
	}
	msg.ReplyTo = c.replyTopic

	// ждём ответ, зарегистрировавшись до отправки, иначе быстрый ответ потеряется
	wait := make(chan channel.Reply, 1)
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", pattern, ErrClientClosed)
	}
	c.inflight.Add(1)
	c.pending[msg.CorrelationID] = wait
	c.mu.Unlock()
	defer c.inflight.Done()
	defer c.forget(msg.CorrelationID)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.requests.WriteMessages(ctx, encodeMessage(ctx, topic, msg)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", pattern, channel.ErrTimeout)
		}
		return fmt.Errorf("%s: write request: %w", pattern, err)
	}

	select {
	case r := <-wait:
		return r.Decode(pattern, reply)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", pattern, channel.ErrTimeout)
		}
		return fmt.Errorf("%s: %w", pattern, ctx.Err())
	}
}

func (c *Client) publish(ctx context.Context, topic, pattern string, payload any) error {
	msg, err := channel.NewEvent(pattern, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	closing := c.closing
	c.mu.Unlock()
	if closing {
		return fmt.Errorf("%s: %w", pattern, ErrClientClosed)
	}

	if err := c.events.WriteMessages(ctx, encodeMessage(ctx, topic, msg)); err != nil {
		return fmt.Errorf("%s: write event: %w", pattern, err)
	}
	return nil
}

func (c *Client) forget(correlationID string) {
	c.mu.Lock()
	delete(c.pending, correlationID)
	c.mu.Unlock()
}

// resolve отдаёт ответ ожидающему запросу; опоздавшие ответы отбрасываются
func (c *Client) resolve(reply channel.Reply) bool {
	c.mu.Lock()
	wait, ok := c.pending[reply.CorrelationID]
	delete(c.pending, reply.CorrelationID)
	c.mu.Unlock()

	if !ok {
		return false
	}
	wait <- reply
	return true
}

// Run читает ответы из всех партиций, пока не отменят контекст или не вызовут Shutdown
// эта функция блокирующая, поэтому она запускается в отдельной горутине
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.stopReplies = cancel
	c.mu.Unlock()

	c.log.Info("reply listener started", slog.String("topic", c.replyTopic))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range c.replies {
		log := c.log.With(slog.String("topic", c.replyTopic), slog.Int("reader", i))
		g.Go(func() error {
			c.readReplies(gctx, r, log)
			return nil
		})
	}
	return g.Wait()
}

func (c *Client) readReplies(ctx context.Context, r replyReader, log *slog.Logger) {
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				log.Info("reply reader closed")
				return
			}
			log.Error("failed to read reply", slog.String("error", err.Error()))
			continue
		}

		reply, err := decodeReply(msg)
		if err != nil {
			log.Warn("malformed reply, skipping", slog.String("error", err.Error()))
			continue
		}
		if !c.resolve(reply) {
			log.Warn("reply without a waiting request, dropping",
				slog.String("correlation_id", reply.CorrelationID),
			)
		}
	}
}

// Shutdown перестаёт принимать запросы, ждёт ответы на уже отправленные
// и только потом останавливает Run и закрывает клиента
// если ctx истёк раньше, оставшиеся запросы получат таймаут
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		c.mu.Lock()
		left := len(c.pending)
		c.mu.Unlock()
		c.log.Warn("shutdown deadline reached with requests in flight", slog.Int("pending", left))
	}

	c.mu.Lock()
	stop := c.stopReplies
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
	return c.Close()
}

// Close закрывает писателей и ридеры ответов
func (c *Client) Close() error {
	c.log.Info("closing kafka client")

	errs := []error{c.requests.Close(), c.events.Close()}
	for _, r := range c.replies {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}
