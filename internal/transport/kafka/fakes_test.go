package kafka

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/segmentio/kafka-go"
)

// fakeBroker раскладывает записанные сообщения по топикам
type fakeBroker struct {
	mu     sync.Mutex
	topics map[string]chan kafka.Message
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{topics: make(map[string]chan kafka.Message)}
}

func (b *fakeBroker) topic(name string) chan kafka.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.topics[name]
	if !ok {
		ch = make(chan kafka.Message, 64)
		b.topics[name] = ch
	}
	return ch
}

func (b *fakeBroker) writer() *fakeWriter {
	return &fakeWriter{broker: b}
}

func (b *fakeBroker) reader(topic string) *fakeReader {
	return &fakeReader{messages: b.topic(topic), closed: make(chan struct{})}
}

type fakeWriter struct {
	broker *fakeBroker
	err    error
	// failFirst первых вызовов завершаются errBrokerDown
	failFirst int

	mu      sync.Mutex
	written []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.mu.Lock()
	if w.failFirst > 0 {
		w.failFirst--
		w.mu.Unlock()
		return errBrokerDown
	}
	w.written = append(w.written, msgs...)
	w.mu.Unlock()

	if w.broker == nil {
		return nil
	}
	for _, m := range msgs {
		w.broker.topic(m.Topic) <- m
	}
	return nil
}

func (w *fakeWriter) messages() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.written...)
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	messages chan kafka.Message
	closed   chan struct{}
	once     sync.Once

	mu        sync.Mutex
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.messages:
		return m, nil
	case <-r.closed:
		return kafka.Message{}, io.EOF
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	return r.FetchMessage(ctx)
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func (r *fakeReader) committedMessages() []kafka.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]kafka.Message(nil), r.committed...)
}

func (r *fakeReader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

var errBrokerDown = errors.New("broker down")
