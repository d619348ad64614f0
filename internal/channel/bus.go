package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Bus — in-process транспорт поверх Router
// payload и ответы проходят через JSON так же, как в Kafka,
// поэтому обработчики не отличают один транспорт от другого
type Bus struct {
	router  *Router
	timeout time.Duration
	log     *slog.Logger

	// события в полёте, нужны для Wait при остановке и в тестах
	inflight sync.WaitGroup
}

func NewBus(router *Router, timeout time.Duration, log *slog.Logger) *Bus {
	return &Bus{
		router:  router,
		timeout: timeout,
		log:     log.With(slog.String("component", "channel_bus")),
	}
}

// Request выполняет обработчик в отдельной горутине и ждёт его не дольше таймаута
func (b *Bus) Request(ctx context.Context, pattern string, payload, reply any) error {
	msg, err := NewRequest(pattern, payload)
	if err != nil {
		return err
	}

	if _, ok := b.router.requestHandler(pattern); !ok {
		return fmt.Errorf("%s: %w", pattern, ErrNoHandler)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	// буфер на один ответ, чтобы опоздавший обработчик не повис навсегда
	done := make(chan Reply, 1)
	go func() {
		done <- b.router.Dispatch(ctx, msg)
	}()

	select {
	case r := <-done:
		if r.CorrelationID != msg.CorrelationID {
			return fmt.Errorf("%s: %w: correlation id mismatch", pattern, ErrRejected)
		}
		return r.Decode(pattern, reply)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", pattern, ErrTimeout)
		}
		return fmt.Errorf("%s: %w", pattern, ctx.Err())
	}
}

// Publish отдаёт событие подписчикам и сразу возвращает управление
// результат обработки издателю не виден
func (b *Bus) Publish(ctx context.Context, pattern string, payload any) error {
	msg, err := NewEvent(pattern, payload)
	if err != nil {
		return err
	}

	handlers := b.router.eventHandlers(pattern)
	if len(handlers) == 0 {
		b.log.Debug("event has no subscribers", slog.String("pattern", pattern))
		return nil
	}

	// обработка не должна зависеть от жизни контекста издателя
	eventCtx := context.WithoutCancel(ctx)
	for _, h := range handlers {
		b.inflight.Add(1)
		go func(h EventHandler) {
			defer b.inflight.Done()
			if err := h(eventCtx, msg.Payload); err != nil {
				b.log.Error("event handler failed",
					slog.String("pattern", pattern),
					slog.String("error", err.Error()),
				)
			}
		}(h)
	}
	return nil
}

// Wait дожидается завершения всех опубликованных событий
func (b *Bus) Wait() {
	b.inflight.Wait()
}
