package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// RequestHandler обрабатывает запрос и возвращает значение для ответа
// ошибка, обёрнутая в ErrNotFound, превращается в статус not_found
type RequestHandler func(ctx context.Context, payload json.RawMessage) (any, error)

// EventHandler обрабатывает событие, ответа никто не ждёт
type EventHandler func(ctx context.Context, payload json.RawMessage) error

// Router связывает имена операций с обработчиками
type Router struct {
	mu       sync.RWMutex
	requests map[string]RequestHandler
	events   map[string][]EventHandler
}

func NewRouter() *Router {
	return &Router{
		requests: make(map[string]RequestHandler),
		events:   make(map[string][]EventHandler),
	}
}

// Handle привязывает обработчик запросов к имени
// на одно имя допускается ровно один обработчик, повторная привязка паникует
func (r *Router) Handle(pattern string, h RequestHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.requests[pattern]; exists {
		panic(fmt.Sprintf("channel: request handler for %q already bound", pattern))
	}
	r.requests[pattern] = h
}

// On подписывает обработчик на событие, подписчиков может быть сколько угодно
func (r *Router) On(pattern string, h EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[pattern] = append(r.events[pattern], h)
}

func (r *Router) requestHandler(pattern string) (RequestHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.requests[pattern]
	return h, ok
}

func (r *Router) eventHandlers(pattern string) []EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// копия, чтобы On во время доставки не гонялся с чтением
	return append([]EventHandler(nil), r.events[pattern]...)
}

// Dispatch выполняет запрос и собирает ответ
func (r *Router) Dispatch(ctx context.Context, msg Message) Reply {
	h, ok := r.requestHandler(msg.Pattern)
	if !ok {
		return Reply{
			CorrelationID: msg.CorrelationID,
			Status:        StatusRejected,
			Error:         fmt.Sprintf("no handler bound for %q", msg.Pattern),
		}
	}

	result, err := h(ctx, msg.Payload)
	return replyFromResult(msg.CorrelationID, result, err)
}

// Deliver передаёт событие всем подписчикам по очереди
// возвращает объединённые ошибки подписчиков, их видит только транспорт
func (r *Router) Deliver(ctx context.Context, msg Message) error {
	var errs []error
	for _, h := range r.eventHandlers(msg.Pattern) {
		if err := h(ctx, msg.Payload); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", msg.Pattern, err))
		}
	}
	return errors.Join(errs...)
}

// HandleFunc адаптирует типизированную функцию к RequestHandler
func HandleFunc[In, Out any](fn func(ctx context.Context, in In) (Out, error)) RequestHandler {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		var in In
		if err := json.Unmarshal(payload, &in); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return fn(ctx, in)
	}
}

// EventFunc адаптирует типизированную функцию к EventHandler
func EventFunc[In any](fn func(ctx context.Context, in In) error) EventHandler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var in In
		if err := json.Unmarshal(payload, &in); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return fn(ctx, in)
	}
}
