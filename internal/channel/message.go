// Package channel описывает канал сообщений между оркестратором заказов
// и внешними сервисами: запрос/ответ с таймаутом и события без ответа.
// Транспорт (in-process шина или Kafka) выбирается при сборке приложения.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Conn — способность вызвать именованную удалённую операцию
// оркестратор получает её через конструктор, а не из глобального реестра
type Conn interface {
	// Request отправляет запрос и ждёт ответ не дольше настроенного таймаута
	Request(ctx context.Context, pattern string, payload, reply any) error
	// Publish передаёт событие в канал и не ждёт обработки
	Publish(ctx context.Context, pattern string, payload any) error
}

type Kind string

const (
	KindRequest Kind = "request"
	KindEvent   Kind = "event"
)

type Status string

const (
	StatusOK       Status = "ok"
	StatusNotFound Status = "not_found"
	StatusRejected Status = "rejected"
)

var (
	ErrTimeout   = errors.New("channel: no reply within timeout")
	ErrRejected  = errors.New("channel: request rejected")
	ErrNotFound  = errors.New("channel: not found")
	ErrNoHandler = fmt.Errorf("%w: no handler bound", ErrRejected)
)

// Message — конверт запроса или события
type Message struct {
	Kind          Kind            `json:"kind"`
	Pattern       string          `json:"pattern"`
	CorrelationID string          `json:"correlationId,omitempty"`
	ReplyTo       string          `json:"replyTo,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewRequest сериализует payload и присваивает запросу correlation id
func NewRequest(pattern string, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("channel: marshal %s payload: %w", pattern, err)
	}
	return Message{
		Kind:          KindRequest,
		Pattern:       pattern,
		CorrelationID: uuid.NewString(),
		Payload:       raw,
	}, nil
}

// NewEvent сериализует payload события
func NewEvent(pattern string, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("channel: marshal %s payload: %w", pattern, err)
	}
	return Message{Kind: KindEvent, Pattern: pattern, Payload: raw}, nil
}

// Reply — ответ обработчика, связанный с запросом через CorrelationID
type Reply struct {
	CorrelationID string          `json:"correlationId"`
	Status        Status          `json:"status"`
	Body          json.RawMessage `json:"body,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// Decode раскладывает тело ответа в out
// неуспешный статус превращается в RemoteError
func (r Reply) Decode(pattern string, out any) error {
	switch r.Status {
	case StatusOK:
	case StatusNotFound:
		return &RemoteError{Pattern: pattern, Message: r.Error, kind: ErrNotFound}
	default:
		return &RemoteError{Pattern: pattern, Message: r.Error, kind: ErrRejected}
	}

	if out == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("channel: decode %s reply: %w", pattern, err)
	}
	return nil
}

// RemoteError — ошибка, которую вернул обработчик на другой стороне
type RemoteError struct {
	Pattern string
	Message string
	kind    error
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Pattern, e.kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Pattern, e.kind, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.kind }

// replyFromResult собирает ответ из результата обработчика
func replyFromResult(correlationID string, result any, err error) Reply {
	reply := Reply{CorrelationID: correlationID, Status: StatusOK}
	if err != nil {
		reply.Status = StatusRejected
		if errors.Is(err, ErrNotFound) {
			reply.Status = StatusNotFound
		}
		reply.Error = err.Error()
		return reply
	}

	body, err := json.Marshal(result)
	if err != nil {
		reply.Status = StatusRejected
		reply.Error = fmt.Sprintf("marshal reply: %v", err)
		return reply
	}
	reply.Body = body
	return reply
}
