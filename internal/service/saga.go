package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	sagaCreateOrder = "create_order"
	sagaCancelOrder = "cancel_order"
)

// Step — шаг саги
type Step string

const (
	StepValidateCustomer   Step = "validate_customer"
	StepValidateBook       Step = "validate_book"
	StepCheckStock         Step = "check_stock"
	StepPersistOrder       Step = "persist_order"
	StepEmitStockDecrement Step = "emit_stock_decrement"

	StepLookupOrder     Step = "lookup_order"
	StepDeleteOrder     Step = "delete_order"
	StepCompensateStock Step = "compensate_stock"
	StepRestoreOrder    Step = "restore_order"
)

type StepStatus string

const (
	StepCompleted   StepStatus = "completed"
	StepFailed      StepStatus = "failed"
	StepCompensated StepStatus = "compensated"
)

type StepRecord struct {
	Step   Step
	Status StepStatus
	Err    error
}

// SagaRun — запись одного прогона саги, живёт только в памяти
// попадает в лог и в спаны, на диск не пишется
type SagaRun struct {
	Saga    string
	OrderID string
	Steps   []StepRecord

	started time.Time
	tracer  trace.Tracer
}

func newSagaRun(saga, orderID string, tracer trace.Tracer) *SagaRun {
	return &SagaRun{
		Saga:    saga,
		OrderID: orderID,
		started: time.Now(),
		tracer:  tracer,
	}
}

// step выполняет fn в собственном спане и записывает результат
func (r *SagaRun) step(ctx context.Context, step Step, fn func(ctx context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, "saga."+r.Saga+"."+string(step),
		trace.WithAttributes(attribute.String("order.id", r.OrderID)),
	)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(step)+" failed")
		r.Steps = append(r.Steps, StepRecord{Step: step, Status: StepFailed, Err: err})
		return err
	}

	r.Steps = append(r.Steps, StepRecord{Step: step, Status: StepCompleted})
	return nil
}

func (r *SagaRun) markCompensated(step Step) {
	for i := range r.Steps {
		if r.Steps[i].Step == step && r.Steps[i].Status == StepCompleted {
			r.Steps[i].Status = StepCompensated
		}
	}
}

// LogValue печатает прогон компактно: validate_customer=completed,check_stock=failed
func (r *SagaRun) LogValue() slog.Value {
	parts := make([]string, 0, len(r.Steps))
	for _, rec := range r.Steps {
		parts = append(parts, string(rec.Step)+"="+string(rec.Status))
	}
	return slog.GroupValue(
		slog.String("saga", r.Saga),
		slog.String("steps", strings.Join(parts, ",")),
		slog.Duration("elapsed", time.Since(r.started)),
	)
}
