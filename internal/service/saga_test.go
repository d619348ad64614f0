package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestSagaRun_RecordsSteps(t *testing.T) {
	run := newSagaRun(sagaCancelOrder, "o-1", noop.NewTracerProvider().Tracer("test"))
	ctx := context.Background()
	stockErr := errors.New("no reply")

	require.NoError(t, run.step(ctx, StepLookupOrder, func(context.Context) error { return nil }))
	require.NoError(t, run.step(ctx, StepDeleteOrder, func(context.Context) error { return nil }))
	assert.ErrorIs(t, run.step(ctx, StepCompensateStock, func(context.Context) error { return stockErr }), stockErr)
	require.NoError(t, run.step(ctx, StepRestoreOrder, func(context.Context) error { return nil }))
	run.markCompensated(StepDeleteOrder)

	want := []StepRecord{
		{Step: StepLookupOrder, Status: StepCompleted},
		{Step: StepDeleteOrder, Status: StepCompensated},
		{Step: StepCompensateStock, Status: StepFailed, Err: stockErr},
		{Step: StepRestoreOrder, Status: StepCompleted},
	}
	assert.Equal(t, want, run.Steps)

	// failed шаг компенсированным не становится
	run.markCompensated(StepCompensateStock)
	assert.Equal(t, StepFailed, run.Steps[2].Status)

	steps := run.LogValue().Group()
	require.Len(t, steps, 3)
	assert.Equal(t, "cancel_order", steps[0].Value.String())
	assert.Equal(t,
		"lookup_order=completed,delete_order=compensated,compensate_stock=failed,restore_order=completed",
		steps[1].Value.String(),
	)
}
