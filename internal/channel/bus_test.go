package channel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoIn struct {
	Value string `json:"value"`
}

type echoOut struct {
	Echo string `json:"echo"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBus(timeout time.Duration) (*Bus, *Router) {
	router := NewRouter()
	return NewBus(router, timeout, discardLogger()), router
}

func TestBus_RequestReply(t *testing.T) {
	bus, router := newTestBus(time.Second)
	router.Handle("echo", HandleFunc(func(_ context.Context, in echoIn) (echoOut, error) {
		return echoOut{Echo: in.Value}, nil
	}))

	var out echoOut
	err := bus.Request(context.Background(), "echo", echoIn{Value: "hi"}, &out)

	require.NoError(t, err)
	assert.Equal(t, "hi", out.Echo)
}

func TestBus_Timeout(t *testing.T) {
	bus, router := newTestBus(20 * time.Millisecond)
	router.Handle("slow", func(ctx context.Context, _ json.RawMessage) (any, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return true, nil
	})

	err := bus.Request(context.Background(), "slow", nil, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrRejected)
}

func TestBus_Rejected(t *testing.T) {
	bus, router := newTestBus(time.Second)
	router.Handle("fail", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("boom")
	})

	err := bus.Request(context.Background(), "fail", nil, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "boom")

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "fail", remote.Pattern)
}

func TestBus_NotFoundIsDistinctFromRejected(t *testing.T) {
	bus, router := newTestBus(time.Second)
	router.Handle("lookup", func(context.Context, json.RawMessage) (any, error) {
		return nil, ErrNotFound
	})

	err := bus.Request(context.Background(), "lookup", nil, nil)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrRejected)
}

func TestBus_NoHandler(t *testing.T) {
	bus, _ := newTestBus(time.Second)

	err := bus.Request(context.Background(), "missing", nil, nil)

	assert.ErrorIs(t, err, ErrNoHandler)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestBus_PublishDoesNotBlock(t *testing.T) {
	bus, router := newTestBus(time.Second)

	release := make(chan struct{})
	var handled atomic.Int32
	for i := 0; i < 2; i++ {
		router.On("evt", func(context.Context, json.RawMessage) error {
			<-release
			handled.Add(1)
			return nil
		})
	}

	err := bus.Publish(context.Background(), "evt", echoIn{Value: "x"})
	require.NoError(t, err)
	assert.Equal(t, int32(0), handled.Load())

	close(release)
	bus.Wait()
	assert.Equal(t, int32(2), handled.Load())
}

func TestBus_PublishSurvivesCancelledContext(t *testing.T) {
	bus, router := newTestBus(time.Second)

	var got atomic.Value
	router.On("evt", EventFunc(func(ctx context.Context, in echoIn) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		got.Store(in.Value)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bus.Publish(ctx, "evt", echoIn{Value: "kept"}))
	cancel()
	bus.Wait()

	assert.Equal(t, "kept", got.Load())
}

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	bus, _ := newTestBus(time.Second)
	assert.NoError(t, bus.Publish(context.Background(), "nobody", nil))
}

func TestRouter_HandleTwicePanics(t *testing.T) {
	router := NewRouter()
	h := func(context.Context, json.RawMessage) (any, error) { return nil, nil }
	router.Handle("x", h)

	assert.Panics(t, func() { router.Handle("x", h) })
}

func TestRouter_DispatchUnknownPattern(t *testing.T) {
	router := NewRouter()

	reply := router.Dispatch(context.Background(), Message{Kind: KindRequest, Pattern: "nope", CorrelationID: "c-1"})

	assert.Equal(t, "c-1", reply.CorrelationID)
	assert.Equal(t, StatusRejected, reply.Status)
}

func TestRouter_DeliverJoinsErrors(t *testing.T) {
	router := NewRouter()
	router.On("evt", func(context.Context, json.RawMessage) error { return errors.New("first") })
	router.On("evt", func(context.Context, json.RawMessage) error { return nil })

	err := router.Deliver(context.Background(), Message{Kind: KindEvent, Pattern: "evt"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "first")
}
