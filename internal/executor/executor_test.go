package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrange/orbcore/internal/domain"
)

func entryRequest(id string) domain.ExecutionRequest {
	return domain.ExecutionRequest{
		Intent: domain.Intent{
			ID:             id,
			Slot:           "s1",
			Kind:           domain.IntentEnter,
			Side:           domain.SideLong,
			Quantity:       1,
			ReferencePrice: 5000,
			StopLossPrice:  4990,
		},
		SubmittedAt: time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC),
	}
}

func TestPaperFillsEntriesAtReferencePrice(t *testing.T) {
	var got []domain.ExecutionResult
	p := NewPaper(func(res domain.ExecutionResult) error {
		got = append(got, res)
		return nil
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := entryRequest("abc")
	require.NoError(t, p.Dispatch(context.Background(), req))

	require.Len(t, got, 1)
	assert.Equal(t, "abc", got[0].IntentID)
	assert.Equal(t, "s1", got[0].Slot)
	assert.True(t, got[0].Filled)
	assert.Equal(t, 5000.0, got[0].FillPrice)
	assert.True(t, got[0].Timestamp.Equal(req.SubmittedAt))
}

func TestPaperIgnoresExits(t *testing.T) {
	delivered := 0
	p := NewPaper(func(domain.ExecutionResult) error {
		delivered++
		return nil
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := entryRequest("abc")
	req.Intent.Kind = domain.IntentExit
	require.NoError(t, p.Dispatch(context.Background(), req))
	assert.Zero(t, delivered)
}

func TestPaperPropagatesDeliveryFailure(t *testing.T) {
	p := NewPaper(func(domain.ExecutionResult) error {
		return domain.ErrQueueFull
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := p.Dispatch(context.Background(), entryRequest("abc"))
	assert.ErrorIs(t, err, domain.ErrQueueFull)
}

type stubBroker struct {
	execute func(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error)
}

func (b *stubBroker) Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error) {
	return b.execute(ctx, req)
}

func TestBridgeDeliversBrokerResult(t *testing.T) {
	results := make(chan domain.ExecutionResult, 1)
	broker := &stubBroker{execute: func(_ context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error) {
		return domain.ExecutionResult{
			IntentID:  req.Intent.ID,
			Slot:      req.Intent.Slot,
			Filled:    true,
			FillPrice: 5000.25,
		}, nil
	}}
	b := NewBridge(broker, func(res domain.ExecutionResult) error {
		results <- res
		return nil
	}, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, b.Dispatch(context.Background(), entryRequest("abc")))

	select {
	case res := <-results:
		assert.Equal(t, "abc", res.IntentID)
		assert.True(t, res.Filled)
		assert.Equal(t, 5000.25, res.FillPrice)
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
	}
}

func TestBridgeTimeoutComesBackAsNonFill(t *testing.T) {
	results := make(chan domain.ExecutionResult, 1)
	broker := &stubBroker{execute: func(ctx context.Context, _ domain.ExecutionRequest) (domain.ExecutionResult, error) {
		<-ctx.Done()
		return domain.ExecutionResult{}, ctx.Err()
	}}
	b := NewBridge(broker, func(res domain.ExecutionResult) error {
		results <- res
		return nil
	}, 20*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, b.Dispatch(context.Background(), entryRequest("abc")))

	select {
	case res := <-results:
		assert.False(t, res.Filled)
		assert.Equal(t, "abc", res.IntentID)
		assert.Equal(t, "s1", res.Slot)
		assert.Equal(t, domain.ErrExecutionTimeout.Error(), res.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
	}
}

func TestBridgeRetriesDeliveryWhileQueueFull(t *testing.T) {
	results := make(chan domain.ExecutionResult, 1)
	broker := &stubBroker{execute: func(_ context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error) {
		return domain.ExecutionResult{
			IntentID: req.Intent.ID,
			Slot:     req.Intent.Slot,
			Filled:   true,
		}, nil
	}}

	// The first two delivery attempts hit a full queue; the result must
	// still arrive once the queue drains, or its slot stays parked.
	attempts := 0
	b := NewBridge(broker, func(res domain.ExecutionResult) error {
		attempts++
		if attempts <= 2 {
			return domain.ErrQueueFull
		}
		results <- res
		return nil
	}, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, b.Dispatch(context.Background(), entryRequest("abc")))

	select {
	case res := <-results:
		assert.Equal(t, "abc", res.IntentID)
		assert.True(t, res.Filled)
		assert.Equal(t, 3, attempts)
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
	}
}

func TestBridgeBrokerErrorComesBackAsNonFill(t *testing.T) {
	results := make(chan domain.ExecutionResult, 1)
	broker := &stubBroker{execute: func(context.Context, domain.ExecutionRequest) (domain.ExecutionResult, error) {
		return domain.ExecutionResult{}, errors.New("venue rejected order")
	}}
	b := NewBridge(broker, func(res domain.ExecutionResult) error {
		results <- res
		return nil
	}, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, b.Dispatch(context.Background(), entryRequest("abc")))

	select {
	case res := <-results:
		assert.False(t, res.Filled)
		assert.Equal(t, "venue rejected order", res.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
	}
}
