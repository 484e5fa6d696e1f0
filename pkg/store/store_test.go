package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yieldctl/pkg/metrics"
)

type captureSubscriber struct {
	mu     sync.Mutex
	seen   []OperationStatus
	failOn Phase
}

func (c *captureSubscriber) OnTransition(ctx context.Context, status OperationStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, status)
	if status.Phase == c.failOn {
		return errors.New("subscriber down")
	}
	return nil
}

func (c *captureSubscriber) phases() []Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Phase
	for _, s := range c.seen {
		out = append(out, s.Phase)
	}
	return out
}

func newStore() (*Store, *clock.Mock) {
	mock := clock.NewMock()
	return New(zerolog.Nop()).WithClock(mock), mock
}

func TestRun_Fulfilled(t *testing.T) {
	s, mock := newStore()
	sub := &captureSubscriber{}
	s.Subscribe(sub)

	status, err := Run(context.Background(), s, "deposit:mainnet:usdc", func(ctx context.Context) (*Result, error) {
		current, ok := s.Get("deposit:mainnet:usdc")
		require.True(t, ok)
		assert.True(t, current.Loading)
		assert.Equal(t, PhasePending, current.Phase)
		mock.Add(3 * time.Second)
		return &Result{TxHash: "0xabc", BlockNumber: 12}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, PhaseFulfilled, status.Phase)
	assert.False(t, status.Loading)
	assert.True(t, status.Executed)
	assert.Empty(t, status.Error)
	assert.Equal(t, "0xabc", status.Result.TxHash)
	require.NotNil(t, status.SettledAt)
	assert.Equal(t, 3*time.Second, status.SettledAt.Sub(status.StartedAt))

	latest, ok := s.Get("deposit:mainnet:usdc")
	require.True(t, ok)
	assert.Equal(t, status, latest)
	assert.Equal(t, []Phase{PhasePending, PhaseFulfilled}, sub.phases())
}

func TestRun_RejectedKeepsError(t *testing.T) {
	s, _ := newStore()
	cause := errors.New("Transaction Cancelled")

	status, err := Run(context.Background(), s, "withdraw:mainnet:usdc", func(ctx context.Context) (*Result, error) {
		return nil, cause
	})
	assert.Same(t, cause, err)
	assert.Equal(t, PhaseRejected, status.Phase)
	assert.False(t, status.Loading)
	assert.False(t, status.Executed)
	assert.Equal(t, "Transaction Cancelled", status.Error)
	assert.Nil(t, status.Result)
}

func TestStart_ClearsPreviousError(t *testing.T) {
	s, _ := newStore()
	_, _ = Run(context.Background(), s, "stake:mainnet:v", func(ctx context.Context) (*Result, error) {
		return nil, errors.New("boom")
	})

	started := s.Start(context.Background(), "stake:mainnet:v")
	assert.True(t, started.Loading)
	assert.Empty(t, started.Error)

	latest, _ := s.Get("stake:mainnet:v")
	assert.Empty(t, latest.Error)
	assert.Equal(t, PhasePending, latest.Phase)
}

func TestSettle_IsFinal(t *testing.T) {
	s, _ := newStore()
	started := s.Start(context.Background(), "lock:mainnet:v")

	_, err := s.Succeed(context.Background(), started.ID, &Result{TxHash: "0x1"})
	require.NoError(t, err)

	status, err := s.Fail(context.Background(), started.ID, errors.New("late"))
	assert.ErrorIs(t, err, ErrAlreadySettled)
	assert.Equal(t, PhaseFulfilled, status.Phase)

	latest, _ := s.Get("lock:mainnet:v")
	assert.Equal(t, PhaseFulfilled, latest.Phase)
	assert.Empty(t, latest.Error)

	_, err = s.Succeed(context.Background(), "missing", nil)
	assert.EqualError(t, err, "operation run missing not found")
}

func TestRun_ConcurrentRunsAreIndependent(t *testing.T) {
	s, _ := newStore()
	name := "deposit:mainnet:usdc"

	first := s.Start(context.Background(), name)
	second := s.Start(context.Background(), name)
	assert.NotEqual(t, first.ID, second.ID)

	_, err := s.Fail(context.Background(), second.ID, errors.New("rejected"))
	require.NoError(t, err)
	_, err = s.Succeed(context.Background(), first.ID, &Result{TxHash: "0xfirst"})
	require.NoError(t, err)

	// The name reflects whichever run settled last
	latest, _ := s.Get(name)
	assert.Equal(t, first.ID, latest.ID)
	assert.Equal(t, PhaseFulfilled, latest.Phase)
}

func TestRun_SubscriberFailureDoesNotFailRun(t *testing.T) {
	s, _ := newStore()
	sub := &captureSubscriber{failOn: PhaseFulfilled}
	s.Subscribe(sub)

	_, err := Run(context.Background(), s, "repay:mainnet:v", func(ctx context.Context) (*Result, error) {
		return &Result{}, nil
	})
	assert.NoError(t, err)
	assert.Len(t, sub.phases(), 2)
}

func TestRun_SettlesAfterCancellation(t *testing.T) {
	s, _ := newStore()
	sub := &captureSubscriber{}
	s.Subscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	status, err := Run(ctx, s, "claim:mainnet:v", func(ctx context.Context) (*Result, error) {
		cancel()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, PhaseRejected, status.Phase)
	assert.Equal(t, []Phase{PhasePending, PhaseRejected}, sub.phases())
}

func TestStore_ListAndReset(t *testing.T) {
	s, _ := newStore()
	s.Start(context.Background(), "withdraw:b:v")
	s.Start(context.Background(), "deposit:a:v")

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "deposit:a:v", list[0].Name)
	assert.Equal(t, "withdraw:b:v", list[1].Name)

	s.Reset("deposit:a:v")
	_, ok := s.Get("deposit:a:v")
	assert.False(t, ok)
	assert.Len(t, s.List(), 1)
}

func TestStore_InFlightGauge(t *testing.T) {
	s, _ := newStore()
	before := testutil.ToFloat64(metrics.OperationsInFlight)

	started := s.Start(context.Background(), "borrow:mainnet:v")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.OperationsInFlight))

	fulfilled := metrics.OperationsSettled.WithLabelValues(string(PhaseFulfilled))
	settledBefore := testutil.ToFloat64(fulfilled)

	_, err := s.Succeed(context.Background(), started.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, before, testutil.ToFloat64(metrics.OperationsInFlight))
	assert.Equal(t, settledBefore+1, testutil.ToFloat64(fulfilled))
}
