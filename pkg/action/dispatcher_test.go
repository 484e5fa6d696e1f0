package action

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yieldctl/pkg/chain"
	"yieldctl/pkg/types"
)

type stubPending struct{ hash common.Hash }

func (s stubPending) Hash() common.Hash { return s.hash }

func (s stubPending) Nonce() uint64 { return 0 }

func (s stubPending) Wait(ctx context.Context, confirmations uint64) (*ethtypes.Receipt, error) {
	return nil, nil
}

// recordingSDK records which method was called
type recordingSDK struct {
	calls []string
	err   error
}

func (r *recordingSDK) call(name string) (chain.PendingTransaction, error) {
	r.calls = append(r.calls, name)
	if r.err != nil {
		return nil, r.err
	}
	return stubPending{hash: common.BytesToHash([]byte(name))}, nil
}

func (r *recordingSDK) Deposit(ctx context.Context, _ types.TransactionRequest) (chain.PendingTransaction, error) {
	return r.call("deposit")
}

func (r *recordingSDK) Withdraw(ctx context.Context, _ types.TransactionRequest) (chain.PendingTransaction, error) {
	return r.call("withdraw")
}

func (r *recordingSDK) Stake(ctx context.Context, _ types.TransactionRequest) (chain.PendingTransaction, error) {
	return r.call("stake")
}

func (r *recordingSDK) Lock(ctx context.Context, _ types.TransactionRequest) (chain.PendingTransaction, error) {
	return r.call("lock")
}

func (r *recordingSDK) Borrow(ctx context.Context, _ types.TransactionRequest) (chain.PendingTransaction, error) {
	return r.call("borrow")
}

func (r *recordingSDK) Repay(ctx context.Context, _ types.TransactionRequest) (chain.PendingTransaction, error) {
	return r.call("repay")
}

func (r *recordingSDK) Claim(ctx context.Context, _ types.TransactionRequest) (chain.PendingTransaction, error) {
	return r.call("claim")
}

func TestDispatch_RoutesEachAction(t *testing.T) {
	for _, a := range types.Actions {
		t.Run(string(a), func(t *testing.T) {
			s := &recordingSDK{}
			d := NewDispatcher(s, zerolog.Nop())

			pending, err := d.Dispatch(context.Background(), types.TransactionRequest{Action: a})
			require.NoError(t, err)
			assert.Equal(t, []string{string(a)}, s.calls)
			assert.Equal(t, common.BytesToHash([]byte(a)), pending.Hash())
		})
	}
}

func TestDispatch_UnknownAction(t *testing.T) {
	s := &recordingSDK{}
	d := NewDispatcher(s, zerolog.Nop())

	_, err := d.Dispatch(context.Background(), types.TransactionRequest{Action: "swap"})
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.EqualError(t, err, `unknown action "swap"`)
	assert.Empty(t, s.calls)
}

func TestDispatch_PropagatesSDKError(t *testing.T) {
	rejected := errors.New("user rejected request")
	s := &recordingSDK{err: rejected}
	d := NewDispatcher(s, zerolog.Nop())

	_, err := d.Dispatch(context.Background(), types.TransactionRequest{Action: types.ActionWithdraw})
	assert.Same(t, rejected, err)
	assert.Equal(t, []string{"withdraw"}, s.calls)
}
