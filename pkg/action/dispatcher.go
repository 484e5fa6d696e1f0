package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"yieldctl/pkg/chain"
	"yieldctl/pkg/sdk"
	"yieldctl/pkg/types"
)

// ErrUnknownAction is returned for a request whose action has no SDK method
var ErrUnknownAction = errors.New("unknown action")

// Dispatcher routes a transaction request to the matching SDK call
type Dispatcher struct {
	sdk sdk.SDK
	log zerolog.Logger
}

// NewDispatcher creates a dispatcher over s
func NewDispatcher(s sdk.SDK, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sdk: s,
		log: log.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch invokes exactly one SDK method for req. SDK errors are returned
// as they are and nothing is retried.
func (d *Dispatcher) Dispatch(ctx context.Context, req types.TransactionRequest) (chain.PendingTransaction, error) {
	d.log.Debug().Str("action", string(req.Action)).Str("network", req.Network).Str("vault", req.Vault).Msg("dispatching")

	switch req.Action {
	case types.ActionDeposit:
		return d.sdk.Deposit(ctx, req)
	case types.ActionWithdraw:
		return d.sdk.Withdraw(ctx, req)
	case types.ActionStake:
		return d.sdk.Stake(ctx, req)
	case types.ActionLock:
		return d.sdk.Lock(ctx, req)
	case types.ActionBorrow:
		return d.sdk.Borrow(ctx, req)
	case types.ActionRepay:
		return d.sdk.Repay(ctx, req)
	case types.ActionClaim:
		return d.sdk.Claim(ctx, req)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownAction, req.Action)
	}
}
