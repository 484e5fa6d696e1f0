package sdk

import (
	"context"
	"fmt"
	"strings"

	"yieldctl/pkg/chain"
	"yieldctl/pkg/types"
)

// SDK submits vault operations and hands back the broadcast transaction
type SDK interface {
	Deposit(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error)
	Withdraw(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error)
	Stake(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error)
	Lock(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error)
	Borrow(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error)
	Repay(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error)
	Claim(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error)
}

// Router sends each request to the SDK of the request's network
type Router struct {
	networks map[string]SDK
}

var _ SDK = (*Router)(nil)

// NewRouter creates a router over per-network SDKs
func NewRouter(networks map[string]SDK) *Router {
	byName := make(map[string]SDK, len(networks))
	for name, s := range networks {
		byName[strings.ToLower(name)] = s
	}
	return &Router{networks: byName}
}

// For returns the SDK serving network
func (r *Router) For(network string) (SDK, error) {
	s, ok := r.networks[strings.ToLower(network)]
	if !ok {
		return nil, fmt.Errorf("network %s not configured", network)
	}
	return s, nil
}

func (r *Router) Deposit(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error) {
	s, err := r.For(params.Network)
	if err != nil {
		return nil, err
	}
	return s.Deposit(ctx, params)
}

func (r *Router) Withdraw(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error) {
	s, err := r.For(params.Network)
	if err != nil {
		return nil, err
	}
	return s.Withdraw(ctx, params)
}

func (r *Router) Stake(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error) {
	s, err := r.For(params.Network)
	if err != nil {
		return nil, err
	}
	return s.Stake(ctx, params)
}

func (r *Router) Lock(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error) {
	s, err := r.For(params.Network)
	if err != nil {
		return nil, err
	}
	return s.Lock(ctx, params)
}

func (r *Router) Borrow(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error) {
	s, err := r.For(params.Network)
	if err != nil {
		return nil, err
	}
	return s.Borrow(ctx, params)
}

func (r *Router) Repay(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error) {
	s, err := r.For(params.Network)
	if err != nil {
		return nil, err
	}
	return s.Repay(ctx, params)
}

func (r *Router) Claim(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error) {
	s, err := r.For(params.Network)
	if err != nil {
		return nil, err
	}
	return s.Claim(ctx, params)
}
