package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/facebookgo/clock"
	"github.com/rs/zerolog"
)

// Provider is an independent confirmation source, separate from the handle
// returned when a transaction is broadcast.
type Provider interface {
	WaitForTransaction(ctx context.Context, hash common.Hash, confirmations uint64) (*types.Receipt, error)
}

// RPCProvider confirms transactions by polling receipts and the chain head
type RPCProvider struct {
	backend  Backend
	clock    clock.Clock
	interval time.Duration
	log      zerolog.Logger
}

// NewRPCProvider creates a polling provider over backend
func NewRPCProvider(backend Backend, interval time.Duration, log zerolog.Logger) *RPCProvider {
	return &RPCProvider{
		backend:  backend,
		clock:    clock.New(),
		interval: interval,
		log:      log.With().Str("component", "provider").Logger(),
	}
}

// WithClock swaps the clock used for polling
func (p *RPCProvider) WithClock(c clock.Clock) *RPCProvider {
	p.clock = c
	return p
}

// Backend returns the underlying RPC client
func (p *RPCProvider) Backend() Backend {
	return p.backend
}

// WaitForTransaction blocks until hash has the requested confirmations
func (p *RPCProvider) WaitForTransaction(ctx context.Context, hash common.Hash, confirmations uint64) (*types.Receipt, error) {
	return p.poll(ctx, hash, confirmations, nil)
}

// poll checks the receipt on every tick. While no receipt exists, onMissing
// runs and may abort the wait with an error.
func (p *RPCProvider) poll(ctx context.Context, hash common.Hash, confirmations uint64, onMissing func(context.Context) error) (*types.Receipt, error) {
	if confirmations == 0 {
		confirmations = 1
	}

	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()

	for {
		receipt, err := p.confirmed(ctx, hash, confirmations)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return nil, &RevertedError{Receipt: receipt}
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if onMissing != nil {
			if err := onMissing(ctx); err != nil {
				return nil, err
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// confirmed returns the receipt once it is buried under enough blocks.
// A mined receipt without enough confirmations yields nil, nil.
func (p *RPCProvider) confirmed(ctx context.Context, hash common.Hash, confirmations uint64) (*types.Receipt, error) {
	receipt, err := p.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt for %s: %w", hash.Hex(), err)
	}

	head, err := p.backend.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}

	got := Confirmations(head, receipt.BlockNumber.Uint64())
	p.log.Debug().
		Str("tx", hash.Hex()).
		Uint64("confirmations", got).
		Uint64("required", confirmations).
		Msg("receipt found")

	if got < confirmations {
		return nil, nil
	}
	return receipt, nil
}

// Confirmations counts the block holding a transaction as its first confirmation
func Confirmations(head, block uint64) uint64 {
	if head < block {
		return 0
	}
	return head - block + 1
}
