package chain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// PendingTransaction is a handle to a broadcast, not yet confirmed transaction
type PendingTransaction interface {
	Hash() common.Hash
	Nonce() uint64
	Wait(ctx context.Context, confirmations uint64) (*types.Receipt, error)
}

// PendingTx is the EVM handle returned after broadcast. Its Wait detects when
// the sender's nonce was consumed by another transaction.
type PendingTx struct {
	tx       *types.Transaction
	from     common.Address
	signer   types.Signer
	provider *RPCProvider

	// next block to scan for a replacement
	scanFrom uint64
}

// NewPendingTx wraps a broadcast transaction. startBlock is the chain head at
// broadcast time; replacements are searched from there.
func NewPendingTx(provider *RPCProvider, tx *types.Transaction, from common.Address, chainID *big.Int, startBlock uint64) *PendingTx {
	return &PendingTx{
		tx:       tx,
		from:     from,
		signer:   types.LatestSignerForChainID(chainID),
		provider: provider,
		scanFrom: startBlock,
	}
}

// LookupPending rebuilds a handle for a transaction broadcast elsewhere
func LookupPending(ctx context.Context, provider *RPCProvider, hash common.Hash) (*PendingTx, error) {
	backend := provider.Backend()

	tx, _, err := backend.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", hash.Hex(), err)
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	signer := types.LatestSignerForChainID(chainID)
	from, err := types.Sender(signer, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover sender of %s: %w", hash.Hex(), err)
	}

	head, err := backend.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}

	return NewPendingTx(provider, tx, from, chainID, head), nil
}

func (p *PendingTx) Hash() common.Hash {
	return p.tx.Hash()
}

func (p *PendingTx) Nonce() uint64 {
	return p.tx.Nonce()
}

// From returns the sender address
func (p *PendingTx) From() common.Address {
	return p.from
}

// Wait blocks until the transaction has the requested confirmations, it
// reverts, or it is found to be replaced.
func (p *PendingTx) Wait(ctx context.Context, confirmations uint64) (*types.Receipt, error) {
	return p.provider.poll(ctx, p.Hash(), confirmations, p.checkReplaced)
}

// checkReplaced looks for another mined transaction with our sender and nonce
func (p *PendingTx) checkReplaced(ctx context.Context) error {
	backend := p.provider.backend

	mined, err := backend.NonceAt(ctx, p.from, nil)
	if err != nil {
		return fmt.Errorf("failed to get nonce: %w", err)
	}
	if mined <= p.Nonce() {
		return nil
	}

	// The nonce is spent. It may have been spent by us in a block mined
	// since the last receipt check.
	if _, err := backend.TransactionReceipt(ctx, p.Hash()); err == nil {
		return nil
	} else if !errors.Is(err, ethereum.NotFound) {
		return fmt.Errorf("failed to get receipt for %s: %w", p.Hash().Hex(), err)
	}

	head, err := backend.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to get block number: %w", err)
	}

	for n := p.scanFrom; n <= head; n++ {
		block, err := backend.BlockByNumber(ctx, new(big.Int).SetUint64(n))
		if err != nil {
			return fmt.Errorf("failed to get block %d: %w", n, err)
		}

		for _, tx := range block.Transactions() {
			if tx.Nonce() != p.Nonce() {
				continue
			}
			from, err := types.Sender(p.signer, tx)
			if err != nil || from != p.from {
				continue
			}
			return p.replacedBy(ctx, tx, n)
		}

		p.scanFrom = n + 1
	}

	return nil
}

func (p *PendingTx) replacedBy(ctx context.Context, tx *types.Transaction, block uint64) error {
	replacement := &PendingTx{
		tx:       tx,
		from:     p.from,
		signer:   p.signer,
		provider: p.provider,
		scanFrom: block,
	}

	receipt, err := p.provider.backend.TransactionReceipt(ctx, tx.Hash())
	if err != nil {
		receipt = nil
	}

	reason := classifyReplacement(p.tx, tx, p.from)
	return &ReplacedError{
		Original:    p,
		Replacement: replacement,
		Reason:      reason,
		Cancelled:   reason == ReasonCancelled,
		Receipt:     receipt,
	}
}

func classifyReplacement(original, replacement *types.Transaction, from common.Address) ReplacementReason {
	to := replacement.To()
	if to != nil && *to == from && replacement.Value().Sign() == 0 && len(replacement.Data()) == 0 {
		return ReasonCancelled
	}

	sameTo := (original.To() == nil && to == nil) ||
		(original.To() != nil && to != nil && *original.To() == *to)
	if sameTo && original.Value().Cmp(replacement.Value()) == 0 && bytes.Equal(original.Data(), replacement.Data()) {
		return ReasonRepriced
	}

	return ReasonReplaced
}
