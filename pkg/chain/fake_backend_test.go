package chain

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeBackend is an in-memory chain used by the chain tests
type fakeBackend struct {
	mu       sync.Mutex
	chainID  *big.Int
	head     uint64
	receipts map[common.Hash]*types.Receipt
	txs      map[common.Hash]*types.Transaction
	blocks   map[uint64]*types.Block
	nonces   map[common.Address]uint64
	sent     []*types.Transaction

	// advance is added to head after every BlockNumber call
	advance uint64
	// receiptErr is returned by TransactionReceipt when set
	receiptErr error
	// lookups counts TransactionReceipt calls
	lookups int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chainID:  big.NewInt(1),
		receipts: make(map[common.Hash]*types.Receipt),
		txs:      make(map[common.Hash]*types.Transaction),
		blocks:   make(map[uint64]*types.Block),
		nonces:   make(map[common.Address]uint64),
	}
}

func (f *fakeBackend) mine(block uint64, status uint64, txs ...*types.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.blocks[block] = types.NewBlockWithHeader(&types.Header{Number: new(big.Int).SetUint64(block)}).
		WithBody(types.Body{Transactions: txs})
	for _, tx := range txs {
		f.receipts[tx.Hash()] = &types.Receipt{
			Status:      status,
			TxHash:      tx.Hash(),
			BlockNumber: new(big.Int).SetUint64(block),
		}
	}
	if block > f.head {
		f.head = block
	}
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	head := f.head
	f.head += f.advance
	return head, nil
}

func (f *fakeBackend) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.blocks[number.Uint64()]; ok {
		return b, nil
	}
	return types.NewBlockWithHeader(&types.Header{Number: number}), nil
}

func (f *fakeBackend) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[hash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	_, mined := f.receipts[hash]
	return tx, !mined, nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	r, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *fakeBackend) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[account], nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.NonceAt(ctx, account, nil)
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 50_000, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	f.txs[tx.Hash()] = tx
	return nil
}

func (f *fakeBackend) Close() {}

func (f *fakeBackend) receiptLookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}
