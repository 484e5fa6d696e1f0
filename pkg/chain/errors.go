package chain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
)

// ErrReverted is matched by errors.Is for transactions mined with a failed status
var ErrReverted = errors.New("transaction reverted")

// ReplacementReason says how a pending transaction was superseded
type ReplacementReason string

const (
	ReasonCancelled ReplacementReason = "cancelled" // zero-value self transfer
	ReasonRepriced  ReplacementReason = "repriced"  // same call, higher fee
	ReasonReplaced  ReplacementReason = "replaced"  // different call, same nonce
)

// ReplacedError is raised when the wallet rebroadcast a transaction's nonce
// with a different transaction.
type ReplacedError struct {
	Original    PendingTransaction
	Replacement PendingTransaction
	Reason      ReplacementReason
	Cancelled   bool
	// Receipt of the replacement, nil if it was seen in a block whose receipt
	// could not be fetched yet.
	Receipt *types.Receipt
}

func (e *ReplacedError) Error() string {
	return fmt.Sprintf("transaction %s %s by %s",
		e.Original.Hash().Hex(), e.Reason, e.Replacement.Hash().Hex())
}

// AsReplaced extracts a ReplacedError from an error chain
func AsReplaced(err error) (*ReplacedError, bool) {
	var re *ReplacedError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// RevertedError carries the failed receipt of a reverted transaction
type RevertedError struct {
	Receipt *types.Receipt
}

func (e *RevertedError) Error() string {
	return fmt.Sprintf("transaction %s reverted in block %s", e.Receipt.TxHash.Hex(), e.Receipt.BlockNumber)
}

func (e *RevertedError) Unwrap() error {
	return ErrReverted
}
