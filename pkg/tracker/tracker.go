package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"yieldctl/config"
	"yieldctl/pkg/chain"
	"yieldctl/pkg/metrics"
	"yieldctl/pkg/notify"
)

// ErrTransactionCancelled is returned when the wallet cancelled the
// transaction by replacing it with a zero-value self transfer.
var ErrTransactionCancelled = errors.New("Transaction Cancelled")

// ErrStillPending is matched by errors.Is when tracking gave up on a
// transaction chain that never settled.
var ErrStillPending = errors.New("transaction still pending")

var errTrackTimeout = errors.New("tracking timeout reached")

// StillPendingError reports the last transaction of a chain that was
// abandoned after too many replacements or the tracking timeout.
type StillPendingError struct {
	Hash         common.Hash
	Replacements int
	Err          error
}

func (e *StillPendingError) Error() string {
	return fmt.Sprintf("transaction %s still pending after %d replacements", e.Hash.Hex(), e.Replacements)
}

func (e *StillPendingError) Is(target error) bool {
	return target == ErrStillPending
}

func (e *StillPendingError) Unwrap() error {
	return e.Err
}

// Network is the tracker's view of one configured network
type Network struct {
	Provider      chain.Provider
	Confirmations uint64
	NotifyEnabled bool
	HashNotify    bool
}

// Options describe a single tracking call
type Options struct {
	Network string
	// Notify requests progress on the notification side-channel
	Notify bool
	// Message labels the notification, e.g. "Deposit 10 USDC"
	Message string
}

// Tracker follows a pending transaction to a terminal outcome
type Tracker struct {
	networks        map[string]Network
	notifier        notify.Notifier
	maxReplacements int
	timeout         time.Duration
	log             zerolog.Logger

	mu      sync.Mutex
	settled map[common.Hash]*types.Receipt
}

// New creates a tracker over the given networks
func New(networks map[string]Network, notifier notify.Notifier, cfg config.TrackerConfig, log zerolog.Logger) *Tracker {
	if notifier == nil {
		notifier = notify.Nop{}
	}

	byName := make(map[string]Network, len(networks))
	for name, n := range networks {
		byName[strings.ToLower(name)] = n
	}

	return &Tracker{
		networks:        byName,
		notifier:        notifier,
		maxReplacements: cfg.MaxReplacements,
		timeout:         cfg.Timeout,
		log:             log.With().Str("component", "tracker").Logger(),
		settled:         make(map[common.Hash]*types.Receipt),
	}
}

// Track waits for pending to reach the network's required confirmations,
// following speed-ups until the chain of replacements confirms, fails, is
// cancelled, or runs out of budget.
func (t *Tracker) Track(ctx context.Context, pending chain.PendingTransaction, opts Options) (*types.Receipt, error) {
	network, ok := t.networks[strings.ToLower(opts.Network)]
	if !ok {
		return nil, fmt.Errorf("network %s not configured", opts.Network)
	}

	if receipt := t.cached(pending.Hash()); receipt != nil {
		return receipt, nil
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, t.timeout, errTrackTimeout)
		defer cancel()
	}

	started := time.Now()
	current := pending
	notifyOn := opts.Notify
	replacements := 0

	for {
		metrics.TransactionsTracked.WithLabelValues(opts.Network).Inc()

		var n notify.Notification
		if network.NotifyEnabled && notifyOn {
			n = t.sent(network, current, opts)
		}

		t.log.Info().
			Str("network", opts.Network).
			Str("tx", current.Hash().Hex()).
			Uint64("confirmations", network.Confirmations).
			Msg("tracking transaction")

		receipt, err := t.race(ctx, network.Provider, current, network.Confirmations)
		if err == nil {
			if n != nil {
				n.Update(notify.Event{Code: notify.TxConfirmed, Type: notify.TypeSuccess, Message: label(opts, current) + " confirmed"})
			}
			t.remember(receipt, pending.Hash(), current.Hash())
			metrics.TransactionOutcomes.WithLabelValues(opts.Network, "confirmed").Inc()
			metrics.ConfirmationLatency.WithLabelValues(opts.Network).Observe(time.Since(started).Seconds())
			t.log.Info().Str("tx", current.Hash().Hex()).Uint64("block", receipt.BlockNumber.Uint64()).Msg("transaction confirmed")
			return receipt, nil
		}

		replaced, ok := chain.AsReplaced(err)
		if !ok {
			if errors.Is(context.Cause(ctx), errTrackTimeout) {
				err = &StillPendingError{Hash: current.Hash(), Replacements: replacements, Err: err}
				metrics.TransactionOutcomes.WithLabelValues(opts.Network, "still_pending").Inc()
			} else {
				metrics.TransactionOutcomes.WithLabelValues(opts.Network, "failed").Inc()
			}
			if n != nil {
				n.Update(notify.Event{Code: notify.TxFailed, Type: notify.TypeError, Message: err.Error()})
			}
			t.log.Warn().Err(err).Str("tx", current.Hash().Hex()).Msg("transaction failed")
			return nil, err
		}

		metrics.Replacements.WithLabelValues(opts.Network, string(replaced.Reason)).Inc()

		if replaced.Cancelled {
			if n != nil {
				n.Update(notify.Event{Code: notify.TxCancelled, Type: notify.TypeError, Message: ErrTransactionCancelled.Error()})
			}
			metrics.TransactionOutcomes.WithLabelValues(opts.Network, "cancelled").Inc()
			t.log.Warn().Str("tx", current.Hash().Hex()).Str("replacement", replaced.Replacement.Hash().Hex()).Msg("transaction cancelled")
			return nil, ErrTransactionCancelled
		}

		// Sped up: tear down the banner and follow the replacement
		if n != nil {
			n.Dismiss()
		}
		replacements++
		t.log.Info().
			Str("tx", current.Hash().Hex()).
			Str("replacement", replaced.Replacement.Hash().Hex()).
			Str("reason", string(replaced.Reason)).
			Int("replacements", replacements).
			Msg("transaction replaced")

		if replacements > t.maxReplacements {
			metrics.TransactionOutcomes.WithLabelValues(opts.Network, "still_pending").Inc()
			return nil, &StillPendingError{Hash: replaced.Replacement.Hash(), Replacements: replacements - 1}
		}

		current = replaced.Replacement
		notifyOn = !notifyOn
	}
}

// race starts both confirmation sources and accepts the first to settle.
// A plain failure of one source defers to the other.
func (t *Tracker) race(ctx context.Context, provider chain.Provider, pending chain.PendingTransaction, confirmations uint64) (*types.Receipt, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		source  string
		receipt *types.Receipt
		err     error
	}
	results := make(chan result, 2)

	go func() {
		r, err := pending.Wait(ctx, confirmations)
		results <- result{"handle", r, err}
	}()
	go func() {
		r, err := provider.WaitForTransaction(ctx, pending.Hash(), confirmations)
		results <- result{"provider", r, err}
	}()

	var errs []error
	for i := 0; i < 2; i++ {
		res := <-results
		if res.err == nil {
			return res.receipt, nil
		}
		if decisive(ctx, res.err) {
			return nil, res.err
		}
		t.log.Debug().Err(res.err).Str("source", res.source).Msg("confirmation source failed")
		errs = append(errs, fmt.Errorf("%s: %w", res.source, res.err))
	}
	return nil, errors.Join(errs...)
}

// decisive errors settle the race without waiting for the other source
func decisive(ctx context.Context, err error) bool {
	if _, ok := chain.AsReplaced(err); ok {
		return true
	}
	if errors.Is(err, chain.ErrReverted) {
		return true
	}
	return ctx.Err() != nil
}

func (t *Tracker) sent(network Network, pending chain.PendingTransaction, opts Options) notify.Notification {
	if network.HashNotify {
		if n, ok := t.notifier.Hash(pending.Hash()); ok {
			return n
		}
	}
	return t.notifier.Notify(notify.Event{
		Code:    notify.TxSent,
		Type:    notify.TypePending,
		Message: label(opts, pending) + " sent",
	})
}

func (t *Tracker) cached(hash common.Hash) *types.Receipt {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settled[hash]
}

func (t *Tracker) remember(receipt *types.Receipt, hashes ...common.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, h := range hashes {
		t.settled[h] = receipt
	}
}

func label(opts Options, pending chain.PendingTransaction) string {
	if opts.Message != "" {
		return opts.Message
	}
	return "Transaction " + notify.ShortHash(pending.Hash())
}
