package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"yieldctl/config"
	"yieldctl/pkg/action"
	"yieldctl/pkg/chain"
	"yieldctl/pkg/metrics"
	"yieldctl/pkg/notify"
	"yieldctl/pkg/sdk"
	"yieldctl/pkg/store"
	"yieldctl/pkg/tracker"
	"yieldctl/pkg/types"
)

// Options customise how the application is assembled
type Options struct {
	Notifier notify.Notifier
	Log      zerolog.Logger
	// Backends replaces dialing the configured RPC endpoint for a network
	Backends map[string]chain.Backend
	// SkipJournal disables the on-disk history
	SkipJournal bool
}

// App wires the dispatcher, tracker and status store for every configured network
type App struct {
	Config     *config.Config
	Dispatcher *action.Dispatcher
	Tracker    *tracker.Tracker
	Store      *store.Store
	Journal    *store.Journal

	providers map[string]*chain.RPCProvider
	backends  []chain.Backend
	redis     *redis.Client
	log       zerolog.Logger

	pushURL     string
	stopMetrics func()
}

// New builds the application once per process
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	log := opts.Log
	a := &App{
		Config:    cfg,
		providers: make(map[string]*chain.RPCProvider),
		log:       log.With().Str("component", "app").Logger(),
	}

	sdks := make(map[string]sdk.SDK)
	networks := make(map[string]tracker.Network)

	for _, name := range cfg.NetworkNames() {
		n := cfg.Networks[name]

		backend, ok := opts.Backends[name]
		if !ok {
			client, err := chain.Dial(ctx, n.RPCUrl, n.ChainID)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("network %s: %w", name, err)
			}
			backend = client
		}
		a.backends = append(a.backends, backend)

		provider := chain.NewRPCProvider(backend, cfg.Tracker.PollInterval, log)
		a.providers[name] = provider

		networks[name] = tracker.Network{
			Provider:      provider,
			Confirmations: n.TxConfirmations,
			NotifyEnabled: n.Notify(),
			HashNotify:    n.HashNotify,
		}

		// Networks without a key can still track transactions
		if n.PrivateKey == "" {
			a.log.Debug().Str("network", name).Msg("no private key, network is track-only")
			continue
		}
		vaultSDK, err := sdk.NewVaultSDK(name, n, provider, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("network %s: %w", name, err)
		}
		sdks[name] = vaultSDK
	}

	a.Dispatcher = action.NewDispatcher(sdk.NewRouter(sdks), log)
	a.Tracker = tracker.New(networks, opts.Notifier, cfg.Tracker, log)
	a.Store = store.New(log)

	if !opts.SkipJournal {
		journal, err := store.NewJournal(cfg.HistoryPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Journal = journal
		a.Store.Subscribe(journal)
	}

	if cfg.Redis.URL != "" {
		rdb, err := store.DialRedis(cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = rdb
		a.Store.Subscribe(store.NewRedisMirror(rdb))
	}

	a.pushURL = cfg.Metrics.PushURL
	if cfg.Metrics.Addr != "" {
		a.serveMetrics(cfg.Metrics.Addr)
	}

	return a, nil
}

// serveMetrics exposes /metrics on addr until Close
func (a *App) serveMetrics(addr string) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.stopMetrics = func() {
		cancel()
		<-done
	}

	go func() {
		defer close(done)
		if err := metrics.Serve(ctx, addr); err != nil {
			a.log.Warn().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	a.log.Debug().Str("addr", addr).Msg("serving metrics")
}

// Execute dispatches req and tracks the resulting transaction, recording the
// operation under the request's operation name
func (a *App) Execute(ctx context.Context, req types.TransactionRequest, notifyUser bool) (store.OperationStatus, *ethtypes.Receipt, error) {
	var receipt *ethtypes.Receipt

	status, err := store.Run(ctx, a.Store, req.OperationName(), func(ctx context.Context) (*store.Result, error) {
		pending, err := a.Dispatcher.Dispatch(ctx, req)
		if err != nil {
			return nil, err
		}

		a.log.Info().
			Str("operation", req.OperationName()).
			Str("tx", pending.Hash().Hex()).
			Msg("transaction submitted")

		r, err := a.Tracker.Track(ctx, pending, tracker.Options{
			Network: req.Network,
			Notify:  notifyUser,
			Message: Label(req),
		})
		if err != nil {
			return nil, err
		}
		receipt = r
		return resultFor(r), nil
	})

	return status, receipt, err
}

// Track follows a transaction that was broadcast elsewhere
func (a *App) Track(ctx context.Context, network string, hash common.Hash, notifyUser bool) (store.OperationStatus, *ethtypes.Receipt, error) {
	provider, ok := a.providers[strings.ToLower(network)]
	if !ok {
		return store.OperationStatus{}, nil, fmt.Errorf("network %s not configured", network)
	}

	var receipt *ethtypes.Receipt
	name := fmt.Sprintf("track:%s:%s", strings.ToLower(network), hash.Hex())

	status, err := store.Run(ctx, a.Store, name, func(ctx context.Context) (*store.Result, error) {
		pending, err := chain.LookupPending(ctx, provider, hash)
		if err != nil {
			return nil, err
		}

		r, err := a.Tracker.Track(ctx, pending, tracker.Options{Network: network, Notify: notifyUser})
		if err != nil {
			return nil, err
		}
		receipt = r
		return resultFor(r), nil
	})

	return status, receipt, err
}

// Close pushes metrics when a pushgateway is configured, then releases every
// client the application opened
func (a *App) Close() {
	if a.pushURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metrics.Push(ctx, a.pushURL); err != nil {
			a.log.Warn().Err(err).Msg("failed to push metrics")
		}
		cancel()
		a.pushURL = ""
	}
	if a.stopMetrics != nil {
		a.stopMetrics()
		a.stopMetrics = nil
	}

	for _, b := range a.backends {
		b.Close()
	}
	a.backends = nil

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis")
		}
		a.redis = nil
	}
}

// Label describes a request for notifications, e.g. "Deposit 10 USDC"
func Label(req types.TransactionRequest) string {
	verb := string(req.Action)
	if verb != "" {
		verb = strings.ToUpper(verb[:1]) + verb[1:]
	}
	if req.Action == types.ActionClaim {
		return fmt.Sprintf("%s %s", verb, req.Vault)
	}
	return fmt.Sprintf("%s %s %s", verb, req.Amount.String(), req.Token)
}

func resultFor(r *ethtypes.Receipt) *store.Result {
	result := &store.Result{
		TxHash:  r.TxHash.Hex(),
		GasUsed: r.GasUsed,
	}
	if r.BlockNumber != nil {
		result.BlockNumber = r.BlockNumber.Uint64()
	}
	return result
}
