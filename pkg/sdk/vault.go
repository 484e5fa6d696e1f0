package sdk

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"yieldctl/config"
	"yieldctl/pkg/chain"
	"yieldctl/pkg/types"
)

const (
	// DefaultDecimals is assumed when a vault does not configure its token decimals
	DefaultDecimals = 18

	// used when estimation fails and no gas limit is configured
	defaultGasLimit = uint64(300000)

	maxSlippage = 10000
)

// Vault contract ABI
const vaultABI = `[
	{"inputs":[{"name":"amount","type":"uint256"},{"name":"receiver","type":"address"}],"name":"deposit","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"amount","type":"uint256"},{"name":"receiver","type":"address"},{"name":"minAmountOut","type":"uint256"}],"name":"withdraw","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"amount","type":"uint256"}],"name":"stake","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"amount","type":"uint256"}],"name":"lock","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"amount","type":"uint256"},{"name":"receiver","type":"address"}],"name":"borrow","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"amount","type":"uint256"}],"name":"repay","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"receiver","type":"address"}],"name":"claim","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// VaultSDK submits vault calls on a single EVM network
type VaultSDK struct {
	networkName string
	network     config.NetworkConfig
	provider    *chain.RPCProvider
	backend     chain.Backend
	privateKey  *ecdsa.PrivateKey
	from        common.Address
	chainID     *big.Int
	abi         abi.ABI
	log         zerolog.Logger
}

var _ SDK = (*VaultSDK)(nil)

// NewVaultSDK creates a vault SDK for a specific network
func NewVaultSDK(networkName string, network config.NetworkConfig, provider *chain.RPCProvider, log zerolog.Logger) (*VaultSDK, error) {
	if network.PrivateKey == "" {
		return nil, fmt.Errorf("private key not configured for network %s", networkName)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(network.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(vaultABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse vault ABI: %w", err)
	}

	return &VaultSDK{
		networkName: networkName,
		network:     network,
		provider:    provider,
		backend:     provider.Backend(),
		privateKey:  privateKey,
		from:        crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:     big.NewInt(network.ChainID),
		abi:         parsedABI,
		log:         log.With().Str("component", "sdk").Str("network", networkName).Logger(),
	}, nil
}

// From returns the account transactions are sent from
func (v *VaultSDK) From() common.Address {
	return v.from
}

func (v *VaultSDK) Deposit(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error) {
	vault, amount, err := v.prepare(params)
	if err != nil {
		return nil, err
	}
	receiver, err := v.receiver(params)
	if err != nil {
		return nil, err
	}
	return v.send(ctx, vault, "deposit", amount, receiver)
}

func (v *VaultSDK) Withdraw(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error) {
	vault, amount, err := v.prepare(params)
	if err != nil {
		return nil, err
	}
	receiver, err := v.receiver(params)
	if err != nil {
		return nil, err
	}
	minOut, err := MinAmountOut(amount, params.Slippage)
	if err != nil {
		return nil, err
	}
	return v.send(ctx, vault, "withdraw", amount, receiver, minOut)
}

func (v *VaultSDK) Stake(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error) {
	vault, amount, err := v.prepare(params)
	if err != nil {
		return nil, err
	}
	return v.send(ctx, vault, "stake", amount)
}

func (v *VaultSDK) Lock(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error) {
	vault, amount, err := v.prepare(params)
	if err != nil {
		return nil, err
	}
	return v.send(ctx, vault, "lock", amount)
}

func (v *VaultSDK) Borrow(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error) {
	vault, amount, err := v.prepare(params)
	if err != nil {
		return nil, err
	}
	receiver, err := v.receiver(params)
	if err != nil {
		return nil, err
	}
	return v.send(ctx, vault, "borrow", amount, receiver)
}

func (v *VaultSDK) Repay(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error) {
	vault, amount, err := v.prepare(params)
	if err != nil {
		return nil, err
	}
	return v.send(ctx, vault, "repay", amount)
}

// Claim collects rewards; the request amount is ignored
func (v *VaultSDK) Claim(ctx context.Context, params types.TransactionRequest) (chain.PendingTransaction, error) {
	vc, ok := v.network.Vault(params.Vault)
	if !ok {
		return nil, fmt.Errorf("vault %s not configured on network %s", params.Vault, v.networkName)
	}
	receiver, err := v.receiver(params)
	if err != nil {
		return nil, err
	}
	return v.send(ctx, common.HexToAddress(vc.Address), "claim", receiver)
}

// prepare resolves the vault contract and converts the amount to base units
func (v *VaultSDK) prepare(params types.TransactionRequest) (common.Address, *big.Int, error) {
	vc, ok := v.network.Vault(params.Vault)
	if !ok {
		return common.Address{}, nil, fmt.Errorf("vault %s not configured on network %s", params.Vault, v.networkName)
	}
	if !common.IsHexAddress(vc.Address) {
		return common.Address{}, nil, fmt.Errorf("invalid vault address: %s", vc.Address)
	}
	if params.Token != "" && vc.Token != "" && !strings.EqualFold(params.Token, vc.Token) {
		return common.Address{}, nil, fmt.Errorf("vault %s accepts %s, not %s", params.Vault, vc.Token, params.Token)
	}

	decimals := vc.Decimals
	if decimals == 0 {
		decimals = DefaultDecimals
	}
	amount, err := ToBaseUnits(params.Amount, decimals)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("invalid amount: %w", err)
	}

	return common.HexToAddress(vc.Address), amount, nil
}

func (v *VaultSDK) receiver(params types.TransactionRequest) (common.Address, error) {
	if params.Recipient == "" {
		return v.from, nil
	}
	if !common.IsHexAddress(params.Recipient) {
		return common.Address{}, fmt.Errorf("invalid recipient address: %s", params.Recipient)
	}
	return common.HexToAddress(params.Recipient), nil
}

// send packs, signs and broadcasts a vault call
func (v *VaultSDK) send(ctx context.Context, vault common.Address, method string, args ...interface{}) (chain.PendingTransaction, error) {
	data, err := v.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s data: %w", method, err)
	}

	nonce, err := v.backend.PendingNonceAt(ctx, v.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := v.getGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	gasLimit := v.getGasLimit(ctx, vault, data)

	// Replacements are searched from the head at broadcast time
	head, err := v.backend.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}

	tx := ethtypes.NewTransaction(nonce, vault, big.NewInt(0), gasLimit, gasPrice, data)
	signedTx, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(v.chainID), v.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := v.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	v.log.Info().
		Str("method", method).
		Str("vault", vault.Hex()).
		Str("tx", signedTx.Hash().Hex()).
		Uint64("nonce", nonce).
		Uint64("gas", gasLimit).
		Msg("transaction sent")

	return chain.NewPendingTx(v.provider, signedTx, v.from, v.chainID, head), nil
}

// getGasPrice returns the gas price to use for transactions
func (v *VaultSDK) getGasPrice(ctx context.Context) (*big.Int, error) {
	if v.network.GasPrice != nil {
		return big.NewInt(*v.network.GasPrice), nil
	}

	gasPrice, err := v.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return gasPrice, nil
}

func (v *VaultSDK) getGasLimit(ctx context.Context, vault common.Address, data []byte) uint64 {
	if v.network.GasLimit != nil {
		return *v.network.GasLimit
	}

	msg := ethereum.CallMsg{
		From: v.from,
		To:   &vault,
		Data: data,
	}
	estimatedGas, err := v.backend.EstimateGas(ctx, msg)
	if err != nil {
		v.log.Warn().Err(err).Uint64("fallback", defaultGasLimit).Msg("gas estimation failed")
		return defaultGasLimit
	}
	return estimatedGas * 120 / 100 // Add 20% buffer
}

// ToBaseUnits converts a token amount to its smallest unit
func ToBaseUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("amount %s is negative", amount)
	}
	shifted := amount.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimals", amount, decimals)
	}
	return shifted.BigInt(), nil
}

// MinAmountOut applies a slippage tolerance in basis points to amount
func MinAmountOut(amount *big.Int, slippageBps uint32) (*big.Int, error) {
	if slippageBps > maxSlippage {
		return nil, fmt.Errorf("slippage %d bps exceeds %d", slippageBps, maxSlippage)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(maxSlippage-slippageBps)))
	return out.Div(out, big.NewInt(maxSlippage)), nil
}
