package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yieldctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
networks:
  sepolia:
    chain_id: 11155111
    rpc_url: http://localhost:8545
    vaults:
      USDC-Vault:
        address: "0x00000000000000000000000000000000000000aa"
        token: USDC
        decimals: 6
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxReplacements, cfg.Tracker.MaxReplacements)
	assert.Equal(t, DefaultTrackTimeout, cfg.Tracker.Timeout)
	assert.Equal(t, DefaultPollInterval, cfg.Tracker.PollInterval)

	n, err := cfg.Network("Sepolia")
	require.NoError(t, err)
	assert.Equal(t, uint64(DefaultConfirmations), n.TxConfirmations)
	assert.True(t, n.Notify(), "notifications default to enabled")

	v, ok := n.Vault("usdc-vault")
	require.True(t, ok)
	assert.Equal(t, int32(6), v.Decimals)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
tracker:
  max_replacements: 2
  timeout: 90s
networks:
  mainnet:
    chain_id: 1
    rpc_url: http://localhost:8545
    tx_confirmations: 3
    notify_enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Tracker.MaxReplacements)
	assert.Equal(t, 90*time.Second, cfg.Tracker.Timeout)

	n, err := cfg.Network("mainnet")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n.TxConfirmations)
	assert.False(t, n.Notify())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("YIELDCTL_TRACKER_MAX_REPLACEMENTS", "7")
	path := writeConfig(t, `
networks:
  mainnet:
    chain_id: 1
    rpc_url: http://localhost:8545
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Tracker.MaxReplacements)
}

func TestLoad_Metrics(t *testing.T) {
	t.Setenv("YIELDCTL_METRICS_PUSH_URL", "http://pushgateway:9091")
	path := writeConfig(t, `
metrics:
  addr: 127.0.0.1:9090
networks:
  mainnet:
    chain_id: 1
    rpc_url: http://localhost:8545
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Metrics.Addr)
	assert.Equal(t, "http://pushgateway:9091", cfg.Metrics.PushURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "no networks",
			cfg:     Config{},
			wantErr: "no networks configured",
		},
		{
			name:    "missing rpc",
			cfg:     Config{Networks: map[string]NetworkConfig{"a": {ChainID: 1}}},
			wantErr: "RPC URL not configured for network a",
		},
		{
			name:    "missing chain id",
			cfg:     Config{Networks: map[string]NetworkConfig{"a": {RPCUrl: "http://x"}}},
			wantErr: "chain ID not configured for network a",
		},
		{
			name: "vault without address",
			cfg: Config{Networks: map[string]NetworkConfig{"a": {
				RPCUrl: "http://x", ChainID: 1,
				Vaults: map[string]VaultConfig{"v": {Token: "USDC"}},
			}}},
			wantErr: "vault v on network a has no address",
		},
		{
			name: "valid",
			cfg:  Config{Networks: map[string]NetworkConfig{"a": {RPCUrl: "http://x", ChainID: 1}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNetwork_Unknown(t *testing.T) {
	cfg := &Config{Networks: map[string]NetworkConfig{"mainnet": {}}}
	_, err := cfg.Network("arbitrum")
	assert.EqualError(t, err, "network arbitrum not configured")
}
