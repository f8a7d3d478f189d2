package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/mintburn-bridge/order"
	"github.com/TEENet-io/mintburn-bridge/scheduler"
	"github.com/TEENet-io/mintburn-bridge/signers"
)

const testBaseID = "0x0200000000000000000000000000000000000000000000000000000000000001"

type testKeys struct {
	vaultWIF   string
	masterPub  string
	signingKey string
}

func newTestKeys(t *testing.T) testKeys {
	vault, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	wif, err := btcutil.NewWIF(vault, &chaincfg.RegressionNetParams, true)
	require.NoError(t, err)

	master, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	sk, err := crypto.GenerateKey()
	require.NoError(t, err)

	return testKeys{
		vaultWIF:   wif.String(),
		masterPub:  hex.EncodeToString(master.PubKey().SerializeCompressed()),
		signingKey: hex.EncodeToString(crypto.FromECDSA(sk)),
	}
}

// writeConfig writes a simulated-mode yaml config with extra appended.
func writeConfig(t *testing.T, keys testKeys, extra string) string {
	dir := t.TempDir()
	content := fmt.Sprintf(`
bridge:
  min_confirmations: 2
  deposit_fee: 500
  sender_id: "0x02"
btc:
  network: regtest
  vault_wif: %s
  master_pubkey: %s
  rpc:
    server: 127.0.0.1
    port: "18443"
    username: user
    password: pass
signing:
  private_key: %s
evm:
  mode: simulated
  chain_id: 1337
  bridge_address: "0xb000000000000000000000000000000000000001"
token:
  base_id: "%s"
db:
  path: %s
http:
  ip: 127.0.0.1
scheduler:
  tick: 250ms
  deposit_policy: "30"
%s`, keys.vaultWIF, keys.masterPub, keys.signingKey, testBaseID, filepath.Join(dir, "bridge.db"), extra)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	keys := newTestKeys(t)
	cfg, err := LoadConfig(writeConfig(t, keys, ""))
	require.NoError(t, err)

	assert.Equal(t, uint32(2), cfg.MinConfirmations)
	assert.Equal(t, uint64(500), cfg.DepositFee)
	assert.Equal(t, order.Id256FromHex("0x02"), cfg.SenderID)
	assert.Equal(t, &chaincfg.RegressionNetParams, cfg.BtcParams)
	assert.Equal(t, "18443", cfg.BtcRpc.Port)
	assert.Equal(t, "pass", cfg.BtcRpc.Pwd)
	assert.Equal(t, signers.StrategyLocal, cfg.Signing.Kind)
	assert.Equal(t, keys.signingKey, cfg.Signing.PrivateKey)
	assert.Equal(t, EVM_MODE_SIMULATED, cfg.EvmMode)
	assert.Equal(t, uint32(1337), cfg.EvmChainID)
	assert.Equal(t, order.Id256FromHex(testBaseID), cfg.TokenBaseID)
	assert.Equal(t, 250*time.Millisecond, cfg.SchedulerTick)
	assert.Equal(t, scheduler.Period(30), cfg.Orchestrator.DepositPolicy)

	// defaults
	assert.Equal(t, INDEXER_ESPLORA, cfg.IndexerKind)
	assert.Equal(t, "WBTC", cfg.TokenSymbol)
	assert.Equal(t, uint8(18), cfg.TokenDecimals)
	assert.Equal(t, "8080", cfg.HttpPort)
	assert.Equal(t, scheduler.PerMinute, cfg.Orchestrator.WithdrawPolicy)
	assert.Equal(t, scheduler.Period(600), cfg.Orchestrator.RefreshPolicy)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	keys := newTestKeys(t)
	path := writeConfig(t, keys, "")

	t.Setenv("BRIDGE_HTTP_PORT", "9999")
	t.Setenv("BRIDGE_BTC_RPC_PORT", "8332")
	t.Setenv("BRIDGE_BRIDGE_BATCH_MINT", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.HttpPort)
	assert.Equal(t, "8332", cfg.BtcRpc.Port)
	assert.True(t, cfg.Orchestrator.BatchMint)
}

func TestLoadConfigFromEnvOnly(t *testing.T) {
	keys := newTestKeys(t)
	t.Setenv("BRIDGE_BTC_VAULT_WIF", keys.vaultWIF)
	t.Setenv("BRIDGE_BTC_MASTER_PUBKEY", keys.masterPub)
	t.Setenv("BRIDGE_SIGNING_STRATEGY", "remote")
	t.Setenv("BRIDGE_SIGNING_REMOTE_URL", "127.0.0.1:50051")
	t.Setenv("BRIDGE_SIGNING_KEY_ID", "bridge-key")
	t.Setenv("BRIDGE_SIGNING_ADDRESS", "0x1111111111111111111111111111111111111111")
	t.Setenv("BRIDGE_EVM_MINTER_PRIVATE_KEY", keys.signingKey)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, signers.StrategyRemote, cfg.Signing.Kind)
	assert.Equal(t, "127.0.0.1:50051", cfg.Signing.Remote.ServerAddress)
	assert.Equal(t, "bridge-key", cfg.Signing.Remote.KeyID)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", cfg.Signing.Remote.Address.Hex())
	assert.Equal(t, EVM_MODE_RPC, cfg.EvmMode)
	assert.Equal(t, uint32(12), cfg.MinConfirmations)
}

func TestLoadConfigErrors(t *testing.T) {
	keys := newTestKeys(t)

	cases := []struct {
		name  string
		extra string
		env   map[string]string
		err   error
	}{
		{name: "network", env: map[string]string{"BRIDGE_BTC_NETWORK": "signet"}, err: ErrUnknownNetwork},
		{name: "strategy", env: map[string]string{"BRIDGE_SIGNING_STRATEGY": "hsm"}, err: ErrUnknownSigningStrategy},
		{name: "signing key", env: map[string]string{"BRIDGE_SIGNING_PRIVATE_KEY": ""}, err: ErrMissingPrivateKey},
		{name: "minter key", env: map[string]string{"BRIDGE_EVM_MODE": "rpc"}, err: ErrMissingPrivateKey},
		{name: "vault key", env: map[string]string{"BRIDGE_BTC_VAULT_WIF": ""}, err: ErrMissingPrivateKey},
		{name: "evm mode", env: map[string]string{"BRIDGE_EVM_MODE": "anvil"}, err: ErrUnknownEvmMode},
		{name: "indexer", extra: "indexer:\n  kind: electrum\n", err: ErrUnknownIndexerKind},
		{name: "policy", env: map[string]string{"BRIDGE_SCHEDULER_COLLECT_POLICY": "often"}, err: ErrInvalidValue},
		{name: "bridge address", env: map[string]string{"BRIDGE_EVM_BRIDGE_ADDRESS": "0x12"}, err: ErrInvalidValue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, keys, tc.extra)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(path)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "config file not found")
}
