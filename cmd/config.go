package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	btcrpc "github.com/TEENet-io/mintburn-bridge/btcman/rpc"
	"github.com/TEENet-io/mintburn-bridge/common"
	"github.com/TEENet-io/mintburn-bridge/order"
	"github.com/TEENet-io/mintburn-bridge/orchestrator"
	"github.com/TEENet-io/mintburn-bridge/scheduler"
	"github.com/TEENet-io/mintburn-bridge/signers"
)

const (
	ENV_PREFIX = "BRIDGE"

	EVM_MODE_RPC       = "rpc"
	EVM_MODE_SIMULATED = "simulated"

	INDEXER_ESPLORA  = "esplora"
	INDEXER_BITCOIND = "bitcoind"
)

var (
	ErrUnknownNetwork         = errors.New("unknown btc network")
	ErrUnknownSigningStrategy = errors.New("unknown signing strategy")
	ErrMissingPrivateKey      = errors.New("missing private key")
	ErrUnknownEvmMode         = errors.New("unknown evm mode")
	ErrUnknownIndexerKind     = errors.New("unknown indexer kind")
	ErrMissingMasterKey       = errors.New("missing bridge master public key")
	ErrInvalidValue           = errors.New("invalid config value")
)

// BridgeServerConfig is everything a bridge server is built from.
type BridgeServerConfig struct {
	// bridge side
	MinConfirmations uint32
	DepositFee       uint64 // satoshi
	Erc20MinterFee   uint64 // charged by the simulated contract
	SenderID         order.Id256
	SenderChainID    uint32

	// btc side
	BtcParams      *chaincfg.Params
	BtcRpc         btcrpc.RpcClientConfig
	MasterPubKey   string // hex compressed pubkey the deposit addresses derive from
	VaultWIF       string // key of the vault paying withdrawals
	MinerFee       int64
	MaxAttempts    int
	IndexerKind    string
	IndexerUrl     string
	IndexerTimeout time.Duration

	// signer of mint orders
	Signing signers.Strategy

	// evm side
	EvmMode          string
	EvmUrl           string
	EvmChainID       uint32
	BridgeAddress    ethcommon.Address
	MinterPrivateKey string // account submitting the mint transactions
	GasLimit         uint64

	TokenName     string
	TokenSymbol   string
	TokenDecimals uint8
	TokenBaseID   order.Id256
	TokenAddress  ethcommon.Address // learned from the bridge when zero

	DbFilePath string

	HttpIp   string
	HttpPort string

	SchedulerTick       time.Duration
	SchedulerMaxRetries int
	Orchestrator        orchestrator.Config

	LogLevel string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	v.SetDefault("bridge.min_confirmations", 12)
	v.SetDefault("bridge.max_input_polls", orchestrator.DefaultConfig().MaxInputPolls)
	v.SetDefault("btc.network", "regtest")
	v.SetDefault("btc.miner_fee", 1_000)
	v.SetDefault("btc.max_attempts", 3)
	v.SetDefault("signing.strategy", "local")
	v.SetDefault("indexer.kind", INDEXER_ESPLORA)
	v.SetDefault("indexer.timeout", "10s")
	v.SetDefault("evm.mode", EVM_MODE_RPC)
	v.SetDefault("token.name", "Wrapped Bitcoin")
	v.SetDefault("token.symbol", "WBTC")
	v.SetDefault("token.decimals", 18)
	v.SetDefault("db.path", "bridge.db")
	v.SetDefault("http.ip", "0.0.0.0")
	v.SetDefault("http.port", "8080")
	v.SetDefault("scheduler.tick", "1s")
	v.SetDefault("scheduler.deposit_policy", "per_minute")
	v.SetDefault("scheduler.withdraw_policy", "per_minute")
	v.SetDefault("scheduler.collect_policy", "per_minute")
	v.SetDefault("scheduler.refresh_policy", "600")
	v.SetDefault("log.level", "info")
	return v
}

// LoadConfig reads the config file at path, which may be empty, with the
// BRIDGE_ environment variables on top. btc.rpc.port is read from
// BRIDGE_BTC_RPC_PORT.
func LoadConfig(path string) (*BridgeServerConfig, error) {
	v := newViper()
	if path != "" {
		if !FileExists(path) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return parseConfig(v)
}

func parseConfig(v *viper.Viper) (*BridgeServerConfig, error) {
	params, err := common.NetworkParams(v.GetString("btc.network"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, v.GetString("btc.network"))
	}

	signing, err := parseSigning(v)
	if err != nil {
		return nil, err
	}

	cfg := &BridgeServerConfig{
		MinConfirmations: v.GetUint32("bridge.min_confirmations"),
		DepositFee:       v.GetUint64("bridge.deposit_fee"),
		Erc20MinterFee:   v.GetUint64("bridge.erc20_minter_fee"),
		SenderID:         order.Id256FromHex(v.GetString("bridge.sender_id")),
		SenderChainID:    v.GetUint32("bridge.sender_chain_id"),

		BtcParams: params,
		BtcRpc: btcrpc.RpcClientConfig{
			ServerAddr: v.GetString("btc.rpc.server"),
			Port:       v.GetString("btc.rpc.port"),
			Username:   v.GetString("btc.rpc.username"),
			Pwd:        v.GetString("btc.rpc.password"),
		},
		MasterPubKey:   v.GetString("btc.master_pubkey"),
		VaultWIF:       v.GetString("btc.vault_wif"),
		MinerFee:       v.GetInt64("btc.miner_fee"),
		MaxAttempts:    v.GetInt("btc.max_attempts"),
		IndexerKind:    strings.ToLower(v.GetString("indexer.kind")),
		IndexerUrl:     v.GetString("indexer.url"),
		IndexerTimeout: v.GetDuration("indexer.timeout"),

		Signing: signing,

		EvmMode:          strings.ToLower(v.GetString("evm.mode")),
		EvmUrl:           v.GetString("evm.url"),
		EvmChainID:       v.GetUint32("evm.chain_id"),
		MinterPrivateKey: v.GetString("evm.minter_private_key"),
		GasLimit:         v.GetUint64("evm.gas_limit"),

		TokenName:   v.GetString("token.name"),
		TokenSymbol: v.GetString("token.symbol"),
		TokenBaseID: order.Id256FromHex(v.GetString("token.base_id")),

		DbFilePath: v.GetString("db.path"),
		HttpIp:     v.GetString("http.ip"),
		HttpPort:   v.GetString("http.port"),

		SchedulerTick:       v.GetDuration("scheduler.tick"),
		SchedulerMaxRetries: v.GetInt("scheduler.max_retries"),

		LogLevel: v.GetString("log.level"),
	}

	decimals := v.GetUint("token.decimals")
	if decimals > 36 {
		return nil, fmt.Errorf("%w: token.decimals %d", ErrInvalidValue, decimals)
	}
	cfg.TokenDecimals = uint8(decimals)

	for key, dst := range map[string]*ethcommon.Address{
		"evm.bridge_address": &cfg.BridgeAddress,
		"token.address":      &cfg.TokenAddress,
	} {
		s := v.GetString(key)
		if s == "" {
			continue
		}
		if !ethcommon.IsHexAddress(s) {
			return nil, fmt.Errorf("%w: %s %q", ErrInvalidValue, key, s)
		}
		*dst = ethcommon.HexToAddress(s)
	}

	switch cfg.EvmMode {
	case EVM_MODE_RPC, EVM_MODE_SIMULATED:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvmMode, cfg.EvmMode)
	}
	switch cfg.IndexerKind {
	case INDEXER_ESPLORA, INDEXER_BITCOIND:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownIndexerKind, cfg.IndexerKind)
	}

	// rpc submits with its own account, simulated mints as the order signer
	if cfg.EvmMode == EVM_MODE_RPC && cfg.MinterPrivateKey == "" {
		return nil, fmt.Errorf("%w: evm.minter_private_key", ErrMissingPrivateKey)
	}
	if cfg.VaultWIF == "" {
		return nil, fmt.Errorf("%w: btc.vault_wif", ErrMissingPrivateKey)
	}
	if cfg.MasterPubKey == "" {
		return nil, ErrMissingMasterKey
	}

	cfg.Orchestrator = orchestrator.DefaultConfig()
	cfg.Orchestrator.MaxInputPolls = v.GetInt("bridge.max_input_polls")
	cfg.Orchestrator.BatchMint = v.GetBool("bridge.batch_mint")
	for key, dst := range map[string]*scheduler.IntervalPolicy{
		"scheduler.deposit_policy":  &cfg.Orchestrator.DepositPolicy,
		"scheduler.withdraw_policy": &cfg.Orchestrator.WithdrawPolicy,
		"scheduler.collect_policy":  &cfg.Orchestrator.CollectPolicy,
		"scheduler.refresh_policy":  &cfg.Orchestrator.RefreshPolicy,
	} {
		p, err := scheduler.ParsePolicy(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
		}
		*dst = p
	}

	return cfg, nil
}

func parseSigning(v *viper.Viper) (signers.Strategy, error) {
	kind, err := signers.ParseStrategyKind(v.GetString("signing.strategy"))
	if err != nil {
		return signers.Strategy{}, fmt.Errorf("%w: %s", ErrUnknownSigningStrategy, v.GetString("signing.strategy"))
	}

	s := signers.Strategy{Kind: kind}
	switch kind {
	case signers.StrategyLocal:
		s.PrivateKey = v.GetString("signing.private_key")
		if s.PrivateKey == "" {
			return signers.Strategy{}, fmt.Errorf("%w: signing.private_key", ErrMissingPrivateKey)
		}
	case signers.StrategyRemote:
		addr := v.GetString("signing.address")
		if !ethcommon.IsHexAddress(addr) {
			return signers.Strategy{}, fmt.Errorf("%w: signing.address %q", ErrInvalidValue, addr)
		}
		s.Remote = signers.RemoteConfig{
			ServerAddress: v.GetString("signing.remote_url"),
			KeyID:         v.GetString("signing.key_id"),
			Address:       ethcommon.HexToAddress(addr),
			Cert:          v.GetString("signing.tls.cert"),
			Key:           v.GetString("signing.tls.key"),
			ServerCACert:  v.GetString("signing.tls.ca_cert"),
		}
	}
	return s, nil
}
