// Server = btc side components + evm side components + db/state + http reporter,
// all driven by one orchestrator.

package cmd

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/crypto"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/mintburn-bridge/bridge"
	"github.com/TEENet-io/mintburn-bridge/btcman/assembler"
	btcrpc "github.com/TEENet-io/mintburn-bridge/btcman/rpc"
	"github.com/TEENet-io/mintburn-bridge/btcvault"
	"github.com/TEENet-io/mintburn-bridge/burnproc"
	"github.com/TEENet-io/mintburn-bridge/common"
	"github.com/TEENet-io/mintburn-bridge/database"
	"github.com/TEENet-io/mintburn-bridge/deposit"
	"github.com/TEENet-io/mintburn-bridge/etherman"
	"github.com/TEENet-io/mintburn-bridge/indexer"
	"github.com/TEENet-io/mintburn-bridge/mintorder"
	"github.com/TEENet-io/mintburn-bridge/orchestrator"
	"github.com/TEENet-io/mintburn-bridge/reporter"
	"github.com/TEENet-io/mintburn-bridge/scheduler"
	"github.com/TEENet-io/mintburn-bridge/signers"
	"github.com/TEENet-io/mintburn-bridge/state"
)

// gas price reported by the in-process contract
var simulatedGasPrice = big.NewInt(1)

// BridgeServer holds the objects that consists of the bridge server.
type BridgeServer struct {
	cfg *BridgeServerConfig

	// state side
	DB      *sql.DB
	StateDb *state.StateDB
	State   *state.State

	// btc side
	BtcRpcClient *btcrpc.RpcClient
	Indexer      indexer.Indexer
	Vault        *btcvault.TreasureVault

	// evm side
	Signer    signers.Signer
	Chain     etherman.Client
	Simulated *bridge.Bridge // nil unless evm.mode is simulated

	Orchestrator *orchestrator.Orchestrator
	Reporter     *reporter.HttpReporter

	closers []func() error
}

// NewBridgeServer builds every component from cfg. Nothing runs until Start.
func NewBridgeServer(ctx context.Context, cfg *BridgeServerConfig) (*BridgeServer, error) {
	srv := &BridgeServer{cfg: cfg}
	if err := srv.setup(ctx); err != nil {
		srv.Close()
		return nil, err
	}
	return srv, nil
}

func (srv *BridgeServer) setup(ctx context.Context) (err error) {
	cfg := srv.cfg

	// 0) state, restored from the db file
	srv.DB, err = database.OpenSqlite(cfg.DbFilePath)
	if err != nil {
		return fmt.Errorf("cannot open db %s: %w", cfg.DbFilePath, err)
	}
	srv.closers = append(srv.closers, srv.DB.Close)

	srv.StateDb, err = state.NewStateDB(srv.DB)
	if err != nil {
		return err
	}
	srv.State, err = srv.StateDb.Load()
	if err != nil {
		return fmt.Errorf("cannot load state: %w", err)
	}

	// 1) btc node and indexer
	srv.BtcRpcClient, err = SetupBtcRpc(cfg.BtcRpc)
	if err != nil {
		return err
	}
	srv.closers = append(srv.closers, func() error { srv.BtcRpcClient.Close(); return nil })

	switch cfg.IndexerKind {
	case INDEXER_BITCOIND:
		srv.Indexer = newWatchingIndexer(indexer.NewRpcIndexer(srv.BtcRpcClient, cfg.BtcParams), srv.BtcRpcClient)
	default:
		srv.Indexer = indexer.NewEsploraIndexer(cfg.IndexerUrl, cfg.IndexerTimeout)
	}

	// 2) vault paying the withdrawals
	vaultSigner, err := assembler.NewNativeSigner(cfg.VaultWIF, cfg.BtcParams)
	if err != nil {
		return fmt.Errorf("invalid btc.vault_wif: %w", err)
	}
	operator, err := assembler.NewNativeOperator(*vaultSigner)
	if err != nil {
		return err
	}
	vaultAddr := operator.P2WPKH.EncodeAddress()
	storage, err := btcvault.NewVaultSQLiteStorage(srv.DB, vaultAddr)
	if err != nil {
		return err
	}
	srv.Vault = btcvault.NewTreasureVault(vaultAddr, storage)
	logger.WithField("address", vaultAddr).Info("btc vault")

	// 3) mint order signer
	signer, closeSigner, err := signers.NewSigner(ctx, cfg.Signing)
	if err != nil {
		return err
	}
	srv.Signer = signer
	srv.closers = append(srv.closers, closeSigner)

	// 4) destination chain
	if err := srv.setupChain(ctx); err != nil {
		return err
	}

	// 5) services
	masterBytes, err := hex.DecodeString(common.Trim0xPrefix(cfg.MasterPubKey))
	if err != nil {
		return fmt.Errorf("invalid btc.master_pubkey: %w", err)
	}
	master, err := btcec.ParsePubKey(masterBytes)
	if err != nil {
		return fmt.Errorf("invalid btc.master_pubkey: %w", err)
	}

	deposits := deposit.NewEngine(deposit.Config{
		MinConfirmations: cfg.MinConfirmations,
		DepositFee:       cfg.DepositFee,
	}, srv.State, srv.Indexer, deposit.NewAddressDeriver(master, cfg.EvmChainID, cfg.BtcParams))

	builder := mintorder.NewBuilder(mintorder.Config{
		SenderID:         cfg.SenderID,
		FromTokenID:      cfg.TokenBaseID,
		ToToken:          cfg.TokenAddress,
		SenderChainID:    cfg.SenderChainID,
		RecipientChainID: cfg.EvmChainID,
		Name:             cfg.TokenName,
		Symbol:           cfg.TokenSymbol,
		Decimals:         cfg.TokenDecimals,
		DepositFee:       cfg.DepositFee,
	}, srv.State, srv.Signer)

	burns := burnproc.NewProcessor(burnproc.Config{
		MinConfirmations: cfg.MinConfirmations,
		MaxAttempts:      cfg.MaxAttempts,
		MinerFee:         cfg.MinerFee,
		ChangeAddress:    vaultAddr,
		Params:           cfg.BtcParams,
	}, srv.State, srv.Vault, assembler.NewAssembler(cfg.BtcParams, operator), srv.BtcRpcClient)

	sched := scheduler.New(scheduler.Config{
		Tick:       cfg.SchedulerTick,
		MaxRetries: cfg.SchedulerMaxRetries,
	})

	srv.Orchestrator, err = orchestrator.New(cfg.Orchestrator, orchestrator.Components{
		State:     srv.State,
		DB:        srv.StateDb,
		Scheduler: sched,
		Deposits:  deposits,
		Builder:   builder,
		Chain:     srv.Chain,
		Burns:     burns,
	}, cfg.TokenBaseID)
	if err != nil {
		return err
	}

	// 6) http side
	srv.Reporter = reporter.NewHttpReporter(cfg.HttpIp, cfg.HttpPort, srv.Orchestrator)

	return nil
}

func (srv *BridgeServer) setupChain(ctx context.Context) error {
	cfg := srv.cfg

	if cfg.EvmMode == EVM_MODE_RPC {
		em, err := etherman.NewEtherman(ctx, &etherman.Config{
			URL:                   cfg.EvmUrl,
			BridgeContractAddress: cfg.BridgeAddress,
			MinterPrivateKey:      cfg.MinterPrivateKey,
			GasLimit:              cfg.GasLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to create etherman: %w", err)
		}
		logger.WithField("address", cfg.BridgeAddress.Hex()).Info("bridge contract")
		srv.Chain = em
		return nil
	}

	minter := srv.Signer.Address()
	if cfg.MinterPrivateKey != "" {
		sk, err := etherman.StringToPrivateKey(cfg.MinterPrivateKey)
		if err != nil {
			return err
		}
		minter = crypto.PubkeyToAddress(sk.PublicKey)
	}

	b := bridge.NewBridge(bridge.Config{
		Address:          cfg.BridgeAddress,
		ChainID:          cfg.EvmChainID,
		Minter:           minter,
		IsWrappedSide:    true,
		FeeChargeEnabled: cfg.Erc20MinterFee > 0,
		AdditionalGasFee: cfg.Erc20MinterFee,
	}, bridge.NewTokenStore(), bridge.NewFeeCharge(cfg.BridgeAddress))
	token, err := b.DeployERC20(bridge.CallOpts{Sender: minter}, cfg.TokenName, cfg.TokenSymbol, cfg.TokenDecimals, cfg.TokenBaseID)
	if err != nil {
		return fmt.Errorf("failed to deploy token on simulated bridge: %w", err)
	}
	logger.WithFields(logger.Fields{
		"token":  token.Hex(),
		"minter": minter.Hex(),
	}).Info("using simulated bridge")

	srv.Simulated = b
	srv.Chain = etherman.NewSimulatedClient(b, minter, simulatedGasPrice)
	return nil
}

// Start runs the orchestrator and the http reporter until ctx is done.
func (srv *BridgeServer) Start(ctx context.Context) error {
	if err := srv.Orchestrator.Start(ctx); err != nil {
		return err
	}
	defer srv.Orchestrator.Stop()

	err := srv.Reporter.Run(ctx)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases the connections in reverse order of creation.
func (srv *BridgeServer) Close() {
	for i := len(srv.closers) - 1; i >= 0; i-- {
		if err := srv.closers[i](); err != nil {
			logger.Warnf("failed to close server component: %v", err)
		}
	}
	srv.closers = nil
}

// StartBridgeServerAndWait builds the server and blocks until ctx is done.
func StartBridgeServerAndWait(ctx context.Context, cfg *BridgeServerConfig) error {
	srv, err := NewBridgeServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer srv.Close()
	return srv.Start(ctx)
}

type addressWatcher interface {
	WatchAddress(address string) error
}

// watchingIndexer imports every queried address into the node wallet once,
// bitcoind only lists unspent outputs of addresses it watches.
type watchingIndexer struct {
	*indexer.RpcIndexer
	node    addressWatcher
	watched sync.Map
}

func newWatchingIndexer(idx *indexer.RpcIndexer, node addressWatcher) *watchingIndexer {
	return &watchingIndexer{RpcIndexer: idx, node: node}
}

func (w *watchingIndexer) GetBalance(ctx context.Context, address string) ([]indexer.Utxo, error) {
	if _, ok := w.watched.Load(address); !ok {
		if err := w.node.WatchAddress(address); err != nil {
			return nil, fmt.Errorf("%w: %v", indexer.ErrIndexerUnavailable, err)
		}
		w.watched.Store(address, struct{}{})
	}
	return w.RpcIndexer.GetBalance(ctx, address)
}
