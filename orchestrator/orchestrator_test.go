package orchestrator

import (
	"context"
	"encoding/binary"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/TEENet-io/mintburn-bridge/bridge"
	"github.com/TEENet-io/mintburn-bridge/btcman/assembler"
	"github.com/TEENet-io/mintburn-bridge/btcman/rpc"
	"github.com/TEENet-io/mintburn-bridge/btcvault"
	"github.com/TEENet-io/mintburn-bridge/burnproc"
	"github.com/TEENet-io/mintburn-bridge/common"
	"github.com/TEENet-io/mintburn-bridge/database"
	"github.com/TEENet-io/mintburn-bridge/deposit"
	"github.com/TEENet-io/mintburn-bridge/etherman"
	"github.com/TEENet-io/mintburn-bridge/indexer"
	"github.com/TEENet-io/mintburn-bridge/mintorder"
	"github.com/TEENet-io/mintburn-bridge/order"
	"github.com/TEENet-io/mintburn-bridge/scheduler"
	"github.com/TEENet-io/mintburn-bridge/signers"
	"github.com/TEENet-io/mintburn-bridge/state"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChainID = 1337

var (
	testSenderID = order.Id256FromHex("0x0200000000000000000000000000000000000000000000000000000000000000")
	testBaseID   = order.Id256FromHex("0x0200000000000000000000000000000000000000000000000000000000000001")
	oneBtc       = int64(100_000_000)
)

type fakeIndexer struct {
	tip   uint32
	utxos map[string][]indexer.Utxo
	err   error
}

func (f *fakeIndexer) GetBalance(_ context.Context, address string) ([]indexer.Utxo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.utxos[address], nil
}

func (f *fakeIndexer) TipHeight(context.Context) (uint32, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.tip, nil
}

type fakeNode struct {
	sent          []*wire.MsgTx
	confirmations map[string]uint64
}

func (n *fakeNode) SendRawTx(tx *wire.MsgTx) (*chainhash.Hash, error) {
	n.sent = append(n.sent, tx)
	hash := tx.TxHash()
	if _, ok := n.confirmations[hash.String()]; !ok {
		n.confirmations[hash.String()] = 0
	}
	return &hash, nil
}

func (n *fakeNode) GetTxConfirmations(txID string) (uint64, error) {
	c, ok := n.confirmations[txID]
	if !ok {
		return 0, rpc.ErrTxNotFound
	}
	return c, nil
}

type testEnv struct {
	t   *testing.T
	ctx context.Context
	cfg Config

	bridge *bridge.Bridge
	client *etherman.SimulatedClient
	signer *signers.LocalSigner
	token  ethcommon.Address

	master  *btcec.PrivateKey
	idx     *fakeIndexer
	node    *fakeNode
	vault   *btcvault.TreasureVault
	op      *assembler.NativeOperator
	vaultPk []byte
	db      *state.StateDB

	recipientChainID uint32

	st   *state.State
	orch *Orchestrator
}

func testConfig() Config {
	return Config{
		DepositPolicy:  scheduler.Period(0),
		WithdrawPolicy: scheduler.Period(0),
		CollectPolicy:  scheduler.Period(0),
		RefreshPolicy:  scheduler.Period(0),
		MaxInputPolls:  3,
	}
}

func newTestEnv(t *testing.T, cfg Config, recipientChainID uint32, opts ...func(*bridge.Config)) *testEnv {
	signer, err := signers.NewRandomLocalSigner()
	require.NoError(t, err)

	bcfg := bridge.Config{
		Address:       ethcommon.HexToAddress("0xb000000000000000000000000000000000000001"),
		ChainID:       testChainID,
		Minter:        signer.Address(),
		IsWrappedSide: true,
	}
	for _, opt := range opts {
		opt(&bcfg)
	}
	b := bridge.NewBridge(bcfg, bridge.NewTokenStore(), bridge.NewFeeCharge(ethcommon.HexToAddress("0xfee0000000000000000000000000000000000001")))
	token, err := b.DeployERC20(bridge.CallOpts{Sender: signer.Address()}, "Wrapped Bitcoin", "WBTC", 18, testBaseID)
	require.NoError(t, err)

	master, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	vaultKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	op, err := assembler.NewNativeOperator(assembler.NativeSigner{
		ChainConfig: &chaincfg.RegressionNetParams,
		PrivKey:     vaultKey,
		PubKey:      vaultKey.PubKey(),
	})
	require.NoError(t, err)
	pkScript, err := txscript.PayToAddrScript(op.P2WPKH)
	require.NoError(t, err)

	sqlDB, err := database.OpenSqlite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	storage, err := btcvault.NewVaultSQLiteStorage(sqlDB, "orchestrator")
	require.NoError(t, err)
	stateDB, err := state.NewStateDB(sqlDB)
	require.NoError(t, err)

	env := &testEnv{
		t:                t,
		ctx:              context.Background(),
		cfg:              cfg,
		bridge:           b,
		client:           etherman.NewSimulatedClient(b, signer.Address(), big.NewInt(2)),
		signer:           signer,
		token:            token,
		master:           master,
		idx:              &fakeIndexer{tip: 100, utxos: map[string][]indexer.Utxo{}},
		node:             &fakeNode{confirmations: map[string]uint64{}},
		vault:            btcvault.NewTreasureVault(op.P2WPKH.EncodeAddress(), storage),
		op:               op,
		vaultPk:          pkScript,
		db:               stateDB,
		recipientChainID: recipientChainID,
	}
	env.build(state.New())
	return env
}

// build wires a fresh orchestrator over st and the shared chains.
func (env *testEnv) build(st *state.State) {
	t := env.t
	params := &chaincfg.RegressionNetParams

	engine := deposit.NewEngine(deposit.Config{MinConfirmations: 1},
		st, env.idx, deposit.NewAddressDeriver(env.master.PubKey(), testChainID, params))
	builder := mintorder.NewBuilder(mintorder.Config{
		SenderID:         testSenderID,
		FromTokenID:      testBaseID,
		RecipientChainID: env.recipientChainID,
		Name:             "Wrapped Bitcoin",
		Symbol:           "WBTC",
		Decimals:         18,
	}, st, env.signer)
	burns := burnproc.NewProcessor(burnproc.Config{
		MinConfirmations: 1,
		MaxAttempts:      2,
		MinerFee:         1_000,
		ChangeAddress:    env.op.P2WPKH.EncodeAddress(),
		Params:           params,
	}, st, env.vault, assembler.NewAssembler(params, env.op), env.node)

	orch, err := New(env.cfg, Components{
		State:     st,
		DB:        env.db,
		Scheduler: scheduler.New(scheduler.Config{}),
		Deposits:  engine,
		Builder:   builder,
		Chain:     env.client,
		Burns:     burns,
	}, testBaseID)
	require.NoError(t, err)
	require.NoError(t, orch.Setup(env.ctx))

	env.st = st
	env.orch = orch
}

func (env *testEnv) pay(recipient ethcommon.Address, value int64) string {
	addr, err := env.orch.DepositAddress(recipient)
	require.NoError(env.t, err)
	txID := ethcommon.Hash(common.RandBytes32()).Hex()[2:]
	env.idx.utxos[addr] = append(env.idx.utxos[addr], indexer.Utxo{TxID: txID, Vout: 0, Value: value, Height: env.idx.tip})
	return txID + ":0"
}

func (env *testEnv) fundVault(amounts ...int64) {
	for i, a := range amounts {
		txID := ethcommon.Hash(common.RandBytes32()).Hex()[2:]
		require.NoError(env.t, env.vault.AddUTXO(int32(i+1), strings.Repeat("0", 64), txID, 0, a, env.vaultPk))
	}
}

func (env *testEnv) balanceOf(a ethcommon.Address) *big.Int {
	tok, ok := env.bridge.Tokens().Get(env.token)
	require.True(env.t, ok)
	return tok.BalanceOf(a)
}

func (env *testEnv) status(id scheduler.TaskID) scheduler.TaskStatus {
	st, ok := env.orch.Scheduler().Status(id)
	require.True(env.t, ok)
	return st
}

func regtestAddress(t *testing.T) string {
	sk, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(sk.PubKey().SerializeCompressed()), &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	return addr.EncodeAddress()
}

func TestNewRequiresComponents(t *testing.T) {
	_, err := New(DefaultConfig(), Components{State: state.New()}, testBaseID)
	assert.ErrorIs(t, err, ErrMissingComponent)
}

func TestSetupRefreshesEvmParams(t *testing.T) {
	env := newTestEnv(t, testConfig(), testChainID)

	assert.Equal(t, big.NewInt(testChainID), env.st.EvmChainID())
	assert.Equal(t, big.NewInt(2), env.st.GasPrice())
	assert.Equal(t, env.token, env.orch.builder.ToToken())

	_, ok := env.orch.Scheduler().Active(KindCollectEvmLogs, "")
	assert.True(t, ok)
	_, ok = env.orch.Scheduler().Active(KindRefreshEvmParams, "")
	assert.True(t, ok)

	env.client.SetGasPrice(big.NewInt(7))
	env.orch.RunOnce(env.ctx)
	assert.Equal(t, big.NewInt(7), env.st.GasPrice())
}

func TestDepositAndWithdrawRoundTrip(t *testing.T) {
	env := newTestEnv(t, testConfig(), testChainID)
	alice := common.RandEthAddress()

	sourceID := env.pay(alice, 10*oneBtc)
	id, err := env.orch.RequestDeposit(alice)
	require.NoError(t, err)
	again, err := env.orch.RequestDeposit(alice)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	env.orch.RunOnce(env.ctx)

	assert.Equal(t, scheduler.TaskDone, env.status(id).State)
	ten := new(big.Int).Mul(big.NewInt(10), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	assert.Equal(t, ten, env.balanceOf(alice))

	rec, ok := env.st.Order(sourceID)
	require.True(t, ok)
	assert.Equal(t, state.OrderStatusMinted, rec.Status)
	assert.Equal(t, uint32(0), rec.Nonce)
	d, _ := env.st.Deposit(sourceID)
	assert.Equal(t, state.DepositStatusMinted, d.Status)

	// the mint event of an already settled order changes nothing
	env.orch.RunOnce(env.ctx)
	rec, _ = env.st.Order(sourceID)
	assert.Equal(t, state.OrderStatusMinted, rec.Status)

	env.fundVault(6*oneBtc, 6*oneBtc)
	receiver := regtestAddress(t)
	memo := common.RandBytes32()
	opID, err := env.bridge.Burn(bridge.CallOpts{Sender: alice}, ten, env.token, testBaseID, []byte(receiver), memo)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), opID)
	assert.Zero(t, env.balanceOf(alice).Sign())

	// the first pass collects the burn, the second broadcasts
	env.orch.RunOnce(env.ctx)
	flow, ok := env.orch.Scheduler().Active(KindWithdraw, withdrawKey(opID))
	require.True(t, ok)
	env.orch.RunOnce(env.ctx)

	w, ok := env.st.Withdrawal(opID)
	require.True(t, ok)
	assert.Equal(t, state.WithdrawalStatusBroadcast, w.Status)
	assert.Equal(t, 10*oneBtc, w.Satoshi)
	assert.Equal(t, receiver, w.Receiver)
	require.Len(t, env.node.sent, 1)
	tx := env.node.sent[0]
	assert.Equal(t, 10*oneBtc-1_000, tx.TxOut[0].Value)
	data, err := assembler.DecodeWithdrawData(tx.TxOut[1].PkScript)
	require.NoError(t, err)
	assert.Equal(t, opID, data.OperationID)
	assert.Equal(t, memo, data.Memo)

	env.orch.RunOnce(env.ctx)
	assert.Equal(t, scheduler.TaskScheduled, env.status(flow).State)

	env.node.confirmations[w.BtcTxID] = 1
	env.orch.RunOnce(env.ctx)
	assert.Equal(t, scheduler.TaskDone, env.status(flow).State)
	w, _ = env.st.Withdrawal(opID)
	assert.Equal(t, state.WithdrawalStatusConfirmed, w.Status)

	// both inputs are spent, the change is not tracked by the vault
	sum, err := env.vault.SumMoney()
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum)
}

func TestBatchMint(t *testing.T) {
	cfg := testConfig()
	cfg.BatchMint = true
	env := newTestEnv(t, cfg, testChainID)
	alice := common.RandEthAddress()

	first := env.pay(alice, oneBtc)
	second := env.pay(alice, 2*oneBtc)
	id, err := env.orch.RequestDeposit(alice)
	require.NoError(t, err)
	env.orch.RunOnce(env.ctx)

	assert.Equal(t, scheduler.TaskDone, env.status(id).State)
	for _, sourceID := range []string{first, second} {
		rec, ok := env.st.Order(sourceID)
		require.True(t, ok)
		assert.Equal(t, state.OrderStatusMinted, rec.Status)
	}
	three := new(big.Int).Mul(big.NewInt(3), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	assert.Equal(t, three, env.balanceOf(alice))
}

func TestRejectedOrderKeepsDepositOrdered(t *testing.T) {
	env := newTestEnv(t, testConfig(), 1)
	alice := common.RandEthAddress()

	sourceID := env.pay(alice, oneBtc)
	id, err := env.orch.RequestDeposit(alice)
	require.NoError(t, err)
	env.orch.RunOnce(env.ctx)

	rec, ok := env.st.Order(sourceID)
	require.True(t, ok)
	assert.Equal(t, state.OrderStatusRejected, rec.Status)
	assert.Equal(t, bridge.ErrUnexpectedRecipientChain.Error(), rec.RejectCode)
	d, _ := env.st.Deposit(sourceID)
	assert.Equal(t, state.DepositStatusOrdered, d.Status)
	assert.Equal(t, scheduler.TaskDone, env.status(id).State)
	assert.Zero(t, env.balanceOf(alice).Sign())
}

func TestIndexerOutageIsRetried(t *testing.T) {
	env := newTestEnv(t, testConfig(), testChainID)
	alice := common.RandEthAddress()
	sourceID := env.pay(alice, oneBtc)

	env.idx.err = errors.New("esplora unreachable")
	id, err := env.orch.RequestDeposit(alice)
	require.NoError(t, err)
	env.orch.RunOnce(env.ctx)

	st := env.status(id)
	assert.Equal(t, scheduler.TaskScheduled, st.State)
	assert.Equal(t, 1, st.Attempts)
	assert.Contains(t, st.LastError, "esplora unreachable")

	env.idx.err = nil
	env.orch.RunOnce(env.ctx)
	assert.Equal(t, scheduler.TaskDone, env.status(id).State)
	rec, _ := env.st.Order(sourceID)
	assert.Equal(t, state.OrderStatusMinted, rec.Status)
}

func TestDestinationOutageIsRetried(t *testing.T) {
	env := newTestEnv(t, testConfig(), testChainID)
	alice := common.RandEthAddress()
	sourceID := env.pay(alice, oneBtc)

	id, err := env.orch.RequestDeposit(alice)
	require.NoError(t, err)
	// collect and refresh eat the first two failures, the flow the third
	env.client.FailNext(3)
	env.orch.RunOnce(env.ctx)

	st := env.status(id)
	assert.Equal(t, scheduler.TaskScheduled, st.State)
	assert.Equal(t, 1, st.Attempts)
	rec, ok := env.st.Order(sourceID)
	require.True(t, ok)
	assert.Equal(t, state.OrderStatusSigned, rec.Status)

	env.orch.RunOnce(env.ctx)
	assert.Equal(t, scheduler.TaskDone, env.status(id).State)
	rec, _ = env.st.Order(sourceID)
	assert.Equal(t, state.OrderStatusMinted, rec.Status)
	assert.Equal(t, uint32(0), rec.Nonce)
}

func TestDepositFlowIsAbandoned(t *testing.T) {
	env := newTestEnv(t, testConfig(), testChainID)
	alice := common.RandEthAddress()

	id, err := env.orch.RequestDeposit(alice)
	require.NoError(t, err)
	for i := 0; i < env.cfg.MaxInputPolls; i++ {
		env.orch.RunOnce(env.ctx)
	}
	assert.Equal(t, scheduler.TaskDone, env.status(id).State)

	// a new request starts over
	next, err := env.orch.RequestDeposit(alice)
	require.NoError(t, err)
	assert.NotEqual(t, id, next)

	_, err = env.orch.RequestDeposit(ethcommon.Address{})
	assert.ErrorIs(t, err, deposit.ErrZeroRecipient)
}

func TestNotifyMinterRequestsDeposit(t *testing.T) {
	env := newTestEnv(t, testConfig(), testChainID)
	alice := common.RandEthAddress()
	env.pay(alice, oneBtc)

	env.bridge.NotifyMinter(bridge.CallOpts{Sender: alice}, uint32(bridge.NotificationDepositRequest), alice.Bytes(), [32]byte{})
	env.bridge.NotifyMinter(bridge.CallOpts{Sender: alice}, uint32(bridge.NotificationDepositRequest), []byte{1, 2, 3}, [32]byte{})
	env.orch.RunOnce(env.ctx)

	id, ok := env.orch.Scheduler().Active(KindDeposit, alice.Hex())
	require.True(t, ok)

	env.orch.RunOnce(env.ctx)
	assert.Equal(t, scheduler.TaskDone, env.status(id).State)
	assert.Equal(t, 1, env.balanceOf(alice).Cmp(big.NewInt(0)))
}

func TestRescheduleFailedWithdrawal(t *testing.T) {
	env := newTestEnv(t, testConfig(), testChainID)
	alice := common.RandEthAddress()
	env.pay(alice, oneBtc)
	_, err := env.orch.RequestDeposit(alice)
	require.NoError(t, err)
	env.orch.RunOnce(env.ctx)

	amount := env.balanceOf(alice)
	opID, err := env.bridge.Burn(bridge.CallOpts{Sender: alice}, amount, env.token, testBaseID, []byte(regtestAddress(t)), [32]byte{})
	require.NoError(t, err)

	// the vault is empty, so every attempt fails
	for i := 0; i < 4; i++ {
		env.orch.RunOnce(env.ctx)
	}
	w, ok := env.st.Withdrawal(opID)
	require.True(t, ok)
	assert.Equal(t, state.WithdrawalStatusFailed, w.Status)
	assert.Contains(t, w.Reason, btcvault.ErrNotEnoughUTXOs.Error())
	_, active := env.orch.Scheduler().Active(KindWithdraw, withdrawKey(opID))
	assert.False(t, active)

	env.fundVault(2 * oneBtc)
	userData := make([]byte, 8)
	binary.BigEndian.PutUint64(userData, uint64(opID))
	env.bridge.NotifyMinter(bridge.CallOpts{Sender: alice}, uint32(bridge.NotificationRescheduleOperation), userData, [32]byte{})

	env.orch.RunOnce(env.ctx)
	_, active = env.orch.Scheduler().Active(KindWithdraw, withdrawKey(opID))
	require.True(t, active)
	env.orch.RunOnce(env.ctx)

	w, _ = env.st.Withdrawal(opID)
	assert.Equal(t, state.WithdrawalStatusBroadcast, w.Status)
	assert.NotEmpty(t, w.BtcTxID)
}

func TestFlowsSurviveRestart(t *testing.T) {
	env := newTestEnv(t, testConfig(), testChainID)
	alice := common.RandEthAddress()

	id, err := env.orch.RequestDeposit(alice)
	require.NoError(t, err)
	env.orch.RunOnce(env.ctx)
	env.orch.Stop()

	loaded, err := env.db.Load()
	require.NoError(t, err)
	env.build(loaded)

	st := env.status(id)
	assert.Equal(t, scheduler.TaskScheduled, st.State)
	assert.Equal(t, KindDeposit, st.Kind)
	assert.Equal(t, alice.Hex(), st.Key)

	sourceID := env.pay(alice, oneBtc)
	env.orch.RunOnce(env.ctx)
	assert.Equal(t, scheduler.TaskDone, env.status(id).State)
	rec, ok := env.st.Order(sourceID)
	require.True(t, ok)
	assert.Equal(t, state.OrderStatusMinted, rec.Status)
	assert.Same(t, loaded, env.orch.State())
}

var feeTopUp = big.NewInt(1_000_000_000)

func withMintFee(c *bridge.Config) {
	c.FeeChargeEnabled = true
	c.AdditionalGasFee = 10_000
}

// rejectForFee runs a deposit of alice into an insufficient fee deposit.
func rejectForFee(t *testing.T, env *testEnv, alice ethcommon.Address) *state.OrderRecord {
	sourceID := env.pay(alice, oneBtc)
	_, err := env.orch.RequestDeposit(alice)
	require.NoError(t, err)
	env.orch.RunOnce(env.ctx)

	rec, ok := env.st.Order(sourceID)
	require.True(t, ok)
	require.Equal(t, state.OrderStatusRejected, rec.Status)
	assert.Equal(t, bridge.ErrInsufficientFeeDeposit.Error(), rec.RejectCode)
	d, _ := env.st.Deposit(sourceID)
	assert.Equal(t, state.DepositStatusOrdered, d.Status)
	assert.Zero(t, env.balanceOf(alice).Sign())

	// rejections are not retried on their own
	env.orch.RunOnce(env.ctx)
	again, _ := env.st.Order(sourceID)
	assert.Equal(t, state.OrderStatusRejected, again.Status)
	return rec
}

func assertMintedAsSigned(t *testing.T, env *testEnv, alice ethcommon.Address, rejected *state.OrderRecord) {
	rec, ok := env.st.Order(rejected.SourceID)
	require.True(t, ok)
	assert.Equal(t, state.OrderStatusMinted, rec.Status)
	assert.Equal(t, rejected.Nonce, rec.Nonce)
	assert.Equal(t, rejected.Payload, rec.Payload)
	assert.Empty(t, rec.RejectCode)

	d, _ := env.st.Deposit(rejected.SourceID)
	assert.Equal(t, state.DepositStatusMinted, d.Status)
	assert.Equal(t, 1, env.balanceOf(alice).Sign())
	// each mint charges its gas at price 2
	gas := env.bridge.Config().MintGasUsed + env.bridge.Config().AdditionalGasFee
	charged := new(big.Int).Mul(new(big.Int).SetUint64(gas), big.NewInt(2))
	assert.Equal(t, new(big.Int).Sub(feeTopUp, charged), env.bridge.FeeCharge().Balance(alice))
}

func TestRescheduleRejectedMintOrder(t *testing.T) {
	env := newTestEnv(t, testConfig(), testChainID, withMintFee)
	alice := common.RandEthAddress()
	rejected := rejectForFee(t, env, alice)

	env.bridge.FeeCharge().NativeTokenDeposit(alice, feeTopUp)
	env.bridge.NotifyMinter(bridge.CallOpts{Sender: alice}, uint32(bridge.NotificationRescheduleOperation), alice.Bytes(), [32]byte{})
	env.orch.RunOnce(env.ctx)
	env.orch.RunOnce(env.ctx)

	assertMintedAsSigned(t, env, alice, rejected)
}

func TestRequestDepositResubmitsRejectedOrder(t *testing.T) {
	env := newTestEnv(t, testConfig(), testChainID, withMintFee)
	alice := common.RandEthAddress()
	rejected := rejectForFee(t, env, alice)

	env.bridge.FeeCharge().NativeTokenDeposit(alice, feeTopUp)
	_, err := env.orch.RequestDeposit(alice)
	require.NoError(t, err)
	env.orch.RunOnce(env.ctx)

	assertMintedAsSigned(t, env, alice, rejected)

	// a minted order is not reopened
	_, err = env.orch.RequestDeposit(alice)
	require.NoError(t, err)
	rec, _ := env.st.Order(rejected.SourceID)
	assert.Equal(t, state.OrderStatusMinted, rec.Status)
}
