package state

import (
	"math/big"
	"testing"

	"github.com/TEENet-io/mintburn-bridge/common"
	"github.com/TEENet-io/mintburn-bridge/order"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randTxID() string {
	h := common.RandBytes32()
	return ethcommon.Hash(h).Hex()[2:]
}

func newDeposit(recipient ethcommon.Address, amount int64) *Deposit {
	txID := randTxID()
	return &Deposit{
		SourceID:  txID + ":0",
		TxID:      txID,
		Amount:    amount,
		Recipient: recipient,
		Address:   "bcrt1qexample",
		Status:    DepositStatusAwaiting,
	}
}

func TestDepositsKeepInsertionOrder(t *testing.T) {
	st := New()
	alice, bob := common.RandEthAddress(), common.RandEthAddress()

	d1, d2, d3 := newDeposit(alice, 1), newDeposit(bob, 2), newDeposit(alice, 3)
	for _, d := range []*Deposit{d1, d2, d3} {
		inserted, err := st.UpsertDeposit(d)
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	// update does not move it
	d1.Confirmations = 5
	inserted, err := st.UpsertDeposit(d1)
	require.NoError(t, err)
	assert.False(t, inserted)

	got := st.DepositsOf(alice)
	require.Len(t, got, 2)
	assert.Equal(t, d1.SourceID, got[0].SourceID)
	assert.Equal(t, uint32(5), got[0].Confirmations)
	assert.Equal(t, d3.SourceID, got[1].SourceID)

	_, err = st.UpsertDeposit(&Deposit{})
	assert.ErrorIs(t, err, ErrEmptySourceID)

	require.NoError(t, st.SetDepositStatus(d2.SourceID, DepositStatusInvalidated, "gone"))
	d, ok := st.Deposit(d2.SourceID)
	require.True(t, ok)
	assert.Equal(t, DepositStatusInvalidated, d.Status)
	assert.Equal(t, "gone", d.Reason)
	assert.ErrorIs(t, st.SetDepositStatus("nope", DepositStatusMinted, ""), ErrDepositNotFound)

	// returned values are copies
	d.Amount = 999
	d, _ = st.Deposit(d2.SourceID)
	assert.Equal(t, int64(2), d.Amount)
}

func TestNonceCounter(t *testing.T) {
	st := New()
	sender := order.Id256FromEvmAddress(1, common.RandEthAddress())

	assert.Equal(t, uint32(0), st.NextNonce(sender))
	assert.Equal(t, uint32(0), st.NextNonce(sender), "reading does not reserve")

	require.NoError(t, st.PutOrder(&OrderRecord{SourceID: "a", SenderID: sender, Nonce: 0, Status: OrderStatusSigned}))
	assert.Equal(t, uint32(1), st.NextNonce(sender))

	require.NoError(t, st.PutOrder(&OrderRecord{SourceID: "b", SenderID: sender, Nonce: 4, Status: OrderStatusSigned}))
	assert.Equal(t, uint32(5), st.NextNonce(sender))

	assert.ErrorIs(t, st.PutOrder(&OrderRecord{SourceID: "a", SenderID: sender, Nonce: 9}), ErrOrderExists)
	assert.ErrorIs(t, st.PutOrder(&OrderRecord{SourceID: "c", SenderID: sender, Nonce: 4}), ErrNonceUsed)

	rec, ok := st.OrderByNonce(sender, 4)
	require.True(t, ok)
	assert.Equal(t, "b", rec.SourceID)

	other := order.Id256FromEvmAddress(2, common.RandEthAddress())
	assert.Equal(t, uint32(0), st.NextNonce(other))
}

func TestSetOrderStatus(t *testing.T) {
	st := New()
	sender := order.Id256FromEvmAddress(1, common.RandEthAddress())
	require.NoError(t, st.PutOrder(&OrderRecord{SourceID: "a", SenderID: sender, Status: OrderStatusSigned}))

	txHash := ethcommon.Hash(common.RandBytes32())
	require.NoError(t, st.SetOrderStatus("a", OrderStatusSent, txHash, ""))
	require.NoError(t, st.SetOrderStatus("a", OrderStatusRejected, ethcommon.Hash{}, "USED_NONCE"))

	rec, ok := st.Order("a")
	require.True(t, ok)
	assert.Equal(t, OrderStatusRejected, rec.Status)
	assert.Equal(t, txHash, rec.TxHash)
	assert.Equal(t, "USED_NONCE", rec.RejectCode)

	assert.ErrorIs(t, st.SetOrderStatus("x", OrderStatusSent, txHash, ""), ErrOrderNotFound)
}

func TestWithdrawals(t *testing.T) {
	st := New()
	alice := common.RandEthAddress()
	memo := common.RandBytes32()

	assert.True(t, st.PutWithdrawal(&Withdrawal{OperationID: 3, Sender: alice, Amount: big.NewInt(30), Status: WithdrawalStatusRequested}))
	assert.True(t, st.PutWithdrawal(&Withdrawal{OperationID: 1, Sender: alice, Amount: big.NewInt(10), Memo: memo, Status: WithdrawalStatusRequested}))
	assert.True(t, st.PutWithdrawal(&Withdrawal{OperationID: 2, Sender: common.RandEthAddress(), Amount: big.NewInt(20)}))
	assert.False(t, st.PutWithdrawal(&Withdrawal{OperationID: 1, Sender: alice, Amount: big.NewInt(99)}))

	ws := st.WithdrawalsOf(alice)
	require.Len(t, ws, 2)
	assert.Equal(t, uint32(1), ws[0].OperationID)
	assert.Equal(t, big.NewInt(10), ws[0].Amount)
	assert.Equal(t, uint32(3), ws[1].OperationID)

	w, ok := st.WithdrawalByMemo(memo)
	require.True(t, ok)
	assert.Equal(t, uint32(1), w.OperationID)

	w.Status = WithdrawalStatusFailed
	w.Reason = "invalid recipient"
	require.NoError(t, st.UpdateWithdrawal(w))
	w, _ = st.Withdrawal(1)
	assert.True(t, w.IsTerminal())

	assert.ErrorIs(t, st.UpdateWithdrawal(&Withdrawal{OperationID: 42}), ErrWithdrawalNotFound)
}
