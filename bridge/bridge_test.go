package bridge

import (
	"context"
	"math/big"
	"testing"

	"github.com/TEENet-io/mintburn-bridge/common"
	"github.com/TEENet-io/mintburn-bridge/order"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintAndReplay(t *testing.T) {
	env := newWrappedEnv(t, false)
	recipient := common.RandEthAddress()
	signed := env.sign(t, env.order(recipient, 10, 0))

	nonce, err := env.bridge.Mint(CallOpts{Sender: env.minter}, signed)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), nonce)
	assert.Equal(t, big.NewInt(10), env.balance(recipient))
	assert.True(t, env.bridge.IsNonceUsed(testSenderID, 0))

	// same payload again
	_, err = env.bridge.Mint(CallOpts{Sender: env.minter}, signed)
	assert.ErrorIs(t, err, ErrUsedNonce)
	assert.True(t, IsRevert(err))
	assert.Equal(t, big.NewInt(10), env.balance(recipient))

	evs := mintEvents(env.bridge.Events(0, env.bridge.BlockNumber()))
	require.Len(t, evs, 1)
	assert.Equal(t, recipient, evs[0].Recipient)
	assert.Equal(t, env.wrapped, evs[0].ToERC20)
	assert.Equal(t, testSenderID, evs[0].SenderID)
	assert.Equal(t, int64(0), evs[0].ChargedFee.Int64())
}

func TestMintValidationOrder(t *testing.T) {
	env := newWrappedEnv(t, false)
	other, _ := newSigner(t)
	recipient := common.RandEthAddress()

	cases := []struct {
		name   string
		modify func(o *order.MintOrder)
		err    error
	}{
		{"zero recipient wins over zero amount", func(o *order.MintOrder) {
			o.Recipient = ethcommon.Address{}
			o.Amount = new(big.Int)
		}, ErrZeroRecipient},
		{"zero amount", func(o *order.MintOrder) { o.Amount = new(big.Int) }, ErrZeroAmount},
		{"wrong chain", func(o *order.MintOrder) { o.RecipientChainID = 1 }, ErrUnexpectedRecipientChain},
		{"pair mismatch", func(o *order.MintOrder) {
			o.FromTokenID = order.Id256FromHex("0x03")
		}, ErrSrcTokenMismatch},
		{"unknown token", func(o *order.MintOrder) { o.ToToken = common.RandEthAddress() }, ErrTokensNotBridged},
	}

	for i, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			o := env.order(recipient, 10, uint32(100+i))
			c.modify(o)
			_, err := env.bridge.Mint(CallOpts{Sender: env.minter}, env.sign(t, o))
			assert.ErrorIs(t, err, c.err)
			assert.False(t, env.bridge.IsNonceUsed(testSenderID, uint32(100+i)))
		})
	}

	t.Run("foreign signature", func(t *testing.T) {
		o := env.order(recipient, 10, 1)
		signed, err := o.Sign(context.Background(), other)
		require.NoError(t, err)
		_, err = env.bridge.Mint(CallOpts{Sender: env.minter}, signed)
		assert.ErrorIs(t, err, ErrInvalidSignature)
		assert.False(t, env.bridge.IsNonceUsed(testSenderID, 1))
	})

	t.Run("input errors are reported before the signature", func(t *testing.T) {
		o := env.order(recipient, 0, 2)
		signed, err := o.Sign(context.Background(), other)
		require.NoError(t, err)
		_, err = env.bridge.Mint(CallOpts{Sender: env.minter}, signed)
		assert.ErrorIs(t, err, ErrZeroAmount)
	})

	assert.Equal(t, int64(0), env.balance(recipient).Int64())
}

func TestMintChargesFee(t *testing.T) {
	env := newWrappedEnv(t, true)
	recipient := common.RandEthAddress()
	gasPrice := big.NewInt(3)
	expectedFee := big.NewInt((DefaultMintGasUsed + 10_000) * 3)

	// no deposit, whole call reverts
	_, err := env.bridge.Mint(CallOpts{Sender: env.minter, GasPrice: gasPrice}, env.sign(t, env.order(recipient, 10, 0)))
	assert.ErrorIs(t, err, ErrInsufficientFeeDeposit)
	assert.False(t, env.bridge.IsNonceUsed(testSenderID, 0))
	assert.Equal(t, int64(0), env.balance(recipient).Int64())

	env.fees.NativeTokenDeposit(recipient, big.NewInt(1_000_000))
	_, err = env.bridge.Mint(CallOpts{Sender: env.minter, GasPrice: gasPrice}, env.sign(t, env.order(recipient, 10, 0)))
	require.NoError(t, err)

	assert.Equal(t, new(big.Int).Sub(big.NewInt(1_000_000), expectedFee), env.fees.Balance(recipient))
	assert.Equal(t, expectedFee, env.fees.NativeBalance(env.minter))

	evs := mintEvents(env.bridge.Events(0, env.bridge.BlockNumber()))
	require.Len(t, evs, 1)
	assert.Equal(t, expectedFee, evs[0].ChargedFee)

	// only the minter gets paid for submitting
	_, err = env.bridge.Mint(CallOpts{Sender: recipient, GasPrice: gasPrice}, env.sign(t, env.order(recipient, 10, 1)))
	require.NoError(t, err)
	assert.Equal(t, expectedFee, env.fees.NativeBalance(env.minter))
}

func TestMintApproveAndMetadata(t *testing.T) {
	env := newWrappedEnv(t, false)
	recipient := common.RandEthAddress()
	spender := common.RandEthAddress()

	o := env.order(recipient, 50, 0)
	o.ApproveSpender = spender
	o.ApproveAmount = big.NewInt(20)
	o.SetMetadata("Bitcoin", "BTC", 8)

	_, err := env.bridge.Mint(CallOpts{Sender: env.minter}, env.sign(t, o))
	require.NoError(t, err)

	tok, ok := env.bridge.Tokens().Get(env.wrapped)
	require.True(t, ok)
	assert.Equal(t, big.NewInt(20), tok.Allowance(recipient, spender))
	assert.Equal(t, "Bitcoin", tok.Name())
	assert.Equal(t, "BTC", tok.Symbol())
}

func TestUpdateTokenMetadataNeedsOwner(t *testing.T) {
	env := newWrappedEnv(t, false)
	tok, ok := env.bridge.Tokens().Get(env.wrapped)
	require.True(t, ok)

	o := env.order(common.RandEthAddress(), 50, 0)
	o.SetMetadata("Bitcoin", "BTC", 8)
	tok.Owner = common.RandEthAddress()
	assert.ErrorIs(t, env.bridge.updateTokenMetadata(tok, o), ErrNotOwner)
	assert.Equal(t, "Wrapped BTC", tok.Name())
}

func TestDeployERC20SingleShot(t *testing.T) {
	env := newWrappedEnv(t, false)

	_, err := env.bridge.DeployERC20(CallOpts{Sender: env.minter}, "Other", "OTH", 18, testBaseTokenID)
	assert.ErrorIs(t, err, ErrWrapperAlreadyExists)
	assert.EqualError(t, err, "execution reverted: Wrapper already exist")

	assert.Equal(t, env.wrapped, env.bridge.GetWrappedToken(testBaseTokenID))
	assert.Equal(t, testBaseTokenID, env.bridge.GetBaseToken(env.wrapped))

	_, err = env.bridge.DeployERC20(CallOpts{Sender: env.minter}, "Zero", "Z", 18, order.Id256{})
	assert.ErrorIs(t, err, ErrInvalidBaseToken)

	assert.Equal(t, ethcommon.Address{}, env.bridge.GetWrappedToken(order.Id256FromHex("0x09")))
	assert.True(t, env.bridge.GetBaseToken(common.RandEthAddress()).IsZero())
}

func TestBurnOnWrappedSide(t *testing.T) {
	env := newWrappedEnv(t, false)
	user := common.RandEthAddress()
	_, err := env.bridge.Mint(CallOpts{Sender: env.minter}, env.sign(t, env.order(user, 10, 0)))
	require.NoError(t, err)

	var memo [32]byte
	memo[0] = 0x42
	recipientID := []byte("bcrt1qexampleaddress")

	opID, err := env.bridge.Burn(CallOpts{Sender: user}, big.NewInt(10), env.wrapped, testBaseTokenID, recipientID, memo)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), opID)
	assert.Equal(t, int64(0), env.balance(user).Int64())
	assert.Equal(t, int64(10), env.balance(env.bridge.Config().Address).Int64())

	blk := env.bridge.BlockNumber()
	assert.Equal(t, []uint32{uint32(blk)}, env.bridge.GetUserBurnHistory(user))

	logs := env.bridge.Events(blk, blk)
	require.Len(t, logs, 1)
	ev, ok := logs[0].Event.(*BurnTokenEvent)
	require.True(t, ok)
	assert.Equal(t, user, ev.Sender)
	assert.Equal(t, big.NewInt(10), ev.Amount)
	assert.Equal(t, env.wrapped, ev.FromERC20)
	assert.Equal(t, recipientID, ev.RecipientID)
	assert.Equal(t, [32]byte(testBaseTokenID), ev.ToToken)
	assert.Equal(t, "Wrapped BTC", common.TrimZeroBytes(ev.Name[:]))
	assert.Equal(t, "WBTC", common.TrimZeroBytes(ev.Symbol[:]))
	assert.Equal(t, uint8(8), ev.Decimals)
	assert.Equal(t, memo, ev.Memo)

	// nothing left to burn
	_, err = env.bridge.Burn(CallOpts{Sender: user}, big.NewInt(1), env.wrapped, testBaseTokenID, recipientID, memo)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint32(1), env.bridge.NextOperationID())
}

func TestBurnRejections(t *testing.T) {
	env := newWrappedEnv(t, false)
	user := common.RandEthAddress()
	opts := CallOpts{Sender: user}

	_, err := env.bridge.Burn(opts, big.NewInt(1), env.bridge.Config().Address, testBaseTokenID, nil, [32]byte{})
	assert.ErrorIs(t, err, ErrInvalidFromToken)

	_, err = env.bridge.Burn(opts, big.NewInt(0), env.wrapped, testBaseTokenID, nil, [32]byte{})
	assert.ErrorIs(t, err, ErrZeroAmount)

	_, err = env.bridge.Burn(opts, big.NewInt(1), common.RandEthAddress(), testBaseTokenID, nil, [32]byte{})
	assert.ErrorIs(t, err, ErrTokensNotBridged)

	// a token that exists but is not paired
	stray := env.bridge.Tokens().Deploy(user, "Stray", "STR", 18, false)
	_, err = env.bridge.Burn(opts, big.NewInt(1), stray.Address, testBaseTokenID, nil, [32]byte{})
	assert.ErrorIs(t, err, ErrTokensNotBridged)

	assert.Equal(t, uint32(0), env.bridge.NextOperationID())
	assert.Empty(t, env.bridge.GetUserBurnHistory(user))
}

func TestOperationIDIsGlobal(t *testing.T) {
	env := newWrappedEnv(t, false)
	alice, bob := common.RandEthAddress(), common.RandEthAddress()
	_, err := env.bridge.Mint(CallOpts{Sender: env.minter}, env.sign(t, env.order(alice, 5, 0)))
	require.NoError(t, err)
	_, err = env.bridge.Mint(CallOpts{Sender: env.minter}, env.sign(t, env.order(bob, 5, 1)))
	require.NoError(t, err)

	ids := []uint32{}
	for _, user := range []ethcommon.Address{alice, bob, alice} {
		id, err := env.bridge.Burn(CallOpts{Sender: user}, big.NewInt(2), env.wrapped, testBaseTokenID, []byte("r"), [32]byte{})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, []uint32{0, 1, 2}, ids)
	assert.Len(t, env.bridge.GetUserBurnHistory(alice), 2)
}

func TestBaseSideRoundTrip(t *testing.T) {
	signer, minter := newSigner(t)
	bridgeAddr := ethcommon.HexToAddress("0xb000000000000000000000000000000000000002")
	tokens := NewTokenStore()
	b := NewBridge(Config{Address: bridgeAddr, ChainID: testChainID, Minter: minter}, tokens, nil)

	issuer := common.RandEthAddress()
	base := tokens.Deploy(issuer, "Base", "BASE", 18, false)
	user := common.RandEthAddress()
	require.NoError(t, base.Mint(issuer, user, big.NewInt(100)))

	// burn needs an allowance on the base side
	_, err := b.Burn(CallOpts{Sender: user}, big.NewInt(40), base.Address, [32]byte{1}, []byte("peer"), [32]byte{})
	assert.ErrorIs(t, err, ErrInsufficientAllowance)

	base.Approve(user, bridgeAddr, big.NewInt(40))
	opID, err := b.Burn(CallOpts{Sender: user}, big.NewInt(40), base.Address, [32]byte{1}, []byte("peer"), [32]byte{})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), opID)
	assert.Equal(t, big.NewInt(40), base.BalanceOf(bridgeAddr))

	o := &order.MintOrder{
		Amount:           big.NewInt(40),
		SenderID:         testSenderID,
		FromTokenID:      testBaseTokenID,
		Recipient:        user,
		ToToken:          base.Address,
		RecipientChainID: testChainID,
	}
	signed, err := o.Sign(context.Background(), signer)
	require.NoError(t, err)

	// more than escrowed cannot be released
	tooMuch := *o
	tooMuch.Amount = big.NewInt(41)
	tooMuch.Nonce = 1
	signedTooMuch, err := tooMuch.Sign(context.Background(), signer)
	require.NoError(t, err)
	_, err = b.Mint(CallOpts{Sender: minter}, signedTooMuch)
	assert.ErrorIs(t, err, ErrTokensNotBridged)

	_, err = b.Mint(CallOpts{Sender: minter}, signed)
	require.NoError(t, err)
	assert.Equal(t, int64(0), base.BalanceOf(bridgeAddr).Int64())
	assert.Equal(t, big.NewInt(100), base.BalanceOf(user))

	_, err = b.DeployERC20(CallOpts{Sender: minter}, "W", "W", 8, testBaseTokenID)
	assert.ErrorIs(t, err, ErrNotWrappedSide)
}

func TestNotifyMinter(t *testing.T) {
	env := newWrappedEnv(t, false)
	sender := common.RandEthAddress()
	env.bridge.NotifyMinter(CallOpts{Sender: sender}, uint32(NotificationDepositRequest), sender.Bytes(), [32]byte{7})

	blk := env.bridge.BlockNumber()
	logs := env.bridge.Events(blk, blk)
	require.Len(t, logs, 1)
	ev, ok := logs[0].Event.(*NotifyMinterEvent)
	require.True(t, ok)
	assert.Equal(t, NotificationDepositRequest, ev.Type())
	assert.Equal(t, sender, ev.TxSender)
	assert.Equal(t, sender.Bytes(), ev.UserData)
	assert.Equal(t, "Other", NotificationType(9).String())
}
