package bridge

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/TEENet-io/mintburn-bridge/order"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

const testChainID = 1337

var (
	testBaseTokenID = order.Id256FromHex("0x0200000000000000000000000000000000000000000000000000000000000001")
	testSenderID    = order.Id256FromEvmAddress(0, ethcommon.HexToAddress("0x000000000000000000000000000000000000beef"))
)

type keySigner struct {
	sk *ecdsa.PrivateKey
}

func (k *keySigner) Sign(_ context.Context, hash [32]byte) ([]byte, error) {
	sig, err := crypto.Sign(hash[:], k.sk)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

type testEnv struct {
	bridge  *Bridge
	signer  *keySigner
	minter  ethcommon.Address
	wrapped ethcommon.Address
	fees    *FeeCharge
}

func newSigner(t *testing.T) (*keySigner, ethcommon.Address) {
	sk, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &keySigner{sk: sk}, crypto.PubkeyToAddress(sk.PublicKey)
}

func newWrappedEnv(t *testing.T, feeEnabled bool) *testEnv {
	signer, minter := newSigner(t)
	fees := NewFeeCharge(ethcommon.HexToAddress("0xfee0000000000000000000000000000000000001"))
	b := NewBridge(Config{
		Address:          ethcommon.HexToAddress("0xb000000000000000000000000000000000000001"),
		ChainID:          testChainID,
		Minter:           minter,
		IsWrappedSide:    true,
		FeeChargeEnabled: feeEnabled,
		AdditionalGasFee: 10_000,
	}, NewTokenStore(), fees)

	wrapped, err := b.DeployERC20(CallOpts{Sender: minter}, "Wrapped BTC", "WBTC", 8, testBaseTokenID)
	require.NoError(t, err)

	return &testEnv{bridge: b, signer: signer, minter: minter, wrapped: wrapped, fees: fees}
}

func (e *testEnv) order(recipient ethcommon.Address, amount int64, nonce uint32) *order.MintOrder {
	o := &order.MintOrder{
		Amount:           big.NewInt(amount),
		SenderID:         testSenderID,
		FromTokenID:      testBaseTokenID,
		Recipient:        recipient,
		ToToken:          e.wrapped,
		Nonce:            nonce,
		RecipientChainID: testChainID,
		ApproveAmount:    new(big.Int),
		FeePayer:         recipient,
	}
	o.SetMetadata("Wrapped BTC", "WBTC", 8)
	return o
}

func (e *testEnv) sign(t *testing.T, o *order.MintOrder) []byte {
	signed, err := o.Sign(context.Background(), e.signer)
	require.NoError(t, err)
	return signed
}

func (e *testEnv) signBatch(t *testing.T, orders ...*order.MintOrder) *order.SignedOrders {
	batch, err := order.SignBatch(context.Background(), orders, e.signer)
	require.NoError(t, err)
	return batch
}

func (e *testEnv) balance(addr ethcommon.Address) *big.Int {
	tok, _ := e.bridge.Tokens().Get(e.wrapped)
	return tok.BalanceOf(addr)
}

func mintEvents(logs []Log) []*MintTokenEvent {
	res := []*MintTokenEvent{}
	for _, l := range logs {
		if ev, ok := l.Event.(*MintTokenEvent); ok {
			res = append(res, ev)
		}
	}
	return res
}
