package order

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func newKeySigner(t *testing.T) (*keySigner, ethcommon.Address) {
	sk, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &keySigner{sk: sk}, crypto.PubkeyToAddress(sk.PublicKey)
}

func randOrder(nonce uint32) *MintOrder {
	o := &MintOrder{
		Amount:           big.NewInt(1_000_000_000),
		SenderID:         Id256FromEvmAddress(1, ethcommon.HexToAddress("0x00000000000000000000000000000000000000aa")),
		FromTokenID:      Id256FromHex("0x0200000000000000000000000000000000000000000000000000000000000001"),
		Recipient:        ethcommon.HexToAddress("0x1111111111111111111111111111111111111111"),
		ToToken:          ethcommon.HexToAddress("0x2222222222222222222222222222222222222222"),
		Nonce:            nonce,
		SenderChainID:    0,
		RecipientChainID: 1337,
		ApproveSpender:   ethcommon.HexToAddress("0x3333333333333333333333333333333333333333"),
		ApproveAmount:    big.NewInt(5),
		FeePayer:         ethcommon.HexToAddress("0x1111111111111111111111111111111111111111"),
	}
	o.SetMetadata("Wrapped Bitcoin", "WBTC", 8)
	return o
}

func TestEncodeLayout(t *testing.T) {
	o := randOrder(0x01020304)
	b, err := o.Encode()
	require.NoError(t, err)
	require.Len(t, b, OrderSize)

	assert.Equal(t, []byte{0x3b, 0x9a, 0xca, 0x00}, b[28:32]) // 1e9
	assert.Equal(t, o.SenderID[:], b[32:64])
	assert.Equal(t, o.Recipient.Bytes(), b[96:116])
	assert.Equal(t, o.ToToken.Bytes(), b[116:136])
	assert.Equal(t, []byte{1, 2, 3, 4}, b[136:140])
	assert.Equal(t, []byte{0, 0, 0x05, 0x39}, b[144:148])
	assert.Equal(t, "Wrapped Bitcoin", string(b[148:163]))
	assert.Equal(t, "WBTC", string(b[180:184]))
	assert.Equal(t, byte(8), b[196])
	assert.Equal(t, o.ApproveSpender.Bytes(), b[197:217])
	assert.Equal(t, byte(5), b[248])
	assert.Equal(t, o.FeePayer.Bytes(), b[249:269])
}

func TestEncodeDecode(t *testing.T) {
	o := randOrder(7)
	b, err := o.Encode()
	require.NoError(t, err)

	decoded, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, 0, o.Amount.Cmp(decoded.Amount))
	assert.Equal(t, o.SenderID, decoded.SenderID)
	assert.Equal(t, o.Nonce, decoded.Nonce)
	assert.Equal(t, "Wrapped Bitcoin", decoded.NameString())
	assert.Equal(t, "WBTC", decoded.SymbolString())
	assert.Equal(t, 0, o.ApproveAmount.Cmp(decoded.ApproveAmount))

	_, err = Decode(b[:OrderSize-1])
	assert.ErrorIs(t, err, ErrInvalidOrderLength)
}

func TestEncodeRejectsOverflow(t *testing.T) {
	o := randOrder(1)
	o.Amount = new(big.Int).Lsh(big.NewInt(1), 256)
	_, err := o.Encode()
	assert.ErrorIs(t, err, ErrAmountOverflow)

	o.Amount = big.NewInt(-1)
	_, err = o.Encode()
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestSignAndRecover(t *testing.T) {
	signer, addr := newKeySigner(t)

	signed, err := randOrder(3).Sign(context.Background(), signer)
	require.NoError(t, err)
	require.Len(t, signed, SignedOrderSize)

	recovered, err := signed.Recover()
	require.NoError(t, err)
	assert.Equal(t, addr, recovered)

	// any bit flip in the payload changes the recovered address
	tampered := make(SignedOrder, len(signed))
	copy(tampered, signed)
	tampered[0] ^= 0xff
	recovered, err = tampered.Recover()
	if err == nil {
		assert.NotEqual(t, addr, recovered)
	}

	_, err = SignedOrder(signed[:100]).Order()
	assert.ErrorIs(t, err, ErrInvalidSignedOrderLength)
}

func TestSignBatch(t *testing.T) {
	signer, addr := newKeySigner(t)
	orders := []*MintOrder{randOrder(1), randOrder(2), randOrder(3)}

	batch, err := SignBatch(context.Background(), orders, signer)
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Len())
	assert.Len(t, batch.Orders, 3*OrderSize)

	recovered, err := batch.Recover()
	require.NoError(t, err)
	assert.Equal(t, addr, recovered)

	all, err := batch.All()
	require.NoError(t, err)
	for i, o := range all {
		assert.Equal(t, uint32(i+1), o.Nonce)
	}

	_, err = batch.Order(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = SignBatch(context.Background(), nil, signer)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestId256(t *testing.T) {
	addr := ethcommon.HexToAddress("0x00000000000000000000000000000000000000aa")
	id := Id256FromEvmAddress(355113, addr)
	assert.True(t, id.IsEvmAddress())

	chainID, err := id.ChainID()
	require.NoError(t, err)
	assert.Equal(t, uint32(355113), chainID)

	got, err := id.EvmAddress()
	require.NoError(t, err)
	assert.Equal(t, addr, got)

	_, err = Id256FromHex("0x02").EvmAddress()
	assert.ErrorIs(t, err, ErrNotEvmId256)
}
