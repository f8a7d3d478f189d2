package common

import (
	"math/big"
	"testing"
	"unicode/utf8"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
)

func TestFitString(t *testing.T) {
	b := FitString("TWBTC", 16)
	assert.Len(t, b, 16)
	assert.Equal(t, "TWBTC", TrimZeroBytes(b))

	// "é" takes two bytes, the second one does not fit
	b = FitString("abé", 3)
	assert.Equal(t, "ab", TrimZeroBytes(b))
	assert.True(t, utf8.Valid(b[:2]))

	b = FitString("", 4)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)
}

func TestBigInt2Bytes32(t *testing.T) {
	v := big.NewInt(0x0102)
	b := BigInt2Bytes32(v)
	assert.Equal(t, byte(0x01), b[30])
	assert.Equal(t, byte(0x02), b[31])
	assert.Equal(t, 0, v.Cmp(Bytes32ToBigInt(b[:])))
}

func TestNetworkParams(t *testing.T) {
	p, err := NetworkParams("regtest")
	assert.NoError(t, err)
	assert.Equal(t, &chaincfg.RegressionNetParams, p)

	p, err = NetworkParams("MAINNET")
	assert.NoError(t, err)
	assert.Equal(t, &chaincfg.MainNetParams, p)

	_, err = NetworkParams("signet")
	assert.ErrorIs(t, err, ErrUnknownNetwork)
}

func TestIsValidBtcAddress(t *testing.T) {
	sk, err := btcec.NewPrivateKey()
	assert.NoError(t, err)
	pkHash := btcutil.Hash160(sk.PubKey().SerializeCompressed())

	regtest, err := btcutil.NewAddressWitnessPubKeyHash(pkHash, &chaincfg.RegressionNetParams)
	assert.NoError(t, err)
	assert.True(t, IsValidBtcAddress(regtest.EncodeAddress(), &chaincfg.RegressionNetParams))
	assert.False(t, IsValidBtcAddress(regtest.EncodeAddress(), &chaincfg.MainNetParams))
	assert.False(t, IsValidBtcAddress("not-an-address", &chaincfg.RegressionNetParams))
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "0x1234...cdef", Shorten("0x1234567890abcdef", 4))
	assert.Equal(t, "0x12", Shorten("12", 4))
}
