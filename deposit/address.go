package deposit

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrZeroRecipient = errors.New("zero recipient")
	ErrInvalidTweak  = errors.New("derived tweak is zero or overflows the curve order")
	ErrKeyMismatch   = errors.New("private key does not match the master public key")
)

// hkdf salt; changing it moves every deposit address
var depositSalt = []byte("mintburn-bridge/deposit-address")

// AddressDeriver maps a destination-chain recipient onto its own source-chain
// deposit address: P2WPKH(master + tweak*G), tweak = HKDF(master, recipient|chainID).
type AddressDeriver struct {
	master  *btcec.PublicKey
	chainID uint32
	params  *chaincfg.Params
}

func NewAddressDeriver(master *btcec.PublicKey, chainID uint32, params *chaincfg.Params) *AddressDeriver {
	return &AddressDeriver{master: master, chainID: chainID, params: params}
}

func (d *AddressDeriver) Params() *chaincfg.Params {
	return d.params
}

func (d *AddressDeriver) tweak(recipient ethcommon.Address) (*btcec.ModNScalar, error) {
	if recipient == (ethcommon.Address{}) {
		return nil, ErrZeroRecipient
	}

	info := make([]byte, ethcommon.AddressLength+4)
	copy(info, recipient.Bytes())
	binary.BigEndian.PutUint32(info[ethcommon.AddressLength:], d.chainID)

	var buf [32]byte
	r := hkdf.New(sha256.New, d.master.SerializeCompressed(), depositSalt, info)
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}

	var k btcec.ModNScalar
	if overflow := k.SetBytes(&buf); overflow != 0 || k.IsZero() {
		return nil, ErrInvalidTweak
	}
	return &k, nil
}

// DepositPubKey returns master + tweak*G for the recipient.
func (d *AddressDeriver) DepositPubKey(recipient ethcommon.Address) (*btcec.PublicKey, error) {
	k, err := d.tweak(recipient)
	if err != nil {
		return nil, err
	}

	var master, tweaked, sum btcec.JacobianPoint
	d.master.AsJacobian(&master)
	btcec.ScalarBaseMultNonConst(k, &tweaked)
	btcec.AddNonConst(&master, &tweaked, &sum)
	sum.ToAffine()

	return btcec.NewPublicKey(&sum.X, &sum.Y), nil
}

func (d *AddressDeriver) DepositAddress(recipient ethcommon.Address) (string, error) {
	pub, err := d.DepositPubKey(recipient)
	if err != nil {
		return "", err
	}

	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pub.SerializeCompressed()), d.params)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// DepositPrivateKey returns the key that spends outputs paid to the
// recipient's deposit address.
func (d *AddressDeriver) DepositPrivateKey(master *btcec.PrivateKey, recipient ethcommon.Address) (*btcec.PrivateKey, error) {
	if !master.PubKey().IsEqual(d.master) {
		return nil, ErrKeyMismatch
	}

	k, err := d.tweak(recipient)
	if err != nil {
		return nil, err
	}

	var sum btcec.ModNScalar
	sum.Set(&master.Key).Add(k)
	b := sum.Bytes()
	priv, _ := btcec.PrivKeyFromBytes(b[:])
	return priv, nil
}
