package order

import (
	"encoding/binary"
	"errors"

	"github.com/TEENet-io/mintburn-bridge/common"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

const (
	Id256Size = 32

	evmAddressTag byte = 0x01
)

var ErrNotEvmId256 = errors.New("id256 does not hold an evm address")

// Id256 identifies a sender or a token across chains.
//
// EVM form: tag 0x01 | chain id (4 bytes, big endian) | address (20 bytes) | zero padding.
type Id256 [Id256Size]byte

func Id256FromEvmAddress(chainID uint32, addr ethcommon.Address) Id256 {
	var id Id256
	id[0] = evmAddressTag
	binary.BigEndian.PutUint32(id[1:5], chainID)
	copy(id[5:25], addr[:])
	return id
}

func Id256FromBytes(b []byte) Id256 {
	var id Id256
	copy(id[:], b)
	return id
}

func Id256FromHex(s string) Id256 {
	return Id256(common.HexStrToBytes32(s))
}

func (id Id256) IsZero() bool {
	return id == Id256{}
}

func (id Id256) IsEvmAddress() bool {
	return id[0] == evmAddressTag
}

func (id Id256) ChainID() (uint32, error) {
	if !id.IsEvmAddress() {
		return 0, ErrNotEvmId256
	}
	return binary.BigEndian.Uint32(id[1:5]), nil
}

func (id Id256) EvmAddress() (ethcommon.Address, error) {
	if !id.IsEvmAddress() {
		return ethcommon.Address{}, ErrNotEvmId256
	}
	return ethcommon.BytesToAddress(id[5:25]), nil
}

func (id Id256) Hex() string {
	return ethcommon.Bytes2Hex(id[:])
}

func (id Id256) String() string {
	return "0x" + id.Hex()
}
