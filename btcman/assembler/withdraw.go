package assembler

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/btcsuite/btcd/txscript"
)

// WithdrawMagic prefixes the OP_RETURN payload of every withdrawal.
var WithdrawMagic = []byte("BRW")

const WithdrawDataSize = 3 + 4 + 32

var ErrNotWithdrawData = errors.New("not a withdrawal OP_RETURN")

// WithdrawData links a bitcoin withdrawal to the burn that requested it.
type WithdrawData struct {
	OperationID uint32
	Memo        [32]byte
}

// Encode returns "BRW" | operation id (uint32 BE) | memo.
func (w WithdrawData) Encode() []byte {
	buf := make([]byte, 0, WithdrawDataSize)
	buf = append(buf, WithdrawMagic...)
	buf = binary.BigEndian.AppendUint32(buf, w.OperationID)
	return append(buf, w.Memo[:]...)
}

// DecodeWithdrawData parses the payload of an OP_RETURN script.
func DecodeWithdrawData(pkScript []byte) (*WithdrawData, error) {
	// OP_RETURN OP_DATA_39 <data>
	if len(pkScript) != 2+WithdrawDataSize || pkScript[0] != txscript.OP_RETURN || pkScript[1] != WithdrawDataSize {
		return nil, ErrNotWithdrawData
	}
	data := pkScript[2:]
	if !bytes.HasPrefix(data, WithdrawMagic) {
		return nil, ErrNotWithdrawData
	}

	w := &WithdrawData{OperationID: binary.BigEndian.Uint32(data[3:7])}
	copy(w.Memo[:], data[7:])
	return w, nil
}
