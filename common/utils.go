package common

import (
	"crypto/rand"
	"math/big"
	"strings"
	"unicode/utf8"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// HexStrToBytes32 converts a hex string (with/without prefix 0x) to [32]byte
func HexStrToBytes32(hexStr string) [32]byte {
	var bytes32 [32]byte
	copy(bytes32[:], ethcommon.Hex2BytesFixed(Trim0xPrefix(hexStr), 32))
	return bytes32
}

// BigInt2Bytes32 converts a non-negative big int to a big-endian [32]byte
func BigInt2Bytes32(bigInt *big.Int) [32]byte {
	return [32]byte(ethcommon.LeftPadBytes(bigInt.Bytes(), 32))
}

func Bytes32ToBigInt(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// Trim 0x or 0X prefix off the string.
func Trim0xPrefix(str string) string {
	s := strings.TrimPrefix(str, "0x")
	return strings.TrimPrefix(s, "0X")
}

func Prepend0xPrefix(str string) string {
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		return str
	}
	return "0x" + str
}

// FitString copies s into a zero padded array of the given size.
// Strings that do not fit are cut on the last rune boundary that fits,
// so the result is always valid UTF-8.
func FitString(s string, size int) []byte {
	out := make([]byte, size)
	n := 0
	for _, r := range s {
		l := utf8.RuneLen(r)
		if l < 0 || n+l > size {
			break
		}
		utf8.EncodeRune(out[n:], r)
		n += l
	}
	return out
}

// TrimZeroBytes returns the string held in a zero padded array.
func TrimZeroBytes(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}

// RandBytes32 generates [32]byte with random values
func RandBytes32() [32]byte {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return [32]byte{}
	}
	return b
}

func RandEthAddress() ethcommon.Address {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return ethcommon.Address{}
	}
	return ethcommon.BytesToAddress(b)
}

// Shorten shortens a hex string so that both sides have n characters and
// the rest is replaced with "..."
func Shorten(hexStr string, n int) string {
	str := Trim0xPrefix(hexStr)

	if len(str) <= n*2 {
		return Prepend0xPrefix(str)
	}
	return Prepend0xPrefix(str[:n] + "..." + str[len(str)-n:])
}
