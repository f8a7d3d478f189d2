package btcvault

import (
	"github.com/TEENet-io/mintburn-bridge/btcman/utxo"
)

// VaultUTXO is an output owned by the bridge wallet that can fund
// withdrawals.
type VaultUTXO struct {
	BlockNumber int32  // Block number (height)
	BlockHash   string // 64-character hexadecimal string (no 0x prefix)
	TxID        string // 64-character hexadecimal string (no 0x prefix)
	Vout        int32  // Output index
	Amount      int64  // Amount in satoshis
	PkScript    []byte // Public key script (shall use when unlocking this script)
	Lockup      bool   // Lockup status, default is false
	Spent       bool   // Spent status, default is false
	Timeout     int64  // Unix timestamp in seconds, set to 0 if untouched
	LinkedID    string // what the lock is held for, eg. an operation id
}

func (v *VaultUTXO) ToUTXO() (*utxo.UTXO, error) {
	return utxo.NewUTXO(v.TxID, uint32(v.Vout), v.Amount, v.PkScript)
}

// VaultUTXOStorage defines the interface for database operations on VaultUTXO
type VaultUTXOStorage interface {
	InsertVaultUTXO(utxo VaultUTXO) error

	// QueryByTxIDAndVout returns nil without error when absent.
	QueryByTxIDAndVout(txID string, vout int32) (*VaultUTXO, error)

	QueryByLinkedID(linkedID string) ([]VaultUTXO, error)

	// QueryExpiredAndLockedUTXOs returns locked UTXOs with timeout < t.
	QueryExpiredAndLockedUTXOs(t int64) ([]VaultUTXO, error)

	// QueryEnoughUTXOs selects unlocked, unspent UTXOs, largest first,
	// until amount is covered.
	QueryEnoughUTXOs(amount int64) ([]VaultUTXO, error)

	// SetLock locks or unlocks a UTXO. Unlocking clears timeout and linkedID.
	SetLock(txID string, vout int32, lockup bool, timeout int64, linkedID string) error

	SetSpent(txID string, vout int32, spent bool) error

	// SumMoney sums unlocked, unspent UTXOs.
	SumMoney() (int64, error)
}
