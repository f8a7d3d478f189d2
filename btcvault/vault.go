package btcvault

import (
	"errors"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
)

const (
	TIMEOUT_DELAY int64 = 1800 // half an hour
)

var (
	ErrUTXOExists = errors.New("utxo already exists")
)

// TreasureVault holds the UTXOs of one bridge wallet address.
type TreasureVault struct {
	BtcAddress string
	backend    VaultUTXOStorage
	updateMu   sync.Mutex
	now        func() time.Time
}

func NewTreasureVault(btcAddress string, backend VaultUTXOStorage) *TreasureVault {
	return &TreasureVault{BtcAddress: btcAddress, backend: backend, now: time.Now}
}

// AddUTXO records a new spendable output. Duplicates are rejected.
func (tv *TreasureVault) AddUTXO(blockNumber int32, blockHash string, txID string, vout int32, amount int64, pkScript []byte) error {
	tv.updateMu.Lock()
	defer tv.updateMu.Unlock()

	old, err := tv.backend.QueryByTxIDAndVout(txID, vout)
	if err != nil {
		return err
	}
	if old != nil {
		return ErrUTXOExists
	}

	return tv.backend.InsertVaultUTXO(VaultUTXO{
		BlockNumber: blockNumber,
		BlockHash:   blockHash,
		TxID:        txID,
		Vout:        vout,
		Amount:      amount,
		PkScript:    pkScript,
	})
}

// ChooseAndLock selects UTXOs that sum to at least targetAmount and locks
// them for linkedID. targetAmount shall include the mining fee.
func (tv *TreasureVault) ChooseAndLock(targetAmount int64, linkedID string) ([]VaultUTXO, error) {
	tv.updateMu.Lock()
	defer tv.updateMu.Unlock()

	utxos, err := tv.backend.QueryEnoughUTXOs(targetAmount)
	if err != nil {
		return nil, err
	}

	timeout := tv.now().Unix() + TIMEOUT_DELAY
	for i, u := range utxos {
		if err := tv.backend.SetLock(u.TxID, u.Vout, true, timeout, linkedID); err != nil {
			return nil, err
		}
		utxos[i].Lockup = true
		utxos[i].Timeout = timeout
		utxos[i].LinkedID = linkedID
	}

	logger.WithFields(logger.Fields{
		"linkedID": linkedID,
		"target":   targetAmount,
		"utxos":    len(utxos),
	}).Debug("locked vault utxos")
	return utxos, nil
}

// MarkSpent marks every UTXO locked for linkedID as spent.
func (tv *TreasureVault) MarkSpent(linkedID string) error {
	tv.updateMu.Lock()
	defer tv.updateMu.Unlock()

	utxos, err := tv.backend.QueryByLinkedID(linkedID)
	if err != nil {
		return err
	}
	for _, u := range utxos {
		if err := tv.backend.SetSpent(u.TxID, u.Vout, true); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseByLinkedID unlocks the unspent UTXOs locked for linkedID.
func (tv *TreasureVault) ReleaseByLinkedID(linkedID string) error {
	tv.updateMu.Lock()
	defer tv.updateMu.Unlock()

	utxos, err := tv.backend.QueryByLinkedID(linkedID)
	if err != nil {
		return err
	}
	for _, u := range utxos {
		if u.Spent {
			continue
		}
		if err := tv.backend.SetLock(u.TxID, u.Vout, false, 0, ""); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseByExpire unlocks UTXOs whose lock timed out.
func (tv *TreasureVault) ReleaseByExpire() error {
	tv.updateMu.Lock()
	defer tv.updateMu.Unlock()

	utxos, err := tv.backend.QueryExpiredAndLockedUTXOs(tv.now().Unix())
	if err != nil {
		return err
	}
	for _, u := range utxos {
		if err := tv.backend.SetLock(u.TxID, u.Vout, false, 0, ""); err != nil {
			return err
		}
	}
	return nil
}

func (tv *TreasureVault) SumMoney() (int64, error) {
	return tv.backend.SumMoney()
}
