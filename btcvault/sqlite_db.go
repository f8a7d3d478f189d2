package btcvault

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/TEENet-io/mintburn-bridge/database"
)

var ErrNotEnoughUTXOs = errors.New("not enough UTXOs to cover the amount required")

const vaultColumns = "block_number, block_hash, tx_id, vout, amount, pkscript, lockup, spent, timeout, linked_id"

// VaultSQLiteStorage implements VaultUTXOStorage for SQLite
type VaultSQLiteStorage struct {
	table string
	stmt  *database.StmtCache
}

// NewVaultSQLiteStorage keeps its rows in table vault_utxo_<uniqueID> of db
// so that several vaults can share one database file.
func NewVaultSQLiteStorage(db *sql.DB, uniqueID string) (*VaultSQLiteStorage, error) {
	s := &VaultSQLiteStorage{
		table: "vault_utxo_" + uniqueID,
		stmt:  database.NewStmtCache(db),
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *VaultSQLiteStorage) init() error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		block_number INTEGER,
		block_hash TEXT,
		tx_id TEXT NOT NULL CHECK (length(tx_id) = 64),
		vout INTEGER NOT NULL,
		amount INTEGER NOT NULL CHECK (amount > 0),
		pkscript BLOB,
		lockup BOOLEAN NOT NULL DEFAULT 0,
		spent BOOLEAN NOT NULL DEFAULT 0,
		timeout INTEGER NOT NULL DEFAULT 0,
		linked_id TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (tx_id, vout)
	);
	CREATE INDEX IF NOT EXISTS idx_%s_linked_id ON %s (linked_id);
	`, s.table, s.table, s.table)
	_, err := s.stmt.DB().Exec(query)
	return err
}

func (s *VaultSQLiteStorage) Close() {
	s.stmt.Clear()
}

func (s *VaultSQLiteStorage) InsertVaultUTXO(u VaultUTXO) error {
	stmt, err := s.stmt.Prepare(fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table, vaultColumns))
	if err != nil {
		return err
	}
	_, err = stmt.Exec(u.BlockNumber, u.BlockHash, u.TxID, u.Vout, u.Amount, u.PkScript, u.Lockup, u.Spent, u.Timeout, u.LinkedID)
	return err
}

func (s *VaultSQLiteStorage) QueryByTxIDAndVout(txID string, vout int32) (*VaultUTXO, error) {
	rows, err := s.query(`WHERE tx_id = ? AND vout = ?`, txID, vout)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *VaultSQLiteStorage) QueryByLinkedID(linkedID string) ([]VaultUTXO, error) {
	return s.query(`WHERE linked_id = ?`, linkedID)
}

func (s *VaultSQLiteStorage) QueryExpiredAndLockedUTXOs(t int64) ([]VaultUTXO, error) {
	return s.query(`WHERE lockup = 1 AND spent = 0 AND timeout < ?`, t)
}

func (s *VaultSQLiteStorage) QueryEnoughUTXOs(amount int64) ([]VaultUTXO, error) {
	candidates, err := s.query(`WHERE lockup = 0 AND spent = 0 ORDER BY amount DESC`)
	if err != nil {
		return nil, err
	}

	var total int64
	for i, u := range candidates {
		total += u.Amount
		if total >= amount {
			return candidates[:i+1], nil
		}
	}
	return nil, fmt.Errorf("%w: required=%v, have=%v", ErrNotEnoughUTXOs, amount, total)
}

func (s *VaultSQLiteStorage) SetLock(txID string, vout int32, lockup bool, timeout int64, linkedID string) error {
	if !lockup {
		timeout, linkedID = 0, ""
	}
	stmt, err := s.stmt.Prepare(fmt.Sprintf(`UPDATE %s SET lockup = ?, timeout = ?, linked_id = ? WHERE tx_id = ? AND vout = ?`, s.table))
	if err != nil {
		return err
	}
	_, err = stmt.Exec(lockup, timeout, linkedID, txID, vout)
	return err
}

func (s *VaultSQLiteStorage) SetSpent(txID string, vout int32, spent bool) error {
	stmt, err := s.stmt.Prepare(fmt.Sprintf(`UPDATE %s SET spent = ? WHERE tx_id = ? AND vout = ?`, s.table))
	if err != nil {
		return err
	}
	_, err = stmt.Exec(spent, txID, vout)
	return err
}

func (s *VaultSQLiteStorage) SumMoney() (int64, error) {
	stmt, err := s.stmt.Prepare(fmt.Sprintf(`SELECT COALESCE(SUM(amount), 0) FROM %s WHERE lockup = 0 AND spent = 0`, s.table))
	if err != nil {
		return 0, err
	}
	var total int64
	if err := stmt.QueryRow().Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *VaultSQLiteStorage) query(where string, args ...any) ([]VaultUTXO, error) {
	stmt, err := s.stmt.Prepare(fmt.Sprintf(`SELECT %s FROM %s %s`, vaultColumns, s.table, where))
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var utxos []VaultUTXO
	for rows.Next() {
		var u VaultUTXO
		if err := rows.Scan(&u.BlockNumber, &u.BlockHash, &u.TxID, &u.Vout, &u.Amount, &u.PkScript, &u.Lockup, &u.Spent, &u.Timeout, &u.LinkedID); err != nil {
			return nil, err
		}
		utxos = append(utxos, u)
	}
	return utxos, rows.Err()
}
