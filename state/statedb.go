package state

import (
	"database/sql"
	"fmt"
	"math/big"

	"github.com/TEENet-io/mintburn-bridge/common"
	"github.com/TEENet-io/mintburn-bridge/database"
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
)

const (
	queryUpsertKV         = `INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`
	queryUpsertDeposit    = `INSERT OR REPLACE INTO deposit (` + depositParamList + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	queryUpsertMintOrder  = `INSERT OR REPLACE INTO mint_order (` + mintOrderParamList + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	queryUpsertWithdrawal = `INSERT OR REPLACE INTO withdrawal (` + withdrawalParamList + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	queryInsertTask       = `INSERT INTO task (` + taskParamList + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

type StateDB struct {
	stmtCache *database.StmtCache
}

func NewStateDB(db *sql.DB) (*StateDB, error) {
	// 1. Create the tables.
	if _, err := db.Exec(kvTable + depositTable + mintOrderTable + withdrawalTable + taskTable); err != nil {
		return nil, err
	}

	// 2. A stmt cache + db.
	return &StateDB{
		stmtCache: database.NewStmtCache(db),
	}, nil
}

func (st *StateDB) Close() {
	st.stmtCache.Clear()
}

func (st *StateDB) GetKeyedValue(key ethcommon.Hash) (ethcommon.Hash, bool, error) {
	query := `SELECT value FROM kv WHERE key = ?`
	stmt, err := st.stmtCache.Prepare(query)
	if err != nil {
		return ethcommon.Hash{}, false, err
	}

	var value string
	keyHex := key.String()[2:]
	if err := stmt.QueryRow(keyHex).Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return ethcommon.Hash{}, false, nil
		}
		return ethcommon.Hash{}, false, err
	}

	return common.HexStrToBytes32(value), true, nil
}

func (st *StateDB) SetKeyedValue(key, value ethcommon.Hash) error {
	stmt, err := st.stmtCache.Prepare(queryUpsertKV)
	if err != nil {
		return err
	}

	if _, err := stmt.Exec(key.String()[2:], value.String()[2:]); err != nil {
		return err
	}
	return nil
}

type snapshot struct {
	deposits     []*Deposit
	orders       []*OrderRecord
	withdrawals  []*Withdrawal
	tasks        []*TaskRecord
	nextEvmBlock uint64
	gasPrice     *big.Int
	evmChainID   *big.Int
}

func (s *State) snapshot() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &snapshot{
		nextEvmBlock: s.nextEvmBlock,
		gasPrice:     new(big.Int).Set(s.gasPrice),
		evmChainID:   new(big.Int).Set(s.evmChainID),
	}
	for _, id := range s.depositOrder {
		snap.deposits = append(snap.deposits, copyDeposit(s.deposits[id]))
	}
	for _, rec := range s.orders {
		snap.orders = append(snap.orders, copyOrder(rec))
	}
	for _, w := range s.withdrawals {
		snap.withdrawals = append(snap.withdrawals, copyWithdrawal(w))
	}
	snap.tasks = append(snap.tasks, s.tasks...)
	return snap
}

// Checkpoint writes the whole state in one transaction. Either all of it
// lands or none of it does.
func (st *StateDB) Checkpoint(s *State) (err error) {
	snap := s.snapshot()

	queries := []string{queryUpsertKV, queryUpsertDeposit, queryUpsertMintOrder, queryUpsertWithdrawal, queryInsertTask}
	// statements are prepared before the tx so that nothing asks the pool
	// for a second connection while the tx holds one
	for _, q := range queries {
		if _, err := st.stmtCache.Prepare(q); err != nil {
			return err
		}
	}

	tx, err := st.stmtCache.DB().Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Errorf("failed to rollback checkpoint: err=%v", rbErr)
			}
		}
	}()

	stmts := make(map[string]*sql.Stmt, len(queries))
	for _, q := range queries {
		stmt, err := st.stmtCache.PrepareTx(tx, q)
		if err != nil {
			return err
		}
		defer stmt.Close()
		stmts[q] = stmt
	}

	kv := map[ethcommon.Hash]*big.Int{
		KeyNextEvmBlock: new(big.Int).SetUint64(snap.nextEvmBlock),
		KeyGasPrice:     snap.gasPrice,
		KeyEvmChainID:   snap.evmChainID,
	}
	for k, v := range kv {
		value := ethcommon.Hash(common.BigInt2Bytes32(v))
		if _, err = stmts[queryUpsertKV].Exec(k.String()[2:], value.String()[2:]); err != nil {
			return fmt.Errorf("kv %s: %w", k.String(), err)
		}
	}

	for i, d := range snap.deposits {
		row := (&sqlDeposit{}).encode(d, i)
		if _, err = stmts[queryUpsertDeposit].Exec(
			row.SourceID, row.TxID, row.Vout, row.Amount, row.Height, row.Confirmations,
			row.Recipient, row.Address, row.Status, row.Reason, row.Seq,
		); err != nil {
			return fmt.Errorf("deposit %s: %w", d.SourceID, err)
		}
	}

	for _, rec := range snap.orders {
		row := (&sqlMintOrder{}).encode(rec)
		if _, err = stmts[queryUpsertMintOrder].Exec(
			row.SourceID, row.SenderID, row.Nonce, row.Payload, row.TxHash, row.Status, row.RejectCode,
		); err != nil {
			return fmt.Errorf("mint order %s: %w", rec.SourceID, err)
		}
	}

	for _, w := range snap.withdrawals {
		row := (&sqlWithdrawal{}).encode(w)
		if _, err = stmts[queryUpsertWithdrawal].Exec(
			row.OperationID, row.Sender, row.Amount, row.Satoshi, row.RecipientID, row.Receiver,
			row.Memo, row.EvmTxHash, row.BtcTxID, row.RawTx, row.Attempts, row.Status, row.Reason,
		); err != nil {
			return fmt.Errorf("withdrawal %d: %w", w.OperationID, err)
		}
	}

	// tasks are a snapshot of the scheduler, replaced as a whole
	if _, err = tx.Exec(`DELETE FROM task`); err != nil {
		return err
	}
	for _, r := range snap.tasks {
		if _, err = stmts[queryInsertTask].Exec(
			r.ID, r.Kind, r.Key, r.Payload, r.Policy, r.NextRun, r.Attempts, r.State, r.LastError,
		); err != nil {
			return fmt.Errorf("task %s: %w", r.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	logger.WithFields(logger.Fields{
		"deposits":    len(snap.deposits),
		"orders":      len(snap.orders),
		"withdrawals": len(snap.withdrawals),
		"tasks":       len(snap.tasks),
	}).Debug("state checkpointed")

	return nil
}

// Load rebuilds a State from the last checkpoint. Nonce counters are
// recovered from the stored orders.
func (st *StateDB) Load() (*State, error) {
	s := New()

	for key, set := range map[ethcommon.Hash]func(*big.Int){
		KeyNextEvmBlock: func(v *big.Int) { s.nextEvmBlock = v.Uint64() },
		KeyGasPrice:     func(v *big.Int) { s.gasPrice = v },
		KeyEvmChainID:   func(v *big.Int) { s.evmChainID = v },
	} {
		v, ok, err := st.GetKeyedValue(key)
		if err != nil {
			return nil, err
		}
		if ok {
			set(common.Bytes32ToBigInt(v[:]))
		}
	}

	if err := st.loadDeposits(s); err != nil {
		return nil, err
	}
	if err := st.loadOrders(s); err != nil {
		return nil, err
	}
	if err := st.loadWithdrawals(s); err != nil {
		return nil, err
	}
	if err := st.loadTasks(s); err != nil {
		return nil, err
	}

	return s, nil
}

func (st *StateDB) loadDeposits(s *State) error {
	stmt, err := st.stmtCache.Prepare(`SELECT` + depositParamList + `FROM deposit ORDER BY seq`)
	if err != nil {
		return err
	}
	rows, err := stmt.Query()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var d sqlDeposit
		if err := rows.Scan(
			&d.SourceID, &d.TxID, &d.Vout, &d.Amount, &d.Height, &d.Confirmations,
			&d.Recipient, &d.Address, &d.Status, &d.Reason, &d.Seq,
		); err != nil {
			return err
		}
		if _, err := s.UpsertDeposit(d.decode()); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (st *StateDB) loadOrders(s *State) error {
	stmt, err := st.stmtCache.Prepare(`SELECT` + mintOrderParamList + `FROM mint_order ORDER BY sender_id, nonce`)
	if err != nil {
		return err
	}
	rows, err := stmt.Query()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var o sqlMintOrder
		if err := rows.Scan(&o.SourceID, &o.SenderID, &o.Nonce, &o.Payload, &o.TxHash, &o.Status, &o.RejectCode); err != nil {
			return err
		}
		if err := s.PutOrder(o.decode()); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (st *StateDB) loadWithdrawals(s *State) error {
	stmt, err := st.stmtCache.Prepare(`SELECT` + withdrawalParamList + `FROM withdrawal ORDER BY operation_id`)
	if err != nil {
		return err
	}
	rows, err := stmt.Query()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var w sqlWithdrawal
		if err := rows.Scan(
			&w.OperationID, &w.Sender, &w.Amount, &w.Satoshi, &w.RecipientID, &w.Receiver,
			&w.Memo, &w.EvmTxHash, &w.BtcTxID, &w.RawTx, &w.Attempts, &w.Status, &w.Reason,
		); err != nil {
			return err
		}
		decoded, err := w.decode()
		if err != nil {
			return err
		}
		s.PutWithdrawal(decoded)
	}
	return rows.Err()
}

func (st *StateDB) loadTasks(s *State) error {
	stmt, err := st.stmtCache.Prepare(`SELECT` + taskParamList + `FROM task ORDER BY rowid`)
	if err != nil {
		return err
	}
	rows, err := stmt.Query()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		r := &TaskRecord{}
		if err := rows.Scan(&r.ID, &r.Kind, &r.Key, &r.Payload, &r.Policy, &r.NextRun, &r.Attempts, &r.State, &r.LastError); err != nil {
			return err
		}
		s.tasks = append(s.tasks, r)
	}
	return rows.Err()
}
