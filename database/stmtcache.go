package database

import (
	"database/sql"
	"sync"
)

// StmtCache keeps one prepared statement per query string for the
// lifetime of a storage.
type StmtCache struct {
	db *sql.DB

	mu    sync.Mutex
	stmts map[string]*sql.Stmt
}

func NewStmtCache(db *sql.DB) *StmtCache {
	return &StmtCache{db: db, stmts: make(map[string]*sql.Stmt)}
}

func (sc *StmtCache) DB() *sql.DB {
	return sc.db
}

// Prepare returns the cached statement of query, preparing it on first use.
func (sc *StmtCache) Prepare(query string) (*sql.Stmt, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if stmt, ok := sc.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := sc.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	sc.stmts[query] = stmt
	return stmt, nil
}

// PrepareTx binds the cached statement of query to tx.
func (sc *StmtCache) PrepareTx(tx *sql.Tx, query string) (*sql.Stmt, error) {
	stmt, err := sc.Prepare(query)
	if err != nil {
		return nil, err
	}
	return tx.Stmt(stmt), nil
}

// Clear closes every cached statement. The cache stays usable.
func (sc *StmtCache) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	for q, stmt := range sc.stmts {
		_ = stmt.Close()
		delete(sc.stmts, q)
	}
}
