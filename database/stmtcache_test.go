package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStmtCache(t *testing.T) {
	db, err := OpenSqlite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE kv (key TEXT PRIMARY KEY, value TEXT)`)
	require.NoError(t, err)

	sc := NewStmtCache(db)
	defer sc.Clear()

	q := `INSERT INTO kv (key, value) VALUES (?, ?)`
	stmt1, err := sc.Prepare(q)
	require.NoError(t, err)
	stmt2, err := sc.Prepare(q)
	require.NoError(t, err)
	assert.Same(t, stmt1, stmt2)

	tx, err := db.Begin()
	require.NoError(t, err)
	stmt, err := sc.PrepareTx(tx, q)
	require.NoError(t, err)
	_, err = stmt.Exec("a", "1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	sel, err := sc.Prepare(`SELECT value FROM kv WHERE key = ?`)
	require.NoError(t, err)
	var v string
	err = sel.QueryRow("a").Scan(&v)
	assert.NoError(t, err)
	assert.Equal(t, "1", v)

	// statements are prepared again after a clear
	sc.Clear()
	stmt3, err := sc.Prepare(q)
	require.NoError(t, err)
	assert.NotSame(t, stmt1, stmt3)
}
