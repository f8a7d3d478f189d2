package btcvault

import (
	"strings"
	"testing"
	"time"

	"github.com/TEENet-io/mintburn-bridge/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func txid(c string) string {
	return strings.Repeat(c, 64)
}

func newTestVault(t *testing.T) *TreasureVault {
	db, err := database.OpenSqlite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st, err := NewVaultSQLiteStorage(db, "test")
	require.NoError(t, err)
	t.Cleanup(st.Close)

	vault := NewTreasureVault("bcrt1qvault", st)
	require.NoError(t, vault.AddUTXO(1, txid("0"), txid("a"), 0, 1_000, []byte{0x00}))
	require.NoError(t, vault.AddUTXO(2, txid("0"), txid("b"), 1, 5_000, []byte{0x00}))
	require.NoError(t, vault.AddUTXO(3, txid("0"), txid("c"), 0, 3_000, []byte{0x00}))
	return vault
}

func TestAddUTXORejectsDuplicate(t *testing.T) {
	vault := newTestVault(t)
	err := vault.AddUTXO(1, txid("0"), txid("a"), 0, 1_000, nil)
	assert.ErrorIs(t, err, ErrUTXOExists)

	sum, err := vault.SumMoney()
	require.NoError(t, err)
	assert.Equal(t, int64(9_000), sum)
}

func TestChooseAndLock(t *testing.T) {
	vault := newTestVault(t)

	utxos, err := vault.ChooseAndLock(6_000, "op-1")
	require.NoError(t, err)
	require.Len(t, utxos, 2)
	assert.Equal(t, txid("b"), utxos[0].TxID)
	assert.Equal(t, txid("c"), utxos[1].TxID)
	assert.Equal(t, "op-1", utxos[0].LinkedID)

	sum, err := vault.SumMoney()
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), sum)

	_, err = vault.ChooseAndLock(2_000, "op-2")
	assert.ErrorIs(t, err, ErrNotEnoughUTXOs)

	require.NoError(t, vault.ReleaseByLinkedID("op-1"))
	sum, err = vault.SumMoney()
	require.NoError(t, err)
	assert.Equal(t, int64(9_000), sum)
}

func TestMarkSpent(t *testing.T) {
	vault := newTestVault(t)
	_, err := vault.ChooseAndLock(4_000, "op-1")
	require.NoError(t, err)
	require.NoError(t, vault.MarkSpent("op-1"))

	// spent outputs never come back
	require.NoError(t, vault.ReleaseByLinkedID("op-1"))
	sum, err := vault.SumMoney()
	require.NoError(t, err)
	assert.Equal(t, int64(4_000), sum)
}

func TestReleaseByExpire(t *testing.T) {
	vault := newTestVault(t)
	now := time.Unix(1_700_000_000, 0)
	vault.now = func() time.Time { return now }

	_, err := vault.ChooseAndLock(9_000, "op-1")
	require.NoError(t, err)

	require.NoError(t, vault.ReleaseByExpire())
	sum, err := vault.SumMoney()
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum)

	now = now.Add(time.Duration(TIMEOUT_DELAY+1) * time.Second)
	require.NoError(t, vault.ReleaseByExpire())
	sum, err = vault.SumMoney()
	require.NoError(t, err)
	assert.Equal(t, int64(9_000), sum)

}
