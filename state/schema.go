package state

import "strings"

var (
	strZeroBytes32 = strings.Repeat("0", 64)
	strZeroBytes20 = strings.Repeat("0", 40)

	// table stores key-value pairs. Both key and value are a 32-byte hex string without prefix '0x'
	kvTable = `CREATE TABLE IF NOT EXISTS kv (
		key CHAR(64) PRIMARY KEY NOT NULL,
		value CHAR(64) NOT NULL
	);`

	// seq keeps the order in which deposits were first seen
	depositTable = `CREATE TABLE IF NOT EXISTS deposit (
		source_id VARCHAR(80) PRIMARY KEY NOT NULL,
		tx_id CHAR(64) NOT NULL,
		vout INTEGER NOT NULL,
		amount BIGINT NOT NULL,
		height INTEGER NOT NULL,
		confirmations INTEGER NOT NULL,
		recipient CHAR(40) NOT NULL,
		address VARCHAR(90) NOT NULL,
		status VARCHAR(12) NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		seq INTEGER NOT NULL,
		CONSTRAINT chk_status CHECK (status IN ('awaiting', 'mintable', 'ordered', 'minted', 'invalidated')),
		CONSTRAINT chk_amount CHECK (amount > 0),
		CONSTRAINT chk_tx_id CHECK (tx_id != '` + strZeroBytes32 + `'),
		CONSTRAINT chk_recipient CHECK (recipient != '` + strZeroBytes20 + `')
	);`

	mintOrderTable = `CREATE TABLE IF NOT EXISTS mint_order (
		source_id VARCHAR(80) PRIMARY KEY NOT NULL,
		sender_id CHAR(64) NOT NULL,
		nonce INTEGER NOT NULL,
		payload BLOB NOT NULL,
		tx_hash CHAR(64),
		status VARCHAR(10) NOT NULL,
		reject_code VARCHAR(40) NOT NULL DEFAULT '',
		CONSTRAINT chk_status CHECK (status IN ('signed', 'sent', 'minted', 'rejected')),
		CONSTRAINT chk_sender_id CHECK (sender_id != '` + strZeroBytes32 + `'),
		CONSTRAINT chk_tx_hash CHECK (tx_hash IS NULL OR tx_hash != '` + strZeroBytes32 + `'),
		UNIQUE (sender_id, nonce)
	);`

	withdrawalTable = `CREATE TABLE IF NOT EXISTS withdrawal (
		operation_id INTEGER PRIMARY KEY NOT NULL,
		sender CHAR(40) NOT NULL,
		amount TEXT NOT NULL,
		satoshi BIGINT NOT NULL,
		recipient_id BLOB NOT NULL,
		receiver VARCHAR(90) NOT NULL DEFAULT '',
		memo CHAR(64) NOT NULL,
		evm_tx_hash CHAR(64) NOT NULL,
		btc_tx_id CHAR(64),
		raw_tx BLOB,
		attempts INTEGER NOT NULL DEFAULT 0,
		status VARCHAR(10) NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		CONSTRAINT chk_status CHECK (status IN ('requested', 'broadcast', 'confirmed', 'failed')),
		CONSTRAINT chk_sender CHECK (sender != '` + strZeroBytes20 + `'),
		CONSTRAINT chk_btc_tx_id CHECK (btc_tx_id IS NULL OR btc_tx_id != '` + strZeroBytes32 + `')
	);`

	taskTable = `CREATE TABLE IF NOT EXISTS task (
		id CHAR(36) PRIMARY KEY NOT NULL,
		kind VARCHAR(40) NOT NULL,
		key VARCHAR(80) NOT NULL,
		payload BLOB,
		policy BIGINT NOT NULL DEFAULT 0,
		next_run BIGINT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		state VARCHAR(10) NOT NULL,
		last_error TEXT NOT NULL DEFAULT ''
	);`
)

// column lists shared by the insert and select queries
const (
	depositParamList    = " source_id, tx_id, vout, amount, height, confirmations, recipient, address, status, reason, seq "
	mintOrderParamList  = " source_id, sender_id, nonce, payload, tx_hash, status, reject_code "
	withdrawalParamList = " operation_id, sender, amount, satoshi, recipient_id, receiver, memo, evm_tx_hash, btc_tx_id, raw_tx, attempts, status, reason "
	taskParamList       = " id, kind, key, payload, policy, next_run, attempts, state, last_error "
)
