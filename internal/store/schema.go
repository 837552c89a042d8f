package store

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS blocks (
	block_number INTEGER PRIMARY KEY,
	seed_hex     TEXT NOT NULL,
	processed_at INTEGER
);

CREATE TABLE IF NOT EXISTS shares (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	block_number INTEGER NOT NULL,
	address      TEXT NOT NULL,
	nonce        TEXT NOT NULL,
	hash_hex     TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	UNIQUE(block_number, address, nonce)
);
CREATE INDEX IF NOT EXISTS idx_shares_block_number ON shares(block_number);
CREATE INDEX IF NOT EXISTS idx_shares_address ON shares(address);

CREATE TABLE IF NOT EXISTS balances (
	address       TEXT PRIMARY KEY,
	balance_micro INTEGER NOT NULL CHECK (balance_micro >= 0)
);

CREATE TABLE IF NOT EXISTS payouts (
	id           TEXT PRIMARY KEY,
	address      TEXT NOT NULL,
	amount_micro INTEGER NOT NULL CHECK (amount_micro > 0),
	fee_micro    INTEGER NOT NULL CHECK (fee_micro >= 0),
	status       TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL,
	tx_hash      TEXT
);
CREATE INDEX IF NOT EXISTS idx_payouts_status ON payouts(status);
`
