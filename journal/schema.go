// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	entry_time DATETIME NOT NULL,
	exit_time DATETIME NOT NULL,
	pnl_points REAL NOT NULL,
	pnl_dollars REAL NOT NULL,
	lvn_level REAL NOT NULL,
	exit_type TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS signals (
	signal_id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	price REAL NOT NULL,
	level_price REAL NOT NULL,
	delta INTEGER NOT NULL,
	impulse_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_summary (
	date TEXT PRIMARY KEY,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	breakevens INTEGER NOT NULL,
	gross_pnl REAL NOT NULL,
	net_pnl REAL NOT NULL,
	max_drawdown REAL NOT NULL,
	balance REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_exit_time ON trades(exit_time);
CREATE INDEX IF NOT EXISTS idx_signals_time ON signals(time);
`
