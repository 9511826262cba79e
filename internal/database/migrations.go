package database

type migration struct {
	name  string
	stmts []string
}

// migrations is the ordered schema history. The version number of each entry
// is its 1-based index; never reorder or edit an applied entry.
var migrations = []migration{
	{
		name: "stock master",
		stmts: []string{
			// stock_id is the market-assigned short code. Making it the key
			// lets repeated or concurrent seeding converge on one row per code.
			`CREATE TABLE stocks (
				stock_id TEXT PRIMARY KEY,
				ticker_symbol TEXT NOT NULL,
				stock_name TEXT NOT NULL,
				market TEXT NOT NULL
			)`,
			`CREATE INDEX idx_stocks_market ON stocks(market, stock_id)`,
		},
	},
	{
		name: "user aggregate",
		stmts: []string{
			`CREATE TABLE users (
				user_id TEXT PRIMARY KEY,
				created_at TEXT NOT NULL
			)`,

			`CREATE TABLE user_portfolios (
				portfolio_id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				stock_id TEXT NOT NULL,
				quantity TEXT NOT NULL,
				average_price TEXT NOT NULL,
				created_at TEXT NOT NULL,
				UNIQUE(user_id, stock_id),
				FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE,
				FOREIGN KEY (stock_id) REFERENCES stocks(stock_id)
			)`,
			`CREATE INDEX idx_portfolios_user ON user_portfolios(user_id)`,

			`CREATE TABLE user_watchlists (
				watchlist_id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				stock_id TEXT NOT NULL,
				added_at TEXT NOT NULL,
				UNIQUE(user_id, stock_id),
				FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE,
				FOREIGN KEY (stock_id) REFERENCES stocks(stock_id)
			)`,
			`CREATE INDEX idx_watchlists_user ON user_watchlists(user_id)`,

			`CREATE TABLE chat_sessions (
				session_id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				title TEXT NOT NULL,
				created_at TEXT NOT NULL,
				FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
			)`,
			`CREATE INDEX idx_chat_sessions_user ON chat_sessions(user_id, created_at)`,
		},
	},
}
