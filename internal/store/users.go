package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jeonbongjun/roboadvisor/internal/domain"
)

// UserStore defines the interface for User aggregate persistence.
type UserStore interface {
	Create(ctx context.Context, userID string) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	List(ctx context.Context, limit int, after string) ([]*domain.UserSummary, bool, string, error)
	Save(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, userID string) error
}

// SQLiteUserStore implements UserStore backed by SQLite.
type SQLiteUserStore struct {
	db *sql.DB
}

// NewSQLiteUserStore creates a new SQLiteUserStore.
func NewSQLiteUserStore(db *sql.DB) *SQLiteUserStore {
	return &SQLiteUserStore{db: db}
}

// Create inserts a new user with empty collections.
func (s *SQLiteUserStore) Create(ctx context.Context, userID string) (*domain.User, error) {
	ts := now()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, created_at) VALUES (?, ?)`,
		userID, formatTime(ts),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %q already exists: %w", userID, ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	u := domain.NewUser(userID)
	u.CreatedAt = ts
	return u, nil
}

// Get loads a user together with all three owned collections.
func (s *SQLiteUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM users WHERE user_id = ?`, userID,
	).Scan(&created)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	u := domain.NewUser(userID)
	if u.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if u.PortfolioList, err = loadPortfolios(ctx, s.db, userID); err != nil {
		return nil, err
	}
	if u.WatchList, err = loadWatchlist(ctx, s.db, userID); err != nil {
		return nil, err
	}
	if u.ChatSessionList, err = loadChatSessions(ctx, s.db, userID); err != nil {
		return nil, err
	}
	return u, nil
}

// List returns a paginated list of users with the size of each collection.
//
//nolint:gocritic // named results provide clarity for multiple return values
func (s *SQLiteUserStore) List(ctx context.Context, limit int, after string) ([]*domain.UserSummary, bool, string, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT u.user_id, u.created_at,
			(SELECT COUNT(*) FROM user_portfolios p WHERE p.user_id = u.user_id),
			(SELECT COUNT(*) FROM user_watchlists w WHERE w.user_id = u.user_id),
			(SELECT COUNT(*) FROM chat_sessions c WHERE c.user_id = u.user_id)
		FROM users u`
	var args []any

	if after != "" {
		query += ` WHERE u.user_id > ?`
		args = append(args, after)
	}

	query += ` ORDER BY u.user_id ASC LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, "", fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*domain.UserSummary
	for rows.Next() {
		var us domain.UserSummary
		var created string
		if err := rows.Scan(&us.UserID, &created, &us.Holdings, &us.Watched, &us.ChatSessions); err != nil {
			return nil, false, "", fmt.Errorf("scan user: %w", err)
		}
		if us.CreatedAt, err = parseTime(created); err != nil {
			return nil, false, "", err
		}
		users = append(users, &us)
	}
	if err := rows.Err(); err != nil {
		return nil, false, "", fmt.Errorf("rows iteration: %w", err)
	}

	hasMore := false
	nextAfter := ""
	if len(users) > limit {
		hasMore = true
		nextAfter = users[limit-1].UserID
		users = users[:limit]
	}

	return users, hasMore, nextAfter, nil
}

// Save persists the aggregate in one transaction. The user row is inserted if
// missing; its created_at is never overwritten and is copied back into u.
// Every child in u's collections is inserted or updated, and every stored
// child of the user that is no longer in its collection is deleted.
func (s *SQLiteUserStore) Save(ctx context.Context, u *domain.User) error {
	var created string

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (user_id, created_at) VALUES (?, ?) ON CONFLICT(user_id) DO NOTHING`,
			u.UserID, formatTime(now()),
		); err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT created_at FROM users WHERE user_id = ?`, u.UserID,
		).Scan(&created); err != nil {
			return fmt.Errorf("read user: %w", err)
		}

		if err := savePortfolios(ctx, tx, u); err != nil {
			return err
		}
		if err := saveWatchlist(ctx, tx, u); err != nil {
			return err
		}
		return saveChatSessions(ctx, tx, u)
	})
	if err != nil {
		return err
	}

	ts, err := parseTime(created)
	if err != nil {
		return err
	}
	u.CreatedAt = ts
	return nil
}

// userOwnedTables lists the child tables of users. Delete clears them before
// the user row; ON DELETE CASCADE covers any table added without updating
// this list.
var userOwnedTables = []string{
	"chat_sessions",
	"user_watchlists",
	"user_portfolios",
}

// Delete removes the user and every child record it owns.
func (s *SQLiteUserStore) Delete(ctx context.Context, userID string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, table := range userOwnedTables {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE user_id = ?", table), userID); err != nil { //nolint:gosec // table names are hardcoded constants
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?`, userID)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return nil
	})
}

// deleteOrphans removes the user's rows in table whose key is not in keep.
func deleteOrphans(ctx context.Context, tx *sql.Tx, table, keyColumn, userID string, keep []string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE user_id = ?", table) //nolint:gosec // table names are hardcoded constants
	args := make([]any, 0, len(keep)+1)
	args = append(args, userID)

	if len(keep) > 0 {
		query += fmt.Sprintf(" AND %s NOT IN (%s)", keyColumn, placeholders(len(keep)))
		for _, k := range keep {
			args = append(args, k)
		}
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remove orphaned %s: %w", table, err)
	}
	return nil
}

// childError maps constraint failures on child rows to store sentinels.
func childError(what, stockID string, err error) error {
	switch {
	case isForeignKeyViolation(err):
		return fmt.Errorf("%s: stock %s: %w", what, stockID, ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: stock %s: %w", what, stockID, ErrConflict)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

func savePortfolios(ctx context.Context, tx *sql.Tx, u *domain.User) error {
	keep := make([]string, len(u.PortfolioList))
	for i, p := range u.PortfolioList {
		keep[i] = p.PortfolioID
	}
	if err := deleteOrphans(ctx, tx, "user_portfolios", "portfolio_id", u.UserID, keep); err != nil {
		return err
	}

	for _, p := range u.PortfolioList {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO user_portfolios (portfolio_id, user_id, stock_id, quantity, average_price, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(portfolio_id) DO UPDATE SET
				quantity = excluded.quantity,
				average_price = excluded.average_price
			 WHERE user_portfolios.user_id = excluded.user_id`,
			p.PortfolioID, u.UserID, p.StockID, p.Quantity.String(), p.AveragePrice.String(), formatTime(p.CreatedAt),
		)
		if err != nil {
			return childError("save holding", p.StockID, err)
		}
	}
	return nil
}

func saveWatchlist(ctx context.Context, tx *sql.Tx, u *domain.User) error {
	keep := make([]string, len(u.WatchList))
	for i, w := range u.WatchList {
		keep[i] = w.WatchlistID
	}
	if err := deleteOrphans(ctx, tx, "user_watchlists", "watchlist_id", u.UserID, keep); err != nil {
		return err
	}

	for _, w := range u.WatchList {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO user_watchlists (watchlist_id, user_id, stock_id, added_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(watchlist_id) DO NOTHING`,
			w.WatchlistID, u.UserID, w.StockID, formatTime(w.AddedAt),
		)
		if err != nil {
			return childError("save watchlist entry", w.StockID, err)
		}
	}
	return nil
}

func saveChatSessions(ctx context.Context, tx *sql.Tx, u *domain.User) error {
	keep := make([]string, len(u.ChatSessionList))
	for i, c := range u.ChatSessionList {
		keep[i] = c.SessionID
	}
	if err := deleteOrphans(ctx, tx, "chat_sessions", "session_id", u.UserID, keep); err != nil {
		return err
	}

	for _, c := range u.ChatSessionList {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chat_sessions (session_id, user_id, title, created_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(session_id) DO UPDATE SET title = excluded.title
			 WHERE chat_sessions.user_id = excluded.user_id`,
			c.SessionID, u.UserID, c.Title, formatTime(c.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("save chat session: %w", err)
		}
	}
	return nil
}

func loadPortfolios(ctx context.Context, db *sql.DB, userID string) ([]domain.Portfolio, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT portfolio_id, stock_id, quantity, average_price, created_at
		 FROM user_portfolios WHERE user_id = ? ORDER BY created_at, portfolio_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("load portfolios: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := []domain.Portfolio{}
	for rows.Next() {
		p := domain.Portfolio{UserID: userID}
		var created string
		if err := rows.Scan(&p.PortfolioID, &p.StockID, &p.Quantity, &p.AveragePrice, &created); err != nil {
			return nil, fmt.Errorf("scan portfolio: %w", err)
		}
		if p.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return list, nil
}

func loadWatchlist(ctx context.Context, db *sql.DB, userID string) ([]domain.Watchlist, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT watchlist_id, stock_id, added_at
		 FROM user_watchlists WHERE user_id = ? ORDER BY added_at, watchlist_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := []domain.Watchlist{}
	for rows.Next() {
		w := domain.Watchlist{UserID: userID}
		var added string
		if err := rows.Scan(&w.WatchlistID, &w.StockID, &added); err != nil {
			return nil, fmt.Errorf("scan watchlist: %w", err)
		}
		if w.AddedAt, err = parseTime(added); err != nil {
			return nil, err
		}
		list = append(list, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return list, nil
}

func loadChatSessions(ctx context.Context, db *sql.DB, userID string) ([]domain.ChatSession, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT session_id, title, created_at
		 FROM chat_sessions WHERE user_id = ? ORDER BY created_at, session_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("load chat sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := []domain.ChatSession{}
	for rows.Next() {
		c := domain.ChatSession{UserID: userID}
		var created string
		if err := rows.Scan(&c.SessionID, &c.Title, &created); err != nil {
			return nil, fmt.Errorf("scan chat session: %w", err)
		}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return list, nil
}
