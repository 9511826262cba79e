package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jeonbongjun/roboadvisor/internal/domain"
)

// StockStore defines the interface for stock master persistence.
type StockStore interface {
	Count(ctx context.Context) (int, error)
	SaveAll(ctx context.Context, stocks []domain.Stock) error
	Get(ctx context.Context, stockID string) (*domain.Stock, error)
	List(ctx context.Context, opts domain.StockListOpts) (*domain.StockPage, error)
}

// stockInsertChunk bounds the rows per INSERT statement so the bound
// parameter count stays well below SQLite's limit.
const stockInsertChunk = 500

// SQLiteStockStore implements StockStore backed by SQLite.
type SQLiteStockStore struct {
	db *sql.DB
}

// NewSQLiteStockStore creates a new SQLiteStockStore.
func NewSQLiteStockStore(db *sql.DB) *SQLiteStockStore {
	return &SQLiteStockStore{db: db}
}

// Count returns the number of stocks in the master table.
func (s *SQLiteStockStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stocks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count stocks: %w", err)
	}
	return n, nil
}

// SaveAll inserts stocks in a single transaction. A stock whose stock_id is
// already stored, including an earlier row of the same batch, is ignored.
func (s *SQLiteStockStore) SaveAll(ctx context.Context, stocks []domain.Stock) error {
	if len(stocks) == 0 {
		return nil
	}

	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		for start := 0; start < len(stocks); start += stockInsertChunk {
			end := min(start+stockInsertChunk, len(stocks))
			chunk := stocks[start:end]

			values := make([]string, len(chunk))
			args := make([]any, 0, len(chunk)*4)
			for i, st := range chunk {
				values[i] = "(?, ?, ?, ?)"
				args = append(args, st.StockID, st.TickerSymbol, st.StockName, st.Market)
			}

			query := `INSERT INTO stocks (stock_id, ticker_symbol, stock_name, market) VALUES ` +
				strings.Join(values, ", ") +
				` ON CONFLICT(stock_id) DO NOTHING`
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("insert stocks %d-%d: %w", start, end, err)
			}
		}
		return nil
	})
}

// Get retrieves a single stock by its short code.
func (s *SQLiteStockStore) Get(ctx context.Context, stockID string) (*domain.Stock, error) {
	var st domain.Stock
	err := s.db.QueryRowContext(ctx,
		`SELECT stock_id, ticker_symbol, stock_name, market FROM stocks WHERE stock_id = ?`,
		stockID,
	).Scan(&st.StockID, &st.TickerSymbol, &st.StockName, &st.Market)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("stock %s: %w", stockID, ErrNotFound)
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return &st, nil
}

// List returns a page of stocks ordered by stock_id, optionally filtered by
// market.
func (s *SQLiteStockStore) List(ctx context.Context, opts domain.StockListOpts) (*domain.StockPage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT stock_id, ticker_symbol, stock_name, market FROM stocks WHERE 1 = 1`
	var args []any

	if opts.Market != "" {
		query += ` AND market = ?`
		args = append(args, opts.Market)
	}
	if opts.After != "" {
		query += ` AND stock_id > ?`
		args = append(args, opts.After)
	}

	query += ` ORDER BY stock_id ASC LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	page := &domain.StockPage{Results: []domain.Stock{}}
	for rows.Next() {
		var st domain.Stock
		if err := rows.Scan(&st.StockID, &st.TickerSymbol, &st.StockName, &st.Market); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		page.Results = append(page.Results, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	if len(page.Results) > limit {
		page.HasMore = true
		page.Results = page.Results[:limit]
		page.NextAfter = page.Results[limit-1].StockID
	}

	return page, nil
}
