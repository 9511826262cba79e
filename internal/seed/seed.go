// Package seed populates reference tables from bundled data at startup.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jeonbongjun/roboadvisor/internal/domain"
)

// StockRepository is the part of the stock store the loader uses.
type StockRepository interface {
	Count(ctx context.Context) (int, error)
	SaveAll(ctx context.Context, stocks []domain.Stock) error
}

// Outcome describes what a Loader run did.
type Outcome int

const (
	// OutcomeSkipped means the stock master already had rows.
	OutcomeSkipped Outcome = iota
	// OutcomeLoaded means the file was parsed and saved.
	OutcomeLoaded
	// OutcomeFailed means an error was logged and nothing was saved.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeLoaded:
		return "loaded"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result reports a Loader run. Err is informational: a failed seed is never
// returned to the caller as an error.
type Result struct {
	Outcome   Outcome
	Existing  int // rows found by the initial count
	Loaded    int // records passed to SaveAll
	Malformed int // rows skipped for having too few columns
	Err       error
}

// Loader seeds the stock master table from a Source when the table is empty.
type Loader struct {
	Stocks StockRepository
	Source Source
	Logger *slog.Logger
}

// NewLoader returns a Loader logging through slog.Default.
func NewLoader(stocks StockRepository, src Source) *Loader {
	return &Loader{Stocks: stocks, Source: src}
}

// Run seeds the stock master once. It is meant to be called a single time at
// startup, before other work. When the table already has rows it does
// nothing. Otherwise it parses the whole source and saves every valid row
// with one SaveAll call. Failures, including panics from the repository, are
// logged and reported in the Result; Run never fails its caller.
//
// The count and the insert are not atomic. Concurrent runs against an empty
// table may both insert, and the store's stock_id key collapses the
// duplicates.
func (l *Loader) Run(ctx context.Context) (res Result) {
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}

	defer func() {
		if rec := recover(); rec != nil {
			res = Result{Outcome: OutcomeFailed, Err: fmt.Errorf("panic: %v", rec)}
			log.Error("stock master load failed", "error", res.Err)
		}
	}()

	count, err := l.Stocks.Count(ctx)
	if err != nil {
		log.Error("stock master load failed", "error", err)
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	if count > 0 {
		log.Info("stock master already populated, skipping seed", "count", count)
		return Result{Outcome: OutcomeSkipped, Existing: count}
	}

	log.Info("stock master is empty, loading from source")

	stocks, malformed, err := l.load(ctx, log)
	if err != nil {
		log.Error("stock master load failed", "error", err)
		return Result{Outcome: OutcomeFailed, Malformed: malformed, Err: err}
	}

	log.Info("stock master loaded", "count", len(stocks), "malformed", malformed)
	return Result{Outcome: OutcomeLoaded, Loaded: len(stocks), Malformed: malformed}
}

func (l *Loader) load(ctx context.Context, log *slog.Logger) ([]domain.Stock, int, error) {
	rc, err := l.Source()
	if err != nil {
		return nil, 0, fmt.Errorf("open stock master: %w", err)
	}
	defer func() { _ = rc.Close() }()

	stocks, malformed, err := ParseStocks(rc, log)
	if err != nil {
		return nil, malformed, fmt.Errorf("parse stock master: %w", err)
	}

	if err := l.Stocks.SaveAll(ctx, stocks); err != nil {
		return nil, malformed, fmt.Errorf("save stocks: %w", err)
	}
	return stocks, malformed, nil
}
