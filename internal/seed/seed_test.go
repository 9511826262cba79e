package seed_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"golang.org/x/text/encoding/korean"

	"github.com/jeonbongjun/roboadvisor/internal/domain"
	"github.com/jeonbongjun/roboadvisor/internal/seed"
	"github.com/jeonbongjun/roboadvisor/internal/store"
	"github.com/jeonbongjun/roboadvisor/internal/testhelpers"
)

const header = `"표준코드","단축코드","한글 종목명","한글 종목약명","영문 종목명","상장일","시장구분"`

// memStocks is an in-memory StockRepository that persists across runs.
type memStocks struct {
	rows     []domain.Stock
	batches  [][]domain.Stock
	countErr error
	saveErr  error
	panicMsg string
}

func (m *memStocks) Count(context.Context) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.rows), nil
}

func (m *memStocks) SaveAll(_ context.Context, stocks []domain.Stock) error {
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	m.batches = append(m.batches, stocks)
	if m.saveErr != nil {
		return m.saveErr
	}
	m.rows = append(m.rows, stocks...)
	return nil
}

// trackedReader records whether Close was called.
type trackedReader struct {
	io.Reader
	closed bool
}

func (r *trackedReader) Close() error {
	r.closed = true
	return nil
}

func eucKR(t *testing.T, s string) []byte {
	t.Helper()
	b, err := korean.EUCKR.NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatalf("encode EUC-KR: %v", err)
	}
	return b
}

func sourceOf(t *testing.T, content string) (seed.Source, *trackedReader) {
	t.Helper()
	r := &trackedReader{Reader: bytes.NewReader(eucKR(t, content))}
	return func() (io.ReadCloser, error) { return r, nil }, r
}

func row(ticker, code, name, market string) string {
	return `"` + ticker + `","` + code + `","` + name + `보통주","` + name + `","","2000/01/01","` + market + `"`
}

func wellFormed(n int) string {
	rows := []string{header}
	codes := []string{"005930", "000660", "035720", "035420", "247540", "086520", "196170"}
	for i := 0; i < n; i++ {
		rows = append(rows, row("KR7"+codes[i]+"003", codes[i], "종목"+codes[i], "KOSPI"))
	}
	return strings.Join(rows, "\r\n") + "\r\n"
}

func newLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestRunRowCount(t *testing.T) {
	repo := &memStocks{}
	src, _ := sourceOf(t, wellFormed(5))
	log, _ := newLogger()

	res := (&seed.Loader{Stocks: repo, Source: src, Logger: log}).Run(context.Background())

	if res.Outcome != seed.OutcomeLoaded {
		t.Fatalf("outcome = %v, want loaded (err: %v)", res.Outcome, res.Err)
	}
	if len(repo.batches) != 1 {
		t.Fatalf("SaveAll calls = %d, want 1", len(repo.batches))
	}
	if len(repo.batches[0]) != 5 || res.Loaded != 5 {
		t.Errorf("records = %d (result %d), want 5", len(repo.batches[0]), res.Loaded)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	repo := &memStocks{}
	log, buf := newLogger()

	for i := 0; i < 2; i++ {
		src, _ := sourceOf(t, wellFormed(3))
		res := (&seed.Loader{Stocks: repo, Source: src, Logger: log}).Run(context.Background())

		want := seed.OutcomeLoaded
		if i == 1 {
			want = seed.OutcomeSkipped
		}
		if res.Outcome != want {
			t.Fatalf("run %d: outcome = %v, want %v", i+1, res.Outcome, want)
		}
	}

	if len(repo.batches) != 1 {
		t.Errorf("SaveAll calls = %d, want 1", len(repo.batches))
	}
	if len(repo.rows) != 3 {
		t.Errorf("rows = %d, want 3", len(repo.rows))
	}
	if !strings.Contains(buf.String(), "skipping seed") {
		t.Errorf("expected a skip log line, got %q", buf.String())
	}
}

func TestRunSkipsWithoutOpeningSource(t *testing.T) {
	repo := &memStocks{rows: []domain.Stock{domain.NewStock("KR7005930003", "005930", "삼성전자", "KOSPI")}}
	opened := false
	src := func() (io.ReadCloser, error) {
		opened = true
		return io.NopCloser(strings.NewReader("")), nil
	}

	res := seed.NewLoader(repo, src).Run(context.Background())

	if res.Outcome != seed.OutcomeSkipped || res.Existing != 1 {
		t.Errorf("result = %+v, want skipped with 1 existing", res)
	}
	if opened {
		t.Error("source should not be opened when stocks exist")
	}
}

func TestRunMalformedRow(t *testing.T) {
	lines := strings.Split(strings.TrimSpace(wellFormed(5)), "\r\n")
	lines[3] = `"KR7035720002","035720","카카오보통주","카카오",""` // row 3 of 5: five fields

	repo := &memStocks{}
	src, _ := sourceOf(t, strings.Join(lines, "\n"))
	log, buf := newLogger()

	res := (&seed.Loader{Stocks: repo, Source: src, Logger: log}).Run(context.Background())

	if res.Outcome != seed.OutcomeLoaded {
		t.Fatalf("outcome = %v, want loaded", res.Outcome)
	}
	if len(repo.batches) != 1 || len(repo.batches[0]) != 4 {
		t.Fatalf("expected one batch of 4 records, got %v", repo.batches)
	}
	if res.Malformed != 1 {
		t.Errorf("malformed = %d, want 1", res.Malformed)
	}
	if n := strings.Count(buf.String(), "level=WARN"); n != 1 {
		t.Errorf("warnings = %d, want 1: %q", n, buf.String())
	}
	for _, s := range repo.rows {
		if s.StockID == "035720" {
			t.Error("malformed row was inserted")
		}
	}
}

func TestRunEmptyFile(t *testing.T) {
	repo := &memStocks{}
	src, _ := sourceOf(t, header+"\n")

	res := seed.NewLoader(repo, src).Run(context.Background())

	if res.Outcome != seed.OutcomeLoaded || res.Loaded != 0 {
		t.Fatalf("result = %+v, want loaded with 0 records", res)
	}
	if len(repo.batches) != 1 || len(repo.batches[0]) != 0 {
		t.Errorf("expected one empty batch, got %v", repo.batches)
	}
}

func TestRunSourceUnreadable(t *testing.T) {
	repo := &memStocks{}
	src := func() (io.ReadCloser, error) { return nil, os.ErrPermission }
	log, buf := newLogger()

	res := (&seed.Loader{Stocks: repo, Source: src, Logger: log}).Run(context.Background())

	if res.Outcome != seed.OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", res.Outcome)
	}
	if !errors.Is(res.Err, os.ErrPermission) {
		t.Errorf("err = %v, want ErrPermission", res.Err)
	}
	if len(repo.batches) != 0 || len(repo.rows) != 0 {
		t.Error("expected zero inserts")
	}
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Errorf("expected an error log line, got %q", buf.String())
	}
}

func TestRunReadErrorMidFile(t *testing.T) {
	repo := &memStocks{}
	r := &trackedReader{Reader: io.MultiReader(
		bytes.NewReader(eucKR(t, wellFormed(2))),
		iotest.ErrReader(io.ErrUnexpectedEOF),
	)}
	src := func() (io.ReadCloser, error) { return r, nil }

	res := seed.NewLoader(repo, src).Run(context.Background())

	if res.Outcome != seed.OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", res.Outcome)
	}
	if len(repo.batches) != 0 {
		t.Error("nothing should be saved after a read error")
	}
	if !r.closed {
		t.Error("source was not closed")
	}
}

func TestRunSaveFailure(t *testing.T) {
	repo := &memStocks{saveErr: errors.New("disk full")}
	src, r := sourceOf(t, wellFormed(2))

	res := seed.NewLoader(repo, src).Run(context.Background())

	if res.Outcome != seed.OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", res.Outcome)
	}
	if len(repo.rows) != 0 {
		t.Error("expected zero stored rows")
	}
	if !r.closed {
		t.Error("source was not closed")
	}
}

func TestRunCountFailure(t *testing.T) {
	repo := &memStocks{countErr: errors.New("no such table: stocks")}
	opened := false
	src := func() (io.ReadCloser, error) {
		opened = true
		return nil, errors.New("unreachable")
	}

	res := seed.NewLoader(repo, src).Run(context.Background())

	if res.Outcome != seed.OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", res.Outcome)
	}
	if opened {
		t.Error("source should not be opened when the count fails")
	}
}

func TestRunRecoversPanic(t *testing.T) {
	repo := &memStocks{panicMsg: "driver exploded"}
	src, r := sourceOf(t, wellFormed(1))

	res := seed.NewLoader(repo, src).Run(context.Background())

	if res.Outcome != seed.OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", res.Outcome)
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "driver exploded") {
		t.Errorf("err = %v, want panic message", res.Err)
	}
	if !r.closed {
		t.Error("source was not closed")
	}
}

func TestRunClosesSourceOnSuccess(t *testing.T) {
	src, r := sourceOf(t, wellFormed(2))

	seed.NewLoader(&memStocks{}, src).Run(context.Background())

	if !r.closed {
		t.Error("source was not closed")
	}
}

func TestRunDuplicateStockIDs(t *testing.T) {
	content := header + "\n" +
		row("KR7005930003", "005930", "삼성전자", "KOSPI") + "\n" +
		row("KR7005930003", "005930", "삼성전자우", "KOSPI") + "\n"

	repo := &memStocks{}
	src, _ := sourceOf(t, content)
	seed.NewLoader(repo, src).Run(context.Background())

	if len(repo.batches) != 1 || len(repo.batches[0]) != 2 {
		t.Fatalf("expected both rows passed to SaveAll, got %v", repo.batches)
	}

	// The SQLite store keeps one row per stock_id.
	stocks := store.NewSQLiteStockStore(testhelpers.NewMigratedDB(t))
	src, _ = sourceOf(t, content)
	res := seed.NewLoader(stocks, src).Run(context.Background())
	if res.Outcome != seed.OutcomeLoaded {
		t.Fatalf("outcome = %v (err %v), want loaded", res.Outcome, res.Err)
	}

	n, err := stocks.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("stored rows = %d, want 1", n)
	}
}

func TestRunEmbeddedSource(t *testing.T) {
	stocks := store.NewSQLiteStockStore(testhelpers.NewMigratedDB(t))
	ctx := context.Background()

	res := seed.NewLoader(stocks, seed.EmbeddedSource()).Run(ctx)
	if res.Outcome != seed.OutcomeLoaded {
		t.Fatalf("outcome = %v (err %v), want loaded", res.Outcome, res.Err)
	}
	if res.Loaded == 0 || res.Malformed != 0 {
		t.Errorf("result = %+v, want rows and no malformed lines", res)
	}

	got, err := stocks.Get(ctx, "005930")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := domain.NewStock("KR7005930003", "005930", "삼성전자", "KOSPI")
	if *got != want {
		t.Errorf("stock = %+v, want %+v", *got, want)
	}

	kosdaq, err := stocks.List(ctx, domain.StockListOpts{Market: domain.MarketKOSDAQ})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(kosdaq.Results) == 0 {
		t.Error("expected KOSDAQ stocks in the bundled file")
	}
}

func TestRunFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "krx.csv")
	if err := os.WriteFile(path, eucKR(t, wellFormed(4)), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	repo := &memStocks{}
	res := seed.NewLoader(repo, seed.FileSource(path)).Run(context.Background())

	if res.Outcome != seed.OutcomeLoaded || res.Loaded != 4 {
		t.Errorf("result = %+v, want 4 loaded", res)
	}
}

func TestRunFileSourceMissing(t *testing.T) {
	repo := &memStocks{}
	res := seed.NewLoader(repo, seed.FileSource(filepath.Join(t.TempDir(), "missing.csv"))).Run(context.Background())

	if res.Outcome != seed.OutcomeFailed || !errors.Is(res.Err, os.ErrNotExist) {
		t.Errorf("result = %+v, want failed with ErrNotExist", res)
	}
}

func TestOutcomeString(t *testing.T) {
	if seed.OutcomeLoaded.String() != "loaded" || seed.Outcome(9).String() != "Outcome(9)" {
		t.Error("unexpected Outcome strings")
	}
}

func TestRunNeverStoresBlankCommaRows(t *testing.T) {
	ctx := context.Background()
	content := header + "\n" +
		row("KR7005930003", "005930", "삼성전자", "KOSPI") + "\n" +
		",,,,,,\n" +
		`"KR1","111111","x","Blank","e","d",` + "\n"

	stocks := store.NewSQLiteStockStore(testhelpers.NewMigratedDB(t))
	src, _ := sourceOf(t, content)
	res := seed.NewLoader(stocks, src).Run(ctx)
	if res.Outcome != seed.OutcomeLoaded {
		t.Fatalf("outcome = %v (err %v), want loaded", res.Outcome, res.Err)
	}
	if res.Loaded != 1 || res.Malformed != 2 {
		t.Errorf("loaded = %d, malformed = %d; want 1 and 2", res.Loaded, res.Malformed)
	}

	if n, err := stocks.Count(ctx); err != nil || n != 1 {
		t.Errorf("count = %d (err %v), want 1", n, err)
	}
	for _, code := range []string{"", "111111"} {
		if _, err := stocks.Get(ctx, code); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Get(%q) err = %v, want ErrNotFound", code, err)
		}
	}
}
