package seed

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"github.com/jeonbongjun/roboadvisor/internal/domain"
)

// Column positions in the KRX listed-issue export.
const (
	colStandardCode = 0 // 표준코드, e.g. KR7005930003
	colShortCode    = 1 // 단축코드, e.g. 005930
	colShortName    = 3 // 한글 종목약명
	colMarket       = 6 // 시장구분
	minColumns      = 7
)

const maxLineBytes = 1 << 20

// ParseStocks decodes an EUC-KR stock master export and returns one Stock
// per data row. The first line is a header and is discarded. Rows are split
// on every comma, without CSV quoting rules; rows with fewer than seven
// fields are logged and skipped, and counted in the second return value.
// No deduplication is done.
func ParseStocks(r io.Reader, log *slog.Logger) ([]domain.Stock, int, error) {
	if log == nil {
		log = slog.Default()
	}

	sc := bufio.NewScanner(transform.NewReader(r, korean.EUCKR.NewDecoder()))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	stocks := []domain.Stock{}
	malformed := 0

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, 0, fmt.Errorf("read header: %w", err)
		}
		return stocks, 0, nil
	}

	line := 1
	for sc.Scan() {
		line++
		row := sc.Text()

		fields := splitFields(row)
		if len(fields) < minColumns {
			log.Warn("skipping malformed stock row: too few columns",
				"line", line,
				"columns", len(fields),
				"row", row,
			)
			malformed++
			continue
		}

		stocks = append(stocks, domain.NewStock(
			cleanField(fields[colStandardCode]),
			cleanField(fields[colShortCode]),
			cleanField(fields[colShortName]),
			cleanField(fields[colMarket]),
		))
	}
	if err := sc.Err(); err != nil {
		return nil, malformed, fmt.Errorf("read line %d: %w", line+1, err)
	}

	return stocks, malformed, nil
}

// splitFields splits row on every comma and drops trailing empty fields, so
// a row of bare commas has no fields and a row with an empty market column
// is short.
func splitFields(row string) []string {
	fields := strings.Split(row, ",")
	for len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}

// cleanField removes every double quote and the surrounding whitespace.
func cleanField(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}
