package domain

// Exchange segments found in the KRX stock master.
const (
	MarketKOSPI  = "KOSPI"
	MarketKOSDAQ = "KOSDAQ"
	MarketKONEX  = "KONEX"
)

// Stock is one entry of the exchange stock master. Stocks are created by the
// seed loader and never modified afterwards.
type Stock struct {
	StockID      string `json:"stockId"`
	TickerSymbol string `json:"tickerSymbol"`
	StockName    string `json:"stockName"`
	Market       string `json:"market"`
}

// NewStock builds a Stock from its four master-data fields.
func NewStock(tickerSymbol, stockID, stockName, market string) Stock {
	return Stock{
		StockID:      stockID,
		TickerSymbol: tickerSymbol,
		StockName:    stockName,
		Market:       market,
	}
}

// StockListOpts holds the parameters for listing stocks.
type StockListOpts struct {
	Market string
	Limit  int
	After  string
}

// StockPage is a paginated list of stocks ordered by StockID.
type StockPage struct {
	Results   []Stock
	HasMore   bool
	NextAfter string
}
