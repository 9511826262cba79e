// Package resources bundles static data files into the binary.
package resources

import "embed"

// StocksFile is the name of the KRX stock master export inside FS.
const StocksFile = "krx_stocks.csv"

// FS contains the bundled data files. krx_stocks.csv is the KRX listed-issue
// export and is EUC-KR encoded, as KRX publishes it.
//
//go:embed krx_stocks.csv
var FS embed.FS
