package seed

import (
	"io"
	"os"

	"github.com/jeonbongjun/roboadvisor/resources"
)

// Source opens the raw stock master file. The returned reader yields
// EUC-KR encoded bytes and is closed by the caller.
type Source func() (io.ReadCloser, error)

// EmbeddedSource opens the stock master bundled into the binary.
func EmbeddedSource() Source {
	return func() (io.ReadCloser, error) {
		return resources.FS.Open(resources.StocksFile)
	}
}

// FileSource opens the stock master at path, for deployments that ship a
// newer KRX export than the bundled one.
func FileSource(path string) Source {
	return func() (io.ReadCloser, error) {
		return os.Open(path) //nolint:gosec // path comes from operator configuration
	}
}
