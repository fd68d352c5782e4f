package resolve

import (
	"context"
	"errors"

	"github.com/dusk-indust/girder/internal/parse"
)

// ErrOracleMiss means the oracle has no answer for a reference.
var ErrOracleMiss = errors.New("resolve: oracle has no answer")

// Oracle is the tier-3 precision fallback: an external symbol authority
// such as a language server or pre-built index. Implementations must
// honor ctx cancellation; the resolver wraps every call in a deadline.
type Oracle interface {
	// Locate returns the defining symbol for a reference, with a
	// confidence in [0.95, 0.99].
	Locate(ctx context.Context, ref parse.Reference) (SymbolKey, float64, error)
	Close() error
}

// IndexOracle answers from a pre-built symbol table. It is the cheap
// oracle used when no language server is configured: exact (name,
// receiver) pairs recorded by an earlier full resolution.
type IndexOracle struct {
	symbols map[oracleKey]SymbolKey
}

type oracleKey struct {
	name     string
	receiver string
}

// NewIndexOracle builds an oracle from known definitions.
func NewIndexOracle() *IndexOracle {
	return &IndexOracle{symbols: make(map[oracleKey]SymbolKey)}
}

// Record registers a definition under its name and receiver.
func (o *IndexOracle) Record(receiver string, key SymbolKey) {
	o.symbols[oracleKey{name: key.Name, receiver: receiver}] = key
}

func (o *IndexOracle) Locate(ctx context.Context, ref parse.Reference) (SymbolKey, float64, error) {
	if err := ctx.Err(); err != nil {
		return SymbolKey{}, 0, err
	}
	if key, ok := o.symbols[oracleKey{name: ref.Name, receiver: ref.Receiver}]; ok {
		return key, 0.97, nil
	}
	if key, ok := o.symbols[oracleKey{name: ref.Name}]; ok {
		return key, 0.95, nil
	}
	return SymbolKey{}, 0, ErrOracleMiss
}

func (o *IndexOracle) Close() error { return nil }
