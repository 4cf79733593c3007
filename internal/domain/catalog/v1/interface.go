package catalogv1

import "context"

// Catalog indexes finalized DTF files by symbol and time range.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=catalogv1_mock
type Catalog interface {
	Upsert(ctx context.Context, entry Entry) error
	Get(ctx context.Context, path string) (*Entry, error)
	FindOverlapping(ctx context.Context, symbol string, from, to uint64) ([]Entry, error)
	Symbols(ctx context.Context) ([]string, error)
}
