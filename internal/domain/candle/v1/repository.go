package candlev1

import "context"

//go:generate mockgen -source=repository.go -destination=mock/repository_mock.go -package=mock

// Repository persists closed bars.
type Repository interface {
	Store(ctx context.Context, bar *BarRecord) error
	StoreBatch(ctx context.Context, bars []*BarRecord) error
	GetByFilter(ctx context.Context, filter Filter) ([]*BarRecord, error)
	GetLatest(ctx context.Context, symbol, interval string) (*BarRecord, error)
}
