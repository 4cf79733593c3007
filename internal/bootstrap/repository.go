package bootstrap

import (
	"context"

	candlev1 "github.com/muhammadchandra19/tickstore/internal/domain/candle/v1"
	checkpointv1 "github.com/muhammadchandra19/tickstore/internal/domain/checkpoint/v1"
	candleInfra "github.com/muhammadchandra19/tickstore/internal/infrastructure/questdb/candle"
	"github.com/muhammadchandra19/tickstore/internal/infrastructure/questdb/migrations"
	"github.com/muhammadchandra19/tickstore/internal/usecase/checkpoint"
	"github.com/muhammadchandra19/tickstore/pkg/logger"
	"github.com/muhammadchandra19/tickstore/pkg/migration"
)

// Repository is the repository for the replay service.
type Repository struct {
	CandleRepository candlev1.Repository
	CheckpointStore  checkpointv1.Store
}

// registerRepository brings the QuestDB schema up to date and registers the repository.
func (b *Bootstrap) registerRepository(ctx context.Context) error {
	applied, err := migration.NewRunner(b.QuestDB, migrations.FS, b.Logger).Up(ctx, 0)
	if err != nil {
		return err
	}
	if applied > 0 {
		b.Logger.InfoContext(ctx, "questdb schema migrated", logger.NewField("applied", applied))
	}

	b.Repository.CandleRepository = candleInfra.NewRepository(b.QuestDB, b.Logger)
	b.Repository.CheckpointStore = checkpoint.NewStore(b.Redis, b.Config.Replay.CheckpointTTL, b.Logger)
	return nil
}
