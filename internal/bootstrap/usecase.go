package bootstrap

import (
	"github.com/muhammadchandra19/tickstore/internal/publisher/finalized"
	candleUc "github.com/muhammadchandra19/tickstore/internal/usecase/candle"
	ingestUc "github.com/muhammadchandra19/tickstore/internal/usecase/ingest"
	replayUc "github.com/muhammadchandra19/tickstore/internal/usecase/replay"
	"github.com/muhammadchandra19/tickstore/pkg/util"
)

// Usecase is the usecase for the tickstore commands.
type Usecase struct {
	IngestUsecase *ingestUc.Usecase
	CandleUsecase *candleUc.Usecase
	ReplayUsecase *replayUc.Usecase
}

// registerPublisher creates the finalized-file publisher when a topic is configured.
func (b *Bootstrap) registerPublisher() {
	if b.Config.Kafka.FinalizedTopic == "" {
		return
	}
	publisher := finalized.NewPublisher(finalized.Config{
		Brokers: b.Config.Kafka.Brokers,
		Topic:   b.Config.Kafka.FinalizedTopic,
	}, b.Logger)
	b.Publisher = publisher
	b.onClose(publisher.Close)
}

// registerIngestUsecase registers the ingest usecase.
func (b *Bootstrap) registerIngestUsecase() {
	options := &ingestUc.Options{
		MaxRecords: b.Config.Store.MaxRecords,
		BlockSize:  b.Config.Store.BlockSize,
		Compress:   b.Config.Store.Compress,
	}
	b.Usecase.IngestUsecase = ingestUc.NewUsecase(b.Files, b.Registry, b.Catalog, b.Publisher, b.Metrics, b.Logger, options)
}

// registerReplayUsecase registers the candle and replay usecases.
func (b *Bootstrap) registerReplayUsecase() error {
	policy, err := b.Config.Replay.Policy()
	if err != nil {
		return err
	}

	owner := b.Config.Replay.Owner
	if owner == "" {
		owner = util.NewID()
	}

	b.Usecase.CandleUsecase = candleUc.NewUsecase(b.Repository.CandleRepository, b.Logger)
	b.Usecase.ReplayUsecase = replayUc.NewUsecase(
		b.Catalog,
		b.Files,
		b.Repository.CheckpointStore,
		b.Usecase.CandleUsecase,
		b.Metrics,
		b.Logger,
		&replayUc.UsecaseOptions{
			Owner:       owner,
			LeaseTTL:    b.Config.Replay.LeaseTTL,
			TradePolicy: policy,
		},
	)
	return nil
}
