package bootstrap

import (
	"context"
	"errors"
	"os"

	ingestv1 "github.com/muhammadchandra19/tickstore/internal/domain/ingest/v1"
	"github.com/muhammadchandra19/tickstore/internal/infrastructure/filestore"
	"github.com/muhammadchandra19/tickstore/internal/infrastructure/sqlite/catalog"
	"github.com/muhammadchandra19/tickstore/internal/instrumentation"
	"github.com/muhammadchandra19/tickstore/pkg/config"
	"github.com/muhammadchandra19/tickstore/pkg/httplib/healthcheck"
	"github.com/muhammadchandra19/tickstore/pkg/logger"
	"github.com/muhammadchandra19/tickstore/pkg/questdb"
	"github.com/muhammadchandra19/tickstore/pkg/redis"
	"github.com/muhammadchandra19/tickstore/pkg/symbol"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// Bootstrap holds the shared dependencies of the tickstore commands.
type Bootstrap struct {
	Config     *config.Config
	Logger     *logger.Logger
	Metrics    *instrumentation.Metrics
	Health     *healthcheck.HealthCheck
	Repository Repository
	Usecase    Usecase

	Registry  *symbol.Registry
	Files     *filestore.Store
	Catalog   *catalog.Catalog
	Publisher ingestv1.Publisher
	Redis     redis.Client
	QuestDB   questdb.QuestDBClient

	closers []func() error
}

// New creates the logger and metrics for cfg. reg may be nil to use the
// default registerer.
func New(cfg *config.Config, reg prometheus.Registerer) (*Bootstrap, error) {
	log, err := logger.NewLogger(logger.WithLoggingLevel(logger.Level(cfg.App.LogLevel)))
	if err != nil {
		return nil, err
	}

	b := &Bootstrap{
		Config:  cfg,
		Logger:  log.WithFields(logger.NewField("app", cfg.App.Name)),
		Metrics: instrumentation.NewMetrics(reg),
		Health:  healthcheck.New(0),
	}
	b.onClose(func() error {
		_ = log.Sync()
		return nil
	})
	return b, nil
}

// InitIngest opens the file store and catalog and builds the ingest usecase.
func (b *Bootstrap) InitIngest(ctx context.Context) error {
	if err := b.initStorage(ctx); err != nil {
		return err
	}
	b.registerPublisher()
	b.registerIngestUsecase()
	return nil
}

// InitReplay opens the file store, catalog, Redis and QuestDB and builds the
// replay usecase.
func (b *Bootstrap) InitReplay(ctx context.Context) error {
	if err := b.initStorage(ctx); err != nil {
		return err
	}
	if err := b.initRedis(ctx); err != nil {
		return err
	}
	if err := b.initQuestDB(ctx); err != nil {
		return err
	}
	if err := b.registerRepository(ctx); err != nil {
		return err
	}
	return b.registerReplayUsecase()
}

// Close releases everything opened by the Init methods, most recent first.
func (b *Bootstrap) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

func (b *Bootstrap) onClose(fn func() error) {
	b.closers = append(b.closers, fn)
}

func (b *Bootstrap) initStorage(ctx context.Context) error {
	if b.Files != nil {
		return nil
	}

	registry, err := loadRegistry(b.Config.Store.SymbolsFile)
	if err != nil {
		return err
	}
	b.Registry = registry
	if path := b.Config.Store.SymbolsFile; path != "" {
		b.onClose(func() error { return saveRegistry(path, registry) })
	}

	files, err := filestore.New(b.Config.Store.Root)
	if err != nil {
		return err
	}
	b.Files = files

	cat, err := catalog.New(ctx, b.Config.Store.CatalogPath)
	if err != nil {
		return err
	}
	b.Catalog = cat
	b.onClose(cat.Close)
	b.Health.Register("catalog", cat.Ping)

	b.Logger.InfoContext(ctx, "storage ready",
		logger.NewField("root", files.Root()),
		logger.NewField("catalog", b.Config.Store.CatalogPath),
		logger.NewField("symbols", len(registry.Symbols())),
	)
	return nil
}

func (b *Bootstrap) initRedis(ctx context.Context) error {
	client := redis.NewClient(b.Logger, &b.Config.Redis)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	b.Redis = client
	b.onClose(func() error { return client.Disconnect(context.Background()) })
	b.Health.Register("redis", client.Ping)
	return nil
}

func (b *Bootstrap) initQuestDB(ctx context.Context) error {
	client, err := questdb.NewClient(ctx, b.Config.QuestDB)
	if err != nil {
		return err
	}
	b.QuestDB = client
	b.onClose(func() error {
		client.Close()
		return nil
	})
	b.Health.Register("questdb", client.Ping)
	return nil
}

// loadRegistry reads the symbol registry at path. A missing file starts an
// empty registry that is written on Close.
func loadRegistry(path string) (*symbol.Registry, error) {
	if path == "" {
		return symbol.NewRegistry()
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return symbol.NewRegistry()
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return symbol.LoadYAML(f)
}

func saveRegistry(path string, registry *symbol.Registry) error {
	data, err := yaml.Marshal(registry)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
