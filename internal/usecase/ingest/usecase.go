package ingest

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	catalogv1 "github.com/muhammadchandra19/tickstore/internal/domain/catalog/v1"
	ingestv1 "github.com/muhammadchandra19/tickstore/internal/domain/ingest/v1"
	"github.com/muhammadchandra19/tickstore/pkg/dtf"
	apperrors "github.com/muhammadchandra19/tickstore/pkg/errors"
	"github.com/muhammadchandra19/tickstore/pkg/logger"
	"github.com/samber/lo"
)

// FileStore persists encoded DTF files.
type FileStore interface {
	Write(key string, data []byte) (string, error)
	Open(path string) (*dtf.File, error)
	Scan(ctx context.Context) ([]string, error)
	Key(path string) (string, error)
}

// Registrar assigns symbol codes.
type Registrar interface {
	Register(name string) (uint32, error)
}

// Recorder receives ingest metrics.
type Recorder interface {
	RecordEventIngested(symbol string)
	RecordFileFinalized(symbol string, records int)
	RecordError(component, errorType string)
}

type nopRecorder struct{}

func (nopRecorder) RecordEventIngested(string)      {}
func (nopRecorder) RecordFileFinalized(string, int) {}
func (nopRecorder) RecordError(string, string)      {}

// Options configures Usecase.
type Options struct {
	// MaxRecords is the buffered record count that finalizes a file.
	MaxRecords int
	BlockSize  int
	Compress   bool
}

// DefaultOptions returns the default ingest options.
func DefaultOptions() *Options {
	return &Options{
		MaxRecords: 100_000,
		BlockSize:  dtf.DefaultBlockSize,
	}
}

type buffer struct {
	code    uint32
	records []dtf.Update
}

// Usecase buffers raw events per symbol and finalizes them into DTF files.
// It is safe for concurrent use.
type Usecase struct {
	files     FileStore
	registry  Registrar
	catalog   catalogv1.Catalog
	publisher ingestv1.Publisher
	recorder  Recorder
	logger    *logger.Logger
	options   *Options

	mu      sync.Mutex
	buffers map[string]*buffer
	last    map[string]dtf.Update
}

// NewUsecase creates an ingest usecase. publisher and recorder may be nil.
func NewUsecase(
	files FileStore,
	registry Registrar,
	catalog catalogv1.Catalog,
	publisher ingestv1.Publisher,
	recorder Recorder,
	logger *logger.Logger,
	options *Options,
) *Usecase {
	if options == nil {
		options = DefaultOptions()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Usecase{
		files:     files,
		registry:  registry,
		catalog:   catalog,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
		options:   options,
		buffers:   make(map[string]*buffer),
		last:      make(map[string]dtf.Update),
	}
}

// Ingest buffers one event. Events of a symbol must arrive ordered by
// timestamp with increasing sequence numbers; others are rejected. A buffer
// that reaches MaxRecords is finalized.
func (u *Usecase) Ingest(ctx context.Context, event ingestv1.RawEvent) error {
	update, err := event.ToUpdate()
	if err != nil {
		u.recorder.RecordError("ingest", "invalid_record")
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if last, ok := u.last[event.Symbol]; ok {
		if update.Timestamp < last.Timestamp || update.Sequence <= last.Sequence {
			u.recorder.RecordError("ingest", "unsorted")
			return fmt.Errorf("%w: %s ts %d seq %d after ts %d seq %d",
				dtf.ErrUnsortedInput, event.Symbol, update.Timestamp, update.Sequence, last.Timestamp, last.Sequence)
		}
	}

	buf, ok := u.buffers[event.Symbol]
	if !ok {
		code, err := u.registry.Register(event.Symbol)
		if err != nil {
			u.recorder.RecordError("ingest", "unknown_symbol")
			return apperrors.TracerFromError(err)
		}
		buf = &buffer{code: code}
		u.buffers[event.Symbol] = buf
	}
	buf.records = append(buf.records, update)
	u.last[event.Symbol] = update
	u.recorder.RecordEventIngested(event.Symbol)

	if u.options.MaxRecords > 0 && len(buf.records) >= u.options.MaxRecords {
		if _, err := u.flush(ctx, event.Symbol); err != nil {
			return err
		}
	}
	return nil
}

// Pending returns the number of buffered records of symbol.
func (u *Usecase) Pending(symbol string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	if buf, ok := u.buffers[symbol]; ok {
		return len(buf.records)
	}
	return 0
}

// Flush finalizes the buffered records of symbol. It returns nil when nothing
// is buffered.
func (u *Usecase) Flush(ctx context.Context, symbol string) (*ingestv1.FileFinalized, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.flush(ctx, symbol)
}

// FlushAll finalizes every symbol with buffered records, in name order.
func (u *Usecase) FlushAll(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	symbols := lo.Keys(u.buffers)
	sort.Strings(symbols)

	var errs []error
	for _, symbol := range symbols {
		if _, err := u.flush(ctx, symbol); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// flush writes the buffer of symbol as one file. The buffer is released once
// the file is on disk; catalog and publish failures are returned after that.
func (u *Usecase) flush(ctx context.Context, symbol string) (*ingestv1.FileFinalized, error) {
	buf, ok := u.buffers[symbol]
	if !ok || len(buf.records) == 0 {
		return nil, nil
	}

	opts := []dtf.EncodeOption{dtf.WithBlockSize(u.options.BlockSize)}
	if u.options.Compress {
		opts = append(opts, dtf.WithCompression())
	}
	data, err := dtf.Encode(buf.records, buf.code, opts...)
	if err != nil {
		u.recorder.RecordError("ingest", "encode")
		return nil, apperrors.TracerFromError(err)
	}
	meta, err := dtf.ReadMetadata(data)
	if err != nil {
		return nil, apperrors.TracerFromError(err)
	}

	key := FileKey(symbol, meta.MinTimestamp)
	filePath, err := u.files.Write(key, data)
	if err != nil {
		u.recorder.RecordError("ingest", "write")
		return nil, apperrors.NewTracer("ingest_write_error").Wrap(err)
	}
	delete(u.buffers, symbol)

	event := ingestv1.FileFinalized{Key: key, Path: filePath, Symbol: symbol, Metadata: meta}
	if err := u.catalog.Upsert(ctx, catalogv1.NewEntry(filePath, key, symbol, int64(len(data)), meta)); err != nil {
		u.recorder.RecordError("ingest", "catalog")
		return &event, apperrors.NewTracer("ingest_catalog_error").Wrap(err)
	}
	if u.publisher != nil {
		if err := u.publisher.Publish(ctx, event); err != nil {
			u.recorder.RecordError("ingest", "publish")
			return &event, apperrors.TracerFromError(err)
		}
	}

	u.recorder.RecordFileFinalized(symbol, int(meta.RecordCount))
	u.logger.InfoContext(ctx, "file finalized",
		logger.NewField("symbol", symbol),
		logger.NewField("key", key),
		logger.NewField("records", meta.RecordCount),
		logger.NewField("bytes", len(data)),
	)
	return &event, nil
}

// FileKey is the destination key of a finalized file:
// <symbol>/<min_ts>-<uuid>.dtf.
func FileKey(symbol string, minTs uint64) string {
	return fmt.Sprintf("%s/%d-%s.dtf", symbol, minTs, uuid.NewString())
}

// Reindex rebuilds catalog entries from the files on disk. Files that fail
// verification are logged and skipped. It returns the number of entries
// written.
func (u *Usecase) Reindex(ctx context.Context) (int, error) {
	paths, err := u.files.Scan(ctx)
	if err != nil {
		return 0, apperrors.TracerFromError(err)
	}

	indexed := 0
	for _, filePath := range paths {
		key, err := u.files.Key(filePath)
		if err != nil {
			return indexed, apperrors.TracerFromError(err)
		}
		symbol, _, ok := strings.Cut(key, "/")
		if !ok {
			symbol = strings.TrimSuffix(path.Base(key), path.Ext(key))
		}

		entry, err := u.describe(filePath, key, symbol)
		if err != nil {
			u.recorder.RecordError("ingest", "reindex")
			u.logger.WarnContext(ctx, "skipping unreadable file",
				logger.NewField("path", filePath),
				logger.NewField("error", err.Error()),
			)
			continue
		}
		if err := u.catalog.Upsert(ctx, entry); err != nil {
			return indexed, apperrors.TracerFromError(err)
		}
		indexed++
	}
	return indexed, nil
}

func (u *Usecase) describe(filePath, key, symbol string) (catalogv1.Entry, error) {
	f, err := u.files.Open(filePath)
	if err != nil {
		return catalogv1.Entry{}, err
	}
	defer f.Close()

	meta, err := f.Verify()
	if err != nil {
		return catalogv1.Entry{}, err
	}
	return catalogv1.NewEntry(filePath, key, symbol, f.Size(), meta), nil
}
