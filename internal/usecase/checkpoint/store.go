package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	checkpointv1 "github.com/muhammadchandra19/tickstore/internal/domain/checkpoint/v1"
	"github.com/muhammadchandra19/tickstore/pkg/errors"
	logger "github.com/muhammadchandra19/tickstore/pkg/logger"
	"github.com/muhammadchandra19/tickstore/pkg/redis"
)

const (
	checkpointPrefix = "checkpoint:"
	leasePrefix      = "checkpoint-lease:"
)

// Store keeps replay checkpoints in Redis as JSON documents.
type Store struct {
	logger      *logger.Logger
	redisclient redis.Client
	ttl         time.Duration
}

var _ checkpointv1.Store = (*Store)(nil)

// NewStore creates a checkpoint store. A zero ttl keeps checkpoints forever.
func NewStore(redisclient redis.Client, ttl time.Duration, logger *logger.Logger) *Store {
	return &Store{
		logger:      logger,
		redisclient: redisclient,
		ttl:         ttl,
	}
}

// Save stores cp, replacing the previous checkpoint of its symbol and interval.
func (s *Store) Save(ctx context.Context, cp *checkpointv1.Checkpoint) error {
	key := checkpointv1.Key(cp.Symbol, cp.Interval)
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}

	buf, err := json.Marshal(cp)
	if err != nil {
		s.logger.ErrorContext(ctx, err, logger.NewField("key", key))
		return errors.NewTracer("checkpoint_marshal_error").Wrap(err)
	}

	if err := s.redisclient.Set(ctx, checkpointPrefix+key, buf, s.ttl); err != nil {
		s.logger.ErrorContext(ctx, err,
			logger.NewField("key", key),
			logger.NewField("action", "save checkpoint"),
		)
		return errors.NewTracer("checkpoint_store_error").Wrap(err)
	}

	s.logger.DebugContext(ctx, fmt.Sprintf("Checkpoint stored for %s", key),
		logger.NewField("key", key),
		logger.NewField("sequence", cp.Book.Sequence),
		logger.NewField("records", cp.Records),
	)
	return nil
}

// Load returns the checkpoint of symbol at interval, nil if there is none.
func (s *Store) Load(ctx context.Context, symbol, interval string) (*checkpointv1.Checkpoint, error) {
	key := checkpointv1.Key(symbol, interval)

	data, err := s.redisclient.Get(ctx, checkpointPrefix+key)
	if err != nil {
		s.logger.ErrorContext(ctx, err,
			logger.NewField("key", key),
			logger.NewField("action", "load checkpoint"),
		)
		return nil, errors.NewTracer("checkpoint_load_error").Wrap(err)
	}

	if data == "" {
		s.logger.InfoContext(ctx, fmt.Sprintf("No checkpoint found for %s", key),
			logger.NewField("key", key),
		)
		return nil, nil
	}

	var cp checkpointv1.Checkpoint
	if err := json.Unmarshal([]byte(data), &cp); err != nil {
		s.logger.ErrorContext(ctx, err,
			logger.NewField("key", key),
			logger.NewField("action", "unmarshal checkpoint"),
		)
		return nil, errors.NewTracer("checkpoint_unmarshal_error").Wrap(err)
	}
	return &cp, nil
}

// Delete removes the checkpoint of symbol at interval.
func (s *Store) Delete(ctx context.Context, symbol, interval string) error {
	if _, err := s.redisclient.Del(ctx, checkpointPrefix+checkpointv1.Key(symbol, interval)); err != nil {
		return errors.NewTracer("checkpoint_delete_error").Wrap(err)
	}
	return nil
}

// List returns the keys of every stored checkpoint.
func (s *Store) List(ctx context.Context) ([]string, error) {
	keys, err := s.redisclient.Scan(ctx, checkpointPrefix+"*")
	if err != nil {
		return nil, errors.NewTracer("checkpoint_list_error").Wrap(err)
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, checkpointPrefix)
	}
	return keys, nil
}

// Acquire takes the lease for symbol at interval. It reports false when
// another owner holds it.
func (s *Store) Acquire(ctx context.Context, symbol, interval, owner string, ttl time.Duration) (bool, error) {
	key := checkpointv1.Key(symbol, interval)

	ok, err := s.redisclient.SetNX(ctx, leasePrefix+key, owner, ttl)
	if err != nil {
		return false, errors.NewTracer("checkpoint_lease_error").Wrap(err)
	}
	if !ok {
		s.logger.WarnContext(ctx, fmt.Sprintf("Checkpoint lease for %s is held", key),
			logger.NewField("key", key),
			logger.NewField("owner", owner),
		)
	}
	return ok, nil
}

// Release drops the lease for symbol at interval.
func (s *Store) Release(ctx context.Context, symbol, interval string) error {
	if _, err := s.redisclient.Del(ctx, leasePrefix+checkpointv1.Key(symbol, interval)); err != nil {
		return errors.NewTracer("checkpoint_lease_error").Wrap(err)
	}
	return nil
}
