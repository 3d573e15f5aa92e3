package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
	"github.com/ariefcatur/cyberphone-ledger/internal/kvstore"
	"github.com/ariefcatur/cyberphone-ledger/internal/metrics"
)

// KVBackend is a kvstore.Backend using optimistic WATCH/MULTI/EXEC. A write
// by another client between read and EXEC aborts the attempt and fn runs again.
type KVBackend struct {
	rdb        *redis.Client
	maxRetries int
}

var _ kvstore.Backend = (*KVBackend)(nil)

func NewKVBackend(rdb *redis.Client, maxRetries int) *KVBackend {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &KVBackend{rdb: rdb, maxRetries: maxRetries}
}

func (b *KVBackend) Name() string { return "redis" }

func (b *KVBackend) Update(ctx context.Context, keys []string, fn func(v kvstore.View) error) error {
	for attempt := 0; attempt < b.maxRetries; attempt++ {
		err := b.rdb.Watch(ctx, func(tx *redis.Tx) error {
			v := &watchView{ctx: ctx, tx: tx, staged: map[string][]byte{}}
			if err := fn(v); err != nil {
				return err
			}
			if len(v.staged) == 0 {
				return nil
			}
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for k, val := range v.staged {
					pipe.Set(ctx, k, val, 0)
				}
				return nil
			})
			return err
		}, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			metrics.TxRetries.WithLabelValues(b.Name()).Inc()
			continue
		}
		return err
	}
	return fmt.Errorf("redis update after %d attempts: %w", b.maxRetries, commerce.ErrConflict)
}

type watchView struct {
	ctx    context.Context
	tx     *redis.Tx
	staged map[string][]byte
}

func (v *watchView) Get(key string) ([]byte, bool, error) {
	if val, ok := v.staged[key]; ok {
		return val, true, nil
	}
	b, err := v.tx.Get(v.ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (v *watchView) Put(key string, value []byte) { v.staged[key] = value }
