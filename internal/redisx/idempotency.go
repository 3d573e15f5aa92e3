package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Idempotency remembers the response of a purchase per client supplied key.
// A key is claimed with a pending marker before the purchase runs, so two
// requests with the same key never both settle.
type Idempotency struct {
	rdb redis.Cmdable
}

func NewIdempotency(rdb redis.Cmdable) *Idempotency {
	return &Idempotency{rdb: rdb}
}

// idemPending marks a key whose first request has not finished yet.
const idemPending = "pending"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Claim reserves key for the caller. When the key is taken it returns
// claimed=false with the stored response, or a nil body while the first
// request is still running.
func (i *Idempotency) Claim(ctx context.Context, key string) (bool, []byte, error) {
	k := fmt.Sprintf(KeyIdemPurchaseCreate, key)
	ok, err := i.rdb.SetNX(ctx, k, idemPending, TTLIdempotencyPending).Result()
	if err != nil {
		return false, nil, err
	}
	if ok {
		return true, nil, nil
	}
	b, err := i.rdb.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) || (err == nil && string(b) == idemPending) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return false, b, nil
}

// Save replaces the pending marker with the final response.
func (i *Idempotency) Save(ctx context.Context, key string, body []byte) error {
	return i.rdb.Set(ctx, fmt.Sprintf(KeyIdemPurchaseCreate, key), body, TTLIdempotency).Err()
}

// Release drops a claim whose request failed, so the client may retry with
// the same key. A saved response is never removed.
func (i *Idempotency) Release(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, i.rdb, []string{fmt.Sprintf(KeyIdemPurchaseCreate, key)}, idemPending).Err()
}

// Dedup tracks which events a consumer service already handled.
type Dedup struct {
	rdb     redis.Cmdable
	service string
}

func NewDedup(rdb redis.Cmdable, service string) *Dedup {
	return &Dedup{rdb: rdb, service: service}
}

func (d *Dedup) Seen(ctx context.Context, id string) (bool, error) {
	return Exists(ctx, d.rdb, fmt.Sprintf(KeyDedup, d.service, id))
}

// Mark records id as handled. Call it only after the work committed.
func (d *Dedup) Mark(ctx context.Context, id string) error {
	return d.rdb.Set(ctx, fmt.Sprintf(KeyDedup, d.service, id), 1, TTLDedup).Err()
}
