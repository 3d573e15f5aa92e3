package redisx

import "time"

const (
	// Idempotent purchase: idem:purchase:create:{idempotency_key} -> response body
	KeyIdemPurchaseCreate = "idem:purchase:create:%s"

	// Dedup event processing: dedup:{service}:{id} (id = event_id)
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	// A claim whose request died is freed after this long.
	TTLIdempotencyPending = time.Minute
	TTLDedup              = 48 * time.Hour
)
