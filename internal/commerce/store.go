package commerce

import (
	"context"
	"errors"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("transaction conflict")
	ErrAlreadyRated        = errors.New("sale already rated")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrNotDelivered        = errors.New("sale not delivered")
)

// IsRetryable reports whether err is a transient storage conflict. Backends
// retry these themselves; validation errors are never retried.
func IsRetryable(err error) bool { return errors.Is(err, ErrConflict) }

// Tx is one logical operation against the persisted collections. Writes
// become visible only if the function passed to Repository.WithinTx returns nil.
// Lookups of missing entities return ErrNotFound.
type Tx interface {
	User(ctx context.Context, id string) (User, error)
	SaveUser(ctx context.Context, u User) error

	Product(ctx context.Context, id string) (Product, error)
	// SaveProductRating persists r and the recomputed aggregates of p.
	// p.Ratings must already contain r.
	SaveProductRating(ctx context.Context, p Product, r ProductRating) error
	StoreByID(ctx context.Context, id string) (Store, error)

	InsertSale(ctx context.Context, s Sale) error
	Sale(ctx context.Context, id string) (Sale, error)
	SaveSale(ctx context.Context, s Sale) error
	Sales(ctx context.Context, f SaleFilter) ([]Sale, error)

	Cart(ctx context.Context, userID string) ([]CartItem, error)
	SaveCart(ctx context.Context, userID string, items []CartItem) error

	InsertNotification(ctx context.Context, n Notification) error
	// Notifications returns the recipient's notifications newest first.
	Notifications(ctx context.Context, recipientID string) ([]Notification, error)
	MarkNotificationsRead(ctx context.Context, recipientID string) (int, error)

	PutUser(ctx context.Context, u User) error
	PutStore(ctx context.Context, s Store) error
	PutProduct(ctx context.Context, p Product) error
}

// Repository runs fn as a single atomic transaction. Implementations may call fn
// more than once when a conflict forces a retry, so fn must not have side
// effects outside tx.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Publisher delivers events after their transaction committed.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
