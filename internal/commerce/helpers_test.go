package commerce_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
	"github.com/ariefcatur/cyberphone-ledger/internal/kvstore"
)

type recorder struct {
	mu     sync.Mutex
	events []commerce.Event
}

func (r *recorder) Publish(_ context.Context, ev commerce.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Topic)
	}
	return out
}

func (r *recorder) byTopic(topic string) []commerce.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []commerce.Event
	for _, ev := range r.events {
		if ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}

// clock advances one second per reading so timestamps are strictly ordered.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type env struct {
	store    *kvstore.Store
	pub      *recorder
	deps     commerce.Deps
	notifier *commerce.Notifier
	ledger   *commerce.Ledger
}

func newEnv(t *testing.T, policy commerce.CommissionPolicy, mode commerce.FulfillmentMode) *env {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := kvstore.New(kvstore.NewMemory(), log)
	pub := &recorder{}
	clk := &clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	deps := commerce.Deps{Store: store, Publisher: pub, Producer: "test", Log: log, Now: clk.Now}
	n := commerce.NewNotifier(deps)
	return &env{
		store:    store,
		pub:      pub,
		deps:     deps,
		notifier: n,
		ledger:   commerce.NewLedger(deps, n, policy, mode),
	}
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (e *env) tx(t *testing.T, fn func(ctx context.Context, tx commerce.Tx) error) {
	t.Helper()
	require.NoError(t, e.store.WithinTx(context.Background(), fn))
}

func (e *env) users(t *testing.T, users ...commerce.User) {
	t.Helper()
	e.tx(t, func(ctx context.Context, tx commerce.Tx) error {
		for _, u := range users {
			if err := tx.PutUser(ctx, u); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *env) storeOwnedBy(t *testing.T, storeID, ownerID string) {
	t.Helper()
	e.tx(t, func(ctx context.Context, tx commerce.Tx) error {
		return tx.PutStore(ctx, commerce.Store{ID: storeID, ProfessorID: ownerID})
	})
}

func (e *env) product(t *testing.T, p commerce.Product) {
	t.Helper()
	e.tx(t, func(ctx context.Context, tx commerce.Tx) error { return tx.PutProduct(ctx, p) })
}

func (e *env) cart(t *testing.T, userID string, items ...commerce.CartItem) {
	t.Helper()
	e.tx(t, func(ctx context.Context, tx commerce.Tx) error { return tx.SaveCart(ctx, userID, items) })
}

func (e *env) user(t *testing.T, id string) commerce.User {
	t.Helper()
	var u commerce.User
	e.tx(t, func(ctx context.Context, tx commerce.Tx) error {
		var err error
		u, err = tx.User(ctx, id)
		return err
	})
	return u
}

func (e *env) balance(t *testing.T, id string) string {
	t.Helper()
	return e.user(t, id).Balance.String()
}

func (e *env) storedCart(t *testing.T, userID string) []commerce.CartItem {
	t.Helper()
	var items []commerce.CartItem
	e.tx(t, func(ctx context.Context, tx commerce.Tx) error {
		var err error
		items, err = tx.Cart(ctx, userID)
		return err
	})
	return items
}

func (e *env) notes(t *testing.T, recipientID string) []commerce.Notification {
	t.Helper()
	notes, err := e.notifier.ForUser(context.Background(), recipientID)
	require.NoError(t, err)
	return notes
}

func (e *env) productByID(t *testing.T, id string) commerce.Product {
	t.Helper()
	var p commerce.Product
	e.tx(t, func(ctx context.Context, tx commerce.Tx) error {
		var err error
		p, err = tx.Product(ctx, id)
		return err
	})
	return p
}

// marketplace seeds buyer B (100), seller S owning store st, affiliate A,
// physical product phys at 20.00 with a 15% commission and digital product
// ebook at 10.00 with 10%.
func (e *env) marketplace(t *testing.T) {
	t.Helper()
	e.users(t,
		commerce.User{ID: "B", Balance: money("100")},
		commerce.User{ID: "S", Balance: money("0"), StoreID: "st"},
		commerce.User{ID: "A", Balance: money("0")},
	)
	e.storeOwnedBy(t, "st", "S")
	e.product(t, commerce.Product{ID: "phys", StoreID: "st", Price: money("20.00"),
		AffiliateCommissionRate: money("0.15"), Type: commerce.ProductPhysical})
	e.product(t, commerce.Product{ID: "ebook", StoreID: "st", Price: money("10.00"),
		AffiliateCommissionRate: money("0.10"), Type: commerce.ProductDigitalEbook,
		DigitalContentURL: "https://cdn.example/ebook.pdf"})
}
