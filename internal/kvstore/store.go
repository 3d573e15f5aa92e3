package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
	"github.com/ariefcatur/cyberphone-ledger/internal/metrics"
)

const (
	KeyUsers         = "cyber_users"
	KeyProducts      = "cyber_products"
	KeyStores        = "cyber_stores"
	KeySales         = "cyber_sales"
	KeyNotifications = "cyber_notifications"
	KeyCarts         = "cyber_carts"
)

// Keys is every collection key; each transaction watches all of them.
var Keys = []string{KeyUsers, KeyProducts, KeyStores, KeySales, KeyNotifications, KeyCarts}

// Store implements commerce.Repository on top of a Backend.
type Store struct {
	backend Backend
	log     *slog.Logger
}

var _ commerce.Repository = (*Store)(nil)

func New(b Backend, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{backend: b, log: log}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx commerce.Tx) error) error {
	start := time.Now()
	err := s.backend.Update(ctx, Keys, func(v View) error {
		t := newTx(v, s.log)
		if err := fn(ctx, t); err != nil {
			return err
		}
		return t.flush()
	})
	outcome := "commit"
	if err != nil {
		outcome = "rollback"
	}
	metrics.TxDuration.WithLabelValues(s.backend.Name(), outcome).Observe(time.Since(start).Seconds())
	return err
}

// collection is one decoded document, loaded on first use.
type collection[T any] struct {
	key    string
	items  []T
	loaded bool
	dirty  bool
}

func (c *collection[T]) load(v View, log *slog.Logger) error {
	if c.loaded {
		return nil
	}
	raw, ok, err := v.Get(c.key)
	if err != nil {
		return fmt.Errorf("get %s: %w", c.key, err)
	}
	c.loaded = true
	c.items = []T{}
	if !ok || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &c.items); err != nil {
		log.Warn("unreadable collection treated as empty", "key", c.key, "error", err)
		c.items = []T{}
	}
	return nil
}

func (c *collection[T]) index(match func(T) bool) int {
	for i, it := range c.items {
		if match(it) {
			return i
		}
	}
	return -1
}

func (c *collection[T]) flush(v View) error {
	if !c.dirty {
		return nil
	}
	b, err := json.Marshal(c.items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key, err)
	}
	v.Put(c.key, b)
	return nil
}

type cartEntry struct {
	UserID string              `json:"userId"`
	Items  []commerce.CartItem `json:"items"`
}

type tx struct {
	view          View
	log           *slog.Logger
	users         collection[commerce.User]
	products      collection[commerce.Product]
	stores        collection[commerce.Store]
	sales         collection[commerce.Sale]
	notifications collection[commerce.Notification]
	carts         collection[cartEntry]
}

func newTx(v View, log *slog.Logger) *tx {
	return &tx{
		view:          v,
		log:           log,
		users:         collection[commerce.User]{key: KeyUsers},
		products:      collection[commerce.Product]{key: KeyProducts},
		stores:        collection[commerce.Store]{key: KeyStores},
		sales:         collection[commerce.Sale]{key: KeySales},
		notifications: collection[commerce.Notification]{key: KeyNotifications},
		carts:         collection[cartEntry]{key: KeyCarts},
	}
}

func (t *tx) flush() error {
	for _, f := range []func(View) error{
		t.users.flush, t.products.flush, t.stores.flush,
		t.sales.flush, t.notifications.flush, t.carts.flush,
	} {
		if err := f(t.view); err != nil {
			return err
		}
	}
	return nil
}

// ---- users ----

func (t *tx) User(_ context.Context, id string) (commerce.User, error) {
	if err := t.users.load(t.view, t.log); err != nil {
		return commerce.User{}, err
	}
	i := t.users.index(func(u commerce.User) bool { return u.ID == id })
	if i < 0 {
		return commerce.User{}, fmt.Errorf("user %s: %w", id, commerce.ErrNotFound)
	}
	return t.users.items[i], nil
}

func (t *tx) SaveUser(_ context.Context, u commerce.User) error {
	if err := t.users.load(t.view, t.log); err != nil {
		return err
	}
	i := t.users.index(func(x commerce.User) bool { return x.ID == u.ID })
	if i < 0 {
		return fmt.Errorf("user %s: %w", u.ID, commerce.ErrNotFound)
	}
	t.users.items[i] = u
	t.users.dirty = true
	return nil
}

func (t *tx) PutUser(_ context.Context, u commerce.User) error {
	if err := t.users.load(t.view, t.log); err != nil {
		return err
	}
	upsert(&t.users, u, func(x commerce.User) bool { return x.ID == u.ID })
	return nil
}

// ---- catalog ----

func (t *tx) Product(_ context.Context, id string) (commerce.Product, error) {
	if err := t.products.load(t.view, t.log); err != nil {
		return commerce.Product{}, err
	}
	i := t.products.index(func(p commerce.Product) bool { return p.ID == id })
	if i < 0 {
		return commerce.Product{}, fmt.Errorf("product %s: %w", id, commerce.ErrNotFound)
	}
	return t.products.items[i], nil
}

func (t *tx) SaveProductRating(_ context.Context, p commerce.Product, _ commerce.ProductRating) error {
	if err := t.products.load(t.view, t.log); err != nil {
		return err
	}
	i := t.products.index(func(x commerce.Product) bool { return x.ID == p.ID })
	if i < 0 {
		return fmt.Errorf("product %s: %w", p.ID, commerce.ErrNotFound)
	}
	t.products.items[i] = p
	t.products.dirty = true
	return nil
}

func (t *tx) PutProduct(_ context.Context, p commerce.Product) error {
	if err := t.products.load(t.view, t.log); err != nil {
		return err
	}
	if p.Ratings == nil {
		p.Ratings = []commerce.ProductRating{}
	}
	upsert(&t.products, p, func(x commerce.Product) bool { return x.ID == p.ID })
	return nil
}

func (t *tx) StoreByID(_ context.Context, id string) (commerce.Store, error) {
	if err := t.stores.load(t.view, t.log); err != nil {
		return commerce.Store{}, err
	}
	i := t.stores.index(func(s commerce.Store) bool { return s.ID == id })
	if i < 0 {
		return commerce.Store{}, fmt.Errorf("store %s: %w", id, commerce.ErrNotFound)
	}
	return t.stores.items[i], nil
}

func (t *tx) PutStore(_ context.Context, s commerce.Store) error {
	if err := t.stores.load(t.view, t.log); err != nil {
		return err
	}
	upsert(&t.stores, s, func(x commerce.Store) bool { return x.ID == s.ID })
	return nil
}

// ---- sales ----

func (t *tx) InsertSale(_ context.Context, s commerce.Sale) error {
	if err := t.sales.load(t.view, t.log); err != nil {
		return err
	}
	t.sales.items = append(t.sales.items, s)
	t.sales.dirty = true
	return nil
}

func (t *tx) Sale(_ context.Context, id string) (commerce.Sale, error) {
	if err := t.sales.load(t.view, t.log); err != nil {
		return commerce.Sale{}, err
	}
	i := t.sales.index(func(s commerce.Sale) bool { return s.ID == id })
	if i < 0 {
		return commerce.Sale{}, fmt.Errorf("sale %s: %w", id, commerce.ErrNotFound)
	}
	return t.sales.items[i], nil
}

func (t *tx) SaveSale(_ context.Context, s commerce.Sale) error {
	if err := t.sales.load(t.view, t.log); err != nil {
		return err
	}
	i := t.sales.index(func(x commerce.Sale) bool { return x.ID == s.ID })
	if i < 0 {
		return fmt.Errorf("sale %s: %w", s.ID, commerce.ErrNotFound)
	}
	t.sales.items[i] = s
	t.sales.dirty = true
	return nil
}

func (t *tx) Sales(_ context.Context, f commerce.SaleFilter) ([]commerce.Sale, error) {
	if err := t.sales.load(t.view, t.log); err != nil {
		return nil, err
	}
	out := []commerce.Sale{}
	for _, s := range t.sales.items {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

// ---- carts ----

func (t *tx) Cart(_ context.Context, userID string) ([]commerce.CartItem, error) {
	if err := t.carts.load(t.view, t.log); err != nil {
		return nil, err
	}
	i := t.carts.index(func(c cartEntry) bool { return c.UserID == userID })
	if i < 0 {
		return []commerce.CartItem{}, nil
	}
	return append([]commerce.CartItem{}, t.carts.items[i].Items...), nil
}

func (t *tx) SaveCart(_ context.Context, userID string, items []commerce.CartItem) error {
	if err := t.carts.load(t.view, t.log); err != nil {
		return err
	}
	i := t.carts.index(func(c cartEntry) bool { return c.UserID == userID })
	switch {
	case len(items) == 0 && i < 0:
		return nil
	case len(items) == 0:
		t.carts.items = append(t.carts.items[:i], t.carts.items[i+1:]...)
	case i < 0:
		t.carts.items = append(t.carts.items, cartEntry{UserID: userID, Items: items})
	default:
		t.carts.items[i].Items = items
	}
	t.carts.dirty = true
	return nil
}

// ---- notifications ----

// InsertNotification prepends, so the document stays newest first.
func (t *tx) InsertNotification(_ context.Context, n commerce.Notification) error {
	if err := t.notifications.load(t.view, t.log); err != nil {
		return err
	}
	t.notifications.items = append([]commerce.Notification{n}, t.notifications.items...)
	t.notifications.dirty = true
	return nil
}

func (t *tx) Notifications(_ context.Context, recipientID string) ([]commerce.Notification, error) {
	if err := t.notifications.load(t.view, t.log); err != nil {
		return nil, err
	}
	out := []commerce.Notification{}
	for _, n := range t.notifications.items {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (t *tx) MarkNotificationsRead(_ context.Context, recipientID string) (int, error) {
	if err := t.notifications.load(t.view, t.log); err != nil {
		return 0, err
	}
	changed := 0
	for i := range t.notifications.items {
		n := &t.notifications.items[i]
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			changed++
		}
	}
	if changed > 0 {
		t.notifications.dirty = true
	}
	return changed, nil
}

func upsert[T any](c *collection[T], v T, match func(T) bool) {
	if i := c.index(match); i >= 0 {
		c.items[i] = v
	} else {
		c.items = append(c.items, v)
	}
	c.dirty = true
}
