package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
)

// IdempotencyStore keeps the first response per Idempotency-Key. Claim must
// be atomic: of concurrent callers with one key, exactly one gets claimed=true.
// A caller that loses gets the saved body, or nil while the winner still runs.
type IdempotencyStore interface {
	Claim(ctx context.Context, key string) (claimed bool, body []byte, err error)
	Save(ctx context.Context, key string, body []byte) error
	Release(ctx context.Context, key string) error
}

// API exposes the commerce services over HTTP.
type API struct {
	Checkout    *commerce.Checkout
	Ledger      *commerce.Ledger
	Fulfillment *commerce.Fulfillment
	Notifier    *commerce.Notifier
	Carts       *commerce.Carts
	Social      *commerce.Social
	Wallet      *commerce.Wallet

	Idempotency IdempotencyStore // optional
	Timeout     time.Duration    // per request transaction budget
	Log         *slog.Logger
}

func (a *API) Register(r chi.Router) {
	r.Post("/purchases", a.createPurchase)

	r.Get("/sales", a.listSales)
	r.Post("/sales/{saleId}/rating", a.rateSale)
	r.Patch("/sales/{saleId}/status", a.updateSaleStatus)

	r.Get("/notifications", a.listNotifications)
	r.Post("/notifications/mark-read", a.markNotificationsRead)
	r.Get("/notifications/unread-count", a.unreadCount)

	r.Route("/carts/{userId}", func(r chi.Router) {
		r.Get("/", a.getCart)
		r.Delete("/", a.clearCart)
		r.Post("/items", a.addCartItem)
		r.Patch("/items", a.updateCartItem)
		r.Delete("/items", a.removeCartItem)
	})

	r.Post("/users/{userId}/follow", a.toggleFollow)
	r.Post("/users/{userId}/deposits", a.deposit)
	r.Post("/users/{userId}/withdrawals", a.withdraw)
	r.Post("/users/{userId}/card", a.setCard)
}

func (a *API) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	d := a.Timeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), d)
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, a.Log, err)
}
