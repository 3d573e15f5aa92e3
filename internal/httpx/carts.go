package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/cyberphone-ledger/internal/apperr"
)

type AddCartItemReq struct {
	ProductID     string `json:"productId" validate:"required"`
	Quantity      int    `json:"quantity" validate:"gt=0"`
	SelectedColor string `json:"selectedColor"`
}

// UpdateCartItemReq sets the quantity of a line; zero or less removes it.
type UpdateCartItemReq struct {
	ProductID     string `json:"productId" validate:"required"`
	Quantity      int    `json:"quantity"`
	SelectedColor string `json:"selectedColor"`
}

func (a *API) getCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.ctx(r)
	defer cancel()

	items, err := a.Carts.Get(ctx, chi.URLParam(r, "userId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.ctx(r)
	defer cancel()

	if err := a.Carts.Clear(ctx, chi.URLParam(r, "userId")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemReq
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()

	items, err := a.Carts.Add(ctx, chi.URLParam(r, "userId"), req.ProductID, req.SelectedColor, req.Quantity)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateCartItemReq
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()

	items, err := a.Carts.UpdateQuantity(ctx, chi.URLParam(r, "userId"), req.ProductID, req.SelectedColor, req.Quantity)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) removeCartItem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID := q.Get("productId")
	if productID == "" {
		a.fail(w, r, apperr.BadRequest("productId is required", nil))
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()

	items, err := a.Carts.Remove(ctx, chi.URLParam(r, "userId"), productID, q.Get("selectedColor"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
