package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/cyberphone-ledger/internal/apperr"
	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
)

type RateSaleReq struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

type UpdateSaleStatusReq struct {
	Status string `json:"status" validate:"required,oneof=WAITLIST SHIPPING DELIVERED"`
}

func (a *API) rateSale(w http.ResponseWriter, r *http.Request) {
	var req RateSaleReq
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()

	rating, err := a.Ledger.AddProductRating(ctx, commerce.RatingInput{
		SaleID:  chi.URLParam(r, "saleId"),
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}

func (a *API) listSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := commerce.SaleFilter{
		BuyerID:     q.Get("buyerId"),
		AffiliateID: q.Get("affiliateId"),
		StoreID:     q.Get("storeId"),
	}
	if f == (commerce.SaleFilter{}) {
		a.fail(w, r, apperr.BadRequest("one of buyerId, affiliateId or storeId is required", nil))
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()

	sales, err := a.Ledger.Sales(ctx, f)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (a *API) updateSaleStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateSaleStatusReq
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()

	sale, err := a.Fulfillment.Advance(ctx, chi.URLParam(r, "saleId"), commerce.OrderStatus(req.Status))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}
