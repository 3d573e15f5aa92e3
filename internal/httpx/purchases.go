package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/cyberphone-ledger/internal/apperr"
	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
)

const headerIdempotencyKey = "Idempotency-Key"

type CreatePurchaseReq struct {
	BuyerID         string                    `json:"buyerId" validate:"required"`
	AffiliateID     string                    `json:"affiliateId"`
	PaymentMethod   string                    `json:"paymentMethod" validate:"omitempty,oneof=wallet external"`
	ShippingAddress *commerce.ShippingAddress `json:"shippingAddress"`
	Items           []commerce.CartItem       `json:"items" validate:"omitempty,dive"`
}

type CreatePurchaseResp struct {
	PurchaseID string                 `json:"purchaseId"`
	SaleIDs    []string               `json:"saleIds"`
	Skipped    []commerce.SkippedLine `json:"skipped"`
}

func (a *API) createPurchase(w http.ResponseWriter, r *http.Request) {
	var req CreatePurchaseReq
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	ctx, cancel := a.ctx(r)
	defer cancel()

	idemKey := r.Header.Get(headerIdempotencyKey)
	if a.Idempotency == nil {
		idemKey = ""
	}
	if idemKey != "" {
		claimed, body, err := a.Idempotency.Claim(ctx, idemKey)
		switch {
		case err != nil:
			a.fail(w, r, apperr.Internal("idempotency unavailable", err))
			return
		case !claimed && body == nil:
			a.fail(w, r, apperr.Conflict("a request with this Idempotency-Key is still in progress", nil))
			return
		case !claimed:
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write(body)
			return
		}
	}

	res, err := a.Checkout.Purchase(ctx, commerce.CheckoutInput{
		BuyerID:     req.BuyerID,
		AffiliateID: req.AffiliateID,
		Payment:     commerce.PaymentMethod(req.PaymentMethod),
		Shipping:    req.ShippingAddress,
		Items:       req.Items,
	})
	if err != nil {
		if idemKey != "" {
			if rerr := a.Idempotency.Release(context.WithoutCancel(ctx), idemKey); rerr != nil {
				a.Log.WarnContext(ctx, "idempotency release failed", "error", rerr)
			}
		}
		a.fail(w, r, err)
		return
	}

	resp := CreatePurchaseResp{PurchaseID: res.PurchaseID, SaleIDs: res.SaleIDs(), Skipped: res.Skipped}
	if resp.Skipped == nil {
		resp.Skipped = []commerce.SkippedLine{}
	}
	body, err := json.Marshal(resp)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if idemKey != "" {
		if err := a.Idempotency.Save(context.WithoutCancel(ctx), idemKey, body); err != nil {
			a.Log.WarnContext(ctx, "idempotency save failed", "error", err)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}
