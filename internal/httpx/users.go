package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
)

type FollowReq struct {
	FollowerID string `json:"followerId" validate:"required"`
}

type FollowResp struct {
	FollowerID string `json:"followerId"`
	FolloweeID string `json:"followeeId"`
	Following  bool   `json:"following"`
}

type AmountReq struct {
	Amount decimal.Decimal `json:"amount"`
}

type SetCardReq struct {
	CardNumber string `json:"cardNumber" validate:"required"`
	HolderName string `json:"holderName" validate:"required"`
	ExpiryDate string `json:"expiryDate" validate:"required"`
	Type       string `json:"type" validate:"required,oneof=DEBIT CREDIT"`
}

type BalanceResp struct {
	UserID  string          `json:"userId"`
	Balance decimal.Decimal `json:"balance"`
}

func (a *API) toggleFollow(w http.ResponseWriter, r *http.Request) {
	var req FollowReq
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	followee := chi.URLParam(r, "userId")
	ctx, cancel := a.ctx(r)
	defer cancel()

	following, err := a.Social.ToggleFollow(ctx, req.FollowerID, followee)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FollowResp{FollowerID: req.FollowerID, FolloweeID: followee, Following: following})
}

func (a *API) setCard(w http.ResponseWriter, r *http.Request) {
	var req SetCardReq
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()

	u, err := a.Wallet.SetCard(ctx, chi.URLParam(r, "userId"), commerce.PaymentCard{
		CardNumber: req.CardNumber,
		HolderName: req.HolderName,
		ExpiryDate: req.ExpiryDate,
		Type:       req.Type,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u.Card)
}

func (a *API) deposit(w http.ResponseWriter, r *http.Request) {
	a.moveBalance(w, r, a.Wallet.Deposit)
}

func (a *API) withdraw(w http.ResponseWriter, r *http.Request) {
	a.moveBalance(w, r, a.Wallet.Withdraw)
}

func (a *API) moveBalance(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, userID string, amount decimal.Decimal) (commerce.User, error)) {
	var req AmountReq
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()

	u, err := op(ctx, chi.URLParam(r, "userId"), req.Amount)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResp{UserID: u.ID, Balance: u.Balance})
}
