package commerce

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/cyberphone-ledger/internal/apperr"
)

// Wallet moves money in and out of a user's internal balance outside of
// purchases (top-ups, withdrawals, ad spend). A balance never goes negative.
type Wallet struct {
	Deps
}

func NewWallet(d Deps) *Wallet {
	return &Wallet{Deps: d.withDefaults()}
}

func (w *Wallet) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (User, error) {
	if !amount.IsPositive() {
		return User{}, apperr.BadRequest("amount must be positive", nil)
	}
	return w.apply(ctx, userID, amount, "deposit")
}

// Withdraw fails with InsufficientBalance instead of overdrawing.
func (w *Wallet) Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (User, error) {
	if !amount.IsPositive() {
		return User{}, apperr.BadRequest("amount must be positive", nil)
	}
	return w.apply(ctx, userID, amount.Neg(), "withdraw")
}

func (w *Wallet) apply(ctx context.Context, userID string, delta decimal.Decimal, op string) (User, error) {
	var out User
	err := w.run(ctx, func(ctx context.Context, tx Tx, _ *outbox) error {
		acc := newAccounts(tx)
		u, err := acc.load(ctx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.NotFound("user", ErrNotFound)
		}
		if delta.IsNegative() {
			if err := acc.debit(u, delta.Neg()); err != nil {
				return apperr.InsufficientBalance(
					fmt.Sprintf("balance %s is below %s", u.Balance.StringFixed(2), delta.Neg().StringFixed(2)), err)
			}
		} else {
			acc.credit(u, delta)
		}
		out = *u
		return acc.flush(ctx)
	})
	if err != nil {
		return User{}, wrapInternal(op, err)
	}
	w.Log.InfoContext(ctx, "wallet "+op, "user_id", userID, "amount", delta.String(), "balance", out.Balance.String())
	return out, nil
}

var expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)

// SetCard registers the user's payment card, replacing any earlier one. Only
// the last four digits of the number are stored.
func (w *Wallet) SetCard(ctx context.Context, userID string, card PaymentCard) (User, error) {
	digits := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, card.CardNumber)
	switch {
	case len(digits) < 12 || len(digits) > 19 || strings.Trim(digits, "0123456789") != "":
		return User{}, apperr.BadRequest("card number must have 12 to 19 digits", nil)
	case strings.TrimSpace(card.HolderName) == "":
		return User{}, apperr.BadRequest("card holder is required", nil)
	case !expiryPattern.MatchString(card.ExpiryDate):
		return User{}, apperr.BadRequest("expiry date must be MM/YY", nil)
	case card.Type != CardDebit && card.Type != CardCredit:
		return User{}, apperr.BadRequest(fmt.Sprintf("unknown card type %q", card.Type), nil)
	}
	card.CardNumber = "**** **** **** " + digits[len(digits)-4:]
	card.HolderName = strings.TrimSpace(card.HolderName)

	var out User
	err := w.run(ctx, func(ctx context.Context, tx Tx, _ *outbox) error {
		u, err := tx.User(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("user", err)
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		u.Card = &card
		out = u
		return tx.SaveUser(ctx, u)
	})
	if err != nil {
		return User{}, wrapInternal("set card", err)
	}
	w.Log.InfoContext(ctx, "payment card set", "user_id", userID, "type", card.Type)
	return out, nil
}
