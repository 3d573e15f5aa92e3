package commerce_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ariefcatur/cyberphone-ledger/internal/apperr"
	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
)

// contendedStore fails every transaction the way a backend does after its
// retries ran out.
type contendedStore struct{}

var _ commerce.Repository = contendedStore{}

func (contendedStore) WithinTx(context.Context, func(context.Context, commerce.Tx) error) error {
	return fmt.Errorf("redis update after 5 attempts: %w", commerce.ErrConflict)
}

func TestExhaustedRetriesSurfaceAsConflict(t *testing.T) {
	deps := commerce.Deps{Store: contendedStore{}}
	n := commerce.NewNotifier(deps)
	l := commerce.NewLedger(deps, n, commerce.PolicyPlatformFee, commerce.ModeImmediate)
	carts := commerce.NewCarts(deps)
	ctx := context.Background()

	calls := map[string]func() error{
		"deposit": func() error {
			_, err := commerce.NewWallet(deps).Deposit(ctx, "u1", money("1"))
			return err
		},
		"set card": func() error {
			_, err := commerce.NewWallet(deps).SetCard(ctx, "u1", commerce.PaymentCard{
				CardNumber: "4111111111111111", HolderName: "Ana", ExpiryDate: "12/29", Type: commerce.CardDebit,
			})
			return err
		},
		"process purchase": func() error {
			_, err := l.ProcessPurchase(ctx, commerce.PurchaseInput{BuyerID: "u1"})
			return err
		},
		"checkout": func() error {
			_, err := commerce.NewCheckout(deps, l).Purchase(ctx, commerce.CheckoutInput{BuyerID: "u1"})
			return err
		},
		"rate": func() error {
			_, err := l.AddProductRating(ctx, commerce.RatingInput{SaleID: "s1", Rating: 3})
			return err
		},
		"sales": func() error {
			_, err := l.Sales(ctx, commerce.SaleFilter{BuyerID: "u1"})
			return err
		},
		"get cart": func() error {
			_, err := carts.Get(ctx, "u1")
			return err
		},
		"add to cart": func() error {
			_, err := carts.Add(ctx, "u1", "p1", "", 1)
			return err
		},
		"create notification": func() error {
			_, _, err := n.Create(ctx, commerce.NotificationInput{Type: commerce.NotifyLike, RecipientID: "u1", ActorID: "u2"})
			return err
		},
		"list notifications": func() error {
			_, err := n.ForUser(ctx, "u1")
			return err
		},
		"mark read": func() error {
			_, err := n.MarkRead(ctx, "u1")
			return err
		},
		"unread count": func() error {
			_, err := n.UnreadCount(ctx, "u1")
			return err
		},
		"follow": func() error {
			_, err := commerce.NewSocial(deps, n).ToggleFollow(ctx, "u1", "u2")
			return err
		},
		"advance": func() error {
			_, err := commerce.NewFulfillment(deps).Advance(ctx, "s1", commerce.StatusShipping)
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			assert.Equal(t, http.StatusConflict, apperr.StatusOf(err))
			assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
			assert.True(t, commerce.IsRetryable(err))
		})
	}
}
