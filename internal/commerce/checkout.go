package commerce

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/cyberphone-ledger/internal/apperr"
	"github.com/ariefcatur/cyberphone-ledger/internal/metrics"
)

type PaymentMethod string

const (
	// PayWallet pays from the buyer's internal balance.
	PayWallet PaymentMethod = "wallet"
	// PayExternal is settled outside the service (card, pix); the buyer's balance is untouched.
	PayExternal PaymentMethod = "external"
)

type CheckoutInput struct {
	BuyerID     string
	AffiliateID string
	Payment     PaymentMethod
	Shipping    *ShippingAddress
	Items       []CartItem // nil means the buyer's stored cart
}

// Checkout is the caller of the ledger: it validates what the ledger trusts
// (a resolvable cart, enough wallet balance), debits the wallet and settles,
// all in one transaction.
type Checkout struct {
	Deps
	Ledger *Ledger
}

func NewCheckout(d Deps, l *Ledger) *Checkout {
	return &Checkout{Deps: d.withDefaults(), Ledger: l}
}

func (c *Checkout) Purchase(ctx context.Context, in CheckoutInput) (PurchaseResult, error) {
	ctx, span := tracer.Start(ctx, "checkout.Purchase")
	defer span.End()

	if in.BuyerID == "" {
		return PurchaseResult{}, apperr.BadRequest("buyer is required", nil)
	}
	if in.Payment == "" {
		in.Payment = PayExternal
	}
	if in.Payment != PayWallet && in.Payment != PayExternal {
		return PurchaseResult{}, apperr.BadRequest(fmt.Sprintf("unknown payment method %q", in.Payment), nil)
	}

	var res PurchaseResult
	err := c.run(ctx, func(ctx context.Context, tx Tx, ob *outbox) error {
		items := in.Items
		if items == nil {
			cart, err := tx.Cart(ctx, in.BuyerID)
			if err != nil {
				return fmt.Errorf("load cart: %w", err)
			}
			items = cart
		}
		subtotal, resolvable, err := c.subtotal(ctx, tx, items)
		if err != nil {
			return err
		}
		if resolvable == 0 {
			return apperr.Unprocessable("cart has no purchasable items", nil)
		}
		if in.Payment == PayWallet {
			if err := c.debit(ctx, tx, in.BuyerID, subtotal); err != nil {
				return err
			}
		}
		res, err = c.Ledger.settle(ctx, tx, ob, PurchaseInput{
			Items:       items,
			BuyerID:     in.BuyerID,
			AffiliateID: in.AffiliateID,
			Shipping:    in.Shipping,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		var ae *apperr.Error
		if errors.As(err, &ae) {
			metrics.Purchases.WithLabelValues("rejected").Inc()
			return PurchaseResult{}, err
		}
		metrics.Purchases.WithLabelValues("error").Inc()
		return PurchaseResult{}, apperr.Internal("checkout", err)
	}
	metrics.Purchases.WithLabelValues("ok").Inc()
	c.Log.InfoContext(ctx, "purchase completed",
		"purchase_id", res.PurchaseID, "buyer_id", in.BuyerID, "sales", len(res.Sales),
		"skipped", len(res.Skipped), "payment", in.Payment)
	return res, nil
}

// subtotal prices the lines the ledger will be able to settle.
func (c *Checkout) subtotal(ctx context.Context, tx Tx, items []CartItem) (decimal.Decimal, int, error) {
	total := decimal.Zero
	n := 0
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		p, err := tx.Product(ctx, it.ProductID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return decimal.Zero, 0, fmt.Errorf("load product %s: %w", it.ProductID, err)
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		n++
	}
	return total, n, nil
}

func (c *Checkout) debit(ctx context.Context, tx Tx, buyerID string, amount decimal.Decimal) error {
	buyer, err := tx.User(ctx, buyerID)
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("buyer", err)
	}
	if err != nil {
		return fmt.Errorf("load buyer: %w", err)
	}
	if buyer.Balance.LessThan(amount) {
		return apperr.InsufficientBalance(
			fmt.Sprintf("balance %s is below total %s", buyer.Balance.StringFixed(2), amount.StringFixed(2)),
			ErrInsufficientBalance)
	}
	buyer.Balance = buyer.Balance.Sub(amount)
	if err := tx.SaveUser(ctx, buyer); err != nil {
		return fmt.Errorf("save buyer: %w", err)
	}
	return nil
}
