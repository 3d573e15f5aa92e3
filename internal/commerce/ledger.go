package commerce

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ariefcatur/cyberphone-ledger/internal/apperr"
	"github.com/ariefcatur/cyberphone-ledger/internal/metrics"
)

var tracer = otel.Tracer("github.com/ariefcatur/cyberphone-ledger/internal/commerce")

// CommissionPolicy decides who keeps the commission of a line when no
// affiliate is paid.
type CommissionPolicy string

const (
	// PolicyPlatformFee withholds the commission from the seller even without an affiliate.
	PolicyPlatformFee CommissionPolicy = "platform_fee"
	// PolicyRefundSeller pays the seller the full line total when no affiliate is paid.
	PolicyRefundSeller CommissionPolicy = "refund_seller"
)

func (p CommissionPolicy) Valid() bool {
	return p == PolicyPlatformFee || p == PolicyRefundSeller
}

const (
	skipProductNotFound   = "product_not_found"
	skipInvalidQuantity   = "invalid_quantity"
	skipStoreNotFound     = "store_not_found"
	skipSellerNotFound    = "seller_not_found"
	skipAffiliateNotFound = "affiliate_not_found"
)

type PurchaseInput struct {
	Items       []CartItem
	BuyerID     string
	AffiliateID string
	Shipping    *ShippingAddress
}

// SkippedLine records a lenient skip. A line skipped for store or seller
// reasons still produced a sale; only the seller credit was skipped.
type SkippedLine struct {
	ProductID     string `json:"productId"`
	SelectedColor string `json:"selectedColor,omitempty"`
	Reason        string `json:"reason"`
}

type PurchaseResult struct {
	PurchaseID    string         `json:"purchaseId"`
	Sales         []Sale         `json:"sales"`
	Skipped       []SkippedLine  `json:"skipped"`
	Notifications []Notification `json:"-"`
}

func (r PurchaseResult) SaleIDs() []string {
	ids := make([]string, 0, len(r.Sales))
	for _, s := range r.Sales {
		ids = append(ids, s.ID)
	}
	return ids
}

type RatingInput struct {
	SaleID  string
	Rating  int
	Comment string
}

// Ledger settles purchases into balances and sale records, and rates sales.
type Ledger struct {
	Deps
	Notifier *Notifier
	Policy   CommissionPolicy
	Mode     FulfillmentMode
}

func NewLedger(d Deps, n *Notifier, policy CommissionPolicy, mode FulfillmentMode) *Ledger {
	if !policy.Valid() {
		policy = PolicyPlatformFee
	}
	if !mode.Valid() {
		mode = ModeImmediate
	}
	return &Ledger{Deps: d.withDefaults(), Notifier: n, Policy: policy, Mode: mode}
}

// ProcessPurchase settles every resolvable line of in.Items in one transaction
// and clears the buyer's cart. Missing products are skipped, never fatal. The
// ledger does not check the buyer's balance; callers do that first.
func (l *Ledger) ProcessPurchase(ctx context.Context, in PurchaseInput) (PurchaseResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.ProcessPurchase")
	defer span.End()
	span.SetAttributes(
		attribute.String("buyer.id", in.BuyerID),
		attribute.Bool("affiliate.present", in.AffiliateID != ""),
		attribute.Int("cart.lines", len(in.Items)),
	)

	if in.BuyerID == "" {
		return PurchaseResult{}, apperr.BadRequest("buyer is required", nil)
	}
	var res PurchaseResult
	err := l.run(ctx, func(ctx context.Context, tx Tx, ob *outbox) error {
		var err error
		res, err = l.settle(ctx, tx, ob, in)
		return err
	})
	if err != nil {
		metrics.Purchases.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "purchase failed")
		return PurchaseResult{}, wrapInternal("process purchase", err)
	}
	metrics.Purchases.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.Int("sales.created", len(res.Sales)))
	return res, nil
}

// settle is ProcessPurchase inside an already open transaction.
func (l *Ledger) settle(ctx context.Context, tx Tx, ob *outbox, in PurchaseInput) (PurchaseResult, error) {
	res := PurchaseResult{PurchaseID: "purchase-" + uuid.NewString()}
	acc := newAccounts(tx)
	now := l.Now()

	var affiliate *User
	if in.AffiliateID != "" {
		u, err := acc.load(ctx, in.AffiliateID)
		if err != nil {
			return res, err
		}
		if u == nil {
			l.Log.WarnContext(ctx, "affiliate not found, commission not paid",
				"buyer_id", in.BuyerID, "affiliate_id", in.AffiliateID)
			res.Skipped = append(res.Skipped, SkippedLine{Reason: skipAffiliateNotFound})
		}
		affiliate = u
	}

	lines := make([]SaleLine, 0, len(in.Items))
	for _, item := range in.Items {
		skip := func(reason string) {
			res.Skipped = append(res.Skipped, SkippedLine{
				ProductID: item.ProductID, SelectedColor: item.SelectedColor, Reason: reason,
			})
			l.Log.WarnContext(ctx, "purchase line skipped",
				"buyer_id", in.BuyerID, "product_id", item.ProductID, "reason", reason)
		}
		if item.Quantity <= 0 {
			skip(skipInvalidQuantity)
			continue
		}
		p, err := tx.Product(ctx, item.ProductID)
		if errors.Is(err, ErrNotFound) {
			skip(skipProductNotFound)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("load product %s: %w", item.ProductID, err)
		}

		itemTotal := p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		commission := itemTotal.Mul(p.AffiliateCommissionRate)

		sellerShare := itemTotal.Sub(commission)
		if affiliate == nil && l.Policy == PolicyRefundSeller {
			sellerShare = itemTotal
		}
		seller, reason, err := l.seller(ctx, tx, acc, p.StoreID)
		if err != nil {
			return res, err
		}
		if seller != nil {
			acc.credit(seller, sellerShare)
		} else {
			skip(reason)
		}

		sale := Sale{
			ID:               "sale-" + uuid.NewString(),
			ProductID:        p.ID,
			BuyerID:          in.BuyerID,
			StoreID:          p.StoreID,
			CommissionEarned: decimal.Zero,
			SaleAmount:       itemTotal,
			Timestamp:        now,
			SelectedColor:    item.SelectedColor,
			Status:           InitialStatus(l.Mode, p.Type),
			IsRated:          false,
		}
		if p.Type.IsPhysical() {
			sale.ShippingAddress = in.Shipping
		} else {
			sale.DigitalContentURL = p.DigitalContentURL
		}

		if affiliate != nil {
			acc.credit(affiliate, commission)
			sale.AffiliateUserID = affiliate.ID
			sale.CommissionEarned = commission
			note, ok, err := l.Notifier.create(ctx, tx, ob, NotificationInput{
				Type:        NotifyAffiliateSale,
				RecipientID: affiliate.ID,
				ActorID:     in.BuyerID,
				SaleID:      sale.ID,
				Timestamp:   now,
			})
			if err != nil {
				return res, err
			}
			if ok {
				res.Notifications = append(res.Notifications, note)
			}
		}

		if err := tx.InsertSale(ctx, sale); err != nil {
			return res, fmt.Errorf("insert sale: %w", err)
		}
		res.Sales = append(res.Sales, sale)
		lines = append(lines, SaleLine{
			SaleID:           sale.ID,
			ProductID:        p.ID,
			ProductType:      p.Type,
			StoreID:          p.StoreID,
			Qty:              item.Quantity,
			SaleAmount:       sale.SaleAmount,
			CommissionEarned: sale.CommissionEarned,
			Status:           sale.Status,
		})
	}

	if err := acc.flush(ctx); err != nil {
		return res, err
	}
	if err := tx.SaveCart(ctx, in.BuyerID, nil); err != nil {
		return res, fmt.Errorf("clear cart: %w", err)
	}

	if len(lines) > 0 {
		if err := ob.add(TopicPurchaseCompleted, EventPurchaseCompleted, res.PurchaseID, PurchaseCompletedPayload{
			PurchaseID:  res.PurchaseID,
			BuyerID:     in.BuyerID,
			AffiliateID: in.AffiliateID,
			Lines:       lines,
			Skipped:     len(res.Skipped),
		}); err != nil {
			return res, err
		}
	}
	created, skipped := len(res.Sales), res.Skipped
	ob.onCommit(func() {
		metrics.SalesCreated.Add(float64(created))
		for _, s := range skipped {
			metrics.SkippedLines.WithLabelValues(s.Reason).Inc()
		}
	})
	return res, nil
}

// seller resolves store then owner. A nil user with a reason means the
// credit must be skipped.
func (l *Ledger) seller(ctx context.Context, tx Tx, acc *accounts, storeID string) (*User, string, error) {
	st, err := tx.StoreByID(ctx, storeID)
	if errors.Is(err, ErrNotFound) {
		return nil, skipStoreNotFound, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("load store %s: %w", storeID, err)
	}
	u, err := acc.load(ctx, st.ProfessorID)
	if err != nil {
		return nil, "", err
	}
	if u == nil {
		return nil, skipSellerNotFound, nil
	}
	return u, "", nil
}

// AddProductRating rates a delivered sale exactly once. The sale is read and flipped in
// the same transaction, so concurrent attempts cannot both succeed.
func (l *Ledger) AddProductRating(ctx context.Context, in RatingInput) (ProductRating, error) {
	ctx, span := tracer.Start(ctx, "ledger.AddProductRating")
	defer span.End()
	span.SetAttributes(attribute.String("sale.id", in.SaleID))

	if in.Rating < 1 || in.Rating > 5 {
		return ProductRating{}, apperr.BadRequest("rating must be between 1 and 5", nil)
	}
	var rating ProductRating
	err := l.run(ctx, func(ctx context.Context, tx Tx, ob *outbox) error {
		sale, err := tx.Sale(ctx, in.SaleID)
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("sale", err)
		}
		if err != nil {
			return fmt.Errorf("load sale: %w", err)
		}
		if sale.IsRated {
			return apperr.AlreadyRated(sale.ID, ErrAlreadyRated)
		}
		if sale.Status != StatusDelivered {
			return apperr.Conflict(
				fmt.Sprintf("sale %s is %s; only delivered sales can be rated", sale.ID, sale.Status), ErrNotDelivered)
		}
		p, err := tx.Product(ctx, sale.ProductID)
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("product", err)
		}
		if err != nil {
			return fmt.Errorf("load product: %w", err)
		}

		rating = ProductRating{
			ID:        "rating-" + uuid.NewString(),
			SaleID:    sale.ID,
			UserID:    sale.BuyerID,
			Rating:    in.Rating,
			Comment:   in.Comment,
			Timestamp: l.Now(),
		}
		p.AddRating(rating)
		if err := tx.SaveProductRating(ctx, p, rating); err != nil {
			return fmt.Errorf("save rating: %w", err)
		}
		sale.IsRated = true
		if err := tx.SaveSale(ctx, sale); err != nil {
			return fmt.Errorf("save sale: %w", err)
		}

		st, err := tx.StoreByID(ctx, p.StoreID)
		switch {
		case err == nil:
			if _, _, err := l.Notifier.create(ctx, tx, ob, NotificationInput{
				Type:        NotifySaleRated,
				RecipientID: st.ProfessorID,
				ActorID:     sale.BuyerID,
				SaleID:      sale.ID,
				Timestamp:   rating.Timestamp,
			}); err != nil {
				return err
			}
		case !errors.Is(err, ErrNotFound):
			return fmt.Errorf("load store: %w", err)
		}

		return ob.add(TopicSaleRated, EventSaleRated, sale.ID, SaleRatedPayload{
			SaleID:        sale.ID,
			ProductID:     p.ID,
			Rating:        rating.Rating,
			AverageRating: p.AverageRating,
			RatingCount:   p.RatingCount,
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rating failed")
		switch {
		case errors.Is(err, ErrAlreadyRated):
			metrics.Ratings.WithLabelValues("already_rated").Inc()
		case errors.Is(err, ErrNotDelivered):
			metrics.Ratings.WithLabelValues("not_delivered").Inc()
		case apperr.Is(err, apperr.CodeNotFound):
			metrics.Ratings.WithLabelValues("not_found").Inc()
		default:
			metrics.Ratings.WithLabelValues("error").Inc()
		}
		return ProductRating{}, wrapInternal("rate sale", err)
	}
	metrics.Ratings.WithLabelValues("ok").Inc()
	return rating, nil
}

// Sales lists sales matching f, newest first.
func (l *Ledger) Sales(ctx context.Context, f SaleFilter) ([]Sale, error) {
	var out []Sale
	err := l.run(ctx, func(ctx context.Context, tx Tx, _ *outbox) error {
		var err error
		out, err = tx.Sales(ctx, f)
		return err
	})
	if err != nil {
		return nil, wrapInternal("list sales", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// accounts caches the users touched by one transaction so a user credited by
// several lines (or acting as both seller and affiliate) is loaded and saved once.
type accounts struct {
	tx    Tx
	users map[string]*User
	dirty []string
}

func newAccounts(tx Tx) *accounts {
	return &accounts{tx: tx, users: map[string]*User{}}
}

// load returns nil, nil for a missing user.
func (a *accounts) load(ctx context.Context, id string) (*User, error) {
	if u, ok := a.users[id]; ok {
		return u, nil
	}
	u, err := a.tx.User(ctx, id)
	if errors.Is(err, ErrNotFound) {
		a.users[id] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}
	a.users[id] = &u
	return &u, nil
}

func (a *accounts) credit(u *User, amount decimal.Decimal) {
	u.Balance = u.Balance.Add(amount)
	for _, id := range a.dirty {
		if id == u.ID {
			return
		}
	}
	a.dirty = append(a.dirty, u.ID)
}

func (a *accounts) debit(u *User, amount decimal.Decimal) error {
	if u.Balance.LessThan(amount) {
		return ErrInsufficientBalance
	}
	a.credit(u, amount.Neg())
	return nil
}

func (a *accounts) flush(ctx context.Context) error {
	for _, id := range a.dirty {
		if err := a.tx.SaveUser(ctx, *a.users[id]); err != nil {
			return fmt.Errorf("save user %s: %w", id, err)
		}
	}
	return nil
}
