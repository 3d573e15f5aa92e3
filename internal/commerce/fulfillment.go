package commerce

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/cyberphone-ledger/internal/apperr"
)

// FulfillmentMode selects how new sales enter the status machine.
type FulfillmentMode string

const (
	// ModeImmediate creates every sale as DELIVERED.
	ModeImmediate FulfillmentMode = "immediate"
	// ModeTracked starts physical goods in WAITLIST; digital goods are DELIVERED.
	ModeTracked FulfillmentMode = "tracked"
)

func (m FulfillmentMode) Valid() bool { return m == ModeImmediate || m == ModeTracked }

func InitialStatus(mode FulfillmentMode, t ProductType) OrderStatus {
	if mode == ModeTracked && t.IsPhysical() {
		return StatusWaitlist
	}
	return StatusDelivered
}

// Fulfillment drives sales through WAITLIST -> SHIPPING -> DELIVERED. The
// ledger only picks the initial status.
type Fulfillment struct {
	Deps
}

func NewFulfillment(d Deps) *Fulfillment {
	return &Fulfillment{Deps: d.withDefaults()}
}

// Advance moves one sale to status to.
func (f *Fulfillment) Advance(ctx context.Context, saleID string, to OrderStatus) (Sale, error) {
	if !to.Valid() {
		return Sale{}, apperr.BadRequest(fmt.Sprintf("unknown status %q", to), nil)
	}
	var out Sale
	err := f.run(ctx, func(ctx context.Context, tx Tx, ob *outbox) error {
		sale, err := tx.Sale(ctx, saleID)
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("sale", err)
		}
		if err != nil {
			return fmt.Errorf("load sale: %w", err)
		}
		if !CanTransition(sale.Status, to) {
			return apperr.InvalidTransition(string(sale.Status), string(to), ErrInvalidTransition)
		}
		from := sale.Status
		sale.Status = to
		if err := tx.SaveSale(ctx, sale); err != nil {
			return fmt.Errorf("save sale: %w", err)
		}
		out = sale
		return ob.add(TopicSaleStatusChanged, EventSaleStatusChanged, sale.ID,
			SaleStatusChangedPayload{SaleID: sale.ID, From: from, To: to})
	})
	if err != nil {
		return Sale{}, wrapInternal("advance sale", err)
	}
	f.Log.InfoContext(ctx, "sale status changed", "sale_id", saleID, "status", to)
	return out, nil
}

// Dispatch moves every WAITLIST sale among saleIDs to SHIPPING and returns the
// ids that moved. Sales in any other status are left alone, so redelivered
// purchase events are harmless.
func (f *Fulfillment) Dispatch(ctx context.Context, saleIDs []string) ([]string, error) {
	var moved []string
	for _, id := range saleIDs {
		_, err := f.Advance(ctx, id, StatusShipping)
		switch {
		case err == nil:
			moved = append(moved, id)
		case apperr.Is(err, apperr.CodeInvalidTransition), apperr.Is(err, apperr.CodeNotFound):
			f.Log.DebugContext(ctx, "dispatch skipped", "sale_id", id, "error", err)
		default:
			return moved, err
		}
	}
	return moved, nil
}
