package commerce_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/cyberphone-ledger/internal/apperr"
	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
)

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, commerce.StatusDelivered, commerce.InitialStatus(commerce.ModeImmediate, commerce.ProductPhysical))
	assert.Equal(t, commerce.StatusWaitlist, commerce.InitialStatus(commerce.ModeTracked, commerce.ProductPhysical))
	assert.Equal(t, commerce.StatusDelivered, commerce.InitialStatus(commerce.ModeTracked, commerce.ProductDigitalCourse))
}

func TestFulfillment_Advance(t *testing.T) {
	e := newEnv(t, commerce.PolicyPlatformFee, commerce.ModeTracked)
	e.marketplace(t)
	f := commerce.NewFulfillment(e.deps)
	ctx := context.Background()
	sale := saleFor(t, e, "B")
	require.Equal(t, commerce.StatusWaitlist, sale.Status)

	_, err := f.Advance(ctx, sale.ID, commerce.StatusDelivered)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidTransition))
	assert.ErrorIs(t, err, commerce.ErrInvalidTransition)

	got, err := f.Advance(ctx, sale.ID, commerce.StatusShipping)
	require.NoError(t, err)
	assert.Equal(t, commerce.StatusShipping, got.Status)

	got, err = f.Advance(ctx, sale.ID, commerce.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, commerce.StatusDelivered, got.Status)

	assert.Len(t, e.pub.byTopic(commerce.TopicSaleStatusChanged), 2)

	_, err = f.Advance(ctx, sale.ID, "LOST")
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))
	_, err = f.Advance(ctx, "nope", commerce.StatusShipping)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestFulfillment_Dispatch(t *testing.T) {
	e := newEnv(t, commerce.PolicyPlatformFee, commerce.ModeTracked)
	e.marketplace(t)
	f := commerce.NewFulfillment(e.deps)
	res := purchase(t, e, commerce.PurchaseInput{
		Items:   []commerce.CartItem{{ProductID: "phys", Quantity: 1}, {ProductID: "ebook", Quantity: 1}},
		BuyerID: "B",
	})

	ids := append(res.SaleIDs(), "missing")
	moved, err := f.Dispatch(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, []string{res.Sales[0].ID}, moved)

	moved, err = f.Dispatch(context.Background(), ids)
	require.NoError(t, err)
	assert.Empty(t, moved, "dispatch is idempotent")
}
