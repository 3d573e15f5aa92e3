package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
	"github.com/ariefcatur/cyberphone-ledger/internal/kvstore"
)

const fixture = `
users:
  - id: creator1
    userType: CREATOR
    firstName: Ana
    email: ana@example.com
    balance: "150.75"
    followers: [standard1]
    storeId: store1
  - id: standard1
    balance: "100.50"
    followedUsers: [creator1]
stores:
  - id: store1
    professorId: creator1
    name: Physics
    productIds: [prod1]
products:
  - id: prod1
    storeId: store1
    name: Relativity e-book
    price: "29.99"
    affiliateCommissionRate: "0.15"
    type: DIGITAL_EBOOK
    digitalContentUrl: https://example.com/relativity.pdf
`

func TestParseAndApply(t *testing.T) {
	f, err := Parse(strings.NewReader(fixture))
	require.NoError(t, err)
	require.Len(t, f.Users, 2)

	store := kvstore.New(kvstore.NewMemory(), nil)
	require.NoError(t, Apply(context.Background(), store, f))

	err = store.WithinTx(context.Background(), func(ctx context.Context, tx commerce.Tx) error {
		u, err := tx.User(ctx, "creator1")
		require.NoError(t, err)
		assert.True(t, u.Balance.Equal(decimal.RequireFromString("150.75")))
		assert.Equal(t, commerce.UserCreator, u.UserType)

		s, err := tx.User(ctx, "standard1")
		require.NoError(t, err)
		assert.Equal(t, commerce.UserStandard, s.UserType)
		assert.Empty(t, s.Followers)

		p, err := tx.Product(ctx, "prod1")
		require.NoError(t, err)
		assert.Equal(t, "29.99", p.Price.String())
		assert.Equal(t, commerce.ProductDigitalEbook, p.Type)

		st, err := tx.StoreByID(ctx, "store1")
		require.NoError(t, err)
		assert.Equal(t, "creator1", st.ProfessorID)
		return nil
	})
	require.NoError(t, err)
}

func TestParse_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown field":   "users:\n  - id: a\n    nickname: x\n",
		"missing id":      "users:\n  - firstName: a\n",
		"bad type":        "products:\n  - id: p\n    storeId: s\n    name: n\n    price: \"1\"\n    type: HOLOGRAM\n",
		"price not num":   "products:\n  - id: p\n    storeId: s\n    name: n\n    price: cheap\n    type: PHYSICAL\n",
		"store no owner":  "stores:\n  - id: s\n",
		"balance not num": "users:\n  - id: a\n    balance: \"12,50\"\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestApply_RejectsRateAboveOne(t *testing.T) {
	f := File{Products: []Product{{ID: "p", StoreID: "s", Name: "n", Price: "1", AffiliateCommissionRate: "1.5", Type: "PHYSICAL"}}}
	err := Apply(context.Background(), kvstore.New(kvstore.NewMemory(), nil), f)
	assert.ErrorContains(t, err, "commission rate")
}

func TestParseFile_ShippedSeed(t *testing.T) {
	f, err := ParseFile("../../deploy/seed.yaml")
	require.NoError(t, err)
	assert.Len(t, f.Users, 4)
	assert.Len(t, f.Products, 2)

	store := kvstore.New(kvstore.NewMemory(), nil)
	require.NoError(t, Apply(context.Background(), store, f))
	err = store.WithinTx(context.Background(), func(ctx context.Context, tx commerce.Tx) error {
		p, err := tx.Product(ctx, "prod2")
		require.NoError(t, err)
		assert.Equal(t, "120", p.Price.String())
		assert.Equal(t, "0.1", p.AffiliateCommissionRate.String())
		return nil
	})
	require.NoError(t, err)
}

func TestApply_RejectsNonPositivePrice(t *testing.T) {
	for _, price := range []string{"0", "0.00", "-1"} {
		f := File{Products: []Product{{ID: "p", StoreID: "s", Name: "n", Price: price, Type: "PHYSICAL"}}}
		err := Apply(context.Background(), kvstore.New(kvstore.NewMemory(), nil), f)
		assert.ErrorContains(t, err, "price must be positive", price)
	}
}
