package kvstore

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
)

func seedUser(t *testing.T, s *Store, id string, balance int64) {
	t.Helper()
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx commerce.Tx) error {
		return tx.PutUser(ctx, commerce.User{ID: id, Balance: decimal.NewFromInt(balance)})
	})
	require.NoError(t, err)
}

func TestStore_MissingDocumentIsEmpty(t *testing.T) {
	s := New(NewMemory(), nil)
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx commerce.Tx) error {
		sales, err := tx.Sales(ctx, commerce.SaleFilter{})
		require.NoError(t, err)
		assert.Empty(t, sales)

		_, err = tx.User(ctx, "nobody")
		assert.ErrorIs(t, err, commerce.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_CorruptDocumentIsEmpty(t *testing.T) {
	mem := NewMemory()
	mem.SetRaw(KeyUsers, []byte("{not json"))
	s := New(mem, nil)

	seedUser(t, s, "u1", 10)

	raw, ok := mem.Raw(KeyUsers)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"id":"u1"`)
}

func TestStore_RollbackOnError(t *testing.T) {
	mem := NewMemory()
	s := New(mem, nil)
	seedUser(t, s, "u1", 10)

	boom := errors.New("boom")
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx commerce.Tx) error {
		u, err := tx.User(ctx, "u1")
		require.NoError(t, err)
		u.Balance = decimal.NewFromInt(99)
		require.NoError(t, tx.SaveUser(ctx, u))
		require.NoError(t, tx.InsertSale(ctx, commerce.Sale{ID: "s1"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.WithinTx(context.Background(), func(ctx context.Context, tx commerce.Tx) error {
		u, err := tx.User(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, u.Balance.Equal(decimal.NewFromInt(10)))
		_, err = tx.Sale(ctx, "s1")
		assert.ErrorIs(t, err, commerce.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
	_, ok := mem.Raw(KeySales)
	assert.False(t, ok)
}

func TestStore_SaveUnknownUser(t *testing.T) {
	s := New(NewMemory(), nil)
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx commerce.Tx) error {
		return tx.SaveUser(ctx, commerce.User{ID: "ghost"})
	})
	assert.ErrorIs(t, err, commerce.ErrNotFound)
}

func TestStore_NotificationsNewestFirst(t *testing.T) {
	s := New(NewMemory(), nil)
	ctx := context.Background()
	err := s.WithinTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		for _, id := range []string{"n1", "n2", "n3"} {
			if err := tx.InsertNotification(ctx, commerce.Notification{ID: id, RecipientID: "r"}); err != nil {
				return err
			}
		}
		return tx.InsertNotification(ctx, commerce.Notification{ID: "other", RecipientID: "x"})
	})
	require.NoError(t, err)

	var changed int
	err = s.WithinTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		notes, err := tx.Notifications(ctx, "r")
		require.NoError(t, err)
		require.Len(t, notes, 3)
		assert.Equal(t, []string{"n3", "n2", "n1"}, []string{notes[0].ID, notes[1].ID, notes[2].ID})
		changed, err = tx.MarkNotificationsRead(ctx, "r")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 3, changed)

	err = s.WithinTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		changed, err = tx.MarkNotificationsRead(ctx, "r")
		return err
	})
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestStore_Carts(t *testing.T) {
	s := New(NewMemory(), nil)
	ctx := context.Background()
	items := []commerce.CartItem{{ProductID: "p1", Quantity: 2}}

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		return tx.SaveCart(ctx, "b", items)
	}))
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		got, err := tx.Cart(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, items, got)

		got[0].Quantity = 7
		again, err := tx.Cart(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, 2, again[0].Quantity)

		return tx.SaveCart(ctx, "b", nil)
	}))
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		got, err := tx.Cart(ctx, "b")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
		return nil
	}))
}

func TestStore_SalesFilter(t *testing.T) {
	s := New(NewMemory(), nil)
	ctx := context.Background()
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		for _, sale := range []commerce.Sale{
			{ID: "s1", BuyerID: "b1", StoreID: "st1", AffiliateUserID: "a1"},
			{ID: "s2", BuyerID: "b2", StoreID: "st1"},
			{ID: "s3", BuyerID: "b1", StoreID: "st2"},
		} {
			if err := tx.InsertSale(ctx, sale); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		byBuyer, err := tx.Sales(ctx, commerce.SaleFilter{BuyerID: "b1"})
		require.NoError(t, err)
		assert.Len(t, byBuyer, 2)

		byStore, err := tx.Sales(ctx, commerce.SaleFilter{StoreID: "st1"})
		require.NoError(t, err)
		assert.Len(t, byStore, 2)

		byAff, err := tx.Sales(ctx, commerce.SaleFilter{AffiliateID: "a1"})
		require.NoError(t, err)
		require.Len(t, byAff, 1)
		assert.Equal(t, "s1", byAff[0].ID)
		return nil
	}))
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := NewMemory().Update(ctx, Keys, func(View) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
