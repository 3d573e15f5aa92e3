package commerce

import (
	"context"
	"fmt"

	"github.com/ariefcatur/cyberphone-ledger/internal/apperr"
)

// Carts manages per-user carts. Each mutation is one transaction, which the
// backends serialize per user.
type Carts struct {
	Deps
}

func NewCarts(d Deps) *Carts {
	return &Carts{Deps: d.withDefaults()}
}

func (c *Carts) Get(ctx context.Context, userID string) ([]CartItem, error) {
	var out []CartItem
	err := c.run(ctx, func(ctx context.Context, tx Tx, _ *outbox) error {
		var err error
		out, err = tx.Cart(ctx, userID)
		return err
	})
	if err != nil {
		return nil, wrapInternal("load cart", err)
	}
	return out, nil
}

// Add merges quantity into the (productID, color) line or appends a new one.
func (c *Carts) Add(ctx context.Context, userID, productID, color string, quantity int) ([]CartItem, error) {
	if quantity <= 0 {
		return nil, apperr.BadRequest("quantity must be positive", nil)
	}
	return c.mutate(ctx, userID, func(items []CartItem) []CartItem {
		for i := range items {
			if items[i].sameLine(productID, color) {
				items[i].Quantity += quantity
				return items
			}
		}
		return append(items, CartItem{ProductID: productID, Quantity: quantity, SelectedColor: color})
	})
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
// Unknown lines are left untouched.
func (c *Carts) UpdateQuantity(ctx context.Context, userID, productID, color string, quantity int) ([]CartItem, error) {
	if quantity <= 0 {
		return c.Remove(ctx, userID, productID, color)
	}
	return c.mutate(ctx, userID, func(items []CartItem) []CartItem {
		for i := range items {
			if items[i].sameLine(productID, color) {
				items[i].Quantity = quantity
			}
		}
		return items
	})
}

func (c *Carts) Remove(ctx context.Context, userID, productID, color string) ([]CartItem, error) {
	return c.mutate(ctx, userID, func(items []CartItem) []CartItem {
		out := items[:0]
		for _, it := range items {
			if !it.sameLine(productID, color) {
				out = append(out, it)
			}
		}
		return out
	})
}

func (c *Carts) Clear(ctx context.Context, userID string) error {
	_, err := c.mutate(ctx, userID, func([]CartItem) []CartItem { return nil })
	return err
}

func (c *Carts) mutate(ctx context.Context, userID string, fn func([]CartItem) []CartItem) ([]CartItem, error) {
	if userID == "" {
		return nil, apperr.BadRequest("user is required", nil)
	}
	var out []CartItem
	err := c.run(ctx, func(ctx context.Context, tx Tx, _ *outbox) error {
		items, err := tx.Cart(ctx, userID)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		out = fn(items)
		return tx.SaveCart(ctx, userID, out)
	})
	if err != nil {
		return nil, wrapInternal("update cart", err)
	}
	if out == nil {
		out = []CartItem{}
	}
	return out, nil
}
