package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/neostore/internal/domain/cart"
)

// ErrEmptyCart is returned when checking out a cart with no items.
var ErrEmptyCart = errors.New("cart is empty")

// BuyerFieldError indicates a required buyer field is blank.
type BuyerFieldError struct {
	Field string
}

func (e *BuyerFieldError) Error() string {
	return fmt.Sprintf("buyer %s is required", e.Field)
}

// Inventory is the stock side of the catalog that checkout mutates.
type Inventory interface {
	DecrementStock(id string, qty int) bool
}

// Service converts carts into orders.
type Service struct {
	orders Repository
	ids    *IDGenerator
	now    func() time.Time
}

// NewService creates an order Service that records the last order in orders.
func NewService(orders Repository) *Service {
	return &Service{
		orders: orders,
		ids:    NewIDGenerator(),
		now:    time.Now,
	}
}

// Checkout snapshots c into an Order for buyer, clears the cart, persists
// the order as the last order and decrements inventory stock for every line.
//
// An empty cart fails with ErrEmptyCart and a blank buyer field with
// *BuyerFieldError; neither mutates anything. Saving the order is the
// commit point: when it fails the cart is restored, so a failed checkout
// never leaves a stored order behind.
func (s *Service) Checkout(ctx context.Context, c *cart.Cart, inv Inventory, buyer Buyer) (*Order, error) {
	if c.Count() == 0 {
		return nil, ErrEmptyCart
	}
	if err := validateBuyer(buyer); err != nil {
		return nil, err
	}

	lines := c.Lines()
	items := make([]Item, len(lines))
	for i, l := range lines {
		items[i] = Item{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			Price:     l.Price,
		}
	}

	o := &Order{
		ID:       s.ids.Next(),
		PlacedAt: s.now(),
		Buyer:    buyer,
		Items:    items,
		Totals: Totals{
			Subtotal: c.Subtotal(),
			Tax:      c.Tax(),
			Total:    c.Total(),
		},
	}

	if err := c.Clear(ctx); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}
	if err := s.orders.SaveLast(ctx, o); err != nil {
		err = errors.Wrap(err, "save order")
		if rerr := c.Restore(ctx, lines); rerr != nil {
			return nil, fmt.Errorf("%w; restore cart: %w", err, rerr)
		}
		return nil, err
	}
	for _, l := range lines {
		inv.DecrementStock(l.ProductID, l.Quantity)
	}

	return o, nil
}

// Last returns the most recently completed order.
func (s *Service) Last(ctx context.Context) (*Order, error) {
	return s.orders.Last(ctx)
}

func validateBuyer(b Buyer) error {
	fields := []struct {
		name  string
		value string
	}{
		{"name", b.Name},
		{"email", b.Email},
		{"phone", b.Phone},
		{"address", b.Address},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &BuyerFieldError{Field: f.name}
		}
	}
	return nil
}
