package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNoOrder is returned when no order has been completed yet.
var ErrNoOrder = errors.New("no order")

// Order is the immutable snapshot produced by a successful checkout.
type Order struct {
	ID       string
	PlacedAt time.Time
	Buyer    Buyer
	Items    []Item
	Totals   Totals
}

// Buyer holds the free-form contact details captured at checkout.
type Buyer struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// Item is one purchased line with the price paid per unit.
type Item struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

// Totals are the cart totals at the moment of checkout.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Repository stores the most recent order only.
type Repository interface {
	SaveLast(ctx context.Context, o *Order) error
	// Last returns ErrNoOrder when nothing usable is stored.
	Last(ctx context.Context) (*Order, error)
}
