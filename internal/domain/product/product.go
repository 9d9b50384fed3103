package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrCatalogLoad wraps any failure to fetch or validate the catalog.
	ErrCatalogLoad = errors.New("catalog load failed")
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Stock       int
	Image       string
	// OldPrice is the crossed-out price shown next to Price. Invalid when
	// the product is not discounted.
	OldPrice decimal.NullDecimal
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// Source loads the full product list from a static collaborator
// (file, URL, database table).
type Source interface {
	Fetch(ctx context.Context) ([]Product, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]Product, error)

// Fetch calls f(ctx).
func (f SourceFunc) Fetch(ctx context.Context) ([]Product, error) {
	return f(ctx)
}
