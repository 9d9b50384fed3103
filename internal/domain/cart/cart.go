// Package cart implements the shopping cart aggregate: line items keyed by
// product id, quantity rules, derived totals, and write-through persistence.
package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/neostore/internal/domain/product"
)

// ErrOutOfStock is returned when adding a product that has no stock.
var ErrOutOfStock = errors.New("product out of stock")

// TaxRate is applied to the subtotal to compute tax.
var TaxRate = decimal.RequireFromString("0.21")

// Line is a single product entry in the cart. Name, Price and Image are
// snapshots taken when the product was first added.
type Line struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Image     string
	Quantity  int
}

// Amount returns Price × Quantity.
func (l Line) Amount() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Repository persists the full line list.
type Repository interface {
	Load(ctx context.Context) ([]Line, error)
	Save(ctx context.Context, lines []Line) error
}

// Cart holds at most one line per product, each with quantity ≥ 1.
//
// Cart is not safe for concurrent use.
type Cart struct {
	lines []Line
	repo  Repository
}

// New returns an empty cart that persists through repo.
func New(repo Repository) *Cart {
	return &Cart{repo: repo}
}

// Load restores the cart from repo. Missing or unreadable state yields an
// empty cart; the failure is logged, never returned.
func Load(ctx context.Context, repo Repository) *Cart {
	c := New(repo)
	lines, err := repo.Load(ctx)
	if err != nil {
		zctx.From(ctx).Warn("Discarding persisted cart", zap.Error(err))
		return c
	}
	c.lines = normalize(lines)
	return c
}

// normalize merges duplicate product ids and repairs quantities below one.
func normalize(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	pos := make(map[string]int, len(lines))
	for _, l := range lines {
		l.Quantity = max(1, l.Quantity)
		if i, ok := pos[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		pos[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}

// Add puts one unit of p in the cart. A product with no stock is rejected
// with ErrOutOfStock and the cart is left unchanged.
func (c *Cart) Add(ctx context.Context, p product.Product) (Line, error) {
	if !p.InStock() {
		return Line{}, errors.Wrapf(ErrOutOfStock, "add %s", p.ID)
	}

	next := c.clone()
	i := indexOf(next, p.ID)
	if i >= 0 {
		next[i].Quantity++
	} else {
		i = len(next)
		next = append(next, Line{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Image:     p.Image,
			Quantity:  1,
		})
	}

	if err := c.commit(ctx, next); err != nil {
		return Line{}, err
	}
	return next[i], nil
}

// Remove deletes the line for id. Removing an absent id is a no-op.
func (c *Cart) Remove(ctx context.Context, id string) error {
	i := indexOf(c.lines, id)
	if i < 0 {
		return nil
	}
	next := c.clone()
	next = append(next[:i], next[i+1:]...)
	return c.commit(ctx, next)
}

// SetQuantity sets the quantity of id, clamping values below one to one.
// It is a no-op when id is not in the cart.
func (c *Cart) SetQuantity(ctx context.Context, id string, qty int) error {
	i := indexOf(c.lines, id)
	if i < 0 {
		return nil
	}
	next := c.clone()
	next[i].Quantity = max(1, qty)
	return c.commit(ctx, next)
}

// Increment adds one unit to an existing line.
func (c *Cart) Increment(ctx context.Context, id string) error {
	if i := indexOf(c.lines, id); i >= 0 {
		return c.SetQuantity(ctx, id, c.lines[i].Quantity+1)
	}
	return nil
}

// Decrement removes one unit from an existing line, never going below one.
func (c *Cart) Decrement(ctx context.Context, id string) error {
	if i := indexOf(c.lines, id); i >= 0 {
		return c.SetQuantity(ctx, id, c.lines[i].Quantity-1)
	}
	return nil
}

// Clear removes every line.
func (c *Cart) Clear(ctx context.Context) error {
	return c.commit(ctx, []Line{})
}

// Restore replaces the cart content with lines previously returned by
// Lines, undoing a Clear.
func (c *Cart) Restore(ctx context.Context, lines []Line) error {
	return c.commit(ctx, append([]Line{}, lines...))
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	return c.clone()
}

// Line returns the line for id.
func (c *Cart) Line(id string) (Line, bool) {
	if i := indexOf(c.lines, id); i >= 0 {
		return c.lines[i], true
	}
	return Line{}, false
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Subtotal returns Σ price × quantity.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.lines {
		sum = sum.Add(l.Amount())
	}
	return sum
}

// Tax returns Subtotal × TaxRate.
func (c *Cart) Tax() decimal.Decimal {
	return c.Subtotal().Mul(TaxRate)
}

// Total returns Subtotal + Tax.
func (c *Cart) Total() decimal.Decimal {
	sub := c.Subtotal()
	return sub.Add(sub.Mul(TaxRate))
}

// Count returns the total number of units.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// commit persists next and installs it only when the save succeeded.
func (c *Cart) commit(ctx context.Context, next []Line) error {
	if err := c.repo.Save(ctx, next); err != nil {
		return errors.Wrap(err, "save cart")
	}
	c.lines = next
	return nil
}

func (c *Cart) clone() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func indexOf(lines []Line, id string) int {
	for i, l := range lines {
		if l.ProductID == id {
			return i
		}
	}
	return -1
}
