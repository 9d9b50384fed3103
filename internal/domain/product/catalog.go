package product

import (
	"fmt"
)

// LoadState describes the catalog lifecycle.
type LoadState string

const (
	StateLoading LoadState = "loading"
	StateReady   LoadState = "ready"
	StateFailed  LoadState = "failed"
)

// ValidationError reports a product record rejected during catalog load.
type ValidationError struct {
	ProductID string
	Reason    string
}

func (e *ValidationError) Error() string {
	return "product " + e.ProductID + ": " + e.Reason
}

// Catalog owns the products of a session. Products keep the order in which
// the source returned them ("featured" order).
//
// Catalog is not safe for concurrent use; callers serialize access.
type Catalog struct {
	products []Product
	index    map[string]int
	state    LoadState
	err      error
}

// NewCatalog returns a catalog in the loading state.
func NewCatalog() *Catalog {
	return &Catalog{
		index: make(map[string]int),
		state: StateLoading,
	}
}

// Replace validates products and installs them, moving the catalog to the
// ready state. On validation failure the catalog is emptied and marked
// failed, and the returned error wraps ErrCatalogLoad.
func (c *Catalog) Replace(products []Product) error {
	next := make([]Product, 0, len(products))
	index := make(map[string]int, len(products))
	for _, p := range products {
		if err := validate(p); err != nil {
			return c.Fail(err)
		}
		if _, dup := index[p.ID]; dup {
			return c.Fail(&ValidationError{ProductID: p.ID, Reason: "duplicate id"})
		}
		if p.OldPrice.Valid && p.OldPrice.Decimal.LessThan(p.Price) {
			p.OldPrice.Valid = false
		}
		index[p.ID] = len(next)
		next = append(next, p)
	}

	c.products = next
	c.index = index
	c.state = StateReady
	c.err = nil
	return nil
}

// Fail empties the catalog and records cause as the load error. It returns
// cause wrapped with ErrCatalogLoad.
func (c *Catalog) Fail(cause error) error {
	err := fmt.Errorf("%w: %w", ErrCatalogLoad, cause)
	c.products = nil
	c.index = make(map[string]int)
	c.state = StateFailed
	c.err = err
	return err
}

// MarkLoading flags a fetch in progress. Loaded products stay visible.
func (c *Catalog) MarkLoading() {
	c.state = StateLoading
	c.err = nil
}

// State returns the lifecycle state and, when failed, the load error.
func (c *Catalog) State() (LoadState, error) {
	return c.state, c.err
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// List returns a copy of all products in catalog order.
func (c *Catalog) List() []Product {
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// Get returns the product with the given id.
func (c *Catalog) Get(id string) (Product, error) {
	i, ok := c.index[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return c.products[i], nil
}

// Categories returns the distinct categories in first-seen order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range c.products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

// DecrementStock lowers the stock of product id by qty, flooring at zero.
// It reports whether the product exists.
func (c *Catalog) DecrementStock(id string, qty int) bool {
	i, ok := c.index[id]
	if !ok {
		return false
	}
	c.products[i].Stock = max(0, c.products[i].Stock-qty)
	return true
}

func validate(p Product) error {
	switch {
	case p.ID == "":
		return &ValidationError{Reason: "empty id"}
	case p.Price.IsNegative():
		return &ValidationError{ProductID: p.ID, Reason: "negative price"}
	case p.Stock < 0:
		return &ValidationError{ProductID: p.ID, Reason: "negative stock"}
	}
	return nil
}
