// Package storefront ties the catalog, the cart and checkout together into
// a single-user shopping session driven by intents.
package storefront

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/neostore/internal/domain/cart"
	"github.com/xenking/neostore/internal/domain/order"
	"github.com/xenking/neostore/internal/domain/product"
)

// CartView is a consistent snapshot of the cart and its totals.
type CartView struct {
	Lines    []cart.Line
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	Count    int
}

// Status summarises the session for health and diagnostics.
type Status struct {
	State     product.LoadState
	LoadErr   error
	Products  int
	CartCount int
}

// Options configure a Session.
type Options struct {
	Source   product.Source
	Cart     cart.Repository
	Orders   order.Repository
	Listener Listener
}

// Session owns the storefront state. Every intent runs under one mutex;
// listener callbacks are invoked after it is released and must not assume
// the state is unchanged by then.
type Session struct {
	mu      sync.Mutex
	catalog *product.Catalog
	cart    *cart.Cart
	orders  *order.Service
	events  Listener

	source product.Source
	loadMu sync.Mutex
}

// New restores the persisted cart and returns a Session with an empty,
// loading catalog. Call LoadCatalog to populate it.
func New(ctx context.Context, opts Options) *Session {
	events := opts.Listener
	if events == nil {
		events = Nop{}
	}

	catalog := product.NewCatalog()
	catalog.MarkLoading()

	return &Session{
		catalog: catalog,
		cart:    cart.Load(ctx, opts.Cart),
		orders:  order.NewService(opts.Orders),
		events:  events,
		source:  opts.Source,
	}
}

// LoadCatalog fetches the product list and replaces the catalog with it.
// The fetch runs without holding the session lock, so other intents keep
// working on the previous catalog. On failure the catalog is emptied and
// the error, wrapping product.ErrCatalogLoad, is returned.
func (s *Session) LoadCatalog(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.Lock()
	s.catalog.MarkLoading()
	s.mu.Unlock()

	products, err := s.source.Fetch(ctx)

	s.mu.Lock()
	if err != nil {
		err = s.catalog.Fail(err)
	} else {
		err = s.catalog.Replace(products)
	}
	count := s.catalog.Len()
	s.mu.Unlock()

	if err != nil {
		s.events.CatalogFailed(ctx, err)
		return err
	}
	s.events.CatalogLoaded(ctx, count)
	return nil
}

// Status reports the catalog state and sizes.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.catalog.State()
	return Status{
		State:     state,
		LoadErr:   err,
		Products:  s.catalog.Len(),
		CartCount: s.cart.Count(),
	}
}

// Products returns the catalog filtered and sorted by c.
func (s *Session) Products(c product.Criteria) []product.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	return product.Filter(s.catalog.List(), c)
}

// Product returns a single catalog product.
func (s *Session) Product(id string) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.catalog.Get(id)
}

// Categories returns the distinct catalog categories in first-seen order.
func (s *Session) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.catalog.Categories()
}

// Cart returns the current cart.
func (s *Session) Cart() CartView {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.view()
}

// AddToCart adds one unit of product id. Unknown products fail with
// product.ErrNotFound and products without stock with cart.ErrOutOfStock.
func (s *Session) AddToCart(ctx context.Context, id string) (CartView, error) {
	s.mu.Lock()
	line, view, err := s.add(ctx, id)
	s.mu.Unlock()

	if err != nil {
		s.events.AddRejected(ctx, id, err)
		return view, err
	}
	s.events.ProductAdded(ctx, line)
	s.events.CartChanged(ctx, view)
	return view, nil
}

func (s *Session) add(ctx context.Context, id string) (cart.Line, CartView, error) {
	p, err := s.catalog.Get(id)
	if err != nil {
		return cart.Line{}, s.view(), err
	}
	line, err := s.cart.Add(ctx, p)
	return line, s.view(), err
}

// RemoveFromCart deletes the line for id. Absent ids are ignored.
func (s *Session) RemoveFromCart(ctx context.Context, id string) (CartView, error) {
	return s.mutate(ctx, func(c *cart.Cart) error { return c.Remove(ctx, id) })
}

// SetQuantity sets the quantity of the line for id, clamped to at least 1.
func (s *Session) SetQuantity(ctx context.Context, id string, qty int) (CartView, error) {
	return s.mutate(ctx, func(c *cart.Cart) error { return c.SetQuantity(ctx, id, qty) })
}

// IncrementQuantity adds one unit to the line for id.
func (s *Session) IncrementQuantity(ctx context.Context, id string) (CartView, error) {
	return s.mutate(ctx, func(c *cart.Cart) error { return c.Increment(ctx, id) })
}

// DecrementQuantity removes one unit from the line for id, never going
// below one.
func (s *Session) DecrementQuantity(ctx context.Context, id string) (CartView, error) {
	return s.mutate(ctx, func(c *cart.Cart) error { return c.Decrement(ctx, id) })
}

// ClearCart removes every line.
func (s *Session) ClearCart(ctx context.Context) (CartView, error) {
	return s.mutate(ctx, func(c *cart.Cart) error { return c.Clear(ctx) })
}

func (s *Session) mutate(ctx context.Context, fn func(c *cart.Cart) error) (CartView, error) {
	s.mu.Lock()
	err := fn(s.cart)
	view := s.view()
	s.mu.Unlock()

	if err != nil {
		return view, err
	}
	s.events.CartChanged(ctx, view)
	return view, nil
}

// Checkout places an order for the current cart.
func (s *Session) Checkout(ctx context.Context, buyer order.Buyer) (*order.Order, error) {
	s.mu.Lock()
	o, err := s.orders.Checkout(ctx, s.cart, s.catalog, buyer)
	view := s.view()
	s.mu.Unlock()

	if err != nil {
		s.events.CheckoutRejected(ctx, err)
		return nil, err
	}
	s.events.CheckoutSucceeded(ctx, o)
	s.events.CartChanged(ctx, view)
	return o, nil
}

// LastOrder returns the most recent order, or order.ErrNoOrder.
func (s *Session) LastOrder(ctx context.Context) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.orders.Last(ctx)
	if err != nil && !errors.Is(err, order.ErrNoOrder) {
		return nil, errors.Wrap(err, "last order")
	}
	return o, err
}

func (s *Session) view() CartView {
	return CartView{
		Lines:    s.cart.Lines(),
		Subtotal: s.cart.Subtotal(),
		Tax:      s.cart.Tax(),
		Total:    s.cart.Total(),
		Count:    s.cart.Count(),
	}
}
