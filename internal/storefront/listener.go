package storefront

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/neostore/internal/domain/cart"
	"github.com/xenking/neostore/internal/domain/order"
	"github.com/xenking/neostore/internal/domain/product"
)

// Listener receives session events. Implementations must not call back into
// the Session synchronously.
type Listener interface {
	CatalogLoaded(ctx context.Context, products int)
	CatalogFailed(ctx context.Context, err error)
	ProductAdded(ctx context.Context, line cart.Line)
	// AddRejected reports an add of an unknown or out-of-stock product.
	AddRejected(ctx context.Context, productID string, err error)
	CartChanged(ctx context.Context, view CartView)
	CheckoutSucceeded(ctx context.Context, o *order.Order)
	CheckoutRejected(ctx context.Context, err error)
}

// Nop ignores every event. Embed it to implement a subset of Listener.
type Nop struct{}

var _ Listener = Nop{}

func (Nop) CatalogLoaded(context.Context, int) {}
func (Nop) CatalogFailed(context.Context, error) {}
func (Nop) ProductAdded(context.Context, cart.Line) {}
func (Nop) AddRejected(context.Context, string, error) {}
func (Nop) CartChanged(context.Context, CartView) {}
func (Nop) CheckoutSucceeded(context.Context, *order.Order) {}
func (Nop) CheckoutRejected(context.Context, error) {}

// Listeners fans every event out to each element in order.
type Listeners []Listener

var _ Listener = Listeners(nil)

func (ls Listeners) CatalogLoaded(ctx context.Context, products int) {
	for _, l := range ls {
		l.CatalogLoaded(ctx, products)
	}
}

func (ls Listeners) CatalogFailed(ctx context.Context, err error) {
	for _, l := range ls {
		l.CatalogFailed(ctx, err)
	}
}

func (ls Listeners) ProductAdded(ctx context.Context, line cart.Line) {
	for _, l := range ls {
		l.ProductAdded(ctx, line)
	}
}

func (ls Listeners) AddRejected(ctx context.Context, productID string, err error) {
	for _, l := range ls {
		l.AddRejected(ctx, productID, err)
	}
}

func (ls Listeners) CartChanged(ctx context.Context, view CartView) {
	for _, l := range ls {
		l.CartChanged(ctx, view)
	}
}

func (ls Listeners) CheckoutSucceeded(ctx context.Context, o *order.Order) {
	for _, l := range ls {
		l.CheckoutSucceeded(ctx, o)
	}
}

func (ls Listeners) CheckoutRejected(ctx context.Context, err error) {
	for _, l := range ls {
		l.CheckoutRejected(ctx, err)
	}
}

// Log writes events to the logger carried by the context.
type Log struct{}

var _ Listener = Log{}

func (Log) CatalogLoaded(ctx context.Context, products int) {
	zctx.From(ctx).Info("Catalog loaded", zap.Int("products", products))
}

func (Log) CatalogFailed(ctx context.Context, err error) {
	zctx.From(ctx).Error("Catalog load failed", zap.Error(err))
}

func (Log) ProductAdded(ctx context.Context, line cart.Line) {
	zctx.From(ctx).Debug("Product added",
		zap.String("product_id", line.ProductID),
		zap.Int("quantity", line.Quantity),
	)
}

func (Log) AddRejected(ctx context.Context, productID string, err error) {
	zctx.From(ctx).Info("Add to cart rejected",
		zap.String("product_id", productID),
		zap.Error(err),
	)
}

func (Log) CartChanged(ctx context.Context, view CartView) {
	zctx.From(ctx).Debug("Cart changed",
		zap.Int("lines", len(view.Lines)),
		zap.Int("count", view.Count),
		zap.Stringer("total", view.Total),
	)
}

func (Log) CheckoutSucceeded(ctx context.Context, o *order.Order) {
	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.Int("items", len(o.Items)),
		zap.Stringer("total", o.Totals.Total),
	)
}

func (Log) CheckoutRejected(ctx context.Context, err error) {
	zctx.From(ctx).Info("Checkout rejected", zap.Error(err))
}

// Metrics records session counters with OpenTelemetry.
type Metrics struct {
	Nop

	catalogLoads metric.Int64Counter
	cartAdds     metric.Int64Counter
	addRejects   metric.Int64Counter
	checkouts    metric.Int64Counter
	revenue      metric.Float64Counter
}

// NewMetrics creates the session instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.catalogLoads, err = meter.Int64Counter("neostore.catalog.loads",
		metric.WithDescription("Catalog load attempts by result")); err != nil {
		return nil, errors.Wrap(err, "catalog loads counter")
	}
	if m.cartAdds, err = meter.Int64Counter("neostore.cart.adds",
		metric.WithDescription("Units added to the cart")); err != nil {
		return nil, errors.Wrap(err, "cart adds counter")
	}
	if m.addRejects, err = meter.Int64Counter("neostore.cart.add_rejections",
		metric.WithDescription("Rejected add-to-cart intents by reason")); err != nil {
		return nil, errors.Wrap(err, "add rejections counter")
	}
	if m.checkouts, err = meter.Int64Counter("neostore.checkouts",
		metric.WithDescription("Checkout attempts by result")); err != nil {
		return nil, errors.Wrap(err, "checkouts counter")
	}
	if m.revenue, err = meter.Float64Counter("neostore.revenue",
		metric.WithDescription("Order totals including tax")); err != nil {
		return nil, errors.Wrap(err, "revenue counter")
	}
	return &m, nil
}

var _ Listener = (*Metrics)(nil)

func (m *Metrics) CatalogLoaded(ctx context.Context, _ int) {
	m.catalogLoads.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
}

func (m *Metrics) CatalogFailed(ctx context.Context, _ error) {
	m.catalogLoads.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "failed")))
}

func (m *Metrics) ProductAdded(ctx context.Context, _ cart.Line) {
	m.cartAdds.Add(ctx, 1)
}

func (m *Metrics) AddRejected(ctx context.Context, _ string, err error) {
	reason := "other"
	switch {
	case errors.Is(err, cart.ErrOutOfStock):
		reason = "out_of_stock"
	case errors.Is(err, product.ErrNotFound):
		reason = "not_found"
	}
	m.addRejects.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) CheckoutSucceeded(ctx context.Context, o *order.Order) {
	m.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	m.revenue.Add(ctx, o.Totals.Total.InexactFloat64())
}

func (m *Metrics) CheckoutRejected(ctx context.Context, _ error) {
	m.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "rejected")))
}
