// Package storage persists the cart and the last order in a key-value store.
//
// Backends implement KV; this package turns their raw values into domain
// records through internal/codec.
package storage

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/neostore/internal/codec"
	"github.com/xenking/neostore/internal/domain/cart"
	"github.com/xenking/neostore/internal/domain/order"
)

// Keys under which records are stored.
const (
	CartKey      = "neostore_cart"
	LastOrderKey = "neostore_last_order"
)

var (
	// ErrKeyNotFound is returned by KV.Get when the key has no value.
	ErrKeyNotFound = errors.New("key not found")
	// ErrCorruptState is returned when a stored value cannot be decoded.
	ErrCorruptState = errors.New("corrupt stored state")
)

// KV is a durable string-keyed store of opaque values.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Pinger is implemented by backends that can report their availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository stores the cart line list under CartKey.
type CartRepository struct {
	kv KV
}

// NewCartRepository returns a CartRepository backed by kv.
func NewCartRepository(kv KV) *CartRepository {
	return &CartRepository{kv: kv}
}

// Load returns the stored lines. A missing key yields an empty cart.
func (r *CartRepository) Load(ctx context.Context) ([]cart.Line, error) {
	data, err := r.kv.Get(ctx, CartKey)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	lines, err := codec.DecodeLines(data)
	if err != nil {
		return nil, fmt.Errorf("%w: cart: %w", ErrCorruptState, err)
	}
	return lines, nil
}

// Save replaces the stored lines.
func (r *CartRepository) Save(ctx context.Context, lines []cart.Line) error {
	if err := r.kv.Put(ctx, CartKey, codec.MarshalLines(lines)); err != nil {
		return errors.Wrap(err, "save cart")
	}
	return nil
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository stores the most recent order under LastOrderKey.
type OrderRepository struct {
	kv KV
}

// NewOrderRepository returns an OrderRepository backed by kv.
func NewOrderRepository(kv KV) *OrderRepository {
	return &OrderRepository{kv: kv}
}

// SaveLast overwrites the stored order with o.
func (r *OrderRepository) SaveLast(ctx context.Context, o *order.Order) error {
	if err := r.kv.Put(ctx, LastOrderKey, codec.MarshalOrder(o)); err != nil {
		return errors.Wrapf(err, "save order %q", o.ID)
	}
	return nil
}

// Last returns the stored order. A missing key yields order.ErrNoOrder and
// an undecodable value yields both order.ErrNoOrder and ErrCorruptState.
func (r *OrderRepository) Last(ctx context.Context) (*order.Order, error) {
	data, err := r.kv.Get(ctx, LastOrderKey)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, order.ErrNoOrder
	}
	if err != nil {
		return nil, errors.Wrap(err, "load order")
	}

	o, err := codec.DecodeOrder(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", order.ErrNoOrder, ErrCorruptState, err)
	}
	return o, nil
}
