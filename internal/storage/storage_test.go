package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/neostore/internal/domain/cart"
	"github.com/xenking/neostore/internal/domain/order"
	"github.com/xenking/neostore/internal/domain/product"
	"github.com/xenking/neostore/internal/storage"
	"github.com/xenking/neostore/internal/storage/memory"
)

type failingKV struct {
	err error
}

func (f failingKV) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingKV) Put(context.Context, string, []byte) error   { return f.err }

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCartRepository_MissingKey(t *testing.T) {
	lines, err := storage.NewCartRepository(memory.New()).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCartRepository_Corrupt(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	require.NoError(t, kv.Put(ctx, storage.CartKey, []byte(`{"not":"a list"}`)))

	_, err := storage.NewCartRepository(kv).Load(ctx)
	assert.ErrorIs(t, err, storage.ErrCorruptState)

	// The cart falls back to empty.
	c := cart.Load(ctx, storage.NewCartRepository(kv))
	assert.True(t, c.IsEmpty())
}

func TestCartRepository_PersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()

	c := cart.New(storage.NewCartRepository(kv))
	lamp := product.Product{ID: "1", Name: "Lamp", Price: d("19.99"), Stock: 5, Image: "lamp.png"}
	pen := product.Product{ID: "2", Name: "Pen", Price: d("1.5"), Stock: 5}
	for _, p := range []product.Product{lamp, lamp, pen} {
		_, err := c.Add(ctx, p)
		require.NoError(t, err)
	}

	restored := cart.Load(ctx, storage.NewCartRepository(kv))
	assert.Equal(t, c.Count(), restored.Count())
	assert.True(t, c.Total().Equal(restored.Total()))

	l, ok := restored.Line("1")
	require.True(t, ok)
	assert.Equal(t, 2, l.Quantity)
	assert.Equal(t, "lamp.png", l.Image)
}

func TestCartRepository_BackendError(t *testing.T) {
	repo := storage.NewCartRepository(failingKV{err: errors.New("boom")})

	_, err := repo.Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrCorruptState)

	err = repo.Save(context.Background(), nil)
	assert.ErrorContains(t, err, "save cart")
}

func TestOrderRepository(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	repo := storage.NewOrderRepository(kv)

	_, err := repo.Last(ctx)
	require.ErrorIs(t, err, order.ErrNoOrder)

	o := &order.Order{
		ID:       "ORD-1",
		PlacedAt: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
		Buyer:    order.Buyer{Name: "A", Email: "a@b.c", Phone: "1", Address: "x"},
		Items:    []order.Item{{ProductID: "1", Name: "Lamp", Quantity: 1, Price: d("10")}},
		Totals:   order.Totals{Subtotal: d("10"), Tax: d("2.1"), Total: d("12.1")},
	}
	require.NoError(t, repo.SaveLast(ctx, o))

	got, err := repo.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, o.Buyer, got.Buyer)
	assert.True(t, o.Totals.Total.Equal(got.Totals.Total))
}

func TestOrderRepository_Corrupt(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	require.NoError(t, kv.Put(ctx, storage.LastOrderKey, []byte(`{"id":"ORD-1"}`)))

	_, err := storage.NewOrderRepository(kv).Last(ctx)
	assert.ErrorIs(t, err, order.ErrNoOrder)
	assert.ErrorIs(t, err, storage.ErrCorruptState)
}
