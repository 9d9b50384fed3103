package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/xenking/neostore/internal/domain/product"
	"github.com/xenking/neostore/internal/storage"
	"github.com/xenking/neostore/internal/storage/memory"
	"github.com/xenking/neostore/internal/storefront"
)

// Response types are decoded with encoding/json to keep assertions
// independent from the encoder under test.

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type cartResponse struct {
	Items []struct {
		ID    string  `json:"id"`
		Name  string  `json:"name"`
		Price float64 `json:"price"`
		Qty   int     `json:"qty"`
	} `json:"items"`
	Count    int     `json:"count"`
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

type productResponse struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Stock    int      `json:"stock"`
	OldPrice *float64 `json:"oldPrice"`
	InStock  bool     `json:"inStock"`
}

type orderResponse struct {
	ID    string `json:"id"`
	Buyer struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"buyer"`
	Items []struct {
		ID  string `json:"id"`
		Qty int    `json:"qty"`
	} `json:"items"`
	Totals struct {
		Subtotal float64 `json:"subtotal"`
		Tax      float64 `json:"tax"`
		Total    float64 `json:"total"`
	} `json:"totals"`
}

// --- Helpers ---

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func testCatalog() []product.Product {
	return []product.Product{
		{ID: "1", Name: "Widget", Price: d("100"), Category: "tools", Stock: 2},
		{ID: "2", Name: "Lamp", Price: d("20"), Category: "home", Stock: 5, OldPrice: decimal.NewNullDecimal(d("25"))},
		{ID: "3", Name: "Chair", Price: d("60"), Category: "home", Stock: 0},
	}
}

func newServer(t *testing.T, src product.Source) *httptest.Server {
	t.Helper()
	kv := memory.New()
	s := storefront.New(context.Background(), storefront.Options{
		Source: src,
		Cart:   storage.NewCartRepository(kv),
		Orders: storage.NewOrderRepository(kv),
	})
	_ = s.LoadCatalog(context.Background())

	r := chi.NewRouter()
	New(s).Mount(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func staticSource(products []product.Product) product.Source {
	return product.SourceFunc(func(context.Context) ([]product.Product, error) {
		return products, nil
	})
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// --- Tests ---

func TestProducts(t *testing.T) {
	srv := newServer(t, staticSource(testCatalog()))

	var all []productResponse
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/products", "", &all))
	require.Len(t, all, 3)
	assert.Equal(t, "1", all[0].ID)
	require.NotNil(t, all[1].OldPrice)
	assert.InDelta(t, 25.0, *all[1].OldPrice, 0.001)
	assert.Nil(t, all[0].OldPrice)

	tests := []struct {
		name  string
		query string
		ids   []string
	}{
		{name: "category", query: "?category=home", ids: []string{"2", "3"}},
		{name: "in stock", query: "?category=home&inStock=1", ids: []string{"2"}},
		{name: "price asc", query: "?sort=price-asc", ids: []string{"2", "3", "1"}},
		{name: "name desc", query: "?sort=name-desc", ids: []string{"1", "2", "3"}},
		{name: "search", query: "?q=LAMP", ids: []string{"2"}},
		{name: "bounds", query: "?minPrice=30&maxPrice=100", ids: []string{"1", "3"}},
		{name: "bad bound ignored", query: "?maxPrice=abc", ids: []string{"1", "2", "3"}},
		{name: "no matches", query: "?q=zzz", ids: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []productResponse
			require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/products"+tt.query, "", &got))
			ids := make([]string, 0, len(got))
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestGetProduct(t *testing.T) {
	srv := newServer(t, staticSource(testCatalog()))

	var p productResponse
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/products/3", "", &p))
	assert.Equal(t, "Chair", p.Name)
	assert.False(t, p.InStock)

	var e errorResponse
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/products/99", "", &e))
	assert.Equal(t, http.StatusNotFound, e.Code)

	var categories []string
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/categories", "", &categories))
	assert.Equal(t, []string{"tools", "home"}, categories)
}

func TestCart(t *testing.T) {
	srv := newServer(t, staticSource(testCatalog()))

	var c cartResponse
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/cart/items", `{"productId":"2"}`, &c))
	assert.Equal(t, 1, c.Count)

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/cart/items", `{"productId":1}`, &c))
	assert.Equal(t, 2, c.Count)

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPut, "/api/cart/items/2", `{"quantity":4}`, &c))
	assert.Equal(t, 5, c.Count)

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPut, "/api/cart/items/2", `{"quantity":-3}`, &c))
	assert.Equal(t, 2, c.Count)

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/cart/items/2/increment", "", &c))
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/cart/items/1/decrement", "", &c))
	assert.Equal(t, 3, c.Count)
	assert.InDelta(t, 140.0, c.Subtotal, 0.001)
	assert.InDelta(t, 29.4, c.Tax, 0.001)
	assert.InDelta(t, 169.4, c.Total, 0.001)

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodDelete, "/api/cart/items/1", "", &c))
	require.Len(t, c.Items, 1)
	assert.Equal(t, "2", c.Items[0].ID)

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodDelete, "/api/cart", "", &c))
	assert.Zero(t, c.Count)
	assert.Empty(t, c.Items)
}

func TestCart_Errors(t *testing.T) {
	srv := newServer(t, staticSource(testCatalog()))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{name: "out of stock", method: http.MethodPost, path: "/api/cart/items", body: `{"productId":"3"}`, status: http.StatusConflict},
		{name: "unknown product", method: http.MethodPost, path: "/api/cart/items", body: `{"productId":"42"}`, status: http.StatusNotFound},
		{name: "missing id", method: http.MethodPost, path: "/api/cart/items", body: `{}`, status: http.StatusBadRequest},
		{name: "not json", method: http.MethodPost, path: "/api/cart/items", body: `productId=1`, status: http.StatusBadRequest},
		{name: "truncated", method: http.MethodPost, path: "/api/cart/items", body: `{"productId":`, status: http.StatusBadRequest},
		{name: "bad quantity", method: http.MethodPut, path: "/api/cart/items/1", body: `{"quantity":"many"}`, status: http.StatusBadRequest},
		{name: "second object", method: http.MethodPost, path: "/api/cart/items", body: `{"productId":"1"} {"productId":"2"}`, status: http.StatusBadRequest},
		{name: "trailing garbage", method: http.MethodPost, path: "/api/cart/items", body: `{"productId":"1"}garbage`, status: http.StatusBadRequest},
		{
			name:   "oversized body",
			method: http.MethodPost,
			path:   "/api/cart/items",
			body:   `{"productId":"1","pad":"` + strings.Repeat("x", maxBodySize) + `"}`,
			status: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e errorResponse
			assert.Equal(t, tt.status, do(t, srv, tt.method, tt.path, tt.body, &e))
			assert.Equal(t, tt.status, e.Code)
			assert.NotEmpty(t, e.Message)
		})
	}
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func TestReadObject(t *testing.T) {
	readID := func(body io.Reader) (string, error) {
		var id string
		req := httptest.NewRequest(http.MethodPost, "/api/cart/items", body)
		err := readObject(req, func(d *jx.Decoder, key string) error {
			if key != "productId" {
				return d.Skip()
			}
			v, err := d.Str()
			id = v
			return err
		})
		return id, err
	}

	id, err := readID(strings.NewReader(" {\"productId\":\"7\"}\n\t "))
	require.NoError(t, err)
	assert.Equal(t, "7", id)

	_, err = readID(errReader{err: errors.New("connection reset")})
	require.ErrorIs(t, err, errBadRequest)
	assert.Contains(t, err.Error(), "connection reset")

	_, err = readID(strings.NewReader(`{"productId":"7"}[]`))
	require.ErrorIs(t, err, errBadRequest)

	_, err = readID(strings.NewReader(`{"productId":"` + strings.Repeat("7", maxBodySize) + `"}`))
	require.ErrorIs(t, err, errBadRequest)
	assert.Contains(t, err.Error(), "exceeds")

	rec := httptest.NewRecorder()
	_, err = readID(errReader{err: errors.New("connection reset")})
	fail(rec, httptest.NewRequest(http.MethodPost, "/api/checkout", nil), err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout(t *testing.T) {
	srv := newServer(t, staticSource(testCatalog()))

	var e errorResponse
	require.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/orders/last", "", &e))

	buyer := `{"name":"Ada","email":"ada@example.com","phone":"555","address":"Street 1"}`
	require.Equal(t, http.StatusUnprocessableEntity, do(t, srv, http.MethodPost, "/api/checkout", buyer, &e))

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/cart/items", `{"productId":"1"}`, nil))
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/cart/items", `{"productId":"1"}`, nil))

	require.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/checkout", `{"name":"Ada"}`, &e))
	assert.Contains(t, e.Message, "email")
	require.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/checkout", `{"name":5}`, &e))

	var o orderResponse
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/checkout", buyer, &o))
	assert.Regexp(t, `^ORD-[0-9A-F]{32}$`, o.ID)
	assert.Equal(t, "Street 1", o.Buyer.Address)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Qty)
	assert.InDelta(t, 200.0, o.Totals.Subtotal, 0.001)
	assert.InDelta(t, 42.0, o.Totals.Tax, 0.001)
	assert.InDelta(t, 242.0, o.Totals.Total, 0.001)

	var p productResponse
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/products/1", "", &p))
	assert.Zero(t, p.Stock)

	var c cartResponse
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/cart", "", &c))
	assert.Zero(t, c.Count)

	var last orderResponse
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/orders/last", "", &last))
	assert.Equal(t, o.ID, last.ID)
	assert.Equal(t, "Street 1", last.Buyer.Address, "checkout request and order responses share the address key")
}

func TestCheckout_SpanAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	kv := memory.New()
	s := storefront.New(context.Background(), storefront.Options{
		Source: staticSource(testCatalog()),
		Cart:   storage.NewCartRepository(kv),
		Orders: storage.NewOrderRepository(kv),
	})
	require.NoError(t, s.LoadCatalog(context.Background()))
	_, err := s.AddToCart(context.Background(), "2")
	require.NoError(t, err)

	r := chi.NewRouter()
	New(s).Mount(r)

	ctx, span := tp.Tracer("test").Start(context.Background(), "checkout")
	req := httptest.NewRequestWithContext(ctx, http.MethodPost, "/api/checkout",
		strings.NewReader(`{"name":"A","email":"a@b.c","phone":"1","address":"x"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	span.End()

	require.Equal(t, http.StatusCreated, rec.Code)
	spans := recorder.Ended()
	require.Len(t, spans, 1)

	attrs := map[string]bool{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = true
	}
	assert.True(t, attrs["neostore.order.id"])
	assert.True(t, attrs["neostore.order.total"])
}

func TestStatusAndReload(t *testing.T) {
	fail := true
	src := product.SourceFunc(func(context.Context) ([]product.Product, error) {
		if fail {
			return nil, errors.New("upstream down")
		}
		return testCatalog(), nil
	})
	srv := newServer(t, src)

	var st struct {
		Catalog   string `json:"catalog"`
		Error     string `json:"error"`
		Products  int    `json:"products"`
		CartCount int    `json:"cartCount"`
	}
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/status", "", &st))
	assert.Equal(t, "failed", st.Catalog)
	assert.Contains(t, st.Error, "upstream down")

	var e errorResponse
	require.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodPost, "/api/catalog/reload", "", &e))

	fail = false
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/catalog/reload", "", &st))
	assert.Equal(t, "ready", st.Catalog)
	assert.Equal(t, 3, st.Products)
	assert.Empty(t, st.Error)
}

func TestRoutePattern(t *testing.T) {
	var pattern string
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req)
			pattern = RoutePattern(req)
		})
	})
	r.Get("/api/products/{id}", func(http.ResponseWriter, *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/products/7", nil))
	assert.Equal(t, "/api/products/{id}", pattern)

	assert.Equal(t, "/raw", RoutePattern(httptest.NewRequest(http.MethodGet, "/raw", nil)))
}
