// Package remote fetches the product catalog over HTTP.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/neostore/internal/codec"
	"github.com/xenking/neostore/internal/domain/product"
)

// maxCatalogSize bounds the response body read into memory.
const maxCatalogSize = 32 << 20

var _ product.Source = (*CatalogSource)(nil)

// CatalogSource issues GET url on every Fetch and decodes the body.
type CatalogSource struct {
	url    string
	client *http.Client
}

// Options configure a CatalogSource.
type Options struct {
	Timeout        time.Duration
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// NewCatalogSource returns a source for url whose client is instrumented
// with otelhttp.
func NewCatalogSource(url string, opts Options) *CatalogSource {
	var transportOpts []otelhttp.Option
	if opts.TracerProvider != nil {
		transportOpts = append(transportOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}
	if opts.MeterProvider != nil {
		transportOpts = append(transportOpts, otelhttp.WithMeterProvider(opts.MeterProvider))
	}

	return &CatalogSource{
		url: url,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, transportOpts...),
		},
	}
}

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

func (s *CatalogSource) Fetch(ctx context.Context) ([]product.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request catalog")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize))
	if err != nil {
		return nil, errors.Wrap(err, "read catalog")
	}

	products, err := codec.DecodeCatalog(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return products, nil
}
