package file

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"

	"github.com/xenking/neostore/internal/codec"
	"github.com/xenking/neostore/internal/domain/product"
)

var _ product.Source = (*CatalogSource)(nil)

// CatalogSource reads the product list from a JSON file. Files ending in
// .gz are decompressed with pgzip.
type CatalogSource struct {
	path string
}

// NewCatalogSource returns a source reading path on every Fetch.
func NewCatalogSource(path string) *CatalogSource {
	return &CatalogSource{path: path}
}

func (s *CatalogSource) Fetch(ctx context.Context) ([]product.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(s.path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip reader")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog")
	}

	products, err := codec.DecodeCatalog(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode catalog %q", s.path)
	}
	return products, nil
}
